// Package sim holds the device physics. Each simulator exclusively owns its
// state and is driven by exactly one goroutine; cross-task communication is
// messages and snapshots only.
package sim

import (
	"math/rand"

	"github.com/soham10i/stf-hw/internal/types"
)

// Electrical and wear constants. Values follow the Fischertechnik 24 V
// motor characteristics.
const (
	defaultVoltage = 24.0
	idleAmps       = 0.05
	startupAmps    = 2.5
	runningAmps    = 1.2
	bearingAmps    = 3.5

	wearPerTick       = 1e-4
	anomalyThreshold  = 0.8
	stoppageThreshold = 0.5
	anomalyChance     = 0.05
	stoppageChance    = 0.02
)

// MotorConfig tunes one motor instance.
type MotorConfig struct {
	RunningAmps float64
	Voltage     float64
	MaxVelocity float64 // mm/s or deg/s depending on the axis
}

// Motor simulates a single DC motor: phase machine, current draw, wear.
type Motor struct {
	ID  string
	cfg MotorConfig
	rng *rand.Rand

	Phase       types.MotorPhase
	CurrentAmps float64
	Health      float64
	RuntimeSec  float64
	Velocity    float64
	active      bool
	// energy accumulated since the motor was created, J
	energy float64
}

func NewMotor(id string, cfg MotorConfig, rng *rand.Rand) *Motor {
	if cfg.Voltage == 0 {
		cfg.Voltage = defaultVoltage
	}
	if cfg.RunningAmps == 0 {
		cfg.RunningAmps = runningAmps
	}
	if cfg.MaxVelocity == 0 {
		cfg.MaxVelocity = 100
	}
	return &Motor{
		ID:          id,
		cfg:         cfg,
		rng:         rng,
		Phase:       types.MotorIdle,
		CurrentAmps: idleAmps,
		Health:      1.0,
	}
}

// Activate starts the motor; from IDLE it passes through a one-tick
// STARTUP inrush.
func (m *Motor) Activate() {
	if m.Phase == types.MotorIdle {
		m.Phase = types.MotorStartup
	}
	m.active = true
}

// Deactivate winds the motor down through STOPPING.
func (m *Motor) Deactivate() {
	if m.Phase != types.MotorIdle {
		m.Phase = types.MotorStopping
	}
	m.active = false
}

// Kill zeroes the enable output immediately. Used for emergency stop.
func (m *Motor) Kill() {
	m.Phase = types.MotorIdle
	m.Velocity = 0
	m.CurrentAmps = idleAmps
	m.active = false
}

// Tick advances one simulation step and returns the resulting snapshot.
func (m *Motor) Tick(dt float64) types.MotorSnapshot {
	switch m.Phase {
	case types.MotorStartup:
		// Inrush lasts exactly one tick.
		m.CurrentAmps = startupAmps
		m.Velocity = m.cfg.MaxVelocity / 2
		m.Phase = types.MotorRunning
	case types.MotorRunning:
		m.CurrentAmps = m.cfg.RunningAmps
		m.Velocity = m.cfg.MaxVelocity
	case types.MotorStopping:
		m.Velocity = max(0, m.Velocity-m.cfg.MaxVelocity*dt*2)
		m.CurrentAmps = max(idleAmps, m.CurrentAmps*0.5)
		if m.active {
			// One-tick micro-stoppage over, spin back up.
			m.Phase = types.MotorStartup
		} else if m.Velocity == 0 {
			m.Phase = types.MotorIdle
			m.CurrentAmps = idleAmps
		}
	default:
		m.CurrentAmps = idleAmps
		m.Velocity = 0
	}

	if m.Phase != types.MotorIdle {
		m.Health = max(0, m.Health-wearPerTick)
		m.RuntimeSec += dt

		if m.Health < anomalyThreshold && m.rng.Float64() < anomalyChance {
			m.CurrentAmps = bearingAmps
		}
		if m.Health < stoppageThreshold && m.Phase == types.MotorRunning &&
			m.rng.Float64() < stoppageChance {
			m.Phase = types.MotorStopping
		}
	}

	power := m.CurrentAmps * m.cfg.Voltage
	joules := power * dt
	m.energy += joules

	return types.MotorSnapshot{
		ComponentID:  m.ID,
		Phase:        m.Phase,
		CurrentAmps:  m.CurrentAmps,
		Voltage:      m.cfg.Voltage,
		PowerWatts:   power,
		EnergyJoules: joules,
		HealthScore:  m.Health,
		RuntimeSec:   m.RuntimeSec,
		Velocity:     m.Velocity,
		Active:       m.active,
	}
}
