package sim

import (
	"math/rand"
	"testing"

	"github.com/soham10i/stf-hw/internal/types"
)

const dt = 0.1

func newTestMotor() *Motor {
	return NewMotor("TEST_M1", MotorConfig{}, rand.New(rand.NewSource(1)))
}

func TestMotorStartupInrushLastsOneTick(t *testing.T) {
	m := newTestMotor()
	m.Activate()

	snap := m.Tick(dt)
	if snap.CurrentAmps != startupAmps {
		t.Fatalf("startup tick draws %.2f A, want %.2f", snap.CurrentAmps, startupAmps)
	}

	snap = m.Tick(dt)
	if snap.Phase != types.MotorRunning {
		t.Fatalf("after inrush phase is %s, want RUNNING", snap.Phase)
	}
	if snap.CurrentAmps != runningAmps {
		t.Fatalf("running current %.2f A, want %.2f", snap.CurrentAmps, runningAmps)
	}
}

func TestMotorWearRate(t *testing.T) {
	m := newTestMotor()
	m.Activate()

	const ticks = 1000
	for i := 0; i < ticks; i++ {
		m.Tick(dt)
	}

	want := 1.0 - wearPerTick*ticks
	if diff := m.Health - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("health after %d ticks = %.6f, want %.6f", ticks, m.Health, want)
	}
	wantRuntime := dt * ticks
	if diff := m.RuntimeSec - wantRuntime; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("runtime = %.3f, want %.3f", m.RuntimeSec, wantRuntime)
	}
}

func TestMotorIdleDoesNotWear(t *testing.T) {
	m := newTestMotor()
	for i := 0; i < 100; i++ {
		m.Tick(dt)
	}
	if m.Health != 1.0 {
		t.Errorf("idle motor wore down to %.4f", m.Health)
	}
	if m.RuntimeSec != 0 {
		t.Errorf("idle motor accumulated runtime %.2f", m.RuntimeSec)
	}
}

func TestMotorStoppingDecaysToIdle(t *testing.T) {
	m := newTestMotor()
	m.Activate()
	m.Tick(dt)
	m.Tick(dt)
	m.Deactivate()

	for i := 0; i < 50 && m.Phase != types.MotorIdle; i++ {
		m.Tick(dt)
	}
	if m.Phase != types.MotorIdle {
		t.Fatalf("motor never wound down, phase %s", m.Phase)
	}
	if m.CurrentAmps != idleAmps {
		t.Errorf("idle current %.2f, want %.2f", m.CurrentAmps, idleAmps)
	}
}

func TestDegradedMotorAnomalies(t *testing.T) {
	m := newTestMotor()
	m.Activate()
	m.Tick(dt)
	m.Health = 0.45

	var sawSpike, sawStoppage bool
	for i := 0; i < 2000; i++ {
		snap := m.Tick(dt)
		if snap.CurrentAmps == bearingAmps {
			sawSpike = true
		}
		if snap.Phase == types.MotorStopping {
			sawStoppage = true
		}
		if m.Phase == types.MotorIdle {
			m.Activate()
		}
	}
	if !sawSpike {
		t.Error("degraded motor never drew anomaly current")
	}
	if !sawStoppage {
		t.Error("severely degraded motor never micro-stopped")
	}
}

func TestMotorKillZeroesOutputs(t *testing.T) {
	m := newTestMotor()
	m.Activate()
	m.Tick(dt)
	m.Kill()

	if m.Phase != types.MotorIdle || m.Velocity != 0 {
		t.Errorf("kill left phase=%s velocity=%.1f", m.Phase, m.Velocity)
	}
}
