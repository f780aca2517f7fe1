package sim

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/soham10i/stf-hw/internal/bus"
	"github.com/soham10i/stf-hw/internal/types"
)

// HBW travel limits, mm.
const (
	hbwRailMax = 400.0
	hbwLiftMax = 400.0
	hbwForkMax = 100.0
)

// HBW simulates the stacker crane: X rides the rail, Y climbs the tower,
// Z telescopes the fork into a rack bay.
type HBW struct {
	x, y, z   *Axis
	refSwitch RefSwitch

	gripperClosed bool
	hasCarrier    bool
	emergency     bool
	lastError     string
	seq           uint64
}

func NewHBW(rng *rand.Rand) *HBW {
	h := &HBW{}
	h.x = &Axis{Name: "HBW_X", Max: hbwRailMax, Eps: EpsTranslationMM,
		Motor: NewMotor("HBW_X", MotorConfig{RunningAmps: 1.5}, rng)}
	h.y = &Axis{Name: "HBW_Y", Max: hbwLiftMax, Eps: EpsTranslationMM,
		Motor: NewMotor("HBW_Y", MotorConfig{RunningAmps: 1.5}, rng)}
	h.z = &Axis{Name: "HBW_Z", Max: hbwForkMax, Eps: EpsTranslationMM,
		Motor: NewMotor("HBW_Z", MotorConfig{RunningAmps: 1.0}, rng)}
	h.refSwitch = RefSwitch{ID: "HBW_REF_SW"}
	return h
}

func (h *HBW) ID() types.DeviceID { return types.DeviceHBW }

// Apply consumes one command message received since the last tick.
func (h *HBW) Apply(action string, payload []byte) error {
	if h.emergency && action != bus.ActionReset {
		return fmt.Errorf("HBW: in emergency stop, ignoring %q", action)
	}

	switch action {
	case bus.ActionMove:
		var cmd moveCmd
		if err := decode(payload, &cmd); err != nil {
			return err
		}
		if err := h.x.SetTarget(cmd.X); err != nil {
			return err
		}
		if err := h.y.SetTarget(cmd.Y); err != nil {
			return err
		}
		return h.z.SetTarget(cmd.Z)

	case bus.ActionGripper:
		var cmd gripperCmd
		if err := decode(payload, &cmd); err != nil {
			return err
		}
		switch cmd.Action {
		case "close", "extend":
			h.gripperClosed = true
			h.hasCarrier = true
		case "open", "retract":
			h.gripperClosed = false
			h.hasCarrier = false
		default:
			return fmt.Errorf("HBW: unknown gripper action %q", cmd.Action)
		}
		return nil

	case bus.ActionStop:
		h.x.Abort()
		h.y.Abort()
		h.z.Abort()
		return nil

	case bus.ActionReset:
		h.Reset()
		return nil

	default:
		return errUnknownAction("HBW", action)
	}
}

// EmergencyStop latches the device: motion commands are ignored and motor
// enables are zeroed until a reset.
func (h *HBW) EmergencyStop() {
	h.emergency = true
	for _, a := range []*Axis{h.x, h.y, h.z} {
		a.target = nil
		a.Motor.Kill()
	}
}

// Reset clears targets, errors and the emergency latch. Health and runtime
// are wear state and survive a reset.
func (h *HBW) Reset() {
	h.emergency = false
	h.lastError = ""
	h.gripperClosed = false
	h.hasCarrier = false
	for _, a := range []*Axis{h.x, h.y, h.z} {
		a.target = nil
		a.Motor.Kill()
	}
}

// Tick advances kinematics, electrical and wear state by dt and returns the
// full status snapshot.
func (h *HBW) Tick(now time.Time, dt time.Duration) types.DeviceSnapshot {
	sec := dt.Seconds()

	motors := make(map[string]types.MotorSnapshot, 3)
	var power, energy float64
	for _, a := range []*Axis{h.x, h.y, h.z} {
		ms := a.Motor.Tick(sec)
		a.Tick(sec)
		motors[a.Name] = ms
		power += ms.PowerWatts
		energy += ms.EnergyJoules
	}

	h.refSwitch.Update(h.x.AtHome() && h.y.AtHome() && h.z.AtHome(), now)

	h.seq++
	snap := types.DeviceSnapshot{
		Device:    types.DeviceHBW,
		Seq:       h.seq,
		Timestamp: now,
		Status:    h.status(),
		Position:  types.Vec3{X: h.x.Pos, Y: h.y.Pos, Z: h.z.Pos},
		Motors:    motors,
		Sensors: map[string]types.SensorSnapshot{
			h.refSwitch.ID: h.refSwitch.Snapshot(),
		},
		GripperClose: h.gripperClosed,
		HasCarrier:   h.hasCarrier,
		PowerWatts:   power,
		EnergyJoules: energy,
		LastError:    h.lastError,
	}
	if t := h.target(); t != nil {
		snap.Target = t
	}
	return snap
}

func (h *HBW) status() types.DeviceStatus {
	switch {
	case h.emergency:
		return types.DeviceEmergency
	case h.x.Moving() || h.y.Moving() || h.z.Moving():
		return types.DeviceMoving
	default:
		return types.DeviceIdle
	}
}

func (h *HBW) target() *types.Vec3 {
	tx, ty, tz := h.x.Target(), h.y.Target(), h.z.Target()
	if tx == nil && ty == nil && tz == nil {
		return nil
	}
	t := types.Vec3{X: h.x.Pos, Y: h.y.Pos, Z: h.z.Pos}
	if tx != nil {
		t.X = *tx
	}
	if ty != nil {
		t.Y = *ty
	}
	if tz != nil {
		t.Z = *tz
	}
	return &t
}
