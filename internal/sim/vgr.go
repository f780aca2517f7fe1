package sim

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/soham10i/stf-hw/internal/bus"
	"github.com/soham10i/stf-hw/internal/types"
)

// VGR travel limits. X is the turret rotation in degrees; Y extends the
// arm, Z lowers the suction cup.
const (
	vgrRotMax  = 270.0
	vgrArmMax  = 200.0
	vgrLiftMax = 150.0
)

// VGR simulates the vacuum gripper robot: a rotating turret with an
// extending arm, a vertical axis, and a pneumatic suction system fed by a
// compressor.
type VGR struct {
	rot, arm, lift *Axis
	compressor     *Motor
	refSwitch      RefSwitch

	valveOpen    bool
	vacuumActive bool
	hasItem      bool
	emergency    bool
	lastError    string
	seq          uint64
}

func NewVGR(rng *rand.Rand) *VGR {
	v := &VGR{}
	v.rot = &Axis{Name: "VGR_X", Max: vgrRotMax, Eps: EpsRotationDeg,
		Motor: NewMotor("VGR_X", MotorConfig{RunningAmps: 1.2, MaxVelocity: 90}, rng)}
	v.arm = &Axis{Name: "VGR_Y", Max: vgrArmMax, Eps: EpsTranslationMM,
		Motor: NewMotor("VGR_Y", MotorConfig{RunningAmps: 1.2}, rng)}
	v.lift = &Axis{Name: "VGR_Z", Max: vgrLiftMax, Eps: EpsTranslationMM,
		Motor: NewMotor("VGR_Z", MotorConfig{RunningAmps: 0.8}, rng)}
	v.compressor = NewMotor("VGR_COMP", MotorConfig{RunningAmps: 2.5}, rng)
	v.refSwitch = RefSwitch{ID: "VGR_REF_SW"}
	return v
}

func (v *VGR) ID() types.DeviceID { return types.DeviceVGR }

func (v *VGR) Apply(action string, payload []byte) error {
	if v.emergency && action != bus.ActionReset {
		return fmt.Errorf("VGR: in emergency stop, ignoring %q", action)
	}

	switch action {
	case bus.ActionMove:
		var cmd moveCmd
		if err := decode(payload, &cmd); err != nil {
			return err
		}
		if err := v.rot.SetTarget(cmd.X); err != nil {
			return err
		}
		if err := v.arm.SetTarget(cmd.Y); err != nil {
			return err
		}
		return v.lift.SetTarget(cmd.Z)

	case bus.ActionVacuum:
		var cmd vacuumCmd
		if err := decode(payload, &cmd); err != nil {
			return err
		}
		if cmd.Activate {
			v.compressor.Activate()
			v.valveOpen = true
			v.vacuumActive = true
			v.hasItem = true
		} else {
			v.compressor.Deactivate()
			v.valveOpen = false
			v.vacuumActive = false
			v.hasItem = false
		}
		return nil

	case bus.ActionStop:
		v.rot.Abort()
		v.arm.Abort()
		v.lift.Abort()
		return nil

	case bus.ActionReset:
		v.Reset()
		return nil

	default:
		return errUnknownAction("VGR", action)
	}
}

func (v *VGR) EmergencyStop() {
	v.emergency = true
	for _, a := range []*Axis{v.rot, v.arm, v.lift} {
		a.target = nil
		a.Motor.Kill()
	}
	v.compressor.Kill()
	v.valveOpen = false
	v.vacuumActive = false
}

func (v *VGR) Reset() {
	v.emergency = false
	v.lastError = ""
	v.valveOpen = false
	v.vacuumActive = false
	v.hasItem = false
	for _, a := range []*Axis{v.rot, v.arm, v.lift} {
		a.target = nil
		a.Motor.Kill()
	}
	v.compressor.Kill()
}

func (v *VGR) Tick(now time.Time, dt time.Duration) types.DeviceSnapshot {
	sec := dt.Seconds()

	motors := make(map[string]types.MotorSnapshot, 4)
	var power, energy float64
	for _, a := range []*Axis{v.rot, v.arm, v.lift} {
		ms := a.Motor.Tick(sec)
		a.Tick(sec)
		motors[a.Name] = ms
		power += ms.PowerWatts
		energy += ms.EnergyJoules
	}
	comp := v.compressor.Tick(sec)
	motors[v.compressor.ID] = comp
	power += comp.PowerWatts
	energy += comp.EnergyJoules

	v.refSwitch.Update(v.rot.AtHome() && v.arm.AtHome() && v.lift.AtHome(), now)

	v.seq++
	snap := types.DeviceSnapshot{
		Device:    types.DeviceVGR,
		Seq:       v.seq,
		Timestamp: now,
		Status:    v.status(),
		Position:  types.Vec3{X: v.rot.Pos, Y: v.arm.Pos, Z: v.lift.Pos},
		Motors:    motors,
		Sensors: map[string]types.SensorSnapshot{
			v.refSwitch.ID: v.refSwitch.Snapshot(),
		},
		VacuumActive: v.vacuumActive,
		ValveOpen:    v.valveOpen,
		HasCarrier:   v.hasItem,
		PowerWatts:   power,
		EnergyJoules: energy,
		LastError:    v.lastError,
	}
	if v.rot.Moving() || v.arm.Moving() || v.lift.Moving() {
		snap.Target = v.target()
	}
	return snap
}

func (v *VGR) status() types.DeviceStatus {
	switch {
	case v.emergency:
		return types.DeviceEmergency
	case v.rot.Moving() || v.arm.Moving() || v.lift.Moving():
		return types.DeviceMoving
	default:
		return types.DeviceIdle
	}
}

func (v *VGR) target() *types.Vec3 {
	t := types.Vec3{X: v.rot.Pos, Y: v.arm.Pos, Z: v.lift.Pos}
	if p := v.rot.Target(); p != nil {
		t.X = *p
	}
	if p := v.arm.Target(); p != nil {
		t.Y = *p
	}
	if p := v.lift.Target(); p != nil {
		t.Z = *p
	}
	return &t
}
