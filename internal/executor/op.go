package executor

import (
	"fmt"
	"time"

	"github.com/soham10i/stf-hw/internal/types"
)

// OpKind tags one device operation inside a command plan. The FSM is a
// tagged variant over these kinds with a single step function, not a type
// hierarchy.
type OpKind string

const (
	OpMoveTo     OpKind = "MOVE_TO"
	OpGripClose  OpKind = "GRIP_CLOSE"
	OpRelease    OpKind = "RELEASE"
	OpVacuumOn   OpKind = "VACUUM_ON"
	OpVacuumOff  OpKind = "VACUUM_OFF"
	OpPlace      OpKind = "PLACE"
	OpPick       OpKind = "PICK"
	OpRunBelt    OpKind = "RUN_BELT"
	OpStopBelt   OpKind = "STOP_BELT"
	OpWaitSensor OpKind = "WAIT_SENSOR"
	OpWait       OpKind = "WAIT"
	OpReset      OpKind = "RESET"
)

// Op is one step of a plan. Only the fields its kind needs are set.
type Op struct {
	Kind      OpKind
	Device    types.DeviceID
	Target    types.Vec3    // MOVE_TO
	Direction int           // RUN_BELT
	Sensor    string        // WAIT_SENSOR
	Duration  time.Duration // WAIT
}

// Idempotent ops may be re-issued after a timeout; re-sending the same
// message converges on the same device state.
func (o Op) Idempotent() bool {
	switch o.Kind {
	case OpMoveTo, OpRunBelt, OpStopBelt, OpGripClose, OpRelease,
		OpVacuumOn, OpVacuumOff, OpReset:
		return true
	default:
		return false
	}
}

func (o Op) String() string {
	switch o.Kind {
	case OpMoveTo:
		return fmt.Sprintf("%s(%s, %.0f/%.0f/%.0f)", o.Kind, o.Device,
			o.Target.X, o.Target.Y, o.Target.Z)
	case OpRunBelt:
		return fmt.Sprintf("%s(%+d)", o.Kind, o.Direction)
	case OpWait:
		return fmt.Sprintf("%s(%s)", o.Kind, o.Duration)
	case OpWaitSensor:
		return fmt.Sprintf("%s(%s)", o.Kind, o.Sensor)
	default:
		return fmt.Sprintf("%s(%s)", o.Kind, o.Device)
	}
}
