package executor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/soham10i/stf-hw/internal/types"
)

// Well-known device positions. HBW coordinates are rail/tower/fork, VGR
// coordinates rotation/arm/lift.
var (
	hbwHome           = types.Vec3{}
	hbwConveyorPickup = types.Vec3{X: 100, Y: 0, Z: 0}
	vgrHome           = types.Vec3{}
	vgrDelivery       = types.Vec3{X: 0, Y: 50, Z: 100}
	vgrConveyorInput  = types.Vec3{X: 180, Y: 150, Z: 100}
)

// fullCell is the device set of any order that crosses the conveyor bridge.
var fullCell = []types.DeviceID{types.DeviceHBW, types.DeviceConveyor, types.DeviceVGR}

// DeviceSet returns the devices a command kind occupies. Commands whose
// sets intersect serialise; disjoint sets run concurrently.
func DeviceSet(kind types.CommandKind, params json.RawMessage) []types.DeviceID {
	switch kind {
	case types.KindMove:
		var mp types.MoveParams
		if err := json.Unmarshal(params, &mp); err == nil && mp.Device != "" {
			return []types.DeviceID{mp.Device}
		}
		return fullCell
	default:
		return fullCell
	}
}

// BuildPlan expands a claimed command into its ordered device operations.
func BuildPlan(cmd *types.Command, slotPos types.Vec3, bakeTime time.Duration) ([]Op, error) {
	switch cmd.Kind {
	case types.KindStore:
		return storePlan(slotPos), nil
	case types.KindRetrieve:
		return retrievePlan(slotPos), nil
	case types.KindProcess:
		return processPlan(slotPos, bakeTime), nil
	case types.KindMove:
		var mp types.MoveParams
		if err := json.Unmarshal(cmd.Params, &mp); err != nil {
			return nil, fmt.Errorf("invalid MOVE params: %w", err)
		}
		dev, err := types.ParseDevice(string(mp.Device))
		if err != nil {
			return nil, err
		}
		return []Op{{Kind: OpMoveTo, Device: dev, Target: mp.Target}}, nil
	case types.KindReset:
		return resetPlan(), nil
	default:
		return nil, fmt.Errorf("no plan for command kind %s", cmd.Kind)
	}
}

// storePlan brings a fresh carrier from the delivery zone over the conveyor
// into the target slot.
func storePlan(slot types.Vec3) []Op {
	return []Op{
		{Kind: OpMoveTo, Device: types.DeviceVGR, Target: vgrDelivery},
		{Kind: OpVacuumOn, Device: types.DeviceVGR},
		{Kind: OpMoveTo, Device: types.DeviceVGR, Target: vgrConveyorInput},
		{Kind: OpVacuumOff, Device: types.DeviceVGR},
		{Kind: OpPlace, Device: types.DeviceConveyor},
		{Kind: OpRunBelt, Device: types.DeviceConveyor, Direction: 1},
		{Kind: OpWaitSensor, Device: types.DeviceConveyor, Sensor: "L4"},
		{Kind: OpStopBelt, Device: types.DeviceConveyor},
		{Kind: OpMoveTo, Device: types.DeviceHBW, Target: hbwConveyorPickup},
		{Kind: OpGripClose, Device: types.DeviceHBW},
		{Kind: OpPick, Device: types.DeviceConveyor},
		{Kind: OpMoveTo, Device: types.DeviceHBW, Target: slot},
		{Kind: OpRelease, Device: types.DeviceHBW},
		{Kind: OpMoveTo, Device: types.DeviceHBW, Target: hbwHome},
		{Kind: OpMoveTo, Device: types.DeviceVGR, Target: vgrHome},
	}
}

// retrievePlan runs the bridge in reverse: rack slot to the VGR handover.
func retrievePlan(slot types.Vec3) []Op {
	return []Op{
		{Kind: OpMoveTo, Device: types.DeviceHBW, Target: slot},
		{Kind: OpGripClose, Device: types.DeviceHBW},
		{Kind: OpMoveTo, Device: types.DeviceHBW, Target: hbwConveyorPickup},
		{Kind: OpPlace, Device: types.DeviceConveyor},
		{Kind: OpRelease, Device: types.DeviceHBW},
		{Kind: OpRunBelt, Device: types.DeviceConveyor, Direction: -1},
		{Kind: OpWaitSensor, Device: types.DeviceConveyor, Sensor: "L1"},
		{Kind: OpStopBelt, Device: types.DeviceConveyor},
		{Kind: OpMoveTo, Device: types.DeviceVGR, Target: vgrConveyorInput},
		{Kind: OpVacuumOn, Device: types.DeviceVGR},
		{Kind: OpPick, Device: types.DeviceConveyor},
		{Kind: OpMoveTo, Device: types.DeviceVGR, Target: vgrDelivery},
		{Kind: OpVacuumOff, Device: types.DeviceVGR},
		{Kind: OpMoveTo, Device: types.DeviceHBW, Target: hbwHome},
		{Kind: OpMoveTo, Device: types.DeviceVGR, Target: vgrHome},
	}
}

// processPlan bakes the cookie at the slot: fetch, run it across the belt
// for the bake, bring it back. The op order is the published contract;
// tests and observers depend on it.
func processPlan(slot types.Vec3, bakeTime time.Duration) []Op {
	return []Op{
		{Kind: OpMoveTo, Device: types.DeviceHBW, Target: slot},
		{Kind: OpGripClose, Device: types.DeviceHBW},
		{Kind: OpMoveTo, Device: types.DeviceHBW, Target: hbwConveyorPickup},
		{Kind: OpPlace, Device: types.DeviceConveyor},
		{Kind: OpRunBelt, Device: types.DeviceConveyor, Direction: 1},
		{Kind: OpWait, Duration: bakeTime},
		{Kind: OpStopBelt, Device: types.DeviceConveyor},
		{Kind: OpGripClose, Device: types.DeviceHBW},
		{Kind: OpPick, Device: types.DeviceConveyor},
		{Kind: OpMoveTo, Device: types.DeviceHBW, Target: slot},
		{Kind: OpRelease, Device: types.DeviceHBW},
		{Kind: OpMoveTo, Device: types.DeviceHBW, Target: hbwHome},
	}
}

// resetPlan clears substate on every device and verifies each reports IDLE.
func resetPlan() []Op {
	ops := make([]Op, 0, len(fullCell))
	for _, dev := range fullCell {
		ops = append(ops, Op{Kind: OpReset, Device: dev})
	}
	return ops
}
