package executor

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soham10i/stf-hw/internal/types"
)

func kinds(ops []Op) []OpKind {
	out := make([]OpKind, len(ops))
	for i, op := range ops {
		out[i] = op.Kind
	}
	return out
}

func TestProcessPlanFollowsBakeSequence(t *testing.T) {
	slot := types.SlotName("B2")
	cmd := &types.Command{Kind: types.KindProcess, TargetSlot: &slot}

	plan, err := BuildPlan(cmd, types.SlotCoordinates[slot], 10*time.Second)
	require.NoError(t, err)

	want := []OpKind{
		OpMoveTo, OpGripClose, OpMoveTo, OpPlace, OpRunBelt,
		OpWait, OpStopBelt, OpGripClose, OpPick, OpMoveTo, OpRelease, OpMoveTo,
	}
	assert.Equal(t, want, kinds(plan))

	// The first move goes to the slot, the belt runs forward, the bake wait
	// carries the configured duration.
	assert.Equal(t, types.DeviceHBW, plan[0].Device)
	assert.Equal(t, types.SlotCoordinates[slot], plan[0].Target)
	assert.Equal(t, 1, plan[4].Direction)
	assert.Equal(t, 10*time.Second, plan[5].Duration)
	// After the bake the carrier returns to the same slot.
	assert.Equal(t, types.SlotCoordinates[slot], plan[9].Target)
}

func TestStoreAndRetrievePlansCrossTheBridge(t *testing.T) {
	slot := types.SlotName("A1")

	store, err := BuildPlan(&types.Command{Kind: types.KindStore, TargetSlot: &slot},
		types.SlotCoordinates[slot], time.Second)
	require.NoError(t, err)
	retrieve, err := BuildPlan(&types.Command{Kind: types.KindRetrieve, TargetSlot: &slot},
		types.SlotCoordinates[slot], time.Second)
	require.NoError(t, err)

	for name, plan := range map[string][]Op{"store": store, "retrieve": retrieve} {
		touched := map[types.DeviceID]bool{}
		for _, op := range plan {
			if op.Device != "" {
				touched[op.Device] = true
			}
		}
		for _, dev := range types.AllDevices() {
			assert.True(t, touched[dev], "%s plan never touches %s", name, dev)
		}
	}

	// Retrieval runs the belt in reverse.
	var dir int
	for _, op := range retrieve {
		if op.Kind == OpRunBelt {
			dir = op.Direction
		}
	}
	assert.Equal(t, -1, dir)
}

func TestMovePlanTargetsSingleDevice(t *testing.T) {
	params, _ := json.Marshal(types.MoveParams{
		Device: types.DeviceVGR,
		Target: types.Vec3{X: 90},
	})
	cmd := &types.Command{Kind: types.KindMove, Params: params}

	plan, err := BuildPlan(cmd, types.Vec3{}, time.Second)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, OpMoveTo, plan[0].Kind)
	assert.Equal(t, types.DeviceVGR, plan[0].Device)

	assert.Equal(t, []types.DeviceID{types.DeviceVGR},
		DeviceSet(types.KindMove, params))
}

func TestDeviceSetDefaultsToFullCell(t *testing.T) {
	for _, kind := range []types.CommandKind{types.KindStore, types.KindRetrieve,
		types.KindProcess, types.KindReset} {
		assert.Len(t, DeviceSet(kind, nil), 3, "kind %s", kind)
	}
}

func TestResetPlanTouchesEveryDevice(t *testing.T) {
	plan, err := BuildPlan(&types.Command{Kind: types.KindReset}, types.Vec3{}, time.Second)
	require.NoError(t, err)
	require.Len(t, plan, 3)
	for _, op := range plan {
		assert.Equal(t, OpReset, op.Kind)
	}
}

func TestIdempotenceClassification(t *testing.T) {
	assert.True(t, Op{Kind: OpMoveTo}.Idempotent())
	assert.True(t, Op{Kind: OpRunBelt}.Idempotent())
	assert.False(t, Op{Kind: OpPlace}.Idempotent())
	assert.False(t, Op{Kind: OpPick}.Idempotent())
	assert.False(t, Op{Kind: OpWait}.Idempotent())
}
