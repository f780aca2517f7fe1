package sim

import (
	"math/rand"
	"testing"
	"time"

	"github.com/soham10i/stf-hw/internal/types"
)

func newTestHBW() *HBW {
	return NewHBW(rand.New(rand.NewSource(1)))
}

func tickHBW(h *HBW, n int) types.DeviceSnapshot {
	var snap types.DeviceSnapshot
	now := time.Unix(0, 0)
	for i := 0; i < n; i++ {
		now = now.Add(100 * time.Millisecond)
		snap = h.Tick(now, 100*time.Millisecond)
	}
	return snap
}

func TestHBWMoveArrivesWithinEps(t *testing.T) {
	h := newTestHBW()
	mustApply(t, h, "move", `{"x":100,"y":200,"z":0}`)

	snap := tickHBW(h, 1)
	if snap.Status != types.DeviceMoving {
		t.Fatalf("status %s after move command, want MOVING", snap.Status)
	}

	for i := 0; i < 200 && snap.Status == types.DeviceMoving; i++ {
		snap = tickHBW(h, 1)
	}
	if snap.Status != types.DeviceIdle {
		t.Fatal("HBW never arrived")
	}
	if !snap.Arrived(types.Vec3{X: 100, Y: 200, Z: 0}, EpsTranslationMM) {
		t.Errorf("final position %+v not within eps of target", snap.Position)
	}
	if snap.Target != nil {
		t.Error("arrival did not clear the target")
	}
}

func TestHBWRejectsMoveOutsideTravel(t *testing.T) {
	h := newTestHBW()
	if err := h.Apply("move", []byte(`{"x":9999,"y":0,"z":0}`)); err == nil {
		t.Error("move beyond travel limits accepted")
	}
}

func TestHBWMalformedCommandLeavesStateUntouched(t *testing.T) {
	h := newTestHBW()
	before := tickHBW(h, 1)

	if err := h.Apply("move", []byte(`{broken`)); err == nil {
		t.Error("malformed payload accepted")
	}
	if err := h.Apply("teleport", []byte(`{}`)); err == nil {
		t.Error("unknown action accepted")
	}

	after := tickHBW(h, 1)
	if after.Position != before.Position || after.Status != before.Status {
		t.Error("rejected command altered device state")
	}
}

func TestHBWEmergencyStopIgnoresMotion(t *testing.T) {
	h := newTestHBW()
	h.EmergencyStop()

	if err := h.Apply("move", []byte(`{"x":100,"y":0,"z":0}`)); err == nil {
		t.Error("move accepted during emergency stop")
	}

	snap := tickHBW(h, 1)
	if snap.Status != types.DeviceEmergency {
		t.Fatalf("status %s, want EMERGENCY", snap.Status)
	}
	for _, m := range snap.Motors {
		if m.Active || m.Velocity != 0 {
			t.Errorf("motor %s still enabled during emergency", m.ComponentID)
		}
	}

	// Only reset is accepted.
	mustApply(t, h, "reset", `{}`)
	snap = tickHBW(h, 1)
	if snap.Status != types.DeviceIdle {
		t.Errorf("status %s after reset, want IDLE", snap.Status)
	}
}

func TestHBWResetPreservesWearState(t *testing.T) {
	h := newTestHBW()
	mustApply(t, h, "move", `{"x":300,"y":300,"z":0}`)
	tickHBW(h, 50)

	before := tickHBW(h, 1)
	healthBefore := before.Motors["HBW_X"].HealthScore
	runtimeBefore := before.Motors["HBW_X"].RuntimeSec
	if healthBefore == 1.0 {
		t.Fatal("test setup: motor did not wear")
	}

	mustApply(t, h, "reset", `{}`)
	after := tickHBW(h, 1)
	if after.Motors["HBW_X"].HealthScore != healthBefore {
		t.Error("reset changed health score")
	}
	if after.Motors["HBW_X"].RuntimeSec != runtimeBefore {
		t.Error("reset changed accumulated runtime")
	}

	// Back to origin afterwards: home position, reference switch closed.
	mustApply(t, h, "move", `{"x":0,"y":0,"z":0}`)
	snap := tickHBW(h, 200)
	if !snap.Sensors["HBW_REF_SW"].Triggered {
		t.Error("reference switch not triggered at home")
	}
}

func TestHBWGripper(t *testing.T) {
	h := newTestHBW()
	mustApply(t, h, "gripper", `{"action":"close"}`)
	snap := tickHBW(h, 1)
	if !snap.GripperClose || !snap.HasCarrier {
		t.Error("close did not engage the fork")
	}

	mustApply(t, h, "gripper", `{"action":"open"}`)
	snap = tickHBW(h, 1)
	if snap.GripperClose || snap.HasCarrier {
		t.Error("open did not release the fork")
	}

	if err := h.Apply("gripper", []byte(`{"action":"crush"}`)); err == nil {
		t.Error("unknown gripper action accepted")
	}
}
