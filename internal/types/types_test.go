package types

import "testing"

func TestCookieStatusOnlyMovesForward(t *testing.T) {
	cases := []struct {
		from, to CookieStatus
		ok       bool
	}{
		{CookieRawDough, CookieBaked, true},
		{CookieBaked, CookiePackaged, true},
		{CookiePackaged, CookieShipped, true},
		{CookieBaked, CookieRawDough, false},
		{CookieRawDough, CookiePackaged, false},
		{CookieShipped, CookieShipped, false},
		{CookieStatus("BURNT"), CookieBaked, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanAdvance(tc.to); got != tc.ok {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestCommandStatusLinearOrder(t *testing.T) {
	cases := []struct {
		from, to CommandStatus
		ok       bool
	}{
		{StatusPending, StatusInProgress, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusFailed, true},
		{StatusPending, StatusCompleted, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusFailed, StatusPending, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.ok {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}

	if !StatusCompleted.Terminal() || !StatusFailed.Terminal() {
		t.Error("terminal statuses not recognised")
	}
	if StatusPending.Terminal() || StatusInProgress.Terminal() {
		t.Error("non-terminal statuses reported terminal")
	}
}

func TestParseSlot(t *testing.T) {
	for _, name := range SlotNames() {
		if _, err := ParseSlot(string(name)); err != nil {
			t.Errorf("valid slot %s rejected: %v", name, err)
		}
	}
	for _, bad := range []string{"", "D1", "A4", "a1", "A0", "ZZ"} {
		if _, err := ParseSlot(bad); err == nil {
			t.Errorf("invalid slot %q accepted", bad)
		}
	}
}

func TestSlotNamesOrderedForAutoSelection(t *testing.T) {
	names := SlotNames()
	if len(names) != 9 {
		t.Fatalf("expected 9 slots, got %d", len(names))
	}
	for i := 1; i < len(names); i++ {
		if !(names[i-1] < names[i]) {
			t.Errorf("slot order broken at %s >= %s", names[i-1], names[i])
		}
	}
}

func TestSnapshotArrival(t *testing.T) {
	snap := DeviceSnapshot{Position: Vec3{X: 100, Y: 200, Z: 0}}

	if !snap.Arrived(Vec3{X: 100.5, Y: 200.5, Z: 0.5}, 1.0) {
		t.Error("within eps on all axes should be arrived")
	}
	// Exactly at the eps boundary is not arrived: the comparison is strict.
	if snap.Arrived(Vec3{X: 101, Y: 200, Z: 0}, 1.0) {
		t.Error("exactly eps away must not count as arrived")
	}
	if snap.Arrived(Vec3{X: 100, Y: 250, Z: 0}, 1.0) {
		t.Error("one distant axis must block arrival")
	}
}
