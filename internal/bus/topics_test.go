package bus

import (
	"testing"

	"github.com/soham10i/stf-hw/internal/types"
)

func TestTopicBuilders(t *testing.T) {
	if got := CmdTopic(types.DeviceHBW, ActionMove); got != "stf/hbw/cmd/move" {
		t.Errorf("CmdTopic = %q", got)
	}
	if got := StatusTopic(types.DeviceConveyor); got != "stf/conveyor/status" {
		t.Errorf("StatusTopic = %q", got)
	}
	if got := CmdFilter(types.DeviceVGR); got != "stf/vgr/cmd/#" {
		t.Errorf("CmdFilter = %q", got)
	}
}

func TestMatchTopic(t *testing.T) {
	cases := []struct {
		filter, topic string
		want          bool
	}{
		{"stf/hbw/cmd/move", "stf/hbw/cmd/move", true},
		{"stf/+/cmd/move", "stf/hbw/cmd/move", true},
		{"stf/+/cmd/#", "stf/hbw/cmd/move", true},
		{"stf/+/cmd/#", "stf/hbw/status", false},
		{"stf/+/status", "stf/vgr/status", true},
		{"stf/+/status", "stf/vgr/cmd/move", false},
		{"stf/global/#", "stf/global/emergency_stop", true},
		{"stf/hbw/cmd/move", "stf/hbw/cmd", false},
		{"stf/hbw/cmd", "stf/hbw/cmd/move", false},
		{"#", "anything/at/all", true},
	}
	for _, tc := range cases {
		if got := MatchTopic(tc.filter, tc.topic); got != tc.want {
			t.Errorf("MatchTopic(%q, %q) = %v, want %v", tc.filter, tc.topic, got, tc.want)
		}
	}
}

func TestTopicParsing(t *testing.T) {
	dev, ok := DeviceFromTopic("stf/hbw/status")
	if !ok || dev != types.DeviceHBW {
		t.Errorf("DeviceFromTopic = %v, %v", dev, ok)
	}
	if _, ok := DeviceFromTopic("other/hbw/status"); ok {
		t.Error("foreign prefix accepted")
	}
	if _, ok := DeviceFromTopic("stf/toaster/status"); ok {
		t.Error("unknown device accepted")
	}

	action, ok := ActionFromTopic("stf/vgr/cmd/vacuum")
	if !ok || action != "vacuum" {
		t.Errorf("ActionFromTopic = %q, %v", action, ok)
	}
	if _, ok := ActionFromTopic("stf/vgr/status"); ok {
		t.Error("status topic parsed as command")
	}
}
