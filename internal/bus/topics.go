package bus

import (
	"strings"

	"github.com/soham10i/stf-hw/internal/types"
)

// Topic hierarchy. Commands flow edge->device, status device->observers,
// global events reach everyone.
//
//	stf/<device>/cmd/<action>
//	stf/<device>/status
//	stf/global/<event>
const (
	topicPrefix = "stf"

	ActionMove    = "move"
	ActionGripper = "gripper"
	ActionVacuum  = "vacuum"
	ActionBelt    = "belt"
	ActionStop    = "stop"
	ActionReset   = "reset"

	GlobalEmergencyStop = "stf/global/emergency_stop"
	GlobalResume        = "stf/global/resume"
	GlobalCommandEvent  = "stf/global/command_event"
	GlobalAlert         = "stf/global/alert"
)

// CmdTopic builds a device command topic.
func CmdTopic(device types.DeviceID, action string) string {
	return topicPrefix + "/" + strings.ToLower(string(device)) + "/cmd/" + action
}

// CmdFilter subscribes to every command for one device.
func CmdFilter(device types.DeviceID) string {
	return topicPrefix + "/" + strings.ToLower(string(device)) + "/cmd/#"
}

// StatusTopic builds a device status topic.
func StatusTopic(device types.DeviceID) string {
	return topicPrefix + "/" + strings.ToLower(string(device)) + "/status"
}

// StatusFilter subscribes to every device's status stream.
func StatusFilter() string { return topicPrefix + "/+/status" }

// DeviceFromTopic extracts the device from an stf/<device>/... topic.
func DeviceFromTopic(topic string) (types.DeviceID, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 || parts[0] != topicPrefix {
		return "", false
	}
	dev, err := types.ParseDevice(strings.ToUpper(parts[1]))
	if err != nil {
		return "", false
	}
	return dev, true
}

// ActionFromTopic extracts the action from an stf/<device>/cmd/<action>
// topic.
func ActionFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != topicPrefix || parts[2] != "cmd" {
		return "", false
	}
	return parts[3], true
}

// MatchTopic reports whether a concrete topic matches an MQTT-style filter
// with '+' and '#' wildcards.
func MatchTopic(filter, topic string) bool {
	fp := strings.Split(filter, "/")
	tp := strings.Split(topic, "/")
	for i, f := range fp {
		if f == "#" {
			return true
		}
		if i >= len(tp) {
			return false
		}
		if f != "+" && f != tp[i] {
			return false
		}
	}
	return len(fp) == len(tp)
}
