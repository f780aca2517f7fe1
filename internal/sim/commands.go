package sim

import (
	"encoding/json"
	"fmt"
)

// Wire payloads for device command topics. Decoding tolerates unknown
// fields; the bus adapter has already schema-checked the required ones.

type moveCmd struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type gripperCmd struct {
	Action string `json:"action"`
}

type vacuumCmd struct {
	Activate bool `json:"activate"`
}

type beltCmd struct {
	Action    string `json:"action"`
	Direction int    `json:"direction"`
}

func decode(payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("malformed command payload: %w", err)
	}
	return nil
}

// errUnknownAction marks a command the device does not understand; the
// factory logs and drops it without touching state.
func errUnknownAction(device, action string) error {
	return fmt.Errorf("%s: unknown command action %q", device, action)
}
