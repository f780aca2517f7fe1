package types

import "fmt"

// SlotName identifies one of the nine storage positions, row letter A-C
// plus column digit 1-3.
type SlotName string

// SlotCoordinates maps slot names to physical rack positions in mm.
// X selects the column along the rail, Y the shelf height. Z is the fork
// extension axis and always 0 for an idle crane.
var SlotCoordinates = map[SlotName]Vec3{
	"A1": {X: 100, Y: 100}, "A2": {X: 200, Y: 100}, "A3": {X: 300, Y: 100},
	"B1": {X: 100, Y: 200}, "B2": {X: 200, Y: 200}, "B3": {X: 300, Y: 200},
	"C1": {X: 100, Y: 300}, "C2": {X: 200, Y: 300}, "C3": {X: 300, Y: 300},
}

// SlotNames returns all slot names in deterministic order (A1..C3).
// Auto-selection rules depend on this ordering.
func SlotNames() []SlotName {
	return []SlotName{"A1", "A2", "A3", "B1", "B2", "B3", "C1", "C2", "C3"}
}

// ParseSlot validates a user-supplied slot name.
func ParseSlot(s string) (SlotName, error) {
	name := SlotName(s)
	if _, ok := SlotCoordinates[name]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidSlot, s)
	}
	return name, nil
}

// Vec3 is a position in a device's own coordinate frame.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Slot is one storage position. Coordinates are immutable configuration;
// CarrierID is nil while the slot is empty.
type Slot struct {
	Name      SlotName `json:"slot_name"`
	X         float64  `json:"x"`
	Y         float64  `json:"y"`
	Z         float64  `json:"z"`
	CarrierID *int64   `json:"carrier_id,omitempty"`
}

// Occupied reports whether the slot holds a carrier.
func (s Slot) Occupied() bool { return s.CarrierID != nil }

// Zone names the coarse location of a carrier.
type Zone string

const (
	ZoneHBW      Zone = "HBW"
	ZoneConveyor Zone = "CONVEYOR"
	ZoneVGR      Zone = "VGR"
	ZoneOven     Zone = "OVEN"
)

// Carrier is the physical holder a cookie travels on. A locked carrier
// belongs to exactly one in-flight command.
type Carrier struct {
	ID     int64 `json:"id"`
	Zone   Zone  `json:"current_zone"`
	Locked bool  `json:"is_locked"`
}
