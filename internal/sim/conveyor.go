package sim

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/soham10i/stf-hw/internal/bus"
	"github.com/soham10i/stf-hw/internal/types"
)

// Conveyor geometry, mm.
const (
	beltLengthMM    = 1000.0
	sensorWindowMM  = 25.0
	trailSpacingMM  = 5.0
	beltSpeedMMPerS = 100.0
)

// Light barrier positions along the belt.
var barrierPositions = map[string]float64{
	"L1": 100,
	"L2": 400,
	"L3": 700,
	"L4": 950,
}

// Conveyor simulates the belt bridging VGR and HBW. Position is sensor
// based: light barriers L1..L4 fire within +-25 mm of their station, trail
// sensors toggle to prove motion, at most once per tick and only when the
// belt has moved at least 5 mm since the previous toggle.
type Conveyor struct {
	motor *Motor

	beltMM    float64
	objectMM  float64
	hasObject bool
	direction int

	barriers map[string]*LightBarrier
	trailA   TrailSensor
	trailB   TrailSensor
	lastRib  float64

	emergency bool
	lastError string
	seq       uint64
}

func NewConveyor(rng *rand.Rand) *Conveyor {
	c := &Conveyor{
		motor:     NewMotor("CONV_M1", MotorConfig{RunningAmps: 1.2, MaxVelocity: beltSpeedMMPerS}, rng),
		direction: 1,
		barriers:  make(map[string]*LightBarrier, len(barrierPositions)),
		trailA:    TrailSensor{ID: "CONV_TS_I5"},
		trailB:    TrailSensor{ID: "CONV_TS_I6", Inverted: true},
	}
	for name, pos := range barrierPositions {
		c.barriers[name] = &LightBarrier{
			ID:      "CONV_" + name,
			StartMM: pos - sensorWindowMM,
			EndMM:   pos + sensorWindowMM,
		}
	}
	return c
}

func (c *Conveyor) ID() types.DeviceID { return types.DeviceConveyor }

// PlaceObject puts a carrier on the belt at the given position. Exercised
// by handover steps and tests.
func (c *Conveyor) PlaceObject(posMM float64) {
	c.hasObject = true
	c.objectMM = posMM
}

// RemoveObject takes the carrier off the belt.
func (c *Conveyor) RemoveObject() {
	c.hasObject = false
	c.objectMM = 0
}

func (c *Conveyor) Apply(action string, payload []byte) error {
	if c.emergency && action != bus.ActionReset {
		return fmt.Errorf("CONVEYOR: in emergency stop, ignoring %q", action)
	}

	switch action {
	case bus.ActionBelt:
		var cmd beltCmd
		if err := decode(payload, &cmd); err != nil {
			return err
		}
		switch cmd.Action {
		case "start":
			if cmd.Direction == -1 {
				c.direction = -1
			} else {
				c.direction = 1
			}
			c.motor.Activate()
		case "stop":
			c.motor.Deactivate()
		case "load":
			// Handover from the VGR side places the carrier at belt start.
			c.PlaceObject(0)
		case "unload":
			c.RemoveObject()
		default:
			return fmt.Errorf("CONVEYOR: unknown belt action %q", cmd.Action)
		}
		return nil

	case bus.ActionStop:
		c.motor.Deactivate()
		return nil

	case bus.ActionReset:
		c.Reset()
		return nil

	default:
		return errUnknownAction("CONVEYOR", action)
	}
}

func (c *Conveyor) EmergencyStop() {
	c.emergency = true
	c.motor.Kill()
}

func (c *Conveyor) Reset() {
	c.emergency = false
	c.lastError = ""
	c.motor.Kill()
	c.beltMM = 0
	c.lastRib = 0
	c.hasObject = false
	c.objectMM = 0
	c.direction = 1
}

func (c *Conveyor) Tick(now time.Time, dt time.Duration) types.DeviceSnapshot {
	sec := dt.Seconds()
	ms := c.motor.Tick(sec)

	if c.motor.Velocity > 0 {
		movement := c.motor.Velocity * sec * float64(c.direction)
		c.beltMM = min(beltLengthMM, max(0, c.beltMM+movement))
		if c.hasObject {
			c.objectMM += movement
			if c.objectMM < 0 || c.objectMM > beltLengthMM {
				// Carrier ran off the belt end.
				c.hasObject = false
				c.objectMM = 0
			}
		}
		if math.Abs(c.beltMM-c.lastRib) >= trailSpacingMM {
			c.trailA.Toggle()
			c.trailB.Toggle()
			c.lastRib = c.beltMM
		}
	}

	sensors := make(map[string]types.SensorSnapshot, len(c.barriers)+2)
	for name, lb := range c.barriers {
		lb.Update(c.objectMM, c.hasObject, now)
		sensors[name] = lb.Snapshot()
	}
	sensors["I5"] = c.trailA.Snapshot()
	sensors["I6"] = c.trailB.Snapshot()

	c.seq++
	snap := types.DeviceSnapshot{
		Device:       types.DeviceConveyor,
		Seq:          c.seq,
		Timestamp:    now,
		Status:       c.status(),
		Position:     types.Vec3{X: c.beltMM},
		Motors:       map[string]types.MotorSnapshot{c.motor.ID: ms},
		Sensors:      sensors,
		BeltMM:       c.beltMM,
		Direction:    c.direction,
		PowerWatts:   ms.PowerWatts,
		EnergyJoules: ms.EnergyJoules,
		LastError:    c.lastError,
	}
	if c.hasObject {
		pos := c.objectMM
		snap.ObjectMM = &pos
	}
	return snap
}

func (c *Conveyor) status() types.DeviceStatus {
	switch {
	case c.emergency:
		return types.DeviceEmergency
	case c.motor.Phase != types.MotorIdle:
		return types.DeviceMoving
	default:
		return types.DeviceIdle
	}
}
