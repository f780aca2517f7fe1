package sim

import (
	"time"

	"github.com/soham10i/stf-hw/internal/types"
)

// LightBarrier is a through-beam sensor triggered while an object sits
// inside its beam interval. Rising edges increment the trigger count.
type LightBarrier struct {
	ID      string
	StartMM float64
	EndMM   float64

	Triggered   bool
	Count       int64
	LastTrigger time.Time
}

// Update recomputes the beam state from the object position.
func (lb *LightBarrier) Update(posMM float64, present bool, now time.Time) {
	was := lb.Triggered
	lb.Triggered = present && posMM >= lb.StartMM && posMM <= lb.EndMM
	if lb.Triggered && !was {
		lb.Count++
		lb.LastTrigger = now
	}
}

func (lb *LightBarrier) Snapshot() types.SensorSnapshot {
	s := types.SensorSnapshot{
		ComponentID:  lb.ID,
		Kind:         types.SensorLightBarrier,
		Triggered:    lb.Triggered,
		TriggerCount: lb.Count,
	}
	if !lb.LastTrigger.IsZero() {
		t := lb.LastTrigger
		s.LastTrigger = &t
	}
	return s
}

// RefSwitch triggers while all monitored axes are at home.
type RefSwitch struct {
	ID string

	Triggered   bool
	Count       int64
	LastTrigger time.Time
}

func (rs *RefSwitch) Update(home bool, now time.Time) {
	was := rs.Triggered
	rs.Triggered = home
	if rs.Triggered && !was {
		rs.Count++
		rs.LastTrigger = now
	}
}

func (rs *RefSwitch) Snapshot() types.SensorSnapshot {
	s := types.SensorSnapshot{
		ComponentID:  rs.ID,
		Kind:         types.SensorRefSwitch,
		Triggered:    rs.Triggered,
		TriggerCount: rs.Count,
	}
	if !rs.LastTrigger.IsZero() {
		t := rs.LastTrigger
		s.LastTrigger = &t
	}
	return s
}

// TrailSensor proves belt motion by toggling as the belt travels (see
// trailSpacingMM). Two of them run in antiphase on the conveyor.
type TrailSensor struct {
	ID       string
	Inverted bool

	state bool
	count int64
}

// Toggle flips the sensor; the conveyor calls it at most once per tick, when
// the belt has moved at least trailSpacingMM since the previous call.
func (ts *TrailSensor) Toggle() {
	ts.state = !ts.state
	ts.count++
}

func (ts *TrailSensor) Snapshot() types.SensorSnapshot {
	triggered := ts.state
	if ts.Inverted {
		triggered = !triggered
	}
	return types.SensorSnapshot{
		ComponentID:  ts.ID,
		Kind:         types.SensorTrail,
		Triggered:    triggered,
		TriggerCount: ts.count,
	}
}
