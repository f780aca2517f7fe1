package sim

import (
	"fmt"
	"math"
)

// Arrival tolerances per axis type.
const (
	EpsTranslationMM = 1.0 // mm
	EpsRotationDeg   = 1.0 // degrees
)

// Axis couples one motor to one degree of freedom with soft travel limits.
type Axis struct {
	Name   string
	Motor  *Motor
	Pos    float64
	Min    float64
	Max    float64
	Eps    float64
	target *float64
}

// Target returns the current target, nil while idle.
func (a *Axis) Target() *float64 { return a.target }

// SetTarget validates against soft limits and activates the motor if the
// axis actually has to move.
func (a *Axis) SetTarget(v float64) error {
	if v < a.Min || v > a.Max {
		return fmt.Errorf("axis %s: target %.1f outside travel limits [%.1f, %.1f]",
			a.Name, v, a.Min, a.Max)
	}
	// At a soft limit, further commands in that direction are rejected.
	if (a.Pos <= a.Min && v < a.Pos) || (a.Pos >= a.Max && v > a.Pos) {
		return fmt.Errorf("axis %s: at soft limit, direction rejected", a.Name)
	}
	t := v
	a.target = &t
	if math.Abs(v-a.Pos) >= a.Eps {
		a.Motor.Activate()
	}
	return nil
}

// Abort drops the target and winds the motor down.
func (a *Axis) Abort() {
	a.target = nil
	a.Motor.Deactivate()
}

// Tick moves the axis toward its target by v*dt, clipped to travel limits.
// Arrival within Eps clears the target and stops the motor.
func (a *Axis) Tick(dt float64) {
	if a.target == nil {
		return
	}
	diff := *a.target - a.Pos
	if math.Abs(diff) < a.Eps {
		a.target = nil
		a.Motor.Deactivate()
		return
	}
	step := a.Motor.Velocity * dt
	if step > math.Abs(diff) {
		step = math.Abs(diff)
	}
	if diff < 0 {
		step = -step
	}
	a.Pos = min(a.Max, max(a.Min, a.Pos+step))
}

// Moving reports whether the axis is still tracking a target.
func (a *Axis) Moving() bool { return a.target != nil }

// AtHome reports whether the axis sits at its reference position.
func (a *Axis) AtHome() bool { return math.Abs(a.Pos-a.Min) < 5 }
