package vehicle

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"hovercar/core/internal/input"
	"hovercar/core/internal/physics"
	"hovercar/core/internal/sensor"
)

// Command is everything one tick decided, planned before any of it reaches the body.
type Command struct {
	Tick          uint64
	Input         input.Snapshot
	Grounded      bool
	Reading       sensor.Reading
	Speed         float64
	SpeedFraction float64
	HoverPercent  float64
	BoostPower    float64

	Alignment mgl64.Quat
	// Hover is the hover or fall acceleration.
	Hover mgl64.Vec3
	// Steering is a body-space velocity change about the local up axis.
	Steering     mgl64.Vec3
	SideFriction mgl64.Vec3
	Slow         bool
	Boost        mgl64.Vec3
	Brake        bool
	Propulsion   mgl64.Vec3
}

// Finite reports whether every value the command would push into the body is a number.
func (c Command) Finite() bool {
	for _, v := range []mgl64.Vec3{c.Hover, c.Steering, c.SideFriction, c.Boost, c.Propulsion, c.Reading.Normal} {
		if !physics.Finite(v) {
			return false
		}
	}
	for _, f := range []float64{c.Speed, c.SpeedFraction, c.HoverPercent, c.BoostPower, c.Reading.Distance} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return physics.FiniteQuat(c.Alignment) && c.Alignment.Len() > 0
}

// Net returns the sum of the acceleration-mode forces, ignoring velocity scaling.
func (c Command) Net() mgl64.Vec3 {
	return c.Hover.Add(c.SideFriction).Add(c.Boost).Add(c.Propulsion)
}

// apply commits the command to the body in tick order.
func (c Command) apply(body physics.Body, cfg Config) {
	body.SetRotation(c.Alignment)
	body.AddForce(c.Hover, physics.Acceleration)
	body.AddRelativeTorque(c.Steering, physics.VelocityChange)
	body.AddForce(c.SideFriction, physics.Acceleration)
	if c.Slow {
		body.ScaleVelocity(cfg.SlowingFactor)
	}
	if c.BoostPower > 0 {
		body.AddForce(c.Boost, physics.Acceleration)
	}
	if !c.Grounded {
		return
	}
	if c.Brake {
		body.ScaleVelocity(cfg.BrakingFactor)
	}
	body.AddForce(c.Propulsion, physics.Acceleration)
}
