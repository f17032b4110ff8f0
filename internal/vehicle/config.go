package vehicle

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"hovercar/core/internal/boost"
	"hovercar/core/internal/physics"
	"hovercar/core/internal/pid"
	"hovercar/core/internal/sensor"
)

// ErrInvalidConfig is returned when a controller cannot be built from its configuration.
var ErrInvalidConfig = errors.New("vehicle: invalid configuration")

// Config holds the fixed tuning of one hovercar.
type Config struct {
	// Step is the fixed physics timestep in seconds.
	Step float64

	DriveForce       float64
	SlowingFactor    float64
	BrakingFactor    float64
	TerminalVelocity float64
	SideFriction     float64
	// RotationSpeed is the yaw rate multiplier at rest (X) and at terminal velocity (Y).
	RotationSpeed mgl64.Vec2

	HoverHeight  float64
	HoverForce   float64
	HoverGravity float64
	FallGravity  float64

	// AngleOfRoll is the banking angle in degrees at full rudder.
	AngleOfRoll float64
	// RollSpeed scales the banking angle at rest (X) and at terminal velocity (Y).
	RollSpeed   mgl64.Vec2
	BankingRate float64

	// WallMask selects the contacts that trigger the downforce correction.
	WallMask physics.LayerMask

	PID    pid.Config
	Boost  boost.Config
	Sensor sensor.Config
}

// Drag is the propulsion drag coefficient that caps forward speed at the terminal velocity.
func (c Config) Drag() float64 {
	return c.DriveForce / c.TerminalVelocity
}

// Validate reports every problem with the configuration.
func (c Config) Validate() error {
	var problems []string
	positive := func(name string, value float64) {
		if !(value > 0) || math.IsInf(value, 1) {
			problems = append(problems, fmt.Sprintf("%s must be positive and finite", name))
		}
	}
	nonNegative := func(name string, value float64) {
		if !(value >= 0) || math.IsInf(value, 1) {
			problems = append(problems, fmt.Sprintf("%s must be non-negative and finite", name))
		}
	}
	factor := func(name string, value float64) {
		if !(value > 0 && value <= 1) {
			problems = append(problems, fmt.Sprintf("%s must be in (0, 1]", name))
		}
	}

	positive("step", c.Step)
	nonNegative("drive force", c.DriveForce)
	positive("terminal velocity", c.TerminalVelocity)
	factor("slowing factor", c.SlowingFactor)
	factor("braking factor", c.BrakingFactor)
	if !(c.SideFriction >= 0 && c.SideFriction <= 1) {
		problems = append(problems, "side friction must be in [0, 1]")
	}
	positive("hover height", c.HoverHeight)
	nonNegative("hover force", c.HoverForce)
	nonNegative("hover gravity", c.HoverGravity)
	nonNegative("fall gravity", c.FallGravity)
	nonNegative("banking rate", c.BankingRate)
	finite := []struct {
		name  string
		value float64
	}{
		{"angle of roll", c.AngleOfRoll},
		{"rotation speed x", c.RotationSpeed.X()},
		{"rotation speed y", c.RotationSpeed.Y()},
		{"roll speed x", c.RollSpeed.X()},
		{"roll speed y", c.RollSpeed.Y()},
	}
	for _, entry := range finite {
		if math.IsNaN(entry.value) || math.IsInf(entry.value, 0) {
			problems = append(problems, fmt.Sprintf("%s must be finite", entry.name))
		}
	}
	for _, err := range []error{c.PID.Validate(), c.Boost.Validate(), c.Sensor.Validate()} {
		if err != nil {
			problems = append(problems, err.Error())
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
