// Package pid implements a single-axis feedback controller.
//
// The integral term is never reset; accumulated error persists for as long as the
// controller lives, matching the tuning the hover loop was designed around.
package pid

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrNonPositiveStep is returned when Seek is called with a timestep that is not positive.
var ErrNonPositiveStep = errors.New("pid: timestep must be positive")

// Config holds the fixed coefficients and output clamp.
type Config struct {
	P   float64
	I   float64
	D   float64
	Min float64
	Max float64
}

// Validate reports every problem with the configuration.
func (c Config) Validate() error {
	var problems []string
	for name, value := range map[string]float64{"p": c.P, "i": c.I, "d": c.D, "min": c.Min, "max": c.Max} {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			problems = append(problems, fmt.Sprintf("%s must be finite", name))
		}
	}
	if c.Min > c.Max {
		problems = append(problems, fmt.Sprintf("min %.4f exceeds max %.4f", c.Min, c.Max))
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("pid: %s", strings.Join(problems, "; "))
	}
	return nil
}

// State is the memory carried between ticks.
type State struct {
	Integral      float64
	PreviousError float64
}

// Controller tracks a target value for one axis.
type Controller struct {
	cfg Config
	State
}

// New validates the configuration and returns a controller with zeroed memory.
func New(cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Controller{cfg: cfg}, nil
}

// Config returns the controller configuration.
func (c *Controller) Config() Config { return c.cfg }

// Snapshot returns a copy of the controller memory.
func (c *Controller) Snapshot() State { return c.State }

// Restore overwrites the controller memory, e.g. to roll back a discarded frame.
func (c *Controller) Restore(state State) { c.State = state }

// Seek returns the clamped correction that moves current toward target.
func (c *Controller) Seek(target, current, dt float64) (float64, error) {
	if !(dt > 0) || math.IsInf(dt, 1) {
		return 0, fmt.Errorf("%w: got %v", ErrNonPositiveStep, dt)
	}
	//1.- Proportional, derivative and integral terms from the current error.
	proportional := target - current
	derivative := (proportional - c.PreviousError) / dt
	c.Integral += proportional * dt
	c.PreviousError = proportional
	//2.- Combine and clamp to the configured output range.
	value := c.cfg.P*proportional + c.cfg.I*c.Integral + c.cfg.D*derivative
	if math.IsNaN(value) {
		value = 0
	}
	return math.Max(c.cfg.Min, math.Min(c.cfg.Max, value)), nil
}
