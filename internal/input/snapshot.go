// Package input supplies the per-tick pilot controls consumed by the vehicle.
package input

import (
	"math"
	"time"
)

// Snapshot is the pilot state sampled once per physics tick.
type Snapshot struct {
	Thruster float64 `json:"thruster" yaml:"thruster"`
	Rudder   float64 `json:"rudder" yaml:"rudder"`
	Braking  bool    `json:"braking" yaml:"braking"`
	Boosting bool    `json:"boosting" yaml:"boosting"`
}

// Range defines the inclusive min/max for an analog channel.
type Range struct {
	Min float64
	Max float64
}

var (
	// ThrusterRange bounds the forward throttle axis.
	ThrusterRange = Range{Min: 0, Max: 1}
	// RudderRange bounds the steering axis.
	RudderRange = Range{Min: -1, Max: 1}
)

// Clamp maps the value into the range; NaN becomes zero clamped into the range.
func (r Range) Clamp(value float64) float64 {
	if math.IsNaN(value) {
		value = 0
	}
	return math.Max(r.Min, math.Min(r.Max, value))
}

// Contains reports whether the value already lies inside the range.
func (r Range) Contains(value float64) bool {
	return !math.IsNaN(value) && value >= r.Min && value <= r.Max
}

// Sanitize returns a copy with every analog channel clamped to its range.
func (s Snapshot) Sanitize() Snapshot {
	s.Thruster = ThrusterRange.Clamp(s.Thruster)
	s.Rudder = RudderRange.Clamp(s.Rudder)
	return s
}

// Valid reports whether the snapshot needs no clamping.
func (s Snapshot) Valid() bool {
	return ThrusterRange.Contains(s.Thruster) && RudderRange.Contains(s.Rudder)
}

// Source produces the controls for the tick at the provided simulated time.
type Source interface {
	Next(elapsed time.Duration) Snapshot
}

// SourceFunc adapts a function into a Source.
type SourceFunc func(elapsed time.Duration) Snapshot

// Next implements Source.
func (f SourceFunc) Next(elapsed time.Duration) Snapshot { return f(elapsed) }
