// Package boost tracks the energy gauge that gates the boost thrusters.
package boost

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidConfig is returned when the reserve cannot be built from its configuration.
var ErrInvalidConfig = errors.New("boost: invalid configuration")

// snapEpsilon absorbs floating point residue near the gauge bounds.
const snapEpsilon = 1e-9

// Config holds the gauge capacity and rates.
type Config struct {
	MaxGauge          float64
	SpendPerSecond    float64
	RecoveryPerSecond float64
	Power             float64
}

// Validate reports every problem with the configuration.
func (c Config) Validate() error {
	var problems []string
	check := func(name string, value float64) {
		if !(value > 0) || math.IsInf(value, 1) {
			problems = append(problems, fmt.Sprintf("%s must be positive and finite", name))
		}
	}
	check("max gauge", c.MaxGauge)
	check("spend rate", c.SpendPerSecond)
	check("recovery rate", c.RecoveryPerSecond)
	check("power", c.Power)
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// State is the mutable part of a reserve.
type State struct {
	Gauge    float64
	Boosting bool
}

// Reserve drains while boosting and recovers otherwise.
type Reserve struct {
	cfg   Config
	state State
}

// New returns a full reserve.
func New(cfg Config) (*Reserve, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Reserve{cfg: cfg, state: State{Gauge: cfg.MaxGauge}}, nil
}

// Update advances the gauge by one step.
func (r *Reserve) Update(boosting bool, dt float64) {
	if r == nil || !(dt > 0) {
		return
	}
	r.state.Boosting = boosting
	if boosting {
		//1.- Spend while the button is held, flooring at empty.
		r.state.Gauge -= r.cfg.SpendPerSecond * dt
		if r.state.Gauge < snapEpsilon {
			r.state.Gauge = 0
		}
		return
	}
	//2.- Recover toward the cap otherwise.
	r.state.Gauge += r.cfg.RecoveryPerSecond * dt
	if r.state.Gauge > r.cfg.MaxGauge-snapEpsilon {
		r.state.Gauge = r.cfg.MaxGauge
	}
}

// CurrentBoostPower returns the thrust multiplier for this tick: Power while boosting
// with energy left, zero otherwise.
func (r *Reserve) CurrentBoostPower() float64 {
	if r == nil || !r.state.Boosting || r.state.Gauge <= 0 {
		return 0
	}
	return r.cfg.Power
}

// Gauge returns the remaining energy.
func (r *Reserve) Gauge() float64 {
	if r == nil {
		return 0
	}
	return r.state.Gauge
}

// Fraction returns the remaining energy as a share of the capacity.
func (r *Reserve) Fraction() float64 {
	if r == nil {
		return 0
	}
	return r.state.Gauge / r.cfg.MaxGauge
}

// Config returns the reserve configuration.
func (r *Reserve) Config() Config { return r.cfg }

// Snapshot returns a copy of the mutable state.
func (r *Reserve) Snapshot() State { return r.state }

// Restore overwrites the mutable state.
func (r *Reserve) Restore(state State) { r.state = state }
