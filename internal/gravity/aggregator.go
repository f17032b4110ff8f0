package gravity

import (
	"github.com/go-gl/mathgl/mgl64"

	"hovercar/core/internal/physics"
)

// Positioner exposes the position gravity is sampled at.
type Positioner interface {
	Position() mgl64.Vec3
}

// Aggregator blends every gravity source currently influencing its owner into a single
// down direction.
type Aggregator struct {
	owner    Positioner
	active   []Source
	lastDown mgl64.Vec3
}

// NewAggregator binds an aggregator to the body whose position is sampled.
func NewAggregator(owner Positioner) *Aggregator {
	return &Aggregator{owner: owner, lastDown: physics.WorldDown}
}

// Enter adds the source to the active set when it is not already present.
func (a *Aggregator) Enter(src Source) {
	if a == nil || src == nil || a.Contains(src) {
		return
	}
	a.active = append(a.active, src)
}

// Exit removes the source from the active set. Removing an absent source is a no-op.
func (a *Aggregator) Exit(src Source) {
	if a == nil || src == nil {
		return
	}
	for i, candidate := range a.active {
		if candidate == src {
			a.active = append(a.active[:i], a.active[i+1:]...)
			return
		}
	}
}

// HandleOverlap routes trigger events whose payload is a gravity source; others are ignored.
func (a *Aggregator) HandleOverlap(overlap physics.Overlap) {
	src, ok := overlap.Payload.(Source)
	if !ok {
		return
	}
	switch overlap.Phase {
	case physics.OverlapEnter:
		a.Enter(src)
	case physics.OverlapExit:
		a.Exit(src)
	}
}

// Contains reports whether the source is currently active.
func (a *Aggregator) Contains(src Source) bool {
	if a == nil {
		return false
	}
	for _, candidate := range a.active {
		if candidate == src {
			return true
		}
	}
	return false
}

// Active returns the number of active sources.
func (a *Aggregator) Active() int {
	if a == nil {
		return 0
	}
	return len(a.active)
}

// Down returns the unit down direction at the owner's position.
func (a *Aggregator) Down() mgl64.Vec3 {
	if a == nil {
		return physics.WorldDown
	}
	//1.- Without influences the world down applies.
	if len(a.active) == 0 {
		a.lastDown = physics.WorldDown
		return a.lastDown
	}
	//2.- Sum the pulls in insertion order so results are reproducible.
	position := mgl64.Vec3{}
	if a.owner != nil {
		position = a.owner.Position()
	}
	sum := mgl64.Vec3{}
	for _, src := range a.active {
		sum = sum.Add(src.Down(position))
	}
	//3.- Cancelling pulls keep the previous direction instead of producing NaN.
	down, ok := physics.SafeNormalize(sum)
	if !ok {
		return a.lastDown
	}
	a.lastDown = down
	return down
}
