package simulation

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"hovercar/core/internal/physics"
)

const (
	// DefaultMaxSteps bounds sphere tracing iterations per surface.
	DefaultMaxSteps = 128
	// DefaultEpsilon is the sphere tracing hit tolerance.
	DefaultEpsilon = 1e-4
	// contactSlop keeps resting contacts reported while a body sits on a surface.
	contactSlop = 1e-3
)

// ErrInvalidAttachment is returned when a body is attached with unusable radii.
var ErrInvalidAttachment = errors.New("simulation: attachment radius must be positive")

// Surface is solid scene geometry on a collision layer.
type Surface struct {
	Name  string
	Layer physics.Layer
	Field SignedDistanceField
}

// Trigger is a non-solid volume that reports overlaps; Payload travels with every event.
type Trigger struct {
	Name    string
	Volume  physics.Volume
	Payload any
}

// Attachment describes how an attached body interacts with the world.
type Attachment struct {
	// Radius is the collision sphere against surfaces.
	Radius float64
	// InfluenceRadius is the sphere tested against trigger volumes.
	InfluenceRadius float64
	OnOverlap       func(physics.Overlap)
	OnCollision     func(physics.Collision)
}

type attachedBody struct {
	body   *physics.RigidBody
	cfg    Attachment
	inside map[*Trigger]bool
}

// World owns the static scene and steps the attached bodies. It is not safe for concurrent
// use.
type World struct {
	surfaces []Surface
	triggers []*Trigger
	bodies   []*attachedBody
	maxSteps int
	epsilon  float64
}

var _ physics.Caster = (*World)(nil)

// NewWorld returns an empty world with the default tracing limits.
func NewWorld() *World {
	return &World{maxSteps: DefaultMaxSteps, epsilon: DefaultEpsilon}
}

// AddSurface registers solid geometry.
func (w *World) AddSurface(surface Surface) {
	if surface.Field == nil {
		return
	}
	w.surfaces = append(w.surfaces, surface)
}

// AddTrigger registers a trigger volume.
func (w *World) AddTrigger(trigger *Trigger) {
	if trigger == nil || trigger.Volume == nil {
		return
	}
	w.triggers = append(w.triggers, trigger)
}

// Attach starts simulating the body. Overlaps are evaluated from the next Step.
func (w *World) Attach(body *physics.RigidBody, attachment Attachment) error {
	if body == nil || !(attachment.Radius > 0) {
		return ErrInvalidAttachment
	}
	if attachment.InfluenceRadius < attachment.Radius {
		attachment.InfluenceRadius = attachment.Radius
	}
	w.bodies = append(w.bodies, &attachedBody{body: body, cfg: attachment, inside: make(map[*Trigger]bool)})
	return nil
}

// Cast implements physics.Caster by tracing every surface on the mask and keeping the
// nearest hit.
func (w *World) Cast(origin, direction mgl64.Vec3, maxDistance float64, mask physics.LayerMask) (physics.Hit, bool) {
	best := physics.Hit{Distance: math.Inf(1)}
	found := false
	for _, surface := range w.surfaces {
		if !mask.Has(surface.Layer) {
			continue
		}
		hit, distance, point := Raycast(surface.Field, origin, direction, maxDistance, w.maxSteps, w.epsilon)
		if !hit || distance > maxDistance || distance >= best.Distance {
			continue
		}
		best = physics.Hit{Distance: distance, Point: point, Normal: Gradient(surface.Field, point, w.epsilon), Layer: surface.Layer}
		found = true
	}
	return best, found
}

// Step integrates every attached body, resolves penetration and reports contacts and
// trigger transitions.
func (w *World) Step(dt float64) {
	if !(dt > 0) {
		return
	}
	for _, attached := range w.bodies {
		//1.- Advance the body with the commands gathered since the last step.
		attached.body.Integrate(dt)
		//2.- Push the collision sphere out of every solid it touches.
		for _, surface := range w.surfaces {
			w.resolveContact(attached, surface)
		}
		//3.- Compare trigger membership against the previous step.
		w.updateOverlaps(attached)
	}
}

func (w *World) resolveContact(attached *attachedBody, surface Surface) {
	if surface.Layer == physics.LayerTrigger {
		return
	}
	position := attached.body.Position()
	separation := surface.Field.Sample(position) - attached.cfg.Radius
	if separation >= contactSlop {
		return
	}
	normal := Gradient(surface.Field, position, w.epsilon)
	if normal == (mgl64.Vec3{}) {
		return
	}
	if separation < 0 {
		attached.body.Translate(normal.Mul(-separation))
	}
	//1.- Remove the approaching velocity with a perfectly inelastic impulse.
	impulse := mgl64.Vec3{}
	if approach := attached.body.Velocity().Dot(normal); approach < 0 {
		impulse = normal.Mul(-approach * attached.body.Mass())
		attached.body.ApplyImpulse(impulse)
	}
	if attached.cfg.OnCollision != nil {
		attached.cfg.OnCollision(physics.Collision{Layer: surface.Layer, Impulse: impulse, Normal: normal})
	}
}

func (w *World) updateOverlaps(attached *attachedBody) {
	position := attached.body.Position()
	for _, trigger := range w.triggers {
		touching := physics.DistanceTo(trigger.Volume, position) <= attached.cfg.InfluenceRadius
		if touching == attached.inside[trigger] {
			continue
		}
		phase := physics.OverlapEnter
		if touching {
			attached.inside[trigger] = true
		} else {
			phase = physics.OverlapExit
			delete(attached.inside, trigger)
		}
		if attached.cfg.OnOverlap != nil {
			attached.cfg.OnOverlap(physics.Overlap{Phase: phase, Layer: physics.LayerTrigger, Payload: trigger.Payload})
		}
	}
}

// Surfaces returns the number of registered surfaces.
func (w *World) Surfaces() int { return len(w.surfaces) }

// Triggers returns the number of registered triggers.
func (w *World) Triggers() int { return len(w.triggers) }
