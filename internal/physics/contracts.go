package physics

import "github.com/go-gl/mathgl/mgl64"

// WorldDown is the gravity direction used when no gravity source is active.
var WorldDown = mgl64.Vec3{0, -1, 0}

// WorldUp is the opposite of WorldDown.
var WorldUp = mgl64.Vec3{0, 1, 0}

// Forward is the local forward axis of every body.
var Forward = mgl64.Vec3{0, 0, 1}

// Right is the local right axis of every body.
var Right = mgl64.Vec3{1, 0, 0}

// ForceMode selects how a force command changes a body's velocity.
type ForceMode uint8

const (
	// Acceleration applies the vector as an acceleration, independent of mass.
	Acceleration ForceMode = iota
	// Impulse applies the vector as an instantaneous momentum change.
	Impulse
	// VelocityChange applies the vector as an instantaneous velocity change, independent of mass.
	VelocityChange
)

// String returns the textual name of the force mode.
func (m ForceMode) String() string {
	switch m {
	case Acceleration:
		return "acceleration"
	case Impulse:
		return "impulse"
	case VelocityChange:
		return "velocity_change"
	default:
		return "unknown"
	}
}

// Layer tags a surface or volume for filtering casts and contacts.
type Layer uint8

const (
	LayerDefault Layer = iota
	LayerGround
	LayerWall
	LayerTrigger
)

// LayerMask is a bit set of layers.
type LayerMask uint32

// MaskOf builds a mask containing the provided layers.
func MaskOf(layers ...Layer) LayerMask {
	var mask LayerMask
	for _, layer := range layers {
		mask |= 1 << layer
	}
	return mask
}

// Has reports whether the layer is part of the mask.
func (m LayerMask) Has(layer Layer) bool {
	return m&(1<<layer) != 0
}

// Hit describes the nearest surface struck by a ray.
type Hit struct {
	Distance float64
	Normal   mgl64.Vec3
	Point    mgl64.Vec3
	Layer    Layer
}

// Caster answers nearest-hit ray queries against scene geometry.
type Caster interface {
	Cast(origin, direction mgl64.Vec3, maxDistance float64, mask LayerMask) (Hit, bool)
}

// OverlapPhase identifies whether an overlap started or ended.
type OverlapPhase uint8

const (
	OverlapEnter OverlapPhase = iota
	OverlapExit
)

// Overlap is delivered when a body starts or stops touching a trigger volume.
type Overlap struct {
	Phase   OverlapPhase
	Layer   Layer
	Payload any
}

// Collision is delivered every tick a body stays in contact with a surface.
type Collision struct {
	Layer   Layer
	Impulse mgl64.Vec3
	Normal  mgl64.Vec3
}

// Pose exposes the read side of a rigid body.
type Pose interface {
	Position() mgl64.Vec3
	Rotation() mgl64.Quat
	Velocity() mgl64.Vec3
}

// Body is the rigid-body proxy the control core commands each tick.
type Body interface {
	Pose
	AddForce(force mgl64.Vec3, mode ForceMode)
	AddRelativeTorque(torque mgl64.Vec3, mode ForceMode)
	SetRotation(rotation mgl64.Quat)
	ScaleVelocity(factor float64)
}
