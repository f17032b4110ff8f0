package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// BodyConfig captures the tunable parameters of a reference rigid body.
type BodyConfig struct {
	Mass            float64
	LinearDrag      float64
	AngularDrag     float64
	MaxSpeed        float64
	MaxAngularSpeed float64
}

// RigidBody is a reference rigid body that records force commands and integrates them
// on the next fixed step. Rotational inertia is treated as unit for every axis.
type RigidBody struct {
	cfg BodyConfig

	position        mgl64.Vec3
	rotation        mgl64.Quat
	velocity        mgl64.Vec3
	angularVelocity mgl64.Vec3

	acceleration        mgl64.Vec3
	velocityDelta       mgl64.Vec3
	angularAcceleration mgl64.Vec3
	angularDelta        mgl64.Vec3
}

var _ Body = (*RigidBody)(nil)

// NewRigidBody places a body at rest at the provided pose.
func NewRigidBody(cfg BodyConfig, position mgl64.Vec3, rotation mgl64.Quat) *RigidBody {
	if !(cfg.Mass > 0) {
		cfg.Mass = 1
	}
	if rotation.Len() == 0 {
		rotation = mgl64.QuatIdent()
	}
	return &RigidBody{cfg: cfg, position: position, rotation: rotation.Normalize()}
}

// Position implements Pose.
func (b *RigidBody) Position() mgl64.Vec3 { return b.position }

// Rotation implements Pose.
func (b *RigidBody) Rotation() mgl64.Quat { return b.rotation }

// Velocity implements Pose.
func (b *RigidBody) Velocity() mgl64.Vec3 { return b.velocity }

// AngularVelocity returns the world-space angular velocity in radians per second.
func (b *RigidBody) AngularVelocity() mgl64.Vec3 { return b.angularVelocity }

// Mass returns the configured mass.
func (b *RigidBody) Mass() float64 { return b.cfg.Mass }

// SetPosition teleports the body.
func (b *RigidBody) SetPosition(position mgl64.Vec3) { b.position = position }

// SetVelocity overrides the linear velocity.
func (b *RigidBody) SetVelocity(velocity mgl64.Vec3) { b.velocity = velocity }

// AddForce implements Body.
func (b *RigidBody) AddForce(force mgl64.Vec3, mode ForceMode) {
	switch mode {
	case Acceleration:
		b.acceleration = b.acceleration.Add(force)
	case Impulse:
		b.velocityDelta = b.velocityDelta.Add(force.Mul(1 / b.cfg.Mass))
	case VelocityChange:
		b.velocityDelta = b.velocityDelta.Add(force)
	}
}

// AddRelativeTorque implements Body; the torque is expressed in the body's local frame.
func (b *RigidBody) AddRelativeTorque(torque mgl64.Vec3, mode ForceMode) {
	world := b.rotation.Rotate(torque)
	switch mode {
	case Acceleration:
		b.angularAcceleration = b.angularAcceleration.Add(world)
	case Impulse:
		b.angularDelta = b.angularDelta.Add(world.Mul(1 / b.cfg.Mass))
	case VelocityChange:
		b.angularDelta = b.angularDelta.Add(world)
	}
}

// SetRotation implements Body.
func (b *RigidBody) SetRotation(rotation mgl64.Quat) {
	if !FiniteQuat(rotation) || rotation.Len() == 0 {
		return
	}
	b.rotation = rotation.Normalize()
}

// ScaleVelocity implements Body. The scale acts on the current velocity immediately.
func (b *RigidBody) ScaleVelocity(factor float64) {
	b.velocity = b.velocity.Mul(factor)
}

// ApplyImpulse changes the velocity immediately; used by contact resolution.
func (b *RigidBody) ApplyImpulse(impulse mgl64.Vec3) {
	b.velocity = b.velocity.Add(impulse.Mul(1 / b.cfg.Mass))
}

// Translate moves the body without touching its velocity.
func (b *RigidBody) Translate(offset mgl64.Vec3) {
	b.position = b.position.Add(offset)
}

// Integrate advances the body by the fixed step and clears the pending commands.
func (b *RigidBody) Integrate(step float64) {
	//1.- Skip integration when the timestep is invalid.
	if !(step > 0) {
		return
	}
	//2.- Fold the pending commands into the linear velocity, damp, clamp and advance.
	b.velocity = b.velocity.Add(b.velocityDelta).Add(b.acceleration.Mul(step))
	b.velocity = b.velocity.Mul(dampingFactor(b.cfg.LinearDrag, step))
	b.velocity = clampVec3Magnitude(b.velocity, b.cfg.MaxSpeed)
	b.position = b.position.Add(b.velocity.Mul(step))
	//3.- Repeat for the angular channel and integrate the quaternion.
	b.angularVelocity = b.angularVelocity.Add(b.angularDelta).Add(b.angularAcceleration.Mul(step))
	b.angularVelocity = b.angularVelocity.Mul(dampingFactor(b.cfg.AngularDrag, step))
	b.angularVelocity = clampVec3Magnitude(b.angularVelocity, b.cfg.MaxAngularSpeed)
	spin := mgl64.Quat{W: 0, V: b.angularVelocity.Mul(0.5 * step)}.Mul(b.rotation)
	b.rotation = b.rotation.Add(spin).Normalize()
	//4.- Reset the accumulators for the next tick.
	b.acceleration = mgl64.Vec3{}
	b.velocityDelta = mgl64.Vec3{}
	b.angularAcceleration = mgl64.Vec3{}
	b.angularDelta = mgl64.Vec3{}
}

func dampingFactor(drag, step float64) float64 {
	if !(drag > 0) {
		return 1
	}
	return math.Max(0, 1-drag*step)
}
