package physics

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegrateAppliesForceModes(t *testing.T) {
	//1.- A 2 kg body receives one command per mode and advances half a second.
	body := NewRigidBody(BodyConfig{Mass: 2}, mgl64.Vec3{}, mgl64.QuatIdent())
	body.AddForce(mgl64.Vec3{2, 0, 0}, Acceleration)
	body.AddForce(mgl64.Vec3{0, 4, 0}, Impulse)
	body.AddForce(mgl64.Vec3{0, 0, 3}, VelocityChange)
	body.Integrate(0.5)

	assert.InDelta(t, 1, body.Velocity().X(), 1e-9)
	assert.InDelta(t, 2, body.Velocity().Y(), 1e-9)
	assert.InDelta(t, 3, body.Velocity().Z(), 1e-9)
	assert.InDelta(t, 0.5, body.Position().X(), 1e-9)
	assert.InDelta(t, 1.5, body.Position().Z(), 1e-9)

	//2.- Commands are consumed by the step.
	body.Integrate(0.5)
	assert.InDelta(t, 1, body.Velocity().X(), 1e-9)
}

func TestIntegrateClampsSpeeds(t *testing.T) {
	body := NewRigidBody(BodyConfig{Mass: 1, MaxSpeed: 5, MaxAngularSpeed: 1}, mgl64.Vec3{}, mgl64.QuatIdent())
	body.AddForce(mgl64.Vec3{30, 40, 0}, VelocityChange)
	body.AddRelativeTorque(mgl64.Vec3{0, 10, 0}, VelocityChange)
	body.Integrate(0.1)

	assert.InDelta(t, 5, body.Velocity().Len(), 1e-9)
	assert.InDelta(t, 1, body.AngularVelocity().Len(), 1e-9)
}

func TestRelativeTorqueYawsAboutLocalUp(t *testing.T) {
	//1.- Spin at pi/2 rad/s around up for one second in small steps.
	body := NewRigidBody(BodyConfig{Mass: 1}, mgl64.Vec3{}, mgl64.QuatIdent())
	body.AddRelativeTorque(mgl64.Vec3{0, math.Pi / 2, 0}, VelocityChange)
	for i := 0; i < 1000; i++ {
		body.Integrate(0.001)
	}
	//2.- Forward should now point along +X for a right-handed yaw.
	forward := body.Rotation().Rotate(Forward)
	assert.InDelta(t, 1, forward.X(), 1e-3)
	assert.InDelta(t, 0, forward.Z(), 1e-3)
}

func TestScaleVelocityAndInvalidInput(t *testing.T) {
	body := NewRigidBody(BodyConfig{}, mgl64.Vec3{}, mgl64.Quat{})
	require.Equal(t, 1.0, body.Mass())
	body.SetVelocity(mgl64.Vec3{10, 0, 0})
	body.ScaleVelocity(0.5)
	assert.InDelta(t, 5, body.Velocity().X(), 1e-12)

	//1.- Invalid steps and rotations leave the body untouched.
	body.Integrate(0)
	body.Integrate(-1)
	assert.Equal(t, mgl64.Vec3{}, body.Position())
	body.SetRotation(mgl64.Quat{W: math.NaN()})
	assert.True(t, body.Rotation().ApproxEqualThreshold(mgl64.QuatIdent(), 1e-12))
}

func TestLookRotationBuildsBasis(t *testing.T) {
	//1.- Face +X on a surface tilted 45 degrees around the forward axis.
	up := mgl64.Vec3{1, 1, 0}.Normalize()
	forward := ProjectOnPlane(mgl64.Vec3{0, 0, 1}, up)
	rotation, ok := LookRotation(forward, up)
	require.True(t, ok)
	assert.True(t, rotation.Rotate(Forward).ApproxEqualThreshold(mgl64.Vec3{0, 0, 1}, 1e-9))
	assert.True(t, rotation.Rotate(WorldUp).ApproxEqualThreshold(up, 1e-9))

	_, ok = LookRotation(WorldUp, WorldUp)
	assert.False(t, ok)
}

func TestNlerpTakesShortArc(t *testing.T) {
	from := mgl64.QuatIdent()
	to := mgl64.QuatRotate(math.Pi/2, WorldUp).Scale(-1)
	half := Nlerp(from, to, 0.5)
	angle := 2 * math.Acos(mgl64.Clamp(math.Abs(half.W), 0, 1))
	assert.InDelta(t, math.Pi/4, angle, 1e-9)
	assert.True(t, Nlerp(from, to, 2).ApproxEqualThreshold(to.Scale(-1), 1e-9))
}

func TestVolumesClosestPoint(t *testing.T) {
	sphere := Sphere{Center: mgl64.Vec3{}, Radius: 2}
	assert.True(t, sphere.ClosestPoint(mgl64.Vec3{0, 5, 0}).ApproxEqualThreshold(mgl64.Vec3{0, 2, 0}, 1e-12))
	assert.Equal(t, mgl64.Vec3{0, 1, 0}, sphere.ClosestPoint(mgl64.Vec3{0, 1, 0}))

	box := Box{Center: mgl64.Vec3{0, -1, 0}, HalfExtents: mgl64.Vec3{10, 1, 10}}
	assert.True(t, box.ClosestPoint(mgl64.Vec3{3, 4, -2}).ApproxEqualThreshold(mgl64.Vec3{3, 0, -2}, 1e-12))

	capsule := Capsule{A: mgl64.Vec3{0, 0, 0}, B: mgl64.Vec3{0, 0, 10}, Radius: 1}
	assert.True(t, capsule.ClosestPoint(mgl64.Vec3{0, 3, 5}).ApproxEqualThreshold(mgl64.Vec3{0, 1, 5}, 1e-12))
	assert.InDelta(t, 2, DistanceTo(capsule, mgl64.Vec3{0, 3, 5}), 1e-12)
}

func TestLayerMask(t *testing.T) {
	mask := MaskOf(LayerGround, LayerWall)
	assert.True(t, mask.Has(LayerGround))
	assert.True(t, mask.Has(LayerWall))
	assert.False(t, mask.Has(LayerTrigger))
}
