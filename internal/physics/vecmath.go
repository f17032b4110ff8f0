package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// degenerateLengthSq is the squared length below which a direction is treated as undefined.
const degenerateLengthSq = 1e-12

// Finite reports whether every component of the vector is a finite number.
func Finite(v mgl64.Vec3) bool {
	return finite(v[0]) && finite(v[1]) && finite(v[2])
}

// FiniteQuat reports whether every component of the quaternion is a finite number.
func FiniteQuat(q mgl64.Quat) bool {
	return finite(q.W) && Finite(q.V)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// SafeNormalize returns the unit vector of v, or false when v has no usable direction.
func SafeNormalize(v mgl64.Vec3) (mgl64.Vec3, bool) {
	lengthSq := v.Dot(v)
	if !finite(lengthSq) || lengthSq < degenerateLengthSq {
		return mgl64.Vec3{}, false
	}
	return v.Mul(1 / math.Sqrt(lengthSq)), true
}

// ProjectOnPlane removes the component of v along the plane normal.
func ProjectOnPlane(v, normal mgl64.Vec3) mgl64.Vec3 {
	lengthSq := normal.Dot(normal)
	if lengthSq < degenerateLengthSq {
		return v
	}
	return v.Sub(normal.Mul(v.Dot(normal) / lengthSq))
}

// LookRotation builds the orientation whose forward axis is forward and whose up axis
// is as close to up as the forward axis allows.
func LookRotation(forward, up mgl64.Vec3) (mgl64.Quat, bool) {
	//1.- Reject directions that cannot define a basis.
	f, ok := SafeNormalize(forward)
	if !ok {
		return mgl64.QuatIdent(), false
	}
	r, ok := SafeNormalize(up.Cross(f))
	if !ok {
		return mgl64.QuatIdent(), false
	}
	//2.- Re-derive up so the basis is orthonormal and convert it into a quaternion.
	u := f.Cross(r)
	basis := mgl64.Mat3FromCols(r, u, f)
	return mgl64.Mat4ToQuat(basis.Mat4()).Normalize(), true
}

// AnyPerpendicular returns a unit vector orthogonal to the provided direction.
func AnyPerpendicular(v mgl64.Vec3) mgl64.Vec3 {
	axis := Forward
	if math.Abs(v.Dot(axis)) > 0.9*v.Len() {
		axis = Right
	}
	perpendicular, ok := SafeNormalize(ProjectOnPlane(axis, v))
	if !ok {
		return Forward
	}
	return perpendicular
}

// Lerp interpolates between a and b with t clamped to [0, 1].
func Lerp(a, b, t float64) float64 {
	t = mgl64.Clamp(t, 0, 1)
	return a + (b-a)*t
}

// Nlerp interpolates two orientations along the shortest arc with t clamped to [0, 1].
func Nlerp(from, to mgl64.Quat, t float64) mgl64.Quat {
	t = mgl64.Clamp(t, 0, 1)
	//1.- Flip the target into the same hemisphere so the blend takes the short way round.
	if from.Dot(to) < 0 {
		to = to.Scale(-1)
	}
	blended := from.Add(to.Sub(from).Scale(t))
	if blended.Len() == 0 {
		return to.Normalize()
	}
	return blended.Normalize()
}

// clampVec3Magnitude scales the vector down to limit when it exceeds it. A non-positive
// limit disables the guard.
func clampVec3Magnitude(v mgl64.Vec3, limit float64) mgl64.Vec3 {
	if !(limit > 0) {
		return v
	}
	magnitudeSq := v.Dot(v)
	if magnitudeSq == 0 || magnitudeSq <= limit*limit {
		return v
	}
	return v.Mul(limit / math.Sqrt(magnitudeSq))
}
