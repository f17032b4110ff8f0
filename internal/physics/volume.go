package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Volume is a bounded collider-equivalent region.
type Volume interface {
	// ClosestPoint returns the point of the volume nearest to p, or p itself when p is inside.
	ClosestPoint(p mgl64.Vec3) mgl64.Vec3
}

// Sphere is a solid ball.
type Sphere struct {
	Center mgl64.Vec3
	Radius float64
}

// ClosestPoint implements Volume.
func (s Sphere) ClosestPoint(p mgl64.Vec3) mgl64.Vec3 {
	offset := p.Sub(s.Center)
	distance := offset.Len()
	if distance <= s.Radius || distance == 0 {
		return p
	}
	return s.Center.Add(offset.Mul(s.Radius / distance))
}

// Box is an oriented solid box.
type Box struct {
	Center      mgl64.Vec3
	HalfExtents mgl64.Vec3
	// Rotation orients the box; the zero value is treated as identity.
	Rotation mgl64.Quat
}

func (b Box) orientation() mgl64.Quat {
	if b.Rotation.Len() == 0 {
		return mgl64.QuatIdent()
	}
	return b.Rotation.Normalize()
}

// ClosestPoint implements Volume.
func (b Box) ClosestPoint(p mgl64.Vec3) mgl64.Vec3 {
	//1.- Move the query into box space where the faces are axis aligned.
	rotation := b.orientation()
	local := rotation.Conjugate().Rotate(p.Sub(b.Center))
	//2.- Clamp each axis to the half extents and map the result back to world space.
	clamped := mgl64.Vec3{
		mgl64.Clamp(local[0], -b.HalfExtents[0], b.HalfExtents[0]),
		mgl64.Clamp(local[1], -b.HalfExtents[1], b.HalfExtents[1]),
		mgl64.Clamp(local[2], -b.HalfExtents[2], b.HalfExtents[2]),
	}
	return b.Center.Add(rotation.Rotate(clamped))
}

// Capsule is a segment swept by a sphere, handy for tube-shaped track sections.
type Capsule struct {
	A      mgl64.Vec3
	B      mgl64.Vec3
	Radius float64
}

// ClosestPoint implements Volume.
func (c Capsule) ClosestPoint(p mgl64.Vec3) mgl64.Vec3 {
	//1.- Project onto the core segment, then treat the projection as a sphere center.
	ab := c.B.Sub(c.A)
	t := 0.0
	if lengthSq := ab.Dot(ab); lengthSq > 0 {
		t = mgl64.Clamp(p.Sub(c.A).Dot(ab)/lengthSq, 0, 1)
	}
	core := c.A.Add(ab.Mul(t))
	return Sphere{Center: core, Radius: c.Radius}.ClosestPoint(p)
}

// DistanceTo returns how far p is from the volume; zero when inside.
func DistanceTo(v Volume, p mgl64.Vec3) float64 {
	if v == nil {
		return math.Inf(1)
	}
	return v.ClosestPoint(p).Sub(p).Len()
}
