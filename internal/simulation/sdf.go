package simulation

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// SignedDistanceField exposes the sampling contract for collision queries. Negative
// samples lie inside the solid.
type SignedDistanceField interface {
	Sample(point mgl64.Vec3) float64
}

// SampleFunc adapts a function into a SignedDistanceField.
type SampleFunc func(mgl64.Vec3) float64

// Sample invokes the wrapped sampling function.
func (s SampleFunc) Sample(point mgl64.Vec3) float64 {
	return s(point)
}

// SphereField describes an analytic sphere signed distance function.
type SphereField struct {
	Center mgl64.Vec3
	Radius float64
}

// Sample calculates the signed distance from a point to the sphere surface.
func (s SphereField) Sample(point mgl64.Vec3) float64 {
	//1.- The radius is subtracted from the distance between the point and center.
	return point.Sub(s.Center).Len() - s.Radius
}

// PlaneField describes an infinite half space bounded by a plane; the normal points out
// of the solid.
type PlaneField struct {
	origin mgl64.Vec3
	normal mgl64.Vec3
}

// NewPlaneField normalizes the normal and stores the plane representation. A zero normal
// falls back to +Y.
func NewPlaneField(point, normal mgl64.Vec3) PlaneField {
	//1.- Normalize the plane normal to keep signed distances consistent.
	unit := mgl64.Vec3{0, 1, 0}
	if length := normal.Len(); length > 0 {
		unit = normal.Mul(1 / length)
	}
	return PlaneField{origin: point, normal: unit}
}

// Sample returns the signed distance from the plane to the provided point.
func (p PlaneField) Sample(point mgl64.Vec3) float64 {
	//1.- Dot product with the normal projects the delta onto the plane axis.
	return point.Sub(p.origin).Dot(p.normal)
}

// Normal returns the outward plane normal.
func (p PlaneField) Normal() mgl64.Vec3 { return p.normal }

// BoxField describes an axis-aligned solid box.
type BoxField struct {
	Center      mgl64.Vec3
	HalfExtents mgl64.Vec3
}

// Sample returns the exact signed distance to the box surface.
func (b BoxField) Sample(point mgl64.Vec3) float64 {
	//1.- Fold the query into the positive octant and measure against the corner.
	local := point.Sub(b.Center)
	q := mgl64.Vec3{
		math.Abs(local[0]) - b.HalfExtents[0],
		math.Abs(local[1]) - b.HalfExtents[1],
		math.Abs(local[2]) - b.HalfExtents[2],
	}
	outside := mgl64.Vec3{math.Max(q[0], 0), math.Max(q[1], 0), math.Max(q[2], 0)}.Len()
	//2.- Inside points report the distance to the nearest face as a negative value.
	inside := math.Min(math.Max(q[0], math.Max(q[1], q[2])), 0)
	return outside + inside
}

// Union combines fields into the solid covered by any of them.
type Union []SignedDistanceField

// Sample returns the smallest signed distance across the members.
func (u Union) Sample(point mgl64.Vec3) float64 {
	nearest := math.Inf(1)
	for _, field := range u {
		nearest = math.Min(nearest, field.Sample(point))
	}
	return nearest
}

// Gradient estimates the outward surface normal at point by central differences.
func Gradient(field SignedDistanceField, point mgl64.Vec3, epsilon float64) mgl64.Vec3 {
	if epsilon <= 0 {
		epsilon = 1e-4
	}
	//1.- Sample either side of the point along every axis.
	dx := mgl64.Vec3{epsilon, 0, 0}
	dy := mgl64.Vec3{0, epsilon, 0}
	dz := mgl64.Vec3{0, 0, epsilon}
	gradient := mgl64.Vec3{
		field.Sample(point.Add(dx)) - field.Sample(point.Sub(dx)),
		field.Sample(point.Add(dy)) - field.Sample(point.Sub(dy)),
		field.Sample(point.Add(dz)) - field.Sample(point.Sub(dz)),
	}
	length := gradient.Len()
	if length == 0 || math.IsNaN(length) {
		return mgl64.Vec3{}
	}
	return gradient.Mul(1 / length)
}

// Raycast performs sphere tracing against the provided field.
func Raycast(field SignedDistanceField, origin, direction mgl64.Vec3, maxDistance float64, maxSteps int, epsilon float64) (bool, float64, mgl64.Vec3) {
	//1.- Normalize the incoming direction vector before marching.
	length := direction.Len()
	if length == 0 || field == nil {
		return false, 0, origin
	}
	dir := direction.Mul(1 / length)
	distance := 0.0
	current := origin
	for step := 0; step < maxSteps; step++ {
		sample := field.Sample(current)
		if sample < epsilon {
			//2.- Return a hit once the sampled distance is within tolerance.
			return true, distance, current
		}
		distance += sample
		if distance > maxDistance {
			break
		}
		//3.- Advance the ray origin using the sampled distance.
		current = origin.Add(dir.Mul(distance))
	}
	capped := math.Min(distance, maxDistance)
	return false, capped, origin.Add(dir.Mul(capped))
}

// SphereIntersection evaluates whether a bounding sphere penetrates the field.
func SphereIntersection(field SignedDistanceField, center mgl64.Vec3, radius float64) (bool, float64) {
	//1.- Sample the SDF at the sphere center and subtract the radius to compute clearance.
	separation := field.Sample(center) - radius
	return separation <= 0, separation
}
