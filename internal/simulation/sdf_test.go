package simulation

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestSphereFieldSamplingMatchesAnalytic(t *testing.T) {
	field := SphereField{Center: mgl64.Vec3{}, Radius: 2}
	cases := []struct {
		point    mgl64.Vec3
		expected float64
	}{
		{point: mgl64.Vec3{}, expected: -2},
		{point: mgl64.Vec3{2, 0, 0}, expected: 0},
		{point: mgl64.Vec3{0, 3, 0}, expected: 1},
		{point: mgl64.Vec3{1, 2, 2}, expected: math.Sqrt(9) - 2},
	}
	for _, tc := range cases {
		//1.- Compare analytic distance with SDF sampling results.
		if got := field.Sample(tc.point); math.Abs(got-tc.expected) > 1e-7 {
			t.Fatalf("expected %f, got %f", tc.expected, got)
		}
	}
}

func TestBoxFieldSamplingMatchesAnalytic(t *testing.T) {
	field := BoxField{Center: mgl64.Vec3{0, 1, 0}, HalfExtents: mgl64.Vec3{1, 1, 1}}
	cases := []struct {
		point    mgl64.Vec3
		expected float64
	}{
		{point: mgl64.Vec3{0, 1, 0}, expected: -1},
		{point: mgl64.Vec3{0, 3, 0}, expected: 1},
		{point: mgl64.Vec3{4, 1, 0}, expected: 3},
		{point: mgl64.Vec3{0.5, 1, 0}, expected: -0.5},
	}
	for _, tc := range cases {
		if got := field.Sample(tc.point); math.Abs(got-tc.expected) > 1e-9 {
			t.Fatalf("box sample at %v: expected %f, got %f", tc.point, tc.expected, got)
		}
	}
}

func TestRaycastHitsSphereSurface(t *testing.T) {
	field := SphereField{Center: mgl64.Vec3{}, Radius: 2}
	hit, distance, position := Raycast(field, mgl64.Vec3{0, 0, 5}, mgl64.Vec3{0, 0, -1}, 100, 128, 1e-3)
	//1.- Ray should intersect three units along the negative Z axis.
	if !hit {
		t.Fatal("expected ray to hit sphere")
	}
	if math.Abs(distance-3) > 1e-3 {
		t.Fatalf("expected distance 3, got %f", distance)
	}
	if math.Abs(position.Z()-2) > 1e-3 {
		t.Fatalf("expected hit at z=2, got %f", position.Z())
	}
}

func TestRaycastRespectsMaxDistance(t *testing.T) {
	plane := NewPlaneField(mgl64.Vec3{}, mgl64.Vec3{0, 1, 0})
	hit, distance, _ := Raycast(plane, mgl64.Vec3{0, 10, 0}, mgl64.Vec3{0, -1, 0}, 5, 64, 1e-4)
	if hit {
		t.Fatal("expected the plane to be out of reach")
	}
	if distance != 5 {
		t.Fatalf("expected capped distance 5, got %f", distance)
	}
	if hit, _, _ := Raycast(plane, mgl64.Vec3{0, 10, 0}, mgl64.Vec3{}, 50, 64, 1e-4); hit {
		t.Fatal("a zero direction must not hit")
	}
}

func TestGradientPointsOutOfSolid(t *testing.T) {
	sphere := SphereField{Center: mgl64.Vec3{}, Radius: 2}
	normal := Gradient(sphere, mgl64.Vec3{0, 2, 0}, 1e-4)
	if !normal.ApproxEqualThreshold(mgl64.Vec3{0, 1, 0}, 1e-6) {
		t.Fatalf("unexpected sphere normal %v", normal)
	}
	wall := NewPlaneField(mgl64.Vec3{5, 0, 0}, mgl64.Vec3{-2, 0, 0})
	if got := Gradient(wall, mgl64.Vec3{4, 1, 0}, 1e-4); !got.ApproxEqualThreshold(mgl64.Vec3{-1, 0, 0}, 1e-9) {
		t.Fatalf("unexpected wall normal %v", got)
	}
}

func TestSphereIntersectionDetectsPlanePenetration(t *testing.T) {
	plane := NewPlaneField(mgl64.Vec3{}, mgl64.Vec3{0, 1, 0})
	hit, separation := SphereIntersection(plane, mgl64.Vec3{0, 0.5, 0}, 1)
	//1.- Sphere should intersect the plane with half unit penetration.
	if !hit {
		t.Fatal("expected intersection")
	}
	if math.Abs(separation+0.5) > 1e-7 {
		t.Fatalf("expected separation -0.5, got %f", separation)
	}
}

func TestSphereIntersectionHonoursClearance(t *testing.T) {
	plane := NewPlaneField(mgl64.Vec3{}, mgl64.Vec3{0, 1, 0})
	hit, separation := SphereIntersection(Union{plane, SphereField{Center: mgl64.Vec3{0, 10, 0}, Radius: 1}}, mgl64.Vec3{0, 2.5, 0}, 1)
	//1.- Clearance should equal signed distance minus radius.
	if hit {
		t.Fatal("expected no intersection")
	}
	if math.Abs(separation-1.5) > 1e-7 {
		t.Fatalf("expected separation 1.5, got %f", separation)
	}
}
