package gravity

import (
	"github.com/go-gl/mathgl/mgl64"

	"hovercar/core/internal/physics"
)

// DefaultMinDistance bounds the inverse-square pull when a query sits on the surface.
const DefaultMinDistance = 1e-3

// Source is anything that pulls a body toward itself.
type Source interface {
	// Down returns the pull felt at position. The result is not normalized.
	Down(position mgl64.Vec3) mgl64.Vec3
}

// Field pulls toward the nearest point of a bounded volume with an inverse-square weight.
type Field struct {
	Name        string
	Volume      physics.Volume
	MinDistance float64
}

var _ Source = (*Field)(nil)

// NewField builds a field around the provided volume using the default distance clamp.
func NewField(name string, volume physics.Volume) *Field {
	return &Field{Name: name, Volume: volume, MinDistance: DefaultMinDistance}
}

// Down implements Source.
func (f *Field) Down(position mgl64.Vec3) mgl64.Vec3 {
	if f == nil || f.Volume == nil {
		return mgl64.Vec3{}
	}
	//1.- Point from the query toward the surface.
	delta := f.Volume.ClosestPoint(position).Sub(position)
	//2.- Divide by the squared distance, clamped so a query on the surface yields no pull.
	minDistance := f.MinDistance
	if !(minDistance > 0) {
		minDistance = DefaultMinDistance
	}
	distanceSq := delta.Dot(delta)
	if distanceSq < minDistance*minDistance {
		distanceSq = minDistance * minDistance
	}
	return delta.Mul(1 / distanceSq)
}
