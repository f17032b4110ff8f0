package sensor

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hovercar/core/internal/physics"
)

type staticPose struct {
	position mgl64.Vec3
	rotation mgl64.Quat
	velocity mgl64.Vec3
}

func (p staticPose) Position() mgl64.Vec3 { return p.position }
func (p staticPose) Rotation() mgl64.Quat { return p.rotation }
func (p staticPose) Velocity() mgl64.Vec3 { return p.velocity }

type scriptedCaster struct {
	hit      map[int]physics.Hit
	calls    int
	lengths  []float64
	origins  []mgl64.Vec3
	dirs     []mgl64.Vec3
	lastMask physics.LayerMask
}

func (c *scriptedCaster) Cast(origin, direction mgl64.Vec3, maxDistance float64, mask physics.LayerMask) (physics.Hit, bool) {
	index := c.calls
	c.calls++
	c.lengths = append(c.lengths, maxDistance)
	c.origins = append(c.origins, origin)
	c.dirs = append(c.dirs, direction)
	c.lastMask = mask
	hit, ok := c.hit[index]
	return hit, ok
}

type fixedDown mgl64.Vec3

func (d fixedDown) Down() mgl64.Vec3 { return mgl64.Vec3(d) }

func cornerConfig() Config {
	up := mgl64.Vec3{0, 1, 0}
	return Config{
		MaxGroundDistance: 5,
		Mask:              physics.MaskOf(physics.LayerGround),
		Mounts: []Mount{
			{Position: mgl64.Vec3{-1, 0, 1}, Up: up},
			{Position: mgl64.Vec3{1, 0, 1}, Up: up},
			{Position: mgl64.Vec3{-1, 0, -1}, Up: up},
			{Position: mgl64.Vec3{1, 0, -1}, Up: up},
		},
	}
}

func TestSenseAllHitsAveragesDistance(t *testing.T) {
	caster := &scriptedCaster{hit: map[int]physics.Hit{}}
	for i := 0; i < 4; i++ {
		caster.hit[i] = physics.Hit{Distance: 1.25, Normal: physics.WorldUp}
	}
	pose := staticPose{position: mgl64.Vec3{0, 1.25, 0}, rotation: mgl64.QuatIdent()}
	ground, err := New(cornerConfig(), pose, caster, fixedDown(physics.WorldDown))
	require.NoError(t, err)

	grounded, reading := ground.Sense(0.02)
	require.True(t, grounded)
	assert.InDelta(t, 1.25, reading.Distance, 1e-12)
	assert.Equal(t, 4, reading.Hits)
	assert.True(t, reading.Normal.ApproxEqualThreshold(physics.WorldUp, 1e-12))
	assert.Equal(t, physics.MaskOf(physics.LayerGround), caster.lastMask)
	//1.- Rays start at the rotated mount positions and travel down.
	assert.True(t, caster.origins[0].ApproxEqualThreshold(mgl64.Vec3{-1, 1.25, 1}, 1e-12))
	assert.True(t, caster.dirs[0].ApproxEqualThreshold(physics.WorldDown, 1e-12))
}

func TestSenseWithoutHitsIsUngrounded(t *testing.T) {
	caster := &scriptedCaster{}
	pose := staticPose{rotation: mgl64.QuatIdent()}
	ground, err := New(cornerConfig(), pose, caster, fixedDown{1, 0, 0})
	require.NoError(t, err)

	grounded, reading := ground.Sense(0.02)
	assert.False(t, grounded)
	assert.Equal(t, 0.0, reading.Distance)
	//1.- Every miss leans the normal against the current gravity.
	assert.True(t, reading.Normal.ApproxEqualThreshold(mgl64.Vec3{-1, 0, 0}, 1e-12))
}

func TestSensePartialHitsBlendNormals(t *testing.T) {
	tilted := mgl64.Vec3{1, 1, 0}.Normalize()
	caster := &scriptedCaster{hit: map[int]physics.Hit{
		0: {Distance: 2, Normal: tilted},
		2: {Distance: 4, Normal: tilted},
	}}
	ground, err := New(cornerConfig(), staticPose{rotation: mgl64.QuatIdent()}, caster, nil)
	require.NoError(t, err)

	grounded, reading := ground.Sense(0.02)
	require.True(t, grounded)
	assert.InDelta(t, 3, reading.Distance, 1e-12)
	expected := tilted.Mul(2).Add(physics.WorldUp.Mul(2)).Normalize()
	assert.True(t, reading.Normal.ApproxEqualThreshold(expected, 1e-12))
}

func TestSenseCancellingNormalsKeepPreviousNormal(t *testing.T) {
	cfg := cornerConfig()
	cfg.Mounts = cfg.Mounts[:2]
	caster := &scriptedCaster{hit: map[int]physics.Hit{
		0: {Distance: 1, Normal: mgl64.Vec3{1, 0, 0}},
		1: {Distance: 1, Normal: mgl64.Vec3{-1, 0, 0}},
	}}
	ground, err := New(cfg, staticPose{rotation: mgl64.QuatIdent()}, caster, nil)
	require.NoError(t, err)

	_, reading := ground.Sense(0.02)
	assert.Equal(t, physics.WorldUp, reading.Normal)
}

func TestCastLengthUsesLargerOfTravelAndMaximum(t *testing.T) {
	caster := &scriptedCaster{}
	falling := staticPose{rotation: mgl64.QuatIdent(), velocity: mgl64.Vec3{0, -400, 0}}
	ground, err := New(cornerConfig(), falling, caster, nil)
	require.NoError(t, err)
	//1.- Falling fast stretches the rays beyond the configured maximum.
	assert.InDelta(t, 8, ground.CastLength(0.02), 1e-12)

	rising := staticPose{rotation: mgl64.QuatIdent(), velocity: mgl64.Vec3{0, 10, 0}}
	ground, err = New(cornerConfig(), rising, caster, nil)
	require.NoError(t, err)
	assert.Equal(t, 5.0, ground.CastLength(0.02))
	ground.Sense(0.02)
	assert.Equal(t, []float64{5, 5, 5, 5}, caster.lengths)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	pose := staticPose{rotation: mgl64.QuatIdent()}
	caster := &scriptedCaster{}

	_, err := New(Config{MaxGroundDistance: 5}, pose, caster, nil)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	cfg := cornerConfig()
	cfg.MaxGroundDistance = 0
	_, err = New(cfg, pose, caster, nil)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	cfg = cornerConfig()
	cfg.Mounts[1].Up = mgl64.Vec3{}
	_, err = New(cfg, pose, caster, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mount 1 up axis")

	_, err = New(cornerConfig(), nil, caster, nil)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}
