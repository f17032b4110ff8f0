// Package sensor samples the ground under a hovering body through a set of ray mounts.
package sensor

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"hovercar/core/internal/physics"
)

// ErrInvalidConfig is returned when the sensor cannot be built from its configuration.
var ErrInvalidConfig = errors.New("sensor: invalid configuration")

// DownSource resolves the fallback down direction used when a ray misses.
type DownSource interface {
	Down() mgl64.Vec3
}

// Mount is a ray origin fixed to the body.
type Mount struct {
	// Position is the origin in body space.
	Position mgl64.Vec3
	// Up is the local axis whose opposite the ray travels along.
	Up mgl64.Vec3
}

// Config describes the mounts and the cast limits.
type Config struct {
	MaxGroundDistance float64
	Mask              physics.LayerMask
	Mounts            []Mount
}

// Validate reports every problem with the configuration.
func (c Config) Validate() error {
	var problems []string
	if !(c.MaxGroundDistance > 0) || math.IsInf(c.MaxGroundDistance, 1) {
		problems = append(problems, "max ground distance must be positive and finite")
	}
	if len(c.Mounts) == 0 {
		problems = append(problems, "at least one mount is required")
	}
	for i, mount := range c.Mounts {
		if !physics.Finite(mount.Position) {
			problems = append(problems, fmt.Sprintf("mount %d position must be finite", i))
		}
		if _, ok := physics.SafeNormalize(mount.Up); !ok {
			problems = append(problems, fmt.Sprintf("mount %d up axis must have length", i))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Reading is the averaged ground sample of one Sense call.
type Reading struct {
	Normal   mgl64.Vec3
	Distance float64
	Hits     int
}

// GroundSensor casts one ray per mount and averages what it finds.
type GroundSensor struct {
	cfg    Config
	mounts []Mount
	body   physics.Pose
	caster physics.Caster
	down   DownSource

	lastNormal mgl64.Vec3
}

// New validates the configuration and binds the sensor to its collaborators.
func New(cfg Config, body physics.Pose, caster physics.Caster, down DownSource) (*GroundSensor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if body == nil || caster == nil {
		return nil, fmt.Errorf("%w: body and caster are required", ErrInvalidConfig)
	}
	mounts := make([]Mount, len(cfg.Mounts))
	for i, mount := range cfg.Mounts {
		up, _ := physics.SafeNormalize(mount.Up)
		mounts[i] = Mount{Position: mount.Position, Up: up}
	}
	return &GroundSensor{cfg: cfg, mounts: mounts, body: body, caster: caster, down: down, lastNormal: physics.WorldUp}, nil
}

// Mounts returns the number of ray mounts.
func (s *GroundSensor) Mounts() int {
	if s == nil {
		return 0
	}
	return len(s.mounts)
}

// CastLength returns how far the rays reach for the provided step.
func (s *GroundSensor) CastLength(dt float64) float64 {
	//1.- Allow the rays to reach as far as the body will travel downward this tick, but
	// never shorter than the configured maximum.
	bodyDown := s.body.Rotation().Rotate(physics.WorldDown)
	travel := bodyDown.Dot(s.body.Velocity()) * dt
	if math.IsNaN(travel) {
		travel = 0
	}
	return math.Max(travel, s.cfg.MaxGroundDistance)
}

// Sense casts every mount and reports whether any ray found ground.
func (s *GroundSensor) Sense(dt float64) (bool, Reading) {
	if s == nil {
		return false, Reading{Normal: physics.WorldUp}
	}
	length := s.CastLength(dt)
	position := s.body.Position()
	rotation := s.body.Rotation()

	var (
		normalSum   mgl64.Vec3
		distanceSum float64
		hits        int
	)
	for _, mount := range s.mounts {
		//1.- Cast from the mount along its local down axis.
		origin := position.Add(rotation.Rotate(mount.Position))
		direction := rotation.Rotate(mount.Up).Mul(-1)
		hit, ok := s.caster.Cast(origin, direction, length, s.cfg.Mask)
		if ok {
			normalSum = normalSum.Add(hit.Normal)
			distanceSum += hit.Distance
			hits++
			continue
		}
		//2.- A miss contributes the gravity up direction so the average leans toward it.
		normalSum = normalSum.Add(s.fallbackDown().Mul(-1))
	}

	//3.- Keep the previous normal when the contributions cancel out.
	if normal, ok := physics.SafeNormalize(normalSum); ok {
		s.lastNormal = normal
	}
	reading := Reading{Normal: s.lastNormal, Hits: hits}
	if hits == 0 {
		return false, reading
	}
	reading.Distance = distanceSum / float64(hits)
	return true, reading
}

func (s *GroundSensor) fallbackDown() mgl64.Vec3 {
	if s.down == nil {
		return physics.WorldDown
	}
	down := s.down.Down()
	if !physics.Finite(down) {
		return physics.WorldDown
	}
	return down
}
