// Package gameplay holds the vehicle tuning tables shipped with the simulator.
package gameplay

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	_ "embed"

	"github.com/cespare/xxhash/v2"
	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"

	"hovercar/core/internal/boost"
	"hovercar/core/internal/physics"
	"hovercar/core/internal/pid"
	"hovercar/core/internal/sensor"
	"hovercar/core/internal/vehicle"
)

// DriveTuning covers propulsion, steering and velocity damping.
type DriveTuning struct {
	DriveForce       float64    `yaml:"drive_force"`
	SlowingFactor    float64    `yaml:"slowing_factor"`
	BrakingFactor    float64    `yaml:"braking_factor"`
	TerminalVelocity float64    `yaml:"terminal_velocity"`
	SideFriction     float64    `yaml:"side_friction"`
	RotationSpeed    [2]float64 `yaml:"rotation_speed"`
}

// PIDTuning mirrors pid.Config.
type PIDTuning struct {
	P   float64 `yaml:"p"`
	I   float64 `yaml:"i"`
	D   float64 `yaml:"d"`
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// HoverTuning covers the hover loop and falling.
type HoverTuning struct {
	Height      float64   `yaml:"height"`
	Force       float64   `yaml:"force"`
	Gravity     float64   `yaml:"gravity"`
	FallGravity float64   `yaml:"fall_gravity"`
	PID         PIDTuning `yaml:"pid"`
}

// BankingTuning covers the rendered roll into turns.
type BankingTuning struct {
	AngleOfRoll float64    `yaml:"angle_of_roll"`
	RollSpeed   [2]float64 `yaml:"roll_speed"`
	Rate        float64    `yaml:"rate"`
}

// BoostTuning mirrors boost.Config.
type BoostTuning struct {
	MaxGauge          float64 `yaml:"max_gauge"`
	SpendPerSecond    float64 `yaml:"spend_per_second"`
	RecoveryPerSecond float64 `yaml:"recovery_per_second"`
	Power             float64 `yaml:"power"`
}

// MountTuning places one stabilizer ray on the hull.
type MountTuning struct {
	Position [3]float64 `yaml:"position"`
	Up       [3]float64 `yaml:"up"`
}

// SensorTuning covers the stabilizer rays.
type SensorTuning struct {
	MaxGroundDistance float64       `yaml:"max_ground_distance"`
	Mounts            []MountTuning `yaml:"mounts"`
}

// BodyTuning covers the reference rigid body and its collision spheres.
type BodyTuning struct {
	Mass            float64 `yaml:"mass"`
	Radius          float64 `yaml:"radius"`
	InfluenceRadius float64 `yaml:"influence_radius"`
	LinearDrag      float64 `yaml:"linear_drag"`
	AngularDrag     float64 `yaml:"angular_drag"`
	MaxSpeed        float64 `yaml:"max_speed"`
	MaxAngularSpeed float64 `yaml:"max_angular_speed"`
}

// Tuning captures every tunable parameter of a hovercar archetype.
type Tuning struct {
	Name    string        `yaml:"name"`
	Drive   DriveTuning   `yaml:"drive"`
	Hover   HoverTuning   `yaml:"hover"`
	Banking BankingTuning `yaml:"banking"`
	Boost   BoostTuning   `yaml:"boost"`
	Sensor  SensorTuning  `yaml:"sensor"`
	Body    BodyTuning    `yaml:"body"`
}

//go:embed hovercar.yaml
var hovercarPayload []byte

var (
	hovercarOnce sync.Once
	hovercarData Tuning
	hovercarErr  error
)

// HovercarTuning exposes the cached default tuning.
func HovercarTuning() Tuning {
	hovercarOnce.Do(func() {
		//1.- Parse the embedded YAML payload exactly once in a threadsafe manner.
		hovercarErr = yaml.Unmarshal(hovercarPayload, &hovercarData)
		if hovercarErr == nil {
			hovercarErr = hovercarData.Validate()
		}
	})
	//2.- Panic immediately when the shipped tuning is broken to avoid silent divergence.
	if hovercarErr != nil {
		panic(hovercarErr)
	}
	//3.- Return a copy with its own mount slice so callers cannot mutate shared state.
	tuning := hovercarData
	tuning.Sensor.Mounts = append([]MountTuning(nil), hovercarData.Sensor.Mounts...)
	return tuning
}

// LoadTuning overlays the YAML file at path on top of the defaults. An empty path returns
// the defaults.
func LoadTuning(path string) (Tuning, error) {
	tuning := HovercarTuning()
	if strings.TrimSpace(path) == "" {
		return tuning, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("read tuning %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &tuning); err != nil {
		return Tuning{}, fmt.Errorf("decode tuning %s: %w", path, err)
	}
	if err := tuning.Validate(); err != nil {
		return Tuning{}, err
	}
	return tuning, nil
}

// Validate reports every problem that the vehicle and body would reject.
func (t Tuning) Validate() error {
	var problems []string
	if err := t.VehicleConfig(1.0 / 50).Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if !(t.Body.Mass > 0) {
		problems = append(problems, "body mass must be positive")
	}
	if !(t.Body.Radius > 0) {
		problems = append(problems, "body radius must be positive")
	}
	if t.Body.InfluenceRadius < t.Body.Radius {
		problems = append(problems, "body influence radius must cover the body radius")
	}
	if t.Body.LinearDrag < 0 || t.Body.AngularDrag < 0 {
		problems = append(problems, "body drag must be non-negative")
	}
	if len(problems) > 0 {
		return errors.New("invalid tuning " + t.Name + ": " + strings.Join(problems, "; "))
	}
	return nil
}

// VehicleConfig converts the tuning into a controller configuration for the fixed step.
func (t Tuning) VehicleConfig(step float64) vehicle.Config {
	mounts := make([]sensor.Mount, 0, len(t.Sensor.Mounts))
	for _, mount := range t.Sensor.Mounts {
		mounts = append(mounts, sensor.Mount{Position: mgl64.Vec3(mount.Position), Up: mgl64.Vec3(mount.Up)})
	}
	return vehicle.Config{
		Step:             step,
		DriveForce:       t.Drive.DriveForce,
		SlowingFactor:    t.Drive.SlowingFactor,
		BrakingFactor:    t.Drive.BrakingFactor,
		TerminalVelocity: t.Drive.TerminalVelocity,
		SideFriction:     t.Drive.SideFriction,
		RotationSpeed:    mgl64.Vec2(t.Drive.RotationSpeed),
		HoverHeight:      t.Hover.Height,
		HoverForce:       t.Hover.Force,
		HoverGravity:     t.Hover.Gravity,
		FallGravity:      t.Hover.FallGravity,
		AngleOfRoll:      t.Banking.AngleOfRoll,
		RollSpeed:        mgl64.Vec2(t.Banking.RollSpeed),
		BankingRate:      t.Banking.Rate,
		WallMask:         physics.MaskOf(physics.LayerWall),
		PID:              pid.Config(t.Hover.PID),
		Boost:            boost.Config(t.Boost),
		Sensor: sensor.Config{
			MaxGroundDistance: t.Sensor.MaxGroundDistance,
			Mask:              physics.MaskOf(physics.LayerGround),
			Mounts:            mounts,
		},
	}
}

// BodyConfig converts the tuning into a reference rigid body configuration.
func (t Tuning) BodyConfig() physics.BodyConfig {
	return physics.BodyConfig{
		Mass:            t.Body.Mass,
		LinearDrag:      t.Body.LinearDrag,
		AngularDrag:     t.Body.AngularDrag,
		MaxSpeed:        t.Body.MaxSpeed,
		MaxAngularSpeed: t.Body.MaxAngularSpeed,
	}
}

// Digest fingerprints the tuning so recordings can tell which table produced them.
func (t Tuning) Digest() string {
	encoded, err := yaml.Marshal(t)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(encoded))
}
