package main

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"hovercar/core/internal/gameplay"
	"hovercar/core/internal/gravity"
	"hovercar/core/internal/logging"
	"hovercar/core/internal/physics"
	"hovercar/core/internal/simulation"
	"hovercar/core/internal/vehicle"
)

const (
	trackHalfWidth = 12.0
	wellRadius     = 6.0
)

// wellCenter hangs over the opening straight with its underside at hover height, so the
// scripted lap skims through the influence band.
var wellCenter = mgl64.Vec3{0, wellRadius + 1, 60}

// Scene is the demo track: a ground plane between two side walls with a spherical gravity
// well hanging low over the straight.
type Scene struct {
	World      *simulation.World
	Body       *physics.RigidBody
	Controller *vehicle.Controller
	Well       *gravity.Field
}

// SceneHooks observe contact and trigger events after the controller handled them.
type SceneHooks struct {
	OnWallCorrection func(physics.Collision)
	OnOverlap        func(physics.Overlap)
}

// buildScene lays out the track, spawns the body at hover height and wires the world events
// into the controller.
func buildScene(tuning gameplay.Tuning, step float64, vehicleID string, logger *logging.Logger, hooks SceneHooks, opts ...vehicle.Option) (*Scene, error) {
	world := simulation.NewWorld()
	//1.- Solid geometry: the track surface and the two walls facing inward.
	world.AddSurface(simulation.Surface{Name: "track", Layer: physics.LayerGround, Field: simulation.NewPlaneField(mgl64.Vec3{}, physics.WorldUp)})
	world.AddSurface(simulation.Surface{Name: "wall-left", Layer: physics.LayerWall, Field: simulation.NewPlaneField(mgl64.Vec3{-trackHalfWidth, 0, 0}, physics.Right)})
	world.AddSurface(simulation.Surface{Name: "wall-right", Layer: physics.LayerWall, Field: simulation.NewPlaneField(mgl64.Vec3{trackHalfWidth, 0, 0}, physics.Right.Mul(-1))})

	//2.- The well is a trigger whose payload is the gravity source the aggregator picks up.
	volume := physics.Sphere{Center: wellCenter, Radius: wellRadius}
	well := gravity.NewField("well", volume)
	world.AddTrigger(&simulation.Trigger{Name: well.Name, Volume: volume, Payload: well})

	spawn := mgl64.Vec3{0, tuning.Hover.Height, 0}
	body := physics.NewRigidBody(tuning.BodyConfig(), spawn, mgl64.QuatIdent())
	opts = append([]vehicle.Option{vehicle.WithID(vehicleID), vehicle.WithLogger(logger)}, opts...)
	ctrl, err := vehicle.New(tuning.VehicleConfig(step), body, world, opts...)
	if err != nil {
		return nil, fmt.Errorf("build vehicle: %w", err)
	}

	//3.- Route world events through the controller before the observers see them.
	err = world.Attach(body, simulation.Attachment{
		Radius:          tuning.Body.Radius,
		InfluenceRadius: tuning.Body.InfluenceRadius,
		OnCollision: func(collision physics.Collision) {
			if ctrl.HandleCollision(collision) && hooks.OnWallCorrection != nil {
				hooks.OnWallCorrection(collision)
			}
		},
		OnOverlap: func(overlap physics.Overlap) {
			ctrl.HandleOverlap(overlap)
			if hooks.OnOverlap != nil {
				hooks.OnOverlap(overlap)
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("attach vehicle: %w", err)
	}
	return &Scene{World: world, Body: body, Controller: ctrl, Well: well}, nil
}
