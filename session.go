package main

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"hovercar/core/internal/gravity"
	"hovercar/core/internal/input"
	"hovercar/core/internal/logging"
	"hovercar/core/internal/physics"
	"hovercar/core/internal/replay"
	"hovercar/core/internal/telemetry"
	"hovercar/core/internal/vehicle"
)

// Publisher receives every telemetry frame encoded as JSON.
type Publisher interface {
	Publish(msg []byte)
}

// Session advances one vehicle through the scene and reports each step to the recorder and
// the relay.
type Session struct {
	scene     *Scene
	source    input.Source
	recorder  *replay.Recorder
	publisher Publisher
	logger    *logging.Logger
	vehicleID string

	elapsed time.Duration
	tick    uint64
	// ticks mirrors tick for readers outside the loop goroutine.
	ticks atomic.Uint64
}

func newSession(source input.Source, recorder *replay.Recorder, publisher Publisher, logger *logging.Logger, vehicleID string) *Session {
	if logger == nil {
		logger = logging.L()
	}
	return &Session{source: source, recorder: recorder, publisher: publisher, logger: logger, vehicleID: vehicleID}
}

// hooks exposes the scene observers that turn contacts and triggers into recorded events.
func (s *Session) hooks() SceneHooks {
	return SceneHooks{
		OnWallCorrection: func(collision physics.Collision) {
			s.event(replay.EventWallCorrection, map[string]any{"impulse": collision.Impulse, "normal": collision.Normal})
		},
		OnOverlap: func(overlap physics.Overlap) {
			field, ok := overlap.Payload.(*gravity.Field)
			if !ok {
				return
			}
			eventType := replay.EventGravityEnter
			if overlap.Phase == physics.OverlapExit {
				eventType = replay.EventGravityExit
			}
			s.event(eventType, map[string]string{"source": field.Name})
		},
	}
}

// Step implements simulation.StepFunc.
func (s *Session) Step(step time.Duration) error {
	s.tick++
	s.ticks.Store(s.tick)
	ctrl := s.scene.Controller
	dt := step.Seconds()

	//1.- Plan and commit the vehicle commands; a discarded frame leaves the body coasting.
	cmd, err := ctrl.Tick(s.source.Next(s.elapsed))
	if err != nil {
		if !errors.Is(err, vehicle.ErrInvalidFrame) {
			return err
		}
		s.event(replay.EventFrameSkipped, map[string]string{"reason": err.Error()})
	}
	//2.- Integrate and resolve contacts, which may fire the scene hooks.
	s.scene.World.Step(dt)
	s.elapsed += step
	bodyRotation := ctrl.Animate(dt)

	frame := telemetry.Frame{
		VehicleID:    s.vehicleID,
		Tick:         s.tick,
		SimulatedMs:  s.elapsed.Milliseconds(),
		Position:     s.scene.Body.Position(),
		Velocity:     s.scene.Body.Velocity(),
		Rotation:     s.scene.Body.Rotation(),
		BodyRotation: bodyRotation,
		Grounded:     ctrl.Grounded(),
		Distance:     ctrl.Reading().Distance,
		Normal:       ctrl.Reading().Normal,
		Hover:        cmd.Hover,
		Speed:        ctrl.Speed(),
		BoostGauge:   ctrl.Reserve().Gauge(),
		BoostPower:   cmd.BoostPower,
	}
	if err != nil {
		frame.Hover = mgl64.Vec3{}
		frame.BoostPower = 0
	}
	//3.- Recording and relaying are best effort; the recorder logs its own failures.
	_ = s.recorder.RecordFrame(frame)
	if s.publisher != nil {
		payload, encodeErr := frame.JSON()
		if encodeErr != nil {
			s.logger.Warn("telemetry encode failed", logging.Uint64("tick", s.tick), logging.Error(encodeErr))
			return nil
		}
		s.publisher.Publish(payload)
	}
	return nil
}

// Ticks returns how many steps ran; safe to call from any goroutine.
func (s *Session) Ticks() uint64 { return s.ticks.Load() }

func (s *Session) event(eventType string, payload any) {
	_ = s.recorder.RecordEvent(s.tick, s.elapsed.Milliseconds(), eventType, payload)
}
