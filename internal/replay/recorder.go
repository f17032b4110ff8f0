package replay

import (
	"encoding/json"
	"fmt"
	"sync"

	"hovercar/core/internal/logging"
	"hovercar/core/internal/telemetry"
)

// Event types written to the events log.
const (
	EventGrounded       = "grounded"
	EventAirborne       = "airborne"
	EventFrameSkipped   = "frame_skipped"
	EventGravityEnter   = "gravity_enter"
	EventGravityExit    = "gravity_exit"
	EventWallCorrection = "wall_correction"
)

// Stats summarises recorder health for monitoring endpoints.
type Stats struct {
	Frames    int64  `json:"frames"`
	Events    int64  `json:"events"`
	Bytes     int64  `json:"bytes"`
	Errors    int64  `json:"errors"`
	LastTick  uint64 `json:"last_tick"`
	Directory string `json:"directory"`
}

// Recorder encodes telemetry frames into a Writer and derives the transition events a
// viewer cares about.
type Recorder struct {
	mu       sync.Mutex
	writer   *Writer
	logger   *logging.Logger
	grounded *bool
	stats    Stats
}

// NewRecorder wraps an open writer.
func NewRecorder(writer *Writer, logger *logging.Logger) (*Recorder, error) {
	if writer == nil {
		return nil, fmt.Errorf("replay writer must be provided")
	}
	if logger == nil {
		logger = logging.L()
	}
	return &Recorder{writer: writer, logger: logger, stats: Stats{Directory: writer.Directory()}}, nil
}

// RecordFrame appends the frame and emits a grounded or airborne event when contact changed.
func (r *Recorder) RecordFrame(frame telemetry.Frame) error {
	if r == nil {
		return nil
	}
	payload, err := frame.Encode()
	if err != nil {
		return r.fail(err)
	}

	r.mu.Lock()
	//1.- Compare against the previous frame; the first frame always reports its state.
	transition := r.grounded == nil || *r.grounded != frame.Grounded
	grounded := frame.Grounded
	r.grounded = &grounded
	r.mu.Unlock()

	if transition {
		eventType := EventAirborne
		if frame.Grounded {
			eventType = EventGrounded
		}
		if err := r.RecordEvent(frame.Tick, frame.SimulatedMs, eventType, map[string]float64{"distance": frame.Distance}); err != nil {
			return err
		}
	}
	if err := r.writer.AppendFrame(frame.Tick, frame.SimulatedMs, payload); err != nil {
		return r.fail(err)
	}
	r.mu.Lock()
	r.stats.Frames++
	r.stats.Bytes += int64(len(payload))
	r.stats.LastTick = frame.Tick
	r.mu.Unlock()
	return nil
}

// RecordEvent appends a typed event; payload is encoded as JSON and may be nil.
func (r *Recorder) RecordEvent(tick uint64, simulatedMs int64, eventType string, payload any) error {
	if r == nil {
		return nil
	}
	var raw json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return r.fail(fmt.Errorf("encode %s event: %w", eventType, err))
		}
		raw = encoded
	}
	if err := r.writer.AppendEvent(tick, simulatedMs, eventType, raw); err != nil {
		return r.fail(err)
	}
	r.mu.Lock()
	r.stats.Events++
	r.mu.Unlock()
	return nil
}

// Snapshot returns statistics describing the recorder state.
func (r *Recorder) Snapshot() Stats {
	if r == nil {
		return Stats{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Flush forces buffered frames to disk and returns the bundle directory.
func (r *Recorder) Flush() (string, error) {
	if r == nil {
		return "", ErrWriterClosed
	}
	if err := r.writer.Flush(); err != nil {
		return "", r.fail(err)
	}
	return r.writer.Directory(), nil
}

// Close finalises the bundle.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	stats := r.Snapshot()
	err := r.writer.Close()
	r.logger.Info("telemetry bundle closed",
		logging.String("directory", stats.Directory),
		logging.Int64("frames", stats.Frames),
		logging.Int64("events", stats.Events),
		logging.Int64("errors", stats.Errors),
	)
	return err
}

func (r *Recorder) fail(err error) error {
	r.mu.Lock()
	r.stats.Errors++
	r.mu.Unlock()
	r.logger.Warn("telemetry recording failed", logging.Error(err))
	return err
}
