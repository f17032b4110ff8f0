package replayplayer

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"hovercar/core/internal/replay"
	"hovercar/core/internal/telemetry"
)

// Summary condenses a recorded session into the numbers a reviewer checks first.
type Summary struct {
	Dir           string         `json:"dir"`
	SessionID     string         `json:"session_id"`
	VehicleID     string         `json:"vehicle_id,omitempty"`
	TuningDigest  string         `json:"tuning_digest,omitempty"`
	Frames        int            `json:"frames"`
	FirstTick     uint64         `json:"first_tick"`
	LastTick      uint64         `json:"last_tick"`
	DurationMs    int64          `json:"duration_ms"`
	GroundedShare float64        `json:"grounded_share"`
	MeanDistance  float64        `json:"mean_distance"`
	MaxSpeed      float64        `json:"max_speed"`
	PathLength    float64        `json:"path_length"`
	FinalGauge    float64        `json:"final_gauge"`
	Events        map[string]int `json:"events"`
	EventSequence []string       `json:"event_sequence,omitempty"`
	decodedFrames []telemetry.Frame
}

// DecodedFrames returns the decoded telemetry frames in tick order.
func (s Summary) DecodedFrames() []telemetry.Frame {
	out := make([]telemetry.Frame, len(s.decodedFrames))
	copy(out, s.decodedFrames)
	return out
}

// ReplayBundle loads a session directory (or its manifest) and decodes every frame.
func ReplayBundle(path string) (Summary, error) {
	if path == "" {
		return Summary{}, fmt.Errorf("path is required")
	}
	//1.- Accept either the bundle directory or a file inside it.
	info, err := os.Stat(path)
	if err != nil {
		return Summary{}, err
	}
	dir := path
	if !info.IsDir() {
		dir = filepath.Dir(path)
	}
	bundle, err := replay.Load(dir)
	if err != nil {
		return Summary{}, err
	}
	if bundle.Manifest.Version != 1 {
		return Summary{}, fmt.Errorf("unsupported manifest version %d", bundle.Manifest.Version)
	}

	summary := Summary{
		Dir:          dir,
		SessionID:    bundle.Header.SessionID,
		VehicleID:    bundle.Header.VehicleID,
		TuningDigest: bundle.Header.TuningDigest,
		Events:       map[string]int{},
	}
	var (
		grounded    int
		distanceSum float64
		firstMs     int64
		lastMs      int64
	)
	//2.- Walk the timeline once, decoding frames and tallying events.
	err = bundle.Replay(func(entry replay.TimelineEntry) error {
		if entry.Type != replay.EntryFrame {
			summary.Events[entry.Type]++
			summary.EventSequence = append(summary.EventSequence, entry.Type)
			return nil
		}
		frame, err := telemetry.Decode(entry.Payload)
		if err != nil {
			return fmt.Errorf("tick %d: %w", entry.Tick, err)
		}
		if summary.Frames == 0 {
			summary.FirstTick = frame.Tick
			firstMs = frame.SimulatedMs
		} else {
			previous := summary.decodedFrames[len(summary.decodedFrames)-1]
			summary.PathLength += frame.Position.Sub(previous.Position).Len()
		}
		summary.Frames++
		summary.LastTick = frame.Tick
		lastMs = frame.SimulatedMs
		if frame.Grounded {
			grounded++
			distanceSum += frame.Distance
		}
		summary.MaxSpeed = math.Max(summary.MaxSpeed, math.Abs(frame.Speed))
		summary.FinalGauge = frame.BoostGauge
		summary.decodedFrames = append(summary.decodedFrames, frame)
		return nil
	})
	if err != nil {
		return Summary{}, err
	}
	if summary.Frames > 0 {
		summary.DurationMs = lastMs - firstMs
		summary.GroundedShare = float64(grounded) / float64(summary.Frames)
	}
	if grounded > 0 {
		summary.MeanDistance = distanceSum / float64(grounded)
	}
	return summary, nil
}

// EventTypes lists the recorded event types in alphabetical order.
func (s Summary) EventTypes() []string {
	types := make([]string, 0, len(s.Events))
	for eventType := range s.Events {
		types = append(types, eventType)
	}
	sort.Strings(types)
	return types
}
