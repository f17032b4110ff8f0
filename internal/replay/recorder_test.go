package replay

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"hovercar/core/internal/logging"
	"hovercar/core/internal/telemetry"
)

func TestRecorderDerivesContactTransitions(t *testing.T) {
	now := time.Date(2024, 7, 12, 8, 0, 0, 0, time.UTC)
	writer, _, err := NewWriter(t.TempDir(), "laps", func() time.Time { return now })
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	recorder, err := NewRecorder(writer, logging.NewTestLogger())
	if err != nil {
		t.Fatalf("create recorder: %v", err)
	}

	grounded := []bool{true, true, false, false, true}
	for i, contact := range grounded {
		frame := telemetry.Frame{
			VehicleID:   "car-1",
			Tick:        uint64(i + 1),
			SimulatedMs: int64(i+1) * 20,
			Rotation:    mgl64.QuatIdent(),
			Grounded:    contact,
			Distance:    1,
		}
		if err := recorder.RecordFrame(frame); err != nil {
			t.Fatalf("record frame %d: %v", i+1, err)
		}
	}
	if err := recorder.RecordEvent(5, 100, EventWallCorrection, map[string]float64{"impulse": 2}); err != nil {
		t.Fatalf("record event: %v", err)
	}

	stats := recorder.Snapshot()
	if stats.Frames != 5 || stats.Events != 4 || stats.LastTick != 5 || stats.Errors != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if err := recorder.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	bundle, err := Load(stats.Directory)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	var events []string
	var decoded []telemetry.Frame
	err = bundle.Replay(func(entry TimelineEntry) error {
		if entry.Type != EntryFrame {
			events = append(events, entry.Type)
			return nil
		}
		frame, err := telemetry.Decode(entry.Payload)
		decoded = append(decoded, frame)
		return err
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	expected := []string{EventGrounded, EventAirborne, EventGrounded, EventWallCorrection}
	if len(events) != len(expected) {
		t.Fatalf("unexpected events %v", events)
	}
	for i := range expected {
		if events[i] != expected[i] {
			t.Fatalf("unexpected events %v", events)
		}
	}
	if len(decoded) != 5 || decoded[2].Grounded || decoded[4].VehicleID != "car-1" {
		t.Fatalf("unexpected decoded frames %+v", decoded)
	}

	var payload map[string]float64
	entries := bundle.Entries()
	for _, entry := range entries {
		if entry.Type == EventWallCorrection {
			if err := json.Unmarshal(entry.Payload, &payload); err != nil {
				t.Fatalf("decode payload: %v", err)
			}
		}
	}
	if payload["impulse"] != 2 {
		t.Fatalf("unexpected wall payload %v", payload)
	}
}

func TestRecorderRequiresWriter(t *testing.T) {
	if _, err := NewRecorder(nil, nil); err == nil {
		t.Fatalf("expected missing writer error")
	}
	var recorder *Recorder
	if err := recorder.RecordFrame(telemetry.Frame{}); err != nil {
		t.Fatalf("nil recorder should ignore frames: %v", err)
	}
}
