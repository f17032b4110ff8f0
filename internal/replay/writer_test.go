package replay

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

func newTestWriter(t *testing.T) (*Writer, Manifest, *time.Time) {
	t.Helper()
	now := time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC)
	writer, manifest, err := NewWriter(t.TempDir(), "Test Session!", func() time.Time { return now })
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	return writer, manifest, &now
}

func TestWriterAppendAndFlushCadence(t *testing.T) {
	writer, manifest, now := newTestWriter(t)
	writer.SetHeaderMetadata("car-1", "hovercar", "abc", 50)

	if manifest.FrameIntervalMs != 200 || manifest.SessionID != "Test Session!" {
		t.Fatalf("unexpected manifest: %+v", manifest)
	}
	if base := filepath.Base(writer.Directory()); base != "TestSession-20240710T120000Z" {
		t.Fatalf("unexpected session directory %q", base)
	}
	if err := writer.AppendEvent(10, 200, EventGrounded, json.RawMessage(`{"distance":1}`)); err != nil {
		t.Fatalf("append event: %v", err)
	}

	payload := []byte{0x01, 0x02, 0x03}
	//1.- The first frame anchors the cadence and the second stays buffered.
	for i, step := range []time.Duration{0, 100 * time.Millisecond} {
		*now = now.Add(step)
		if err := writer.AppendFrame(uint64(i+1), int64(i+1)*20, payload); err != nil {
			t.Fatalf("append frame %d: %v", i+1, err)
		}
	}
	if writer.frames != 0 || len(writer.pending) != 2 {
		t.Fatalf("expected two pending frames, got %d pending and %d written", len(writer.pending), writer.frames)
	}
	//2.- Crossing the interval flushes the whole batch.
	*now = now.Add(120 * time.Millisecond)
	if err := writer.AppendFrame(3, 60, payload); err != nil {
		t.Fatalf("append frame 3: %v", err)
	}
	if writer.frames != 3 || len(writer.pending) != 0 {
		t.Fatalf("expected cadence flush, got %d pending and %d written", len(writer.pending), writer.frames)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("second close should be a no-op: %v", err)
	}
	if err := writer.AppendFrame(4, 80, payload); !errors.Is(err, ErrWriterClosed) {
		t.Fatalf("expected closed writer error, got %v", err)
	}

	eventFile, err := os.Open(filepath.Join(writer.Directory(), EventsFile))
	if err != nil {
		t.Fatalf("open events: %v", err)
	}
	defer eventFile.Close()
	eventData, err := io.ReadAll(snappy.NewReader(eventFile))
	if err != nil {
		t.Fatalf("read events: %v", err)
	}
	var record eventRecord
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(eventData))), &record); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if record.Type != EventGrounded || record.Tick != 10 || string(record.Payload) != `{"distance":1}` {
		t.Fatalf("unexpected event record: %+v", record)
	}

	frameFile, err := os.Open(filepath.Join(writer.Directory(), FramesFile))
	if err != nil {
		t.Fatalf("open frames: %v", err)
	}
	defer frameFile.Close()
	decoder, err := zstd.NewReader(frameFile)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer decoder.Close()
	raw, err := io.ReadAll(decoder)
	if err != nil {
		t.Fatalf("read frames: %v", err)
	}
	if len(raw) != 3*(frameHeaderSize+len(payload)) {
		t.Fatalf("unexpected frame stream length %d", len(raw))
	}
	if tick := binary.LittleEndian.Uint64(raw[0:8]); tick != 1 {
		t.Fatalf("unexpected first tick %d", tick)
	}

	header, err := ReadHeader(filepath.Join(writer.Directory(), HeaderFile))
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	if header.Frames != 3 || header.Events != 1 || header.TuningDigest != "abc" || header.TickRateHz != 50 {
		t.Fatalf("unexpected header: %+v", header)
	}
}

func TestLoadMergesEventsAndFrames(t *testing.T) {
	writer, _, _ := newTestWriter(t)
	for tick := uint64(1); tick <= 3; tick++ {
		if err := writer.AppendFrame(tick, int64(tick)*20, []byte{byte(tick)}); err != nil {
			t.Fatalf("append frame: %v", err)
		}
	}
	if err := writer.AppendEvent(2, 40, EventAirborne, nil); err != nil {
		t.Fatalf("append event: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	bundle, err := Load(writer.Directory())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	var order []string
	err = bundle.Replay(func(entry TimelineEntry) error {
		order = append(order, entry.Type)
		return nil
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	expected := []string{EntryFrame, EventAirborne, EntryFrame, EntryFrame}
	if strings.Join(order, ",") != strings.Join(expected, ",") {
		t.Fatalf("unexpected order %v", order)
	}
	entries := bundle.Entries()
	if entries[3].Tick != 3 || entries[3].Payload[0] != 3 || entries[3].SimulatedMs != 60 {
		t.Fatalf("unexpected last entry %+v", entries[3])
	}
	if bundle.Header.Frames != 3 || bundle.Manifest.FramesPath != FramesFile {
		t.Fatalf("unexpected bundle metadata %+v %+v", bundle.Header, bundle.Manifest)
	}
}

func TestLoadRejectsCorruptedFrames(t *testing.T) {
	writer, _, _ := newTestWriter(t)
	if err := writer.AppendFrame(1, 20, []byte("intact")); err != nil {
		t.Fatalf("append frame: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	//1.- Rewrite the frame stream with one payload byte flipped.
	path := filepath.Join(writer.Directory(), FramesFile)
	compressed, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read frames: %v", err)
	}
	decoder, _ := zstd.NewReader(nil)
	raw, err := decoder.DecodeAll(compressed, nil)
	decoder.Close()
	if err != nil {
		t.Fatalf("decode frames: %v", err)
	}
	raw[len(raw)-1] ^= 0xff
	encoder, _ := zstd.NewWriter(nil)
	tampered := encoder.EncodeAll(raw, nil)
	encoder.Close()
	if err := os.WriteFile(path, tampered, 0o644); err != nil {
		t.Fatalf("write frames: %v", err)
	}

	if _, err := Load(writer.Directory()); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected checksum mismatch, got %v", err)
	}
}

func TestLoadRejectsOversizedFrameLength(t *testing.T) {
	writer, _, _ := newTestWriter(t)
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	//1.- A frame header that claims an absurd payload must fail before allocating it.
	header := make([]byte, frameHeaderSize)
	binary.LittleEndian.PutUint64(header[0:8], 7)
	binary.LittleEndian.PutUint32(header[32:36], 0xffffffff)
	encoder, _ := zstd.NewWriter(nil)
	forged := encoder.EncodeAll(header, nil)
	encoder.Close()
	if err := os.WriteFile(filepath.Join(writer.Directory(), FramesFile), forged, 0o644); err != nil {
		t.Fatalf("write frames: %v", err)
	}

	_, err := Load(writer.Directory())
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected oversized frame error, got %v", err)
	}
	if !strings.Contains(err.Error(), "tick 7") {
		t.Fatalf("expected the tick in the error, got %v", err)
	}
}

func TestWriterRejectsOversizedFrame(t *testing.T) {
	writer, _, _ := newTestWriter(t)
	defer writer.Close()
	if err := writer.AppendFrame(1, 20, make([]byte, MaxFramePayload+1)); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected oversized frame error, got %v", err)
	}
	if err := writer.AppendFrame(2, 40, make([]byte, 16)); err != nil {
		t.Fatalf("append regular frame: %v", err)
	}
}
