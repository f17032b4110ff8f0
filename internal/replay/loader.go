package replay

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// ErrChecksumMismatch is returned when a recorded frame does not match its checksum.
var ErrChecksumMismatch = errors.New("replay: frame checksum mismatch")

// EntryFrame marks timeline entries that carry an encoded telemetry frame.
const EntryFrame = "frame"

// TimelineEntry represents a single replay datum ready for deterministic iteration.
type TimelineEntry struct {
	Tick        uint64
	SimulatedMs int64
	CapturedAt  time.Time
	Type        string
	Payload     []byte
}

// Bundle is a recorded session loaded back from disk.
type Bundle struct {
	Dir      string
	Manifest Manifest
	Header   Header
	entries  []TimelineEntry
}

// Load reads the manifest, header, events and frames of the session directory and verifies
// every frame checksum.
func Load(dir string) (*Bundle, error) {
	if dir == "" {
		return nil, fmt.Errorf("replay path must be provided")
	}
	bundle := &Bundle{Dir: dir}
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &bundle.Manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if bundle.Header, err = ReadHeader(filepath.Join(dir, HeaderFile)); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	//1.- Rehydrate the event log first so transitions sort ahead of frames on the same tick.
	events, err := readEvents(filepath.Join(dir, bundle.Manifest.EventsPath))
	if err != nil {
		return nil, err
	}
	frames, err := readFrames(filepath.Join(dir, bundle.Manifest.FramesPath))
	if err != nil {
		return nil, err
	}
	entries := append(events, frames...)
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Tick == entries[j].Tick {
			return entries[i].Type != EntryFrame && entries[j].Type == EntryFrame
		}
		return entries[i].Tick < entries[j].Tick
	})
	bundle.entries = entries
	return bundle, nil
}

func readEvents(path string) ([]TimelineEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var entries []TimelineEntry
	scanner := bufio.NewScanner(snappy.NewReader(file))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var record eventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("decode event %d: %w", len(entries), err)
		}
		captured, err := time.Parse(time.RFC3339Nano, record.CapturedAt)
		if err != nil {
			return nil, fmt.Errorf("parse event captured_at: %w", err)
		}
		entries = append(entries, TimelineEntry{
			Tick:        record.Tick,
			SimulatedMs: record.SimulatedMs,
			CapturedAt:  captured,
			Type:        record.Type,
			Payload:     append([]byte(nil), record.Payload...),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return entries, nil
}

func readFrames(path string) ([]TimelineEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	decoder, err := zstd.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()

	var entries []TimelineEntry
	header := make([]byte, frameHeaderSize)
	for {
		//1.- A clean end of stream lands exactly on a frame boundary.
		if _, err := io.ReadFull(decoder, header); err != nil {
			if errors.Is(err, io.EOF) {
				return entries, nil
			}
			return nil, fmt.Errorf("read frame %d header: %w", len(entries), err)
		}
		tick := binary.LittleEndian.Uint64(header[0:8])
		size := binary.LittleEndian.Uint32(header[32:36])
		if size > MaxFramePayload {
			return nil, fmt.Errorf("%w: tick %d declares %d bytes", ErrFrameTooLarge, tick, size)
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(decoder, payload); err != nil {
			return nil, fmt.Errorf("read frame %d payload: %w", tick, err)
		}
		//2.- Reject frames whose bytes changed since they were recorded.
		if xxhash.Sum64(payload) != binary.LittleEndian.Uint64(header[24:32]) {
			return nil, fmt.Errorf("%w: tick %d", ErrChecksumMismatch, tick)
		}
		entries = append(entries, TimelineEntry{
			Tick:        tick,
			SimulatedMs: int64(binary.LittleEndian.Uint64(header[8:16])),
			CapturedAt:  time.Unix(0, int64(binary.LittleEndian.Uint64(header[16:24]))).UTC(),
			Type:        EntryFrame,
			Payload:     payload,
		})
	}
}

// Replay iterates over the loaded entries in tick order.
func (b *Bundle) Replay(apply func(TimelineEntry) error) error {
	if b == nil {
		return fmt.Errorf("bundle not loaded")
	}
	if apply == nil {
		return fmt.Errorf("replay callback must be provided")
	}
	for _, entry := range b.entries {
		if err := apply(entry); err != nil {
			return err
		}
	}
	return nil
}

// Entries exposes a copy of the timeline for external assertions.
func (b *Bundle) Entries() []TimelineEntry {
	if b == nil {
		return nil
	}
	out := make([]TimelineEntry, len(b.entries))
	copy(out, b.entries)
	return out
}
