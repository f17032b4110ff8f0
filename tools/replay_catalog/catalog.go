// Package replaycatalog indexes recorded telemetry sessions by their bundle headers.
package replaycatalog

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"hovercar/core/internal/replay"
)

// Entry captures a session header alongside its resolved bundle directory.
type Entry struct {
	HeaderPath string        `json:"header_path"`
	BundleDir  string        `json:"bundle_dir"`
	Duration   time.Duration `json:"duration"`
	Header     replay.Header `json:"header"`
}

// Filter narrows a listing; empty fields match everything.
type Filter struct {
	VehicleID    string
	TuningDigest string
}

func (f Filter) match(header replay.Header) bool {
	if f.VehicleID != "" && header.VehicleID != f.VehicleID {
		return false
	}
	return f.TuningDigest == "" || header.TuningDigest == f.TuningDigest
}

// TuningSummary aggregates every session recorded with one tuning table.
type TuningSummary struct {
	TuningName   string        `json:"tuning_name"`
	TuningDigest string        `json:"tuning_digest"`
	Sessions     int           `json:"sessions"`
	Frames       int           `json:"frames"`
	Events       int           `json:"events"`
	Recorded     time.Duration `json:"recorded"`
}

// List walks root for session headers that pass filter, ordered by vehicle and then by
// bundle directory.
func List(root string, filter Filter) ([]Entry, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("root directory must be provided")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat catalog root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("catalog root %s is not a directory", root)
	}

	var entries []Entry
	//1.- Every header.json marks one bundle; anything else in the tree is ignored.
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || d.Name() != replay.HeaderFile {
			return nil
		}
		header, err := replay.ReadHeader(path)
		if err != nil {
			return err
		}
		if !filter.match(header) {
			return nil
		}
		entries = append(entries, Entry{
			HeaderPath: path,
			BundleDir:  filepath.Dir(path),
			Duration:   header.Duration(),
			Header:     header,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	//2.- Group by vehicle; bundle names end in their UTC start time.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Header.VehicleID != entries[j].Header.VehicleID {
			return entries[i].Header.VehicleID < entries[j].Header.VehicleID
		}
		return entries[i].BundleDir < entries[j].BundleDir
	})
	return entries, nil
}

// Summarise groups entries by tuning digest, largest recorded time first.
func Summarise(entries []Entry) []TuningSummary {
	byDigest := make(map[string]*TuningSummary)
	for _, entry := range entries {
		summary := byDigest[entry.Header.TuningDigest]
		if summary == nil {
			summary = &TuningSummary{TuningName: entry.Header.TuningName, TuningDigest: entry.Header.TuningDigest}
			byDigest[entry.Header.TuningDigest] = summary
		}
		summary.Sessions++
		summary.Frames += entry.Header.Frames
		summary.Events += entry.Header.Events
		summary.Recorded += entry.Duration
	}
	summaries := make([]TuningSummary, 0, len(byDigest))
	for _, summary := range byDigest {
		summaries = append(summaries, *summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Recorded != summaries[j].Recorded {
			return summaries[i].Recorded > summaries[j].Recorded
		}
		return summaries[i].TuningDigest < summaries[j].TuningDigest
	})
	return summaries
}

// MarshalEntries produces a stable JSON representation of the entries for CLI output.
func MarshalEntries(entries []Entry) ([]byte, error) {
	return json.MarshalIndent(entries, "", "  ")
}
