package input

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Segment holds a constant control snapshot for a span of simulated time.
type Segment struct {
	Duration time.Duration `yaml:"duration"`
	Snapshot `yaml:",inline"`
}

// Script is an autopilot made of consecutive segments.
type Script struct {
	Name     string    `yaml:"name"`
	Loop     bool      `yaml:"loop"`
	Segments []Segment `yaml:"segments"`

	total time.Duration
}

var _ Source = (*Script)(nil)

// ParseScript decodes and validates a YAML autopilot definition.
func ParseScript(data []byte) (*Script, error) {
	script := &Script{}
	if err := yaml.Unmarshal(data, script); err != nil {
		return nil, fmt.Errorf("decode script: %w", err)
	}
	if err := script.Validate(); err != nil {
		return nil, err
	}
	return script, nil
}

// LoadScript reads an autopilot definition from disk.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script %s: %w", path, err)
	}
	return ParseScript(data)
}

// DefaultScript accelerates, carves left and right, boosts down the straight and brakes.
func DefaultScript() *Script {
	script := &Script{
		Name: "demo-lap",
		Loop: true,
		Segments: []Segment{
			{Duration: 2 * time.Second},
			{Duration: 4 * time.Second, Snapshot: Snapshot{Thruster: 1}},
			{Duration: 2 * time.Second, Snapshot: Snapshot{Thruster: 0.8, Rudder: -0.6}},
			{Duration: 2 * time.Second, Snapshot: Snapshot{Thruster: 0.8, Rudder: 0.6}},
			{Duration: 3 * time.Second, Snapshot: Snapshot{Thruster: 1, Boosting: true}},
			{Duration: 2 * time.Second, Snapshot: Snapshot{Braking: true}},
		},
	}
	_ = script.Validate()
	return script
}

// Validate checks every segment and caches the script length.
func (s *Script) Validate() error {
	if s == nil {
		return errors.New("script is nil")
	}
	var problems []string
	if len(s.Segments) == 0 {
		problems = append(problems, "script must contain at least one segment")
	}
	var total time.Duration
	for i, segment := range s.Segments {
		if segment.Duration <= 0 {
			problems = append(problems, fmt.Sprintf("segment %d duration must be positive", i))
		}
		if !segment.Snapshot.Valid() {
			problems = append(problems, fmt.Sprintf("segment %d controls out of range", i))
		}
		total += segment.Duration
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid script %q: %s", s.Name, strings.Join(problems, "; "))
	}
	s.total = total
	return nil
}

// Length returns the duration of one pass through the script.
func (s *Script) Length() time.Duration {
	if s == nil {
		return 0
	}
	return s.total
}

// Next implements Source. Past the end the script either wraps or idles.
func (s *Script) Next(elapsed time.Duration) Snapshot {
	if s == nil || s.total <= 0 || elapsed < 0 {
		return Snapshot{}
	}
	//1.- Fold the elapsed time into the script window.
	if elapsed >= s.total {
		if !s.Loop {
			return Snapshot{}
		}
		elapsed %= s.total
	}
	//2.- Walk the segments until the one covering the offset.
	for _, segment := range s.Segments {
		if elapsed < segment.Duration {
			return segment.Snapshot
		}
		elapsed -= segment.Duration
	}
	return Snapshot{}
}
