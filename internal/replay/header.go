package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// HeaderSchemaVersion tracks the schema version for replay header documents.
const HeaderSchemaVersion = 1

// Header represents the metadata persisted alongside a telemetry bundle.
type Header struct {
	SchemaVersion int    `json:"schema_version"`
	SessionID     string `json:"session_id"`
	VehicleID     string `json:"vehicle_id,omitempty"`
	TuningName    string `json:"tuning_name,omitempty"`
	TuningDigest  string `json:"tuning_digest,omitempty"`
	TickRateHz    int    `json:"tick_rate_hz,omitempty"`
	Frames        int    `json:"frames"`
	Events        int    `json:"events"`
	FilePointer   string `json:"file_pointer"`
}

// Validate reports every problem that would stop the player from opening the bundle.
func (h Header) Validate() error {
	var problems []string
	if h.SchemaVersion <= 0 {
		problems = append(problems, "schema_version must be positive")
	}
	//1.- Tooling locates the manifest through the pointer.
	if strings.TrimSpace(h.FilePointer) == "" {
		problems = append(problems, "file_pointer must not be empty")
	}
	if h.Frames < 0 || h.Events < 0 {
		problems = append(problems, "frame and event counts must be non-negative")
	}
	if h.TickRateHz < 0 {
		problems = append(problems, fmt.Sprintf("tick_rate_hz must be non-negative, got %d", h.TickRateHz))
	}
	if len(problems) > 0 {
		return errors.New("invalid replay header: " + strings.Join(problems, "; "))
	}
	return nil
}

// Duration is the simulated time covered by the recorded frames, one frame per tick. It
// is zero when the tick rate is unknown.
func (h Header) Duration() time.Duration {
	if h.TickRateHz <= 0 {
		return 0
	}
	return time.Duration(h.Frames) * time.Second / time.Duration(h.TickRateHz)
}

// WriteHeader persists the supplied header to the provided file path.
func WriteHeader(path string, header Header) error {
	if err := header.Validate(); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(header, "", "  ")
	if err != nil {
		return fmt.Errorf("encode replay header: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create header directory: %w", err)
	}
	return os.WriteFile(path, append(payload, '\n'), 0o644)
}

// ReadHeader loads and decodes a replay header from disk.
func ReadHeader(path string) (Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Header{}, fmt.Errorf("read replay header: %w", err)
	}
	var header Header
	if err := json.Unmarshal(data, &header); err != nil {
		return Header{}, fmt.Errorf("decode replay header %s: %w", path, err)
	}
	if err := header.Validate(); err != nil {
		return Header{}, err
	}
	return header, nil
}
