package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.TickRateHz != DefaultTickRateHz {
		t.Fatalf("expected default tick rate %d, got %d", DefaultTickRateHz, cfg.TickRateHz)
	}
	if cfg.Step() != 20*time.Millisecond {
		t.Fatalf("expected 20ms step, got %v", cfg.Step())
	}
	if cfg.TelemetryAddr != DefaultTelemetryAddr || cfg.HealthAddr != DefaultHealthAddr {
		t.Fatalf("unexpected listener defaults: telemetry=%q health=%q", cfg.TelemetryAddr, cfg.HealthAddr)
	}
	if cfg.PingInterval != DefaultPingInterval {
		t.Fatalf("expected default ping interval %v, got %v", DefaultPingInterval, cfg.PingInterval)
	}
	if !cfg.Replay.Enabled || cfg.Replay.Dir != DefaultReplayDir || cfg.Replay.MaxSessions != DefaultReplayMaxSessions || cfg.Replay.MaxAge != 0 {
		t.Fatalf("unexpected replay defaults: %+v", cfg.Replay)
	}
	if cfg.Security.PilotSecret != "" || cfg.Security.AdminToken != "" || cfg.Security.ConnectsPerMinute != DefaultConnectsPerMinute || cfg.Security.PilotTokenLeeway != DefaultPilotTokenLeeway {
		t.Fatalf("unexpected security defaults: %+v", cfg.Security)
	}
	if cfg.Logging.Level != DefaultLogLevel || cfg.Logging.Path != "" || !cfg.Logging.Compress {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("HOVER_TICK_RATE_HZ", "100")
	t.Setenv("HOVER_DURATION", "90s")
	t.Setenv("HOVER_TELEMETRY_ADDR", "127.0.0.1:9000")
	t.Setenv("HOVER_REPLAY_ENABLED", "false")
	t.Setenv("HOVER_LOGGING_LEVEL", "debug")
	t.Setenv("HOVER_SECURITY_PILOT_SECRET", "  s3cret ")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.TickRateHz != 100 || cfg.Step() != 10*time.Millisecond {
		t.Fatalf("unexpected tick rate %d step %v", cfg.TickRateHz, cfg.Step())
	}
	if cfg.Duration != 90*time.Second {
		t.Fatalf("expected 90s duration, got %v", cfg.Duration)
	}
	if cfg.TelemetryAddr != "127.0.0.1:9000" {
		t.Fatalf("unexpected telemetry address: %q", cfg.TelemetryAddr)
	}
	if cfg.Replay.Enabled {
		t.Fatalf("expected recording to be disabled")
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected debug logging, got %q", cfg.Logging.Level)
	}
	if cfg.Security.PilotSecret != "s3cret" {
		t.Fatalf("expected trimmed pilot secret, got %q", cfg.Security.PilotSecret)
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hoversim.yaml")
	content := "tick_rate_hz: 60\nscript_path: laps.yaml\nreplay:\n  dir: /tmp/hover\nlogging:\n  max_backups: 3\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("HOVER_TICK_RATE_HZ", "120")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	//1.- The environment wins over the file, the file wins over defaults.
	if cfg.TickRateHz != 120 {
		t.Fatalf("expected env override 120, got %d", cfg.TickRateHz)
	}
	if cfg.ScriptPath != "laps.yaml" || cfg.Replay.Dir != "/tmp/hover" || cfg.Logging.MaxBackups != 3 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
}

func TestLoadReturnsValidationErrors(t *testing.T) {
	t.Setenv("HOVER_TICK_RATE_HZ", "0")
	t.Setenv("HOVER_DURATION", "-1s")
	t.Setenv("HOVER_MAX_VIEWERS", "-1")
	t.Setenv("HOVER_LOGGING_MAX_SIZE_MB", "0")
	t.Setenv("HOVER_SECURITY_CONNECTS_PER_MINUTE", "-5")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, fragment := range []string{"HOVER_TICK_RATE_HZ", "HOVER_DURATION", "HOVER_MAX_VIEWERS", "HOVER_LOGGING_MAX_SIZE_MB", "HOVER_SECURITY_CONNECTS_PER_MINUTE"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected error to mention %s, got %v", fragment, err)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected missing config file to fail")
	}
}

func TestLoadBlankListenerAddressesDisableListeners(t *testing.T) {
	t.Setenv("HOVER_TELEMETRY_ADDR", "   ")
	t.Setenv("HOVER_HEALTH_ADDR", " 127.0.0.1:9001 ")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.TelemetryAddr != "" {
		t.Fatalf("expected blank telemetry address to disable the relay, got %q", cfg.TelemetryAddr)
	}
	if cfg.HealthAddr != "127.0.0.1:9001" {
		t.Fatalf("expected trimmed health address, got %q", cfg.HealthAddr)
	}
}

func TestLoadRejectsListenerAddressWithoutPort(t *testing.T) {
	t.Setenv("HOVER_HEALTH_ADDR", "localhost")

	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "HOVER_HEALTH_ADDR") {
		t.Fatalf("expected health address validation error, got %v", err)
	}
}
