package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix namespaces every environment override, e.g. HOVER_TICK_RATE_HZ.
	EnvPrefix = "HOVER"

	// DefaultTickRateHz is the fixed physics rate of the simulation host.
	DefaultTickRateHz = 50
	// DefaultTelemetryAddr is where the websocket telemetry relay listens.
	DefaultTelemetryAddr = ":43127"
	// DefaultHealthAddr is where the gRPC health service listens.
	DefaultHealthAddr = ":43128"
	// DefaultPingInterval controls the keepalive cadence for relay viewers.
	DefaultPingInterval = 30 * time.Second
	// DefaultMaxViewers bounds concurrent relay viewers. Zero disables the limit.
	DefaultMaxViewers = 64
	// DefaultConnectsPerMinute bounds relay connection attempts per remote host.
	DefaultConnectsPerMinute = 30
	// DefaultPilotTokenLeeway absorbs clock skew when checking pilot token expiry.
	DefaultPilotTokenLeeway = 5 * time.Second

	// DefaultReplayDir is where telemetry bundles are written.
	DefaultReplayDir = "replays"
	// DefaultReplayMaxSessions bounds how many recorded sessions are kept on disk.
	DefaultReplayMaxSessions = 20

	// DefaultLogLevel controls verbosity for host logs.
	DefaultLogLevel = "info"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true
)

// Config captures all runtime tunables for the simulation host.
type Config struct {
	TickRateHz    int            `mapstructure:"tick_rate_hz"`
	Duration      time.Duration  `mapstructure:"duration"`
	TuningPath    string         `mapstructure:"tuning_path"`
	ScriptPath    string         `mapstructure:"script_path"`
	TelemetryAddr string         `mapstructure:"telemetry_addr"`
	HealthAddr    string         `mapstructure:"health_addr"`
	PingInterval  time.Duration  `mapstructure:"ping_interval"`
	MaxViewers    int            `mapstructure:"max_viewers"`
	Security      SecurityConfig `mapstructure:"security"`
	Replay        ReplayConfig   `mapstructure:"replay"`
	Logging       LoggingConfig  `mapstructure:"logging"`
}

// SecurityConfig guards the relay and the admin endpoints.
type SecurityConfig struct {
	// PilotSecret signs pilot tokens; empty lets any viewer pilot.
	PilotSecret string `mapstructure:"pilot_secret"`
	// PilotTokenLeeway tolerates clock skew on token expiry.
	PilotTokenLeeway time.Duration `mapstructure:"pilot_token_leeway"`
	// AdminToken guards the replay flush endpoint; empty disables it.
	AdminToken string `mapstructure:"admin_token"`
	// ConnectsPerMinute bounds relay connection attempts per host; zero disables the limit.
	ConnectsPerMinute int `mapstructure:"connects_per_minute"`
}

// ReplayConfig controls telemetry recording.
type ReplayConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Dir         string        `mapstructure:"dir"`
	MaxSessions int           `mapstructure:"max_sessions"`
	MaxAge      time.Duration `mapstructure:"max_age"`
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Step returns the fixed physics timestep implied by the tick rate.
func (c *Config) Step() time.Duration {
	if c == nil || c.TickRateHz <= 0 {
		return time.Second / DefaultTickRateHz
	}
	return time.Second / time.Duration(c.TickRateHz)
}

// Load reads the host configuration from defaults, an optional config file and HOVER_*
// environment variables, returning every validation problem at once.
func Load(path string) (*Config, error) {
	v := viper.New()
	//1.- Register defaults so every key is known to the environment binding.
	v.SetDefault("tick_rate_hz", DefaultTickRateHz)
	v.SetDefault("duration", time.Duration(0))
	v.SetDefault("tuning_path", "")
	v.SetDefault("script_path", "")
	v.SetDefault("telemetry_addr", DefaultTelemetryAddr)
	v.SetDefault("health_addr", DefaultHealthAddr)
	v.SetDefault("ping_interval", DefaultPingInterval)
	v.SetDefault("max_viewers", DefaultMaxViewers)
	v.SetDefault("security.pilot_secret", "")
	v.SetDefault("security.pilot_token_leeway", DefaultPilotTokenLeeway)
	v.SetDefault("security.admin_token", "")
	v.SetDefault("security.connects_per_minute", DefaultConnectsPerMinute)
	v.SetDefault("replay.enabled", true)
	v.SetDefault("replay.dir", DefaultReplayDir)
	v.SetDefault("replay.max_sessions", DefaultReplayMaxSessions)
	v.SetDefault("replay.max_age", time.Duration(0))
	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.max_size_mb", DefaultLogMaxSizeMB)
	v.SetDefault("logging.max_backups", DefaultLogMaxBackups)
	v.SetDefault("logging.max_age_days", DefaultLogMaxAgeDays)
	v.SetDefault("logging.compress", DefaultLogCompress)

	//2.- Environment variables override both defaults and the file.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.TelemetryAddr = strings.TrimSpace(cfg.TelemetryAddr)
	cfg.HealthAddr = strings.TrimSpace(cfg.HealthAddr)
	cfg.TuningPath = strings.TrimSpace(cfg.TuningPath)
	cfg.ScriptPath = strings.TrimSpace(cfg.ScriptPath)
	cfg.Security.PilotSecret = strings.TrimSpace(cfg.Security.PilotSecret)
	cfg.Security.AdminToken = strings.TrimSpace(cfg.Security.AdminToken)
	cfg.Logging.Level = strings.TrimSpace(cfg.Logging.Level)
	cfg.Logging.Path = strings.TrimSpace(cfg.Logging.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting joined into one error.
func (c *Config) Validate() error {
	var problems []string
	if c.TickRateHz <= 0 {
		problems = append(problems, fmt.Sprintf("HOVER_TICK_RATE_HZ must be a positive integer, got %d", c.TickRateHz))
	}
	if c.Duration < 0 {
		problems = append(problems, fmt.Sprintf("HOVER_DURATION must be non-negative, got %v", c.Duration))
	}
	if c.PingInterval <= 0 {
		problems = append(problems, fmt.Sprintf("HOVER_PING_INTERVAL must be a positive duration, got %v", c.PingInterval))
	}
	for _, listener := range []struct{ name, addr string }{
		{"HOVER_TELEMETRY_ADDR", c.TelemetryAddr},
		{"HOVER_HEALTH_ADDR", c.HealthAddr},
	} {
		if listener.addr == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(listener.addr); err != nil {
			problems = append(problems, fmt.Sprintf("%s must be host:port or empty to disable it, got %q", listener.name, listener.addr))
		}
	}
	if c.MaxViewers < 0 {
		problems = append(problems, fmt.Sprintf("HOVER_MAX_VIEWERS must be a non-negative integer, got %d", c.MaxViewers))
	}
	if c.Security.PilotTokenLeeway < 0 {
		problems = append(problems, fmt.Sprintf("HOVER_SECURITY_PILOT_TOKEN_LEEWAY must be non-negative, got %v", c.Security.PilotTokenLeeway))
	}
	if c.Security.ConnectsPerMinute < 0 {
		problems = append(problems, fmt.Sprintf("HOVER_SECURITY_CONNECTS_PER_MINUTE must be a non-negative integer, got %d", c.Security.ConnectsPerMinute))
	}
	if c.Replay.Enabled && strings.TrimSpace(c.Replay.Dir) == "" {
		problems = append(problems, "HOVER_REPLAY_DIR must be set when recording is enabled")
	}
	if c.Replay.MaxSessions < 0 {
		problems = append(problems, fmt.Sprintf("HOVER_REPLAY_MAX_SESSIONS must be a non-negative integer, got %d", c.Replay.MaxSessions))
	}
	if c.Replay.MaxAge < 0 {
		problems = append(problems, fmt.Sprintf("HOVER_REPLAY_MAX_AGE must be non-negative, got %v", c.Replay.MaxAge))
	}
	if c.Logging.MaxSizeMB <= 0 {
		problems = append(problems, fmt.Sprintf("HOVER_LOGGING_MAX_SIZE_MB must be a positive integer, got %d", c.Logging.MaxSizeMB))
	}
	if c.Logging.MaxBackups < 0 {
		problems = append(problems, fmt.Sprintf("HOVER_LOGGING_MAX_BACKUPS must be a non-negative integer, got %d", c.Logging.MaxBackups))
	}
	if c.Logging.MaxAgeDays < 0 {
		problems = append(problems, fmt.Sprintf("HOVER_LOGGING_MAX_AGE_DAYS must be a non-negative integer, got %d", c.Logging.MaxAgeDays))
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
