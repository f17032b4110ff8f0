package input

import (
	"sync"
	"time"

	"hovercar/core/internal/logging"
)

// Clock exposes the current time for rate limiting decisions.
type Clock interface {
	Now() time.Time
}

// systemClock relies on time.Now for production code paths.
type systemClock struct{}

// Now implements Clock by delegating to time.Now.
func (systemClock) Now() time.Time { return time.Now() }

// GateConfig controls the freshness and throughput gates applied to remote pilot frames.
type GateConfig struct {
	MaxAge      time.Duration
	MinInterval time.Duration
}

// DropReason enumerates why a frame was rejected by the gate.
type DropReason string

const (
	DropReasonNone        DropReason = ""
	DropReasonSequence    DropReason = "sequence"
	DropReasonStale       DropReason = "stale"
	DropReasonRateLimited DropReason = "rate_limit"
	DropReasonRange       DropReason = "range"
)

// String returns the textual representation of the drop reason.
func (r DropReason) String() string { return string(r) }

// Decision summarises whether a frame passed validation.
type Decision struct {
	Accepted bool
	Reason   DropReason
	Delay    time.Duration
}

// Frame is a control update sent by a remote pilot over the telemetry relay.
type Frame struct {
	PilotID  string    `json:"pilot_id"`
	Sequence uint64    `json:"sequence"`
	SentAt   time.Time `json:"sent_at"`
	Controls Snapshot  `json:"controls"`
}

type pilotState struct {
	lastSequence uint64
	lastAccepted time.Time
}

// DropCounters aggregates per-reason drop counts.
type DropCounters struct {
	Sequence    uint64 `json:"sequence"`
	Stale       uint64 `json:"stale"`
	RateLimited uint64 `json:"rate_limited"`
	Range       uint64 `json:"range"`
}

// Gate validates sequencing, freshness, throughput and control ranges for remote frames.
type Gate struct {
	mu     sync.Mutex
	cfg    GateConfig
	clock  Clock
	logger *logging.Logger
	pilots map[string]*pilotState
	drops  map[string]DropCounters
}

// Option customises gate construction.
type Option func(*Gate)

// WithClock overrides the clock used for latency calculations.
func WithClock(clock Clock) Option {
	return func(g *Gate) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// NewGate constructs a gate with the supplied configuration and logger.
func NewGate(cfg GateConfig, logger *logging.Logger, opts ...Option) *Gate {
	//1.- Normalise negative intervals to disable the corresponding checks gracefully.
	if cfg.MaxAge < 0 {
		cfg.MaxAge = 0
	}
	if cfg.MinInterval < 0 {
		cfg.MinInterval = 0
	}
	gate := &Gate{
		cfg:    cfg,
		clock:  systemClock{},
		logger: logger,
		pilots: make(map[string]*pilotState),
		drops:  make(map[string]DropCounters),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(gate)
		}
	}
	return gate
}

// Evaluate applies sequencing, freshness, throughput and range guards to the frame.
func (g *Gate) Evaluate(frame Frame) Decision {
	decision := Decision{Accepted: true}
	if g == nil || frame.PilotID == "" {
		return decision
	}
	now := g.clock.Now()
	if !frame.SentAt.IsZero() {
		//1.- Compute the wall-clock delay between capture and arrival for diagnostics.
		delay := now.Sub(frame.SentAt)
		if delay < 0 {
			delay = 0
		}
		decision.Delay = delay
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	state := g.pilots[frame.PilotID]
	if state == nil {
		state = &pilotState{}
		g.pilots[frame.PilotID] = state
	}

	switch {
	case frame.Sequence == 0 || (state.lastSequence != 0 && frame.Sequence <= state.lastSequence):
		decision = g.dropLocked(frame.PilotID, DropReasonSequence, decision.Delay)
	case !frame.Controls.Valid():
		//2.- Out-of-range analog values indicate a misbehaving client rather than noise.
		decision = g.dropLocked(frame.PilotID, DropReasonRange, decision.Delay)
	case state.lastSequence != 0 && g.cfg.MinInterval > 0 && now.Sub(state.lastAccepted) < g.cfg.MinInterval:
		decision = g.dropLocked(frame.PilotID, DropReasonRateLimited, decision.Delay)
	case g.cfg.MaxAge > 0 && decision.Delay > g.cfg.MaxAge:
		decision = g.dropLocked(frame.PilotID, DropReasonStale, decision.Delay)
	default:
		//3.- Promote the frame as the latest accepted event when it passes all gates.
		state.lastSequence = frame.Sequence
		state.lastAccepted = now
	}
	return decision
}

func (g *Gate) dropLocked(pilotID string, reason DropReason, delay time.Duration) Decision {
	counters := g.drops[pilotID]
	switch reason {
	case DropReasonSequence:
		counters.Sequence++
	case DropReasonStale:
		counters.Stale++
	case DropReasonRateLimited:
		counters.RateLimited++
	case DropReasonRange:
		counters.Range++
	}
	g.drops[pilotID] = counters
	g.logger.Debug("pilot frame dropped", logging.String("pilot_id", pilotID), logging.String("reason", reason.String()))
	return Decision{Accepted: false, Reason: reason, Delay: delay}
}

// Forget clears cached sequencing and counters for a disconnected pilot.
func (g *Gate) Forget(pilotID string) {
	if g == nil || pilotID == "" {
		return
	}
	g.mu.Lock()
	delete(g.pilots, pilotID)
	delete(g.drops, pilotID)
	g.mu.Unlock()
}

// Metrics returns a snapshot of the latest drop counters.
func (g *Gate) Metrics() map[string]DropCounters {
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.drops) == 0 {
		return nil
	}
	clone := make(map[string]DropCounters, len(g.drops))
	for pilotID, counters := range g.drops {
		clone[pilotID] = counters
	}
	return clone
}
