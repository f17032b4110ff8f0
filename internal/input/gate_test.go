package input

import (
	"sync"
	"testing"
	"time"

	"hovercar/core/internal/logging"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// 1.- Now returns the configured timestamp for deterministic gate decisions.
func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// 2.- Advance moves the internal clock forward to simulate elapsed time.
func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

var pilotGate = GateConfig{MaxAge: 250 * time.Millisecond, MinInterval: time.Second / 60}

func TestGateRejectsNonMonotonicSequence(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	gate := NewGate(pilotGate, logging.NewTestLogger(), WithClock(clock))

	//1.- Accept the initial frame to seed pilot state.
	first := gate.Evaluate(Frame{PilotID: "pilot-1", Sequence: 1})
	if !first.Accepted {
		t.Fatalf("first frame unexpectedly rejected: %+v", first)
	}

	//2.- Replay the previous sequence which should be rejected as out-of-order.
	clock.Advance(time.Second)
	second := gate.Evaluate(Frame{PilotID: "pilot-1", Sequence: 1})
	if second.Accepted || second.Reason != DropReasonSequence {
		t.Fatalf("expected sequence drop, got %+v", second)
	}

	if metrics := gate.Metrics(); metrics["pilot-1"].Sequence != 1 {
		t.Fatalf("sequence drops = %d, want 1", metrics["pilot-1"].Sequence)
	}
}

func TestGateRejectsStaleFrames(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	gate := NewGate(pilotGate, logging.NewTestLogger(), WithClock(clock))

	//1.- A frame captured long before it arrived is discarded.
	sentAt := clock.Now()
	clock.Advance(600 * time.Millisecond)
	stale := gate.Evaluate(Frame{PilotID: "pilot", Sequence: 1, SentAt: sentAt})
	if stale.Accepted || stale.Reason != DropReasonStale {
		t.Fatalf("expected stale drop, got %+v", stale)
	}
	if stale.Delay != 600*time.Millisecond {
		t.Fatalf("delay = %v, want 600ms", stale.Delay)
	}

	if metrics := gate.Metrics()["pilot"]; metrics.Stale != 1 {
		t.Fatalf("stale drops = %d, want 1", metrics.Stale)
	}
}

func TestGateRateLimitsHighFrequencyFrames(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	gate := NewGate(pilotGate, logging.NewTestLogger(), WithClock(clock))

	//1.- First frame should pass through without restriction.
	if decision := gate.Evaluate(Frame{PilotID: "conn", Sequence: 1}); !decision.Accepted {
		t.Fatalf("initial frame rejected: %+v", decision)
	}

	//2.- Advance less than the 60 Hz interval and verify rate limiting kicks in.
	clock.Advance(5 * time.Millisecond)
	burst := gate.Evaluate(Frame{PilotID: "conn", Sequence: 2})
	if burst.Accepted || burst.Reason != DropReasonRateLimited {
		t.Fatalf("expected rate limit drop, got %+v", burst)
	}

	if metrics := gate.Metrics()["conn"]; metrics.RateLimited != 1 {
		t.Fatalf("rate limited drops = %d, want 1", metrics.RateLimited)
	}
}

func TestGateRejectsOutOfRangeControls(t *testing.T) {
	gate := NewGate(pilotGate, logging.NewTestLogger(), WithClock(&fakeClock{now: time.Unix(0, 0)}))

	decision := gate.Evaluate(Frame{PilotID: "conn", Sequence: 1, Controls: Snapshot{Thruster: 2}})
	if decision.Accepted || decision.Reason != DropReasonRange {
		t.Fatalf("expected range drop, got %+v", decision)
	}
	if metrics := gate.Metrics()["conn"]; metrics.Range != 1 {
		t.Fatalf("range drops = %d, want 1", metrics.Range)
	}
}

func TestGateForgetClearsPilotState(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	gate := NewGate(pilotGate, logging.NewTestLogger(), WithClock(clock))

	//1.- Accept an initial frame to populate pilot state and metrics.
	if decision := gate.Evaluate(Frame{PilotID: "conn", Sequence: 1}); !decision.Accepted {
		t.Fatalf("initial frame rejected: %+v", decision)
	}
	gate.Evaluate(Frame{PilotID: "conn", Sequence: 1})

	//2.- Forget the pilot and ensure a fresh sequence is permitted again.
	gate.Forget("conn")
	if metrics := gate.Metrics()["conn"]; metrics.Sequence != 0 {
		t.Fatalf("expected metrics reset after forget, got %+v", metrics)
	}
	clock.Advance(time.Second)
	if decision := gate.Evaluate(Frame{PilotID: "conn", Sequence: 1}); !decision.Accepted {
		t.Fatalf("expected new session acceptance, got %+v", decision)
	}
}

func TestRemoteFallsBackWhenPilotGoesQuiet(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	autopilot := SourceFunc(func(time.Duration) Snapshot { return Snapshot{Thruster: 0.25} })
	remote := NewRemote(autopilot, 500*time.Millisecond, clock)

	//1.- Without remote frames the autopilot drives.
	if got := remote.Next(0); got.Thruster != 0.25 {
		t.Fatalf("expected autopilot controls, got %+v", got)
	}

	//2.- A submitted frame takes over until the hold expires.
	remote.Submit(Frame{PilotID: "viewer", Sequence: 1, Controls: Snapshot{Thruster: 1, Rudder: -1, Boosting: true}})
	if got := remote.Next(0); got.Thruster != 1 || !got.Boosting || remote.Pilot() != "viewer" {
		t.Fatalf("expected remote controls, got %+v pilot=%q", got, remote.Pilot())
	}
	clock.Advance(time.Second)
	if got := remote.Next(0); got.Thruster != 0.25 || remote.Pilot() != "" {
		t.Fatalf("expected fallback after hold, got %+v", got)
	}
}
