package input

import (
	"sync"
	"time"
)

// Remote hands control to the most recent accepted pilot frame and falls back to
// another source once the pilot goes quiet.
type Remote struct {
	mu       sync.Mutex
	fallback Source
	hold     time.Duration
	clock    Clock

	latest   Snapshot
	received time.Time
	pilotID  string
}

var _ Source = (*Remote)(nil)

// NewRemote wraps the fallback source; hold is how long a remote frame stays in force.
func NewRemote(fallback Source, hold time.Duration, clock Clock) *Remote {
	if clock == nil {
		clock = systemClock{}
	}
	return &Remote{fallback: fallback, hold: hold, clock: clock}
}

// Submit records a frame that already passed the gate.
func (r *Remote) Submit(frame Frame) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.latest = frame.Controls.Sanitize()
	r.received = r.clock.Now()
	r.pilotID = frame.PilotID
	r.mu.Unlock()
}

// Pilot returns the identifier of the pilot currently in control, if any.
func (r *Remote) Pilot() string {
	if r == nil {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.activeLocked() {
		return ""
	}
	return r.pilotID
}

// Next implements Source.
func (r *Remote) Next(elapsed time.Duration) Snapshot {
	if r == nil {
		return Snapshot{}
	}
	r.mu.Lock()
	if r.activeLocked() {
		snapshot := r.latest
		r.mu.Unlock()
		return snapshot
	}
	r.mu.Unlock()
	if r.fallback == nil {
		return Snapshot{}
	}
	return r.fallback.Next(elapsed)
}

func (r *Remote) activeLocked() bool {
	return !r.received.IsZero() && r.clock.Now().Sub(r.received) <= r.hold
}
