package httpapi

import (
	"sync"
	"time"
)

// KeyedLimiter enforces a maximum number of events per key within a sliding window. The
// relay keys it by remote host and the admin endpoints share a single key.
type KeyedLimiter struct {
	window time.Duration
	limit  int
	now    func() time.Time

	mu     sync.Mutex
	events map[string][]time.Time
}

// NewKeyedLimiter allows up to limit events per key per window. A non-positive window or
// limit disables limiting.
func NewKeyedLimiter(window time.Duration, limit int, timeSource func() time.Time) *KeyedLimiter {
	if timeSource == nil {
		timeSource = time.Now
	}
	return &KeyedLimiter{
		window: window,
		limit:  limit,
		now:    timeSource,
		events: make(map[string][]time.Time),
	}
}

// Allow reports whether key may proceed and records the attempt when it may.
func (l *KeyedLimiter) Allow(key string) bool {
	if l == nil || l.limit <= 0 || l.window <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	kept := l.prune(key, now)
	if len(kept) >= l.limit {
		return false
	}
	l.events[key] = append(kept, now)
	return true
}

// Keys reports how many keys currently hold events inside the window.
func (l *KeyedLimiter) Keys() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for key := range l.events {
		l.prune(key, now)
	}
	return len(l.events)
}

// prune drops expired events for key and forgets keys left empty. Callers hold mu.
func (l *KeyedLimiter) prune(key string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	events := l.events[key]
	kept := events[:0]
	for _, ts := range events {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(l.events, key)
		return nil
	}
	l.events[key] = kept
	return kept
}
