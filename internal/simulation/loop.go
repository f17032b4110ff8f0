package simulation

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxCatchUp bounds how many fixed steps one wake-up may run after a stall.
const DefaultMaxCatchUp = 5

// StepFunc advances the simulation by a fixed timestep. Returning an error stops the loop.
type StepFunc func(step time.Duration) error

// Loop drives a fixed timestep simulation at the configured target frequency.
type Loop struct {
	step       time.Duration
	stepFunc   StepFunc
	monitor    *TickMonitor
	maxCatchUp int

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// LoopOption customises loop construction.
type LoopOption func(*Loop)

// WithMonitor records the wall-clock cost of every step.
func WithMonitor(monitor *TickMonitor) LoopOption {
	return func(l *Loop) { l.monitor = monitor }
}

// WithMaxCatchUp overrides how many steps may run back to back after a stall.
func WithMaxCatchUp(steps int) LoopOption {
	return func(l *Loop) {
		if steps > 0 {
			l.maxCatchUp = steps
		}
	}
}

// NewLoop configures a loop that targets the provided frames per second.
func NewLoop(targetHz float64, step StepFunc, opts ...LoopOption) *Loop {
	if targetHz <= 0 {
		targetHz = 60
	}
	if step == nil {
		step = func(time.Duration) error { return nil }
	}
	interval := time.Duration(float64(time.Second) / targetHz)
	if interval <= 0 {
		interval = time.Second / 60
	}
	loop := &Loop{step: interval, stepFunc: step, maxCatchUp: DefaultMaxCatchUp}
	for _, opt := range opts {
		if opt != nil {
			opt(loop)
		}
	}
	return loop
}

// Run ticks until the context is cancelled or a step fails. Cancellation is not an error.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.step)
	defer ticker.Stop()
	last := time.Now()
	accumulator := time.Duration(0)
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			//1.- Accumulate elapsed time and run fixed steps while catching up.
			accumulator += now.Sub(last)
			last = now
			steps := 0
			for accumulator >= l.step {
				//2.- Drop the backlog after a long stall instead of spiralling.
				if steps >= l.maxCatchUp {
					accumulator = 0
					break
				}
				started := time.Now()
				if err := l.stepFunc(l.step); err != nil {
					return err
				}
				l.monitor.Observe(time.Since(started))
				accumulator -= l.step
				steps++
			}
		}
	}
}

// Start begins ticking in the background until the context is cancelled or Stop is invoked.
func (l *Loop) Start(ctx context.Context) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done != nil {
		return
	}
	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})
	done := l.done
	go func() {
		defer close(done)
		err := l.Run(ctx)
		l.mu.Lock()
		l.err = err
		l.mu.Unlock()
	}()
}

// Stop cancels the background loop, waits for it to exit and returns the step error, if any.
func (l *Loop) Stop() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancel, l.done = nil, nil
	return l.err
}

// StepDuration exposes the configured timestep.
func (l *Loop) StepDuration() time.Duration {
	if l == nil {
		return 0
	}
	return l.step
}
