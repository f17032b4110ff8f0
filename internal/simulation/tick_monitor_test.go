package simulation

import (
	"testing"
	"time"
)

func TestTickMonitorAggregates(t *testing.T) {
	monitor := NewTickMonitor(15 * time.Millisecond)
	monitor.Observe(10 * time.Millisecond)
	monitor.Observe(20 * time.Millisecond)
	monitor.Observe(0)

	snapshot := monitor.Snapshot()
	if snapshot.Samples != 2 {
		t.Fatalf("expected 2 samples, got %d", snapshot.Samples)
	}
	if snapshot.Average != 15*time.Millisecond {
		t.Fatalf("unexpected average %v", snapshot.Average)
	}
	if snapshot.Max != 20*time.Millisecond || snapshot.Last != 20*time.Millisecond {
		t.Fatalf("unexpected max/last %v/%v", snapshot.Max, snapshot.Last)
	}
	if snapshot.Overruns != 1 {
		t.Fatalf("expected one overrun, got %d", snapshot.Overruns)
	}
	if fps := snapshot.AverageFPS(); fps < 66 || fps > 67 {
		t.Fatalf("unexpected fps %.2f", fps)
	}

	monitor.Reset()
	if snapshot := monitor.Snapshot(); snapshot != (TickMetricsSnapshot{}) {
		t.Fatalf("expected empty snapshot after reset, got %+v", snapshot)
	}
}

func TestTickMonitorNilSafe(t *testing.T) {
	var monitor *TickMonitor
	monitor.Observe(time.Millisecond)
	monitor.Reset()
	if snapshot := monitor.Snapshot(); snapshot.Samples != 0 {
		t.Fatalf("expected zero snapshot from nil monitor")
	}
}
