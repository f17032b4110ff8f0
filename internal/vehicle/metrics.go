package vehicle

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "hovercar/core/internal/vehicle"

// instruments groups the per-vehicle counters. Without an injected provider they report to
// the global one.
type instruments struct {
	ticks           metric.Int64Counter
	grounded        metric.Int64Counter
	skipped         metric.Int64Counter
	wallCorrections metric.Int64Counter
	hoverError      metric.Float64Histogram
	attrs           metric.MeasurementOption
}

func newInstruments(provider metric.MeterProvider, vehicleID string) (*instruments, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	m := provider.Meter(instrumentationName)
	inst := &instruments{attrs: metric.WithAttributes(attribute.String("vehicle.id", vehicleID))}
	var err error

	inst.ticks, err = m.Int64Counter(
		"vehicle.ticks",
		metric.WithDescription("Physics ticks processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}

	inst.grounded, err = m.Int64Counter(
		"vehicle.ticks.grounded",
		metric.WithDescription("Physics ticks with at least one stabilizer hit"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating grounded counter: %w", err)
	}

	inst.skipped, err = m.Int64Counter(
		"vehicle.frames.skipped",
		metric.WithDescription("Frames discarded because a command was not finite"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating skipped counter: %w", err)
	}

	inst.wallCorrections, err = m.Int64Counter(
		"vehicle.wall.corrections",
		metric.WithDescription("Wall contacts that pushed the vehicle back onto the track"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating wall correction counter: %w", err)
	}

	inst.hoverError, err = m.Float64Histogram(
		"vehicle.hover.error",
		metric.WithDescription("Difference between the hover height and the sensed distance"),
		metric.WithUnit("m"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating hover error histogram: %w", err)
	}

	return inst, nil
}

func (i *instruments) recordTick(cmd Command, hoverHeight float64) {
	if i == nil {
		return
	}
	ctx := context.Background()
	i.ticks.Add(ctx, 1, i.attrs)
	if cmd.Grounded {
		i.grounded.Add(ctx, 1, i.attrs)
		i.hoverError.Record(ctx, hoverHeight-cmd.Reading.Distance, i.attrs)
	}
}

func (i *instruments) recordSkipped() {
	if i == nil {
		return
	}
	i.skipped.Add(context.Background(), 1, i.attrs)
}

func (i *instruments) recordWallCorrection() {
	if i == nil {
		return
	}
	i.wallCorrections.Add(context.Background(), 1, i.attrs)
}
