package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"hovercar/core/internal/logging"
)

// MetricCollector is the pull side of an OpenTelemetry reader such as
// sdkmetric.ManualReader.
type MetricCollector interface {
	Collect(ctx context.Context, rm *metricdata.ResourceMetrics) error
}

// writeInstruments renders every collected instrument in the Prometheus text format under
// the hover_ prefix.
func (h *HandlerSet) writeInstruments(ctx context.Context, w http.ResponseWriter) {
	if h.opts.Instruments == nil {
		return
	}
	var rm metricdata.ResourceMetrics
	if err := h.opts.Instruments.Collect(ctx, &rm); err != nil {
		h.logger.Warn("metric collection failed", logging.Error(err))
		return
	}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			name := "hover_" + promName(m.Name)
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				kind := "gauge"
				if data.IsMonotonic {
					kind, name = "counter", name+"_total"
				}
				writeHeader(w, name, kind, m.Description)
				for _, dp := range data.DataPoints {
					fmt.Fprintf(w, "%s%s %d\n", name, promLabels(dp.Attributes), dp.Value)
				}
			case metricdata.Sum[float64]:
				kind := "gauge"
				if data.IsMonotonic {
					kind, name = "counter", name+"_total"
				}
				writeHeader(w, name, kind, m.Description)
				for _, dp := range data.DataPoints {
					fmt.Fprintf(w, "%s%s %s\n", name, promLabels(dp.Attributes), promFloat(dp.Value))
				}
			case metricdata.Histogram[float64]:
				writeHeader(w, name, "histogram", m.Description)
				for _, dp := range data.DataPoints {
					writeHistogram(w, name, dp)
				}
			}
		}
	}
}

func writeHeader(w http.ResponseWriter, name, kind, help string) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
}

func writeHistogram(w http.ResponseWriter, name string, dp metricdata.HistogramDataPoint[float64]) {
	//1.- Buckets are cumulative in the exposition format.
	var cumulative uint64
	for i, bound := range dp.Bounds {
		if i < len(dp.BucketCounts) {
			cumulative += dp.BucketCounts[i]
		}
		fmt.Fprintf(w, "%s_bucket%s %d\n", name, promLabels(dp.Attributes, "le", promFloat(bound)), cumulative)
	}
	fmt.Fprintf(w, "%s_bucket%s %d\n", name, promLabels(dp.Attributes, "le", "+Inf"), dp.Count)
	fmt.Fprintf(w, "%s_sum%s %s\n", name, promLabels(dp.Attributes), promFloat(dp.Sum))
	fmt.Fprintf(w, "%s_count%s %d\n", name, promLabels(dp.Attributes), dp.Count)
}

// promLabels renders the attribute set plus optional extra key/value pairs, sorted by key.
func promLabels(set attribute.Set, extra ...string) string {
	pairs := make([]string, 0, set.Len()+len(extra)/2)
	for _, kv := range set.ToSlice() {
		pairs = append(pairs, fmt.Sprintf("%s=%q", promName(string(kv.Key)), kv.Value.Emit()))
	}
	for i := 0; i+1 < len(extra); i += 2 {
		pairs = append(pairs, fmt.Sprintf("%s=%q", extra[i], extra[i+1]))
	}
	if len(pairs) == 0 {
		return ""
	}
	sort.Strings(pairs)
	return "{" + strings.Join(pairs, ",") + "}"
}

func promName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

func promFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
