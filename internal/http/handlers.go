// Package httpapi serves the operational endpoints of the simulation host: liveness,
// readiness, Prometheus text metrics, a JSON stats document and the admin replay flush.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"hovercar/core/internal/logging"
	"hovercar/core/internal/replay"
	"hovercar/core/internal/simulation"
)

// adminLimiterKey is the shared limiter bucket for admin operations.
const adminLimiterKey = "admin"

// RelayStats summarises relay throughput.
type RelayStats struct {
	Clients   int    `json:"clients"`
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
	Rejected  uint64 `json:"rejected"`
	Accepted  uint64 `json:"accepted"`
	Refused   uint64 `json:"refused"`
}

// ReplayFlusher forces buffered telemetry to disk and returns the bundle location.
type ReplayFlusher interface {
	FlushReplay(ctx context.Context) (string, error)
}

// ReplayFlusherFunc adapts a function into a ReplayFlusher.
type ReplayFlusherFunc func(ctx context.Context) (string, error)

// FlushReplay implements ReplayFlusher.
func (f ReplayFlusherFunc) FlushReplay(ctx context.Context) (string, error) { return f(ctx) }

// Options configures the HandlerSet. Every provider is optional; Instruments adds the
// OpenTelemetry instruments to /metrics.
type Options struct {
	Logger      *logging.Logger
	Ticks       func() uint64
	Loop        func() simulation.TickMetricsSnapshot
	Relay       func() RelayStats
	Recorder    func() replay.Stats
	Storage     func() replay.StorageStats
	Instruments MetricCollector
	Flusher     ReplayFlusher
	AdminToken  string
	Limiter     *KeyedLimiter
	TimeSource  func() time.Time
}

// HandlerSet bundles the host operational handlers.
type HandlerSet struct {
	opts    Options
	logger  *logging.Logger
	now     func() time.Time
	started time.Time
}

// StatsDocument is the JSON body served on /api/stats.
type StatsDocument struct {
	UptimeSeconds float64              `json:"uptime_seconds"`
	Ticks         uint64               `json:"ticks"`
	Loop          LoopStats            `json:"loop"`
	Relay         RelayStats           `json:"relay"`
	Recorder      *replay.Stats        `json:"recorder,omitempty"`
	Storage       *replay.StorageStats `json:"storage,omitempty"`
}

// LoopStats reports tick timing in seconds.
type LoopStats struct {
	Samples        int     `json:"samples"`
	AverageSeconds float64 `json:"average_seconds"`
	MaxSeconds     float64 `json:"max_seconds"`
	Overruns       int     `json:"overruns"`
	AverageFPS     float64 `json:"average_fps"`
}

// NewHandlerSet constructs a HandlerSet using the provided options.
func NewHandlerSet(opts Options) *HandlerSet {
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	now := opts.TimeSource
	if now == nil {
		now = time.Now
	}
	opts.AdminToken = strings.TrimSpace(opts.AdminToken)
	return &HandlerSet{opts: opts, logger: logger, now: now, started: now()}
}

// Register attaches all handlers to the provided mux.
func (h *HandlerSet) Register(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("/livez", h.LivenessHandler())
	mux.HandleFunc("/readyz", h.ReadinessHandler())
	mux.HandleFunc("/metrics", h.MetricsHandler())
	mux.HandleFunc("/api/stats", h.StatsHandler())
	mux.HandleFunc("/api/replay/flush", h.ReplayFlushHandler())
}

// LivenessHandler reports that the HTTP server is reachable.
func (h *HandlerSet) LivenessHandler() http.HandlerFunc {
	type response struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response{
			Status:    "alive",
			Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// ReadinessHandler reports ready once the simulation loop has completed a tick.
func (h *HandlerSet) ReadinessHandler() http.HandlerFunc {
	type response struct {
		Status        string  `json:"status"`
		Message       string  `json:"message,omitempty"`
		UptimeSeconds float64 `json:"uptime_seconds"`
		Ticks         uint64  `json:"ticks"`
		Viewers       int     `json:"viewers"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		doc := h.collect()
		status := http.StatusOK
		resp := response{Status: "ok", UptimeSeconds: doc.UptimeSeconds, Ticks: doc.Ticks, Viewers: doc.Relay.Clients}
		if h.opts.Ticks != nil && doc.Ticks == 0 {
			status = http.StatusServiceUnavailable
			resp.Status = "starting"
			resp.Message = "simulation loop has not ticked yet"
		}
		writeJSON(w, status, resp)
	}
}

// MetricsHandler emits Prometheus compatible text metrics.
func (h *HandlerSet) MetricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc := h.collect()
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetric(w, "hover_uptime_seconds", "gauge", "Host uptime in seconds.", fmt.Sprintf("%.0f", doc.UptimeSeconds))
		writeMetric(w, "hover_ticks_total", "counter", "Simulation ticks completed.", fmt.Sprint(doc.Ticks))
		writeMetric(w, "hover_tick_average_seconds", "gauge", "Average wall time spent per tick.", fmt.Sprintf("%.6f", doc.Loop.AverageSeconds))
		writeMetric(w, "hover_tick_max_seconds", "gauge", "Slowest observed tick.", fmt.Sprintf("%.6f", doc.Loop.MaxSeconds))
		writeMetric(w, "hover_tick_overruns_total", "counter", "Ticks that exceeded the fixed step budget.", fmt.Sprint(doc.Loop.Overruns))
		writeMetric(w, "hover_relay_viewers", "gauge", "Connected websocket viewers.", fmt.Sprint(doc.Relay.Clients))
		writeMetric(w, "hover_relay_published_total", "counter", "Telemetry frames published to viewers.", fmt.Sprint(doc.Relay.Published))
		writeMetric(w, "hover_relay_dropped_total", "counter", "Viewers dropped for falling behind.", fmt.Sprint(doc.Relay.Dropped))
		writeMetric(w, "hover_relay_refused_total", "counter", "Viewer connections refused before upgrade.", fmt.Sprint(doc.Relay.Refused))
		writeMetric(w, "hover_pilot_frames_accepted_total", "counter", "Remote pilot frames accepted by the gate.", fmt.Sprint(doc.Relay.Accepted))
		writeMetric(w, "hover_pilot_frames_rejected_total", "counter", "Remote pilot frames rejected.", fmt.Sprint(doc.Relay.Rejected))
		if doc.Recorder != nil {
			writeMetric(w, "hover_replay_frames_total", "counter", "Telemetry frames recorded.", fmt.Sprint(doc.Recorder.Frames))
			writeMetric(w, "hover_replay_events_total", "counter", "Telemetry events recorded.", fmt.Sprint(doc.Recorder.Events))
			writeMetric(w, "hover_replay_bytes_total", "counter", "Encoded telemetry bytes recorded.", fmt.Sprint(doc.Recorder.Bytes))
			writeMetric(w, "hover_replay_errors_total", "counter", "Telemetry recording failures.", fmt.Sprint(doc.Recorder.Errors))
		}
		if doc.Storage != nil {
			writeMetric(w, "hover_replay_sessions", "gauge", "Recorded sessions retained on disk.", fmt.Sprint(doc.Storage.Sessions))
			writeMetric(w, "hover_replay_removed_total", "counter", "Recorded sessions pruned by retention.", fmt.Sprint(doc.Storage.Removed))
			writeMetric(w, "hover_replay_disk_bytes", "gauge", "Disk footprint of retained sessions.", fmt.Sprint(doc.Storage.Bytes))
		}
		h.writeInstruments(r.Context(), w)
	}
}

// StatsHandler serves the aggregated StatsDocument as JSON.
func (h *HandlerSet) StatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, h.collect())
	}
}

// ReplayFlushHandler authorises and triggers a flush of the open telemetry bundle.
func (h *HandlerSet) ReplayFlushHandler() http.HandlerFunc {
	type response struct {
		Status   string `json:"status"`
		Location string `json:"location,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := h.logger.With(
			logging.String("handler", "replay_flush"),
			logging.String("remote_addr", r.RemoteAddr),
		)
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if h.opts.AdminToken == "" {
			reqLogger.Warn("replay flush denied: admin auth disabled")
			http.Error(w, "admin authentication not configured", http.StatusForbidden)
			return
		}
		if !h.authorise(r) {
			reqLogger.Warn("replay flush denied: unauthorized request")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !h.opts.Limiter.Allow(adminLimiterKey) {
			reqLogger.Warn("replay flush denied: rate limit exceeded")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		if h.opts.Flusher == nil {
			reqLogger.Warn("replay flush denied: recording disabled")
			http.Error(w, "telemetry recording is disabled", http.StatusServiceUnavailable)
			return
		}
		location, err := h.opts.Flusher.FlushReplay(r.Context())
		if err != nil {
			reqLogger.Error("replay flush failed", logging.Error(err))
			http.Error(w, "failed to flush telemetry", http.StatusInternalServerError)
			return
		}
		reqLogger.Info("replay flushed", logging.String("location", location))
		writeJSON(w, http.StatusOK, response{Status: "flushed", Location: location})
	}
}

func (h *HandlerSet) collect() StatsDocument {
	doc := StatsDocument{UptimeSeconds: h.now().Sub(h.started).Seconds()}
	if h.opts.Ticks != nil {
		doc.Ticks = h.opts.Ticks()
	}
	if h.opts.Loop != nil {
		snapshot := h.opts.Loop()
		doc.Loop = LoopStats{
			Samples:        snapshot.Samples,
			AverageSeconds: snapshot.Average.Seconds(),
			MaxSeconds:     snapshot.Max.Seconds(),
			Overruns:       snapshot.Overruns,
			AverageFPS:     snapshot.AverageFPS(),
		}
	}
	if h.opts.Relay != nil {
		doc.Relay = h.opts.Relay()
	}
	if h.opts.Recorder != nil {
		stats := h.opts.Recorder()
		doc.Recorder = &stats
	}
	if h.opts.Storage != nil {
		stats := h.opts.Storage()
		doc.Storage = &stats
	}
	return doc
}

func (h *HandlerSet) authorise(r *http.Request) bool {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	var token string
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		token = strings.TrimSpace(header[7:])
	} else if header != "" {
		token = header
	}
	if token == "" {
		token = strings.TrimSpace(r.Header.Get("X-Admin-Token"))
	}
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.opts.AdminToken)) == 1
}

func writeMetric(w http.ResponseWriter, name, kind, help, value string) {
	writeHeader(w, name, kind, help)
	fmt.Fprintf(w, "%s %s\n", name, value)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}
