// Command hoversim runs the hovercar control core on the demo track, records its telemetry
// and relays it to websocket viewers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"hovercar/core/internal/auth"
	"hovercar/core/internal/config"
	"hovercar/core/internal/gameplay"
	httpapi "hovercar/core/internal/http"
	"hovercar/core/internal/input"
	"hovercar/core/internal/logging"
	"hovercar/core/internal/replay"
	"hovercar/core/internal/simulation"
	"hovercar/core/internal/vehicle"
)

const (
	healthService = "hoversim"

	pilotMaxAge      = 500 * time.Millisecond
	pilotMinInterval = 10 * time.Millisecond
	pilotHold        = 500 * time.Millisecond

	retentionInterval = time.Hour
	shutdownTimeout   = 5 * time.Second

	adminFlushesPerMinute = 6
)

func main() {
	configPath := flag.String("config", "", "optional YAML/JSON/TOML config file; HOVER_* variables override it")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logging:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("hoversim stopped with error", logging.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

// run wires the host together and blocks until the context ends, the configured duration
// elapses or a component fails.
func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	//1.- Resolve the tuning and the autopilot script.
	tuning, err := gameplay.LoadTuning(cfg.TuningPath)
	if err != nil {
		return err
	}
	script := input.DefaultScript()
	if cfg.ScriptPath != "" {
		if script, err = input.LoadScript(cfg.ScriptPath); err != nil {
			return err
		}
	}

	sessionID := uuid.NewString()
	vehicleID := "hovercar-" + sessionID[:8]
	logger = logger.With(logging.String("session_id", sessionID))

	//2.- Remote pilots override the script while their frames keep arriving.
	gate := input.NewGate(input.GateConfig{MaxAge: pilotMaxAge, MinInterval: pilotMinInterval}, logger)
	remote := input.NewRemote(script, pilotHold, nil)
	var signer *auth.PilotSigner
	if cfg.Security.PilotSecret != "" {
		if signer, err = auth.NewPilotSigner(cfg.Security.PilotSecret, cfg.Security.PilotTokenLeeway); err != nil {
			return err
		}
	}
	relay := NewRelay(RelayConfig{
		MaxViewers:   cfg.MaxViewers,
		PingInterval: cfg.PingInterval,
		Gate:         gate,
		Pilots:       remote,
		Signer:       signer,
		Limiter:      httpapi.NewKeyedLimiter(time.Minute, cfg.Security.ConnectsPerMinute, nil),
		Logger:       logger,
	})

	//3.- Open the telemetry bundle after pruning old sessions.
	var (
		recorder *replay.Recorder
		cleaner  *replay.Cleaner
	)
	if cfg.Replay.Enabled {
		cleaner = replay.NewCleaner(cfg.Replay.Dir, replay.RetentionPolicy{MaxSessions: cfg.Replay.MaxSessions, MaxAge: cfg.Replay.MaxAge}, logger)
		cleaner.RunOnce()
		writer, _, err := replay.NewWriter(cfg.Replay.Dir, sessionID, nil)
		if err != nil {
			return fmt.Errorf("open telemetry bundle: %w", err)
		}
		writer.SetHeaderMetadata(vehicleID, tuning.Name, tuning.Digest(), cfg.TickRateHz)
		if recorder, err = replay.NewRecorder(writer, logger); err != nil {
			_ = writer.Close()
			return err
		}
		defer func() {
			if err := recorder.Close(); err != nil {
				logger.Warn("telemetry bundle close failed", logging.Error(err))
			}
		}()
	}

	//4.- The controller counters feed a pull reader that /metrics renders.
	reader := sdkmetric.NewManualReader()
	meters := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() {
		if err := meters.Shutdown(context.Background()); err != nil {
			logger.Warn("meter provider shutdown failed", logging.Error(err))
		}
	}()

	session := newSession(remote, recorder, relay, logger, vehicleID)
	scene, err := buildScene(tuning, cfg.Step().Seconds(), vehicleID, logger, session.hooks(), vehicle.WithMeterProvider(meters))
	if err != nil {
		return err
	}
	session.scene = scene

	monitor := simulation.NewTickMonitor(cfg.Step())
	loop := simulation.NewLoop(float64(cfg.TickRateHz), session.Step, simulation.WithMonitor(monitor))

	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}

	//5.- Bind the health port before anything runs. An empty address disables a listener.
	var healthListener net.Listener
	if cfg.HealthAddr != "" {
		if healthListener, err = net.Listen("tcp", cfg.HealthAddr); err != nil {
			return fmt.Errorf("listen health %s: %w", cfg.HealthAddr, err)
		}
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := loop.Run(gctx); err != nil {
			return fmt.Errorf("simulation loop: %w", err)
		}
		return nil
	})
	if cleaner != nil {
		group.Go(func() error { return cleaner.Run(gctx, retentionInterval) })
	}

	//6.- Listeners: websocket relay plus operational endpoints, and the gRPC health service.
	var httpServer *http.Server
	if cfg.TelemetryAddr != "" {
		ops := httpapi.Options{
			Logger:      logger,
			Ticks:       session.Ticks,
			Loop:        monitor.Snapshot,
			Relay:       relay.Stats,
			Instruments: reader,
			AdminToken:  cfg.Security.AdminToken,
			Limiter:     httpapi.NewKeyedLimiter(time.Minute, adminFlushesPerMinute, nil),
		}
		if recorder != nil {
			ops.Recorder = recorder.Snapshot
			ops.Flusher = httpapi.ReplayFlusherFunc(func(context.Context) (string, error) { return recorder.Flush() })
		}
		if cleaner != nil {
			ops.Storage = cleaner.Stats
		}
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", relay.serveWS)
		httpapi.NewHandlerSet(ops).Register(mux)
		httpServer = &http.Server{Addr: cfg.TelemetryAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		group.Go(func() error {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("telemetry relay: %w", err)
			}
			return nil
		})
	}

	healthServer := health.NewServer()
	var grpcServer *grpc.Server
	if healthListener != nil {
		listener := healthListener
		grpcServer = grpc.NewServer()
		healthpb.RegisterHealthServer(grpcServer, healthServer)
		group.Go(func() error {
			if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("health service: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		<-gctx.Done()
		//7.- Drain in reverse: report not serving, stop listeners, then drop viewers.
		healthServer.SetServingStatus(healthService, healthpb.HealthCheckResponse_NOT_SERVING)
		var err error
		if httpServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			err = httpServer.Shutdown(shutdownCtx)
		}
		if grpcServer != nil {
			grpcServer.GracefulStop()
		}
		relay.Close()
		return err
	})

	healthServer.SetServingStatus(healthService, healthpb.HealthCheckResponse_SERVING)
	logger.Info("hoversim started",
		logging.String("vehicle_id", vehicleID),
		logging.String("tuning", tuning.Name),
		logging.String("tuning_digest", tuning.Digest()),
		logging.Int("tick_rate_hz", cfg.TickRateHz),
		logging.String("telemetry_addr", cfg.TelemetryAddr),
		logging.String("health_addr", cfg.HealthAddr),
	)

	err = group.Wait()
	ticks := monitor.Snapshot()
	stats := relay.Stats()
	logger.Info("hoversim stopped",
		logging.Uint64("ticks", session.Ticks()),
		logging.Uint64("skipped_frames", scene.Controller.Skipped()),
		logging.Int("tick_overruns", ticks.Overruns),
		logging.Float64("average_fps", ticks.AverageFPS()),
		logging.Uint64("frames_published", stats.Published),
		logging.Uint64("pilot_frames_accepted", stats.Accepted),
	)
	return err
}
