// Command engine is the CLI host for the streaming pipeline: it wires the
// core engine to a dashboard websocket hub, an optional NATS relay, a
// Prometheus exporter, and the start/stop/status control API, then runs
// until SIGINT/SIGTERM, mirroring the teacher's aggregator process.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/fluxline/pulsecore/config"
	"github.com/fluxline/pulsecore/internal/alerting"
	"github.com/fluxline/pulsecore/internal/control"
	"github.com/fluxline/pulsecore/internal/dashboard"
	"github.com/fluxline/pulsecore/internal/engine"
	"github.com/fluxline/pulsecore/internal/events"
	"github.com/fluxline/pulsecore/internal/incidentlog"
	"github.com/fluxline/pulsecore/internal/metrics"
	"github.com/fluxline/pulsecore/internal/platformlog"
	"github.com/fluxline/pulsecore/internal/relay"
	"github.com/fluxline/pulsecore/internal/server"
	"github.com/fluxline/pulsecore/internal/source"
	"github.com/fluxline/pulsecore/internal/tracing"
)

// sinkAdapter bridges engine.OutSink to a metrics.Sink fan-out, runs every
// aggregate through the baseline alert detector, and mirrors every metrics
// snapshot onto the Prometheus exporter.
type sinkAdapter struct {
	sink     metrics.Sink
	prom     *metrics.PrometheusExporter
	detector *alerting.Detector
}

func (a *sinkAdapter) Send(msg engine.Message) {
	switch msg.Type {
	case "event":
		if ev, ok := msg.Data.(events.Event); ok {
			a.sink.BroadcastEvent(ev)
		}
	case "agg":
		agg, ok := msg.Data.(events.Event)
		if !ok {
			return
		}
		a.sink.BroadcastEvent(agg)
		if alert, fired := a.detector.Observe(agg); fired {
			a.sink.BroadcastEvent(alert)
		}
	case "metrics":
		snap, ok := msg.Data.(metrics.Snapshot)
		if !ok {
			return
		}
		a.sink.BroadcastSnapshot(snap)
		if a.prom != nil {
			a.prom.Observe(snap)
		}
	}
}

func main() {
	cfg := config.Load()

	platformlog.Init(platformlog.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	logger := platformlog.Slog()

	color.New(color.FgCyan, color.Bold).Println("pulsecore engine starting")

	shutdownTracing := func(context.Context) error { return nil }
	if cfg.Tracing.Enabled {
		tracingCfg := tracing.DefaultConfig(cfg.Tracing.ServiceName)
		tracingCfg.OTLPEndpoint = cfg.Tracing.OTLPEndpoint
		tracingCfg.Enabled = true
		shutdown, err := tracing.InitTracer(tracingCfg)
		if err != nil {
			logger.Error("tracing init failed", "error", err)
			os.Exit(1)
		}
		shutdownTracing = shutdown
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Each source runs on its own goroutine, and math/rand.Rand is not safe
	// for concurrent use, so every source gets its own RNG derived from the
	// configured seed rather than sharing one.
	sources := []source.Source{
		source.NewSensorSource(source.SensorConfig{}, engine.NewRNG(cfg.Engine.RandomSeed)),
		source.NewLogSource(source.LogConfig{
			ServiceName:      "pulsecore",
			Host:             "pulsecore-engine-0",
			BaseInterval:     cfg.Engine.LogBaseInterval,
			BurstInterval:    cfg.Engine.LogBurstInterval,
			BurstProbability: cfg.Engine.LogBurstProbability,
		}, engine.NewRNG(cfg.Engine.RandomSeed+1)),
		source.NewFeedSource(source.FeedConfig{}, engine.NewRNG(cfg.Engine.RandomSeed+2)),
	}

	eng := engine.New(engine.Config{
		StressMode:          cfg.Engine.StressMode,
		PerSourceQueueSize:  cfg.Engine.PerSourceQueueSize,
		MergedQueueSize:     cfg.Engine.MergedQueueSize,
		DropOnFull:          cfg.Engine.DropOnFull,
		WindowSize:          cfg.Engine.WindowSize,
		ArtificialDelay:     cfg.Engine.ArtificialDelay,
		LogBaseInterval:     cfg.Engine.LogBaseInterval,
		LogBurstInterval:    cfg.Engine.LogBurstInterval,
		LogBurstProbability: cfg.Engine.LogBurstProbability,
		EventRateLimit:      cfg.Engine.EventRateLimit,
		MetricsInterval:     cfg.Engine.MetricsInterval,
	}, sources)

	var sinks []metrics.Sink

	var hub *dashboard.Hub
	if cfg.Dashboard.Enabled {
		hub = dashboard.NewHub()
		sinks = append(sinks, hub)
	}

	if cfg.NATS.Enabled {
		rel, err := relay.Connect(ctx, relay.Config{
			URL:             cfg.NATS.URL,
			StreamRetention: cfg.NATS.StreamRetention,
			ReconnectWait:   2 * time.Second,
			MaxReconnects:   -1,
		})
		if err != nil {
			logger.Error("nats relay connect failed", "error", err)
		} else {
			sinks = append(sinks, rel)
			defer rel.Close()
		}
	}

	registry := prometheus.NewRegistry()
	promExporter := metrics.NewPrometheusExporter(registry)
	detector := alerting.NewDetector(alerting.DefaultExtractors(), 20)

	var incidentRepo *incidentlog.Repository
	if cfg.IncidentDB.Enabled {
		conn, err := incidentlog.Connect(ctx, incidentlog.ConnectionConfig{
			Host:            cfg.IncidentDB.Host,
			Port:            cfg.IncidentDB.Port,
			User:            cfg.IncidentDB.User,
			Password:        cfg.IncidentDB.Password,
			Database:        cfg.IncidentDB.Database,
			SSLMode:         cfg.IncidentDB.SSLMode,
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: time.Hour,
		})
		if err != nil {
			logger.Error("incident log connect failed", "error", err)
		} else {
			defer conn.Close()
			repo := incidentlog.NewRepository(conn)
			if err := repo.EnsureSchema(ctx); err != nil {
				logger.Error("incident log schema failed", "error", err)
			} else {
				incidentRepo = repo
			}
		}
	}

	eng.OnSourceError(func(name string, err error) {
		logger.Error("source crashed", "source", name, "error", err)
		if incidentRepo == nil {
			return
		}
		recCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if rErr := incidentRepo.Record(recCtx, name, err.Error()); rErr != nil {
			logger.Error("incident log record failed", "error", rErr)
		}
	})

	fanout := metrics.NewFanoutSink(sinks...)
	defer fanout.Close()
	out := &sinkAdapter{sink: fanout, prom: promExporter, detector: detector}

	var jwtMgr *control.JWTManager
	var controller *control.Controller
	if cfg.Control.Enabled {
		jwtMgr = control.NewJWTManager(cfg.Control.JWTSecret, cfg.Control.AccessTTL)
		users := control.NewInMemoryUserStore()
		if _, err := users.CreateUser(cfg.Control.AdminUser, cfg.Control.AdminPass, "admin"); err != nil {
			logger.Warn("admin user bootstrap failed", "error", err)
		}
		controller = control.NewController(eng, out, users, jwtMgr)
	}

	router := mux.NewRouter()

	if hub != nil {
		var auth dashboard.Authenticator = dashboard.AllowAllAuthenticator{}
		if jwtMgr != nil {
			auth = control.NewTokenAuthenticator(jwtMgr)
		}
		handler := dashboard.NewHandler(hub, auth)
		router.Handle("/ws", handler)
		router.HandleFunc("/broadcast", handler.HandleBroadcast)
	}
	if controller != nil {
		router.PathPrefix("/control").Handler(controller.Router())
	}
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})

	httpSrv := server.NewServer(cfg.Dashboard.Addr, corsHandler.Handler(router), &server.TLSConfig{
		Enabled:    cfg.Control.TLSEnabled,
		CertFile:   cfg.Control.CertFile,
		KeyFile:    cfg.Control.KeyFile,
		MinVersion: cfg.Control.TLSMinVersion,
	})

	if hub != nil {
		go hub.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Start(); err != nil {
			errCh <- err
		}
	}()

	logger.Info("pulsecore engine running", "addr", cfg.Dashboard.Addr, "control_enabled", cfg.Control.Enabled)

	// With no control API there is no other way to start the engine, so it
	// runs for the life of the process. With the control API enabled, an
	// operator drives start/stop through POST /control/start and
	// /control/stop instead.
	engineDone := make(chan struct{})
	if controller == nil {
		go func() {
			eng.Run(ctx, out)
			close(engineDone)
		}()
	} else {
		close(engineDone)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("http server error", "error", err)
	}

	stop()
	if controller != nil {
		controller.Shutdown()
	}
	if err := httpSrv.Shutdown(5 * time.Second); err != nil {
		logger.Warn("http server shutdown error", "error", err)
	}
	<-engineDone

	logger.Info("pulsecore engine stopped")
}
