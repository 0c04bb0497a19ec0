package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"topolens/internal/config"
	"topolens/internal/engine"
	"topolens/internal/events"
	"topolens/internal/metrics"
	"topolens/internal/models"
	"topolens/internal/registry"
	"topolens/internal/storage"
	"topolens/internal/topology"
	"topolens/internal/verify"
)

// core bundles the three components the API layer consumes.
type core struct {
	registry *registry.Registry
	topology *topology.Aggregator
	verify   *verify.Orchestrator
	engine   engine.Gateway
}

func main() {
	cfgPath := flag.String("config", "", "path to JSON config file")
	metricsAddr := flag.String("metrics-addr", ":9090", "metrics/health listen address")
	engineURL := flag.String("engine-url", "", "override engine base URL")
	dbPath := flag.String("db", "", "override Badger DB path")
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		cfg, err = config.Load(*cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	}
	if *engineURL != "" {
		cfg.Engine.BaseURL = *engineURL
	}
	if *dbPath != "" {
		cfg.Storage.Path = *dbPath
	}

	logger := buildLogger(cfg.Logging.Level)
	defer logger.Sync()

	tp := initTracing(logger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	var store storage.Store
	var err error
	switch cfg.Storage.Backend {
	case "memory":
		store = storage.NewMemoryStore()
	default:
		store, err = storage.NewBadgerStore(cfg.Storage.Path)
		if err != nil {
			logger.Fatal("open badger store", zap.Error(err))
		}
	}
	defer store.Close()

	client := engine.NewClient(cfg.Engine.BaseURL, cfg.Engine.Timeout())
	probeCtx, cancelProbe := context.WithTimeout(context.Background(), 5*time.Second)
	if err := client.Status(probeCtx); err != nil {
		logger.Warn("engine not reachable at startup", zap.String("url", cfg.Engine.BaseURL), zap.Error(err))
	} else {
		logger.Info("engine reachable", zap.String("url", cfg.Engine.BaseURL))
	}
	cancelProbe()

	var publisher *events.Publisher
	if cfg.Events.Enabled {
		publisher, err = events.NewPublisher(cfg.Events.URL, logger.Named("events"))
		if err != nil {
			logger.Warn("nats unavailable, events disabled", zap.Error(err))
			publisher = nil
		} else {
			defer publisher.Close()
		}
	}

	reg := registry.New(store, client, publisher, logger.Named("registry"))
	app := &core{
		registry: reg,
		topology: topology.New(client, reg, cfg.Topology, logger.Named("topology")),
		verify:   verify.New(client, reg, publisher, cfg.Verify, logger.Named("verify")),
		engine:   client,
	}

	if _, err := reg.CompactDeleted(context.Background()); err != nil {
		logger.Warn("snapshot compaction failed", zap.Error(err))
	}
	if snaps, err := reg.List(context.Background(), ""); err == nil {
		logger.Info("snapshot registry restored", zap.Int("snapshots", len(snaps)))
	}

	mux := http.NewServeMux()
	metrics.Register(mux)
	mux.HandleFunc("/healthz", app.handleHealth)
	httpServer := &http.Server{Addr: *metricsAddr, Handler: mux}
	go func() {
		logger.Info("metrics and health listening", zap.String("addr", *metricsAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown initiated")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("http server shutdown", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func (c *core) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	engineStatus := "ok"
	code := http.StatusOK
	if err := c.engine.Status(r.Context()); err != nil {
		engineStatus = err.Error()
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	snaps, err := c.registry.List(r.Context(), "")
	if err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	complete := 0
	for _, s := range snaps {
		if s.Status == models.SnapshotComplete {
			complete++
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":            status,
		"engine":            engineStatus,
		"snapshots":         len(snaps),
		"snapshotsComplete": complete,
	})
}

func buildLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}

func initTracing(logger *zap.Logger) *sdktrace.TracerProvider {
	exp, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
	if err != nil {
		logger.Fatal("stdout trace exporter", zap.Error(err))
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
	otel.SetTracerProvider(tp)
	return tp
}
