package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/glof-monitor/internal/adapter/eventsource"
	httpadapter "github.com/couchcryptid/glof-monitor/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/glof-monitor/internal/adapter/kafka"
	"github.com/couchcryptid/glof-monitor/internal/adapter/mapbox"
	"github.com/couchcryptid/glof-monitor/internal/adapter/nws"
	redisadapter "github.com/couchcryptid/glof-monitor/internal/adapter/redis"
	"github.com/couchcryptid/glof-monitor/internal/adapter/sqlstore"
	"github.com/couchcryptid/glof-monitor/internal/adapter/usgs"
	"github.com/couchcryptid/glof-monitor/internal/config"
	"github.com/couchcryptid/glof-monitor/internal/domain"
	"github.com/couchcryptid/glof-monitor/internal/monitor"
	"github.com/couchcryptid/glof-monitor/internal/observability"
	"github.com/couchcryptid/glof-monitor/internal/scheduler"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	catalog := domain.DefaultCatalog()
	if cfg.CatalogPath != "" {
		catalog, err = domain.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			logger.Error("failed to load catalog", "path", cfg.CatalogPath, "error", err)
			os.Exit(1)
		}
		logger.Info("catalog loaded", "path", cfg.CatalogPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Address search (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var search domain.PlaceSearcher
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		search = mapbox.NewCachedSearcher(client, cfg.MapboxCacheSize, metrics)
		metrics.SearchEnabled.Set(1)
		logger.Info("mapbox search enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox search disabled")
	}

	var sinks monitor.Sinks
	var closers []func() error

	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		sinks.Publisher = writer
		closers = append(closers, writer.Close)
		logger.Info("stage transition publishing enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	if cfg.RedisEnabled {
		snapshots := redisadapter.NewSnapshotStore(redisadapter.NewClient(cfg), cfg.RedisSnapshotTTL)
		if err := snapshots.Ping(ctx); err != nil {
			logger.Warn("redis unreachable, snapshots will retry on each poll", "addr", cfg.RedisAddr, "error", err)
		}
		sinks.Snapshots = snapshots
		closers = append(closers, snapshots.Close)
		logger.Info("redis snapshots enabled", "addr", cfg.RedisAddr, "ttl", cfg.RedisSnapshotTTL)
	}

	if cfg.StoreEnabled {
		store, err := sqlstore.Open(ctx, cfg.StoreDriver, cfg.StoreDSN)
		if err != nil {
			logger.Error("failed to open history store", "driver", cfg.StoreDriver, "error", err)
			os.Exit(1)
		}
		sinks.History = store
		closers = append(closers, store.Close)
		logger.Info("history store enabled", "driver", cfg.StoreDriver)
	}

	mon := monitor.New(catalog,
		monitor.Sources{
			Gages:  usgs.NewClient(cfg.USGSBaseURL, cfg.HTTPClientTimeout, logger),
			Alerts: nws.NewClient(cfg.NWSBaseURL, cfg.NWSUserAgent, cfg.HTTPClientTimeout),
			Events: eventsource.New(cfg.EventsCSVURL, cfg.HTTPClientTimeout),
		},
		sinks,
		monitor.Options{
			GageIDs:       cfg.GageIDs,
			Zone:          cfg.NWSZone,
			RetryAttempts: cfg.GageRetryAttempts,
		},
		logger, metrics)
	mon.Warm(ctx)

	sched := scheduler.New(nil, logger, metrics,
		scheduler.Task{Name: "gages", Interval: cfg.GagePollInterval, Run: mon.PollGages},
		scheduler.Task{Name: "alerts", Interval: cfg.AlertPollInterval, Run: mon.RefreshAlerts},
		scheduler.Task{Name: "events", Interval: cfg.EventRefreshInterval, Run: func(ctx context.Context) error {
			_, err := mon.RefreshEvents(ctx)
			return err
		}},
	)

	srv := httpadapter.NewServer(cfg.HTTPAddr, mon, search, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start polling.
	schedDone := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(schedDone)
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-schedDone:
	case <-shutdownCtx.Done():
		logger.Warn("scheduler did not stop before shutdown timeout")
	}
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
