package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/beacon/pkg/archive"
	"github.com/platinummonkey/beacon/pkg/collector"
	"github.com/platinummonkey/beacon/pkg/config"
	"github.com/platinummonkey/beacon/pkg/middleware"
	"github.com/platinummonkey/beacon/pkg/observability"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional, env vars override)")
	listenAddr := flag.String("listen", "", "HTTP listen address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *listenAddr != "" {
		cfg.Collector.ListenAddr = *listenAddr
	}

	proclog := logrus.New()
	proclog.SetFormatter(&logrus.JSONFormatter{})
	if lvl, err := logrus.ParseLevel(cfg.Observability.LogLevel); err == nil {
		proclog.SetLevel(lvl)
	}

	level := observability.ParseLogLevel(cfg.Observability.LogLevel)
	logger := observability.NewLogger(level, os.Stdout)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger, metrics)
	if err != nil {
		log.Fatalf("Failed to open event store: %v", err)
	}
	defer store.Close()
	proclog.WithField("driver", cfg.Collector.StorageDriver).Info("Event store ready")

	serverOpts := []collector.ServerOption{
		collector.WithServerLogger(logger),
		collector.WithServerMetrics(metrics),
	}
	if cfg.Pipeline.APIKey != "" {
		serverOpts = append(serverOpts, collector.WithAPIKey(cfg.Pipeline.APIKey))
	}
	if cfg.Pipeline.RedisAddr != "" {
		// replicas share one rate limit window through Redis
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.Pipeline.RedisAddr})
		defer redisClient.Close()
		limiter := middleware.NewDistributedLimiter(redisClient, nil, "")
		serverOpts = append(serverOpts, collector.WithRateLimit(
			middleware.NewDistributedRateLimitMiddleware(limiter, logger)))
	} else {
		limiter := middleware.NewTokenBucketLimiter(nil)
		limiter.StartCleanup(ctx)
		serverOpts = append(serverOpts, collector.WithRateLimit(
			middleware.NewRateLimitMiddleware(limiter, logger)))
	}
	server := collector.NewServer(store, serverOpts...)

	httpMux := http.NewServeMux()
	observability.RegisterMetricsEndpoint(httpMux, registry)
	httpMux.Handle("/", server.Router())

	httpServer := &http.Server{
		Addr:              cfg.Collector.ListenAddr,
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	scheduler := cron.New()
	if cfg.Collector.ArchiveBucket != "" {
		uploader, err := archive.NewS3Uploader(ctx, archive.S3Config{
			Bucket:   cfg.Collector.ArchiveBucket,
			Region:   cfg.Collector.S3Region,
			Endpoint: cfg.Collector.S3Endpoint,
		})
		if err != nil {
			log.Fatalf("Failed to create archive uploader: %v", err)
		}
		archiver := archive.NewArchiver(store, uploader, cfg.Collector.ArchivePrefix,
			archive.WithArchiverLogger(logger),
			archive.WithArchiverMetrics(metrics),
		)
		_, err = scheduler.AddFunc(cfg.Collector.ArchiveSchedule, func() {
			if err := archiver.Run(context.Background()); err != nil {
				proclog.WithError(err).Error("Archive run failed")
			}
		})
		if err != nil {
			log.Fatalf("Failed to schedule archiver: %v", err)
		}
		proclog.WithFields(logrus.Fields{
			"bucket":   cfg.Collector.ArchiveBucket,
			"schedule": cfg.Collector.ArchiveSchedule,
		}).Info("Archiver scheduled")
	}
	if _, err := scheduler.AddFunc("0 0 * * *", func() {
		stats, err := store.Stats(context.Background())
		if err != nil {
			proclog.WithError(err).Error("Daily stats aggregation failed")
			return
		}
		proclog.WithFields(logrus.Fields{
			"total_events":    stats.TotalEvents,
			"unique_sessions": stats.UniqueSession,
		}).Info("Daily event stats")
	}); err != nil {
		log.Fatalf("Failed to schedule daily stats: %v", err)
	}
	scheduler.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		proclog.WithField("addr", cfg.Collector.ListenAddr).Info("Collector listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		proclog.Info("Shutting down")

		cronCtx := scheduler.Stop()
		<-cronCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Collector exited with error: %v", err)
	}
	proclog.Info("Collector stopped")
}

func openStore(ctx context.Context, cfg *config.Config, logger *observability.Logger, metrics *observability.Metrics) (collector.EventStore, error) {
	switch cfg.Collector.StorageDriver {
	case "memory":
		return collector.NewMemoryStore(), nil
	case "postgres", "sqlite3":
		return collector.OpenSQLStore(ctx, cfg.Collector.StorageDriver, cfg.Collector.DatabaseURL,
			collector.WithSQLLogger(logger),
			collector.WithSQLMetrics(metrics),
		)
	default:
		return nil, errors.New("unknown storage driver " + cfg.Collector.StorageDriver)
	}
}
