package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/geoagg/internal/adapters/geojson"
	"github.com/samirrijal/geoagg/internal/adapters/http"
	"github.com/samirrijal/geoagg/internal/adapters/minio"
	natsadapter "github.com/samirrijal/geoagg/internal/adapters/nats"
	"github.com/samirrijal/geoagg/internal/adapters/postgres"
	"github.com/samirrijal/geoagg/internal/adapters/proj"
	"github.com/samirrijal/geoagg/internal/adapters/valkey"
	"github.com/samirrijal/geoagg/internal/core/ports"
	"github.com/samirrijal/geoagg/internal/core/usecases"
	"github.com/samirrijal/geoagg/internal/pkg/config"
	"github.com/samirrijal/geoagg/internal/pkg/logging"
	"github.com/samirrijal/geoagg/internal/pkg/metrics"
	"github.com/samirrijal/geoagg/internal/pkg/telemetry"
)

var version = "dev"

func main() {
	// The service is created after the first load; reloads reach it through current.
	var current atomic.Pointer[usecases.AggregationService]
	cfg, err := config.Watch("geoagg-api", func(next *config.Config) {
		svc := current.Load()
		if svc == nil {
			return
		}
		p, err := next.Params()
		if err != nil {
			slog.Warn("ignoring reloaded params", "error", err)
			return
		}
		if err := svc.UpdateParams(p); err != nil {
			slog.Warn("ignoring reloaded params", "error", err)
		}
	})
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	// Database
	dsn := cfg.Database.DSN()
	if os.Getenv("GEOAGG_AUTO_MIGRATE") == "true" {
		if err := postgres.MigrateUp(dsn); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}
	db, err := postgres.New(ctx, dsn, 20)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	go func() {
		t := time.NewTicker(15 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				metrics.UpdateDBPoolMetrics(db.Pool.Stat())
			}
		}
	}()

	// Cache
	var cache ports.CacheService
	vc, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.LocalCacheSeconds)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		cache = vc
		defer vc.Close()
	}

	// NATS
	var events ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		events = pub
		defer pub.Close()
	}

	enc := geojson.Encoder{}
	opts := []usecases.ServiceOption{
		usecases.WithBatchObserver(metrics.BatchObserver{}),
		usecases.WithRunHook(metrics.ObserveRun),
		usecases.WithCacheTTL(cfg.Valkey.TTLSeconds),
	}

	// Object storage for exports
	if cfg.Storage.Endpoint != "" {
		store, err := minio.New(ctx, cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.Bucket, cfg.Storage.UseSSL)
		if err != nil {
			slog.Warn("object storage unavailable, exports disabled", "error", err)
		} else {
			opts = append(opts, usecases.WithExport(store, enc))
		}
	}

	defaults, err := cfg.Params()
	if err != nil {
		log.Fatalf("params: %v", err)
	}
	svc, err := usecases.NewAggregationService(
		postgres.NewDomainRepo(db), cache, events, proj.New(nil), defaults, opts...,
	)
	if err != nil {
		log.Fatalf("aggregation service: %v", err)
	}
	current.Store(svc)

	deps := &http.Dependencies{
		Aggregations: svc,
		Encoder:      enc,
		DB:           db,
		Cache:        vc,
		Version:      version,
	}
	if pub != nil {
		deps.NATS = pub.Conn()
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimitMB * 1024 * 1024,
		AppName:      "GeoAgg API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "version", version)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Synchronous runs may take a while; give them up to 30s
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
