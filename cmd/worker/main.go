package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/geoagg/internal/adapters/geojson"
	"github.com/samirrijal/geoagg/internal/adapters/minio"
	natsadapter "github.com/samirrijal/geoagg/internal/adapters/nats"
	"github.com/samirrijal/geoagg/internal/adapters/postgres"
	"github.com/samirrijal/geoagg/internal/adapters/proj"
	"github.com/samirrijal/geoagg/internal/adapters/valkey"
	"github.com/samirrijal/geoagg/internal/core/domain"
	"github.com/samirrijal/geoagg/internal/core/ports"
	"github.com/samirrijal/geoagg/internal/core/usecases"
	"github.com/samirrijal/geoagg/internal/pkg/config"
	"github.com/samirrijal/geoagg/internal/pkg/logging"
	"github.com/samirrijal/geoagg/internal/pkg/metrics"
	"github.com/samirrijal/geoagg/internal/pkg/telemetry"
	"github.com/samirrijal/geoagg/internal/workflows"
)

// The worker consumes queued aggregation requests from NATS, starts one
// Temporal workflow per request, and executes the workflow activities.
func main() {
	cfg, err := config.Load("geoagg-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	svc, closeAll, err := newService(ctx, cfg)
	if err != nil {
		log.Fatalf("aggregation service: %v", err)
	}
	defer closeAll()

	// Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.AggregationWorkflow)
	w.RegisterActivity(&workflows.AggregationActivities{Service: svc})

	// NATS request queue → workflows
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer sub.Close()

	if err := startWorkflows(ctx, sub, c, cfg.Temporal.TaskQueue); err != nil {
		log.Fatalf("subscribe requests: %v", err)
	}

	slog.Info("aggregation worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(interruptCh(ctx)); err != nil {
		log.Fatalf("worker: %v", err)
	}
	slog.Info("worker stopped")
}

// startWorkflows turns every queued request into one workflow execution.
// The workflow ID derives from the request ID, so a redelivered request
// cannot start a second run.
func startWorkflows(ctx context.Context, sub ports.EventSubscriber, c client.Client, queue string) error {
	return sub.SubscribeAggregationRequests(ctx, func(ctx context.Context, req *domain.AggregationRequest) error {
		run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
			ID:                    "aggregation-" + req.RequestID,
			TaskQueue:             queue,
			WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		}, workflows.AggregationWorkflow, workflows.AggregationInput{Request: *req})
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			slog.Info("aggregation workflow already started", "request_id", req.RequestID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("start workflow: %w", err)
		}
		slog.Info("aggregation workflow started",
			"request_id", req.RequestID,
			"workflow_id", run.GetID(),
			"run_id", run.GetRunID(),
		)
		return nil
	})
}

// newService builds the aggregation service the activities run against.
// The returned func releases every connection it opened.
func newService(ctx context.Context, cfg *config.Config) (*usecases.AggregationService, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	db, err := postgres.New(ctx, cfg.Database.DSN(), 10)
	if err != nil {
		return nil, closeAll, fmt.Errorf("database: %w", err)
	}
	closers = append(closers, db.Close)

	var cache ports.CacheService
	if vc, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.LocalCacheSeconds); err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		cache = vc
		closers = append(closers, vc.Close)
	}

	var events ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats publisher unavailable", "error", err)
	} else {
		events = pub
		closers = append(closers, pub.Close)
	}

	enc := geojson.Encoder{}
	opts := []usecases.ServiceOption{
		usecases.WithBatchObserver(metrics.BatchObserver{}),
		usecases.WithRunHook(metrics.ObserveRun),
		usecases.WithCacheTTL(cfg.Valkey.TTLSeconds),
	}
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
		return nil, closeAll, err
	}
	svc, err := usecases.NewAggregationService(postgres.NewDomainRepo(db), cache, events, proj.New(nil), defaults, opts...)
	if err != nil {
		return nil, closeAll, err
	}
	return svc, closeAll, nil
}

func interruptCh(ctx context.Context) <-chan interface{} {
	ch := make(chan interface{}, 1)
	go func() {
		<-ctx.Done()
		ch <- struct{}{}
	}()
	return ch
}
