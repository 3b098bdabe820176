package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geoagg",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "geoagg",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 10},
	}, []string{"method", "path"})

	// Pipeline metrics
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geoagg",
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Aggregation runs by outcome",
	}, []string{"outcome"})

	PipelineRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "geoagg",
		Subsystem: "pipeline",
		Name:      "run_duration_seconds",
		Help:      "Wall time of a full aggregation run",
		Buckets:   prometheus.ExponentialBuckets(0.005, 4, 9),
	})

	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "geoagg",
		Subsystem: "pipeline",
		Name:      "batch_duration_seconds",
		Help:      "Wall time of a single batch",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
	})

	FeaturesIn = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "geoagg",
		Subsystem: "pipeline",
		Name:      "features_in_total",
		Help:      "Features entering batches",
	})

	FeaturesOut = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "geoagg",
		Subsystem: "pipeline",
		Name:      "features_out_total",
		Help:      "Features leaving batches after deduplication",
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "geoagg",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geoagg",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geoagg",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "geoagg",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "geoagg",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// BatchObserver feeds per-batch timings into the pipeline histograms.
type BatchObserver struct{}

func (BatchObserver) BatchDone(_ int, elapsed time.Duration, in, out int) {
	BatchDuration.Observe(elapsed.Seconds())
	FeaturesIn.Add(float64(in))
	FeaturesOut.Add(float64(out))
}

// ObserveRun records the outcome and duration of one aggregation run.
func ObserveRun(start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	PipelineRuns.WithLabelValues(outcome).Inc()
	PipelineRunDuration.Observe(time.Since(start).Seconds())
}

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := strconv.Itoa(c.Response().StatusCode())
		// Route patterns keep /v1/domains/:id at one series.
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(c *fiber.Ctx) error {
		handler(c.Context())
		return nil
	}
}

// PoolStat is the subset of pgxpool.Stat read by UpdateDBPoolMetrics.
type PoolStat interface {
	AcquiredConns() int32
	IdleConns() int32
}

// UpdateDBPoolMetrics copies pool gauges from stat.
func UpdateDBPoolMetrics(stat PoolStat) {
	DBPoolConnsAcquired.Set(float64(stat.AcquiredConns()))
	DBPoolConnsIdle.Set(float64(stat.IdleConns()))
}
