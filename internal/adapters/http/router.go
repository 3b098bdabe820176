package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/geoagg/internal/pkg/metrics"
)

const (
	readTimeout = 15 * time.Second
	runTimeout  = 5 * time.Minute
)

// hullsSunset is when the /hulls alias of /groups?format=geojson goes away.
var hullsSunset = time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC)

func rateLimit(max int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:          max,
		Expiration:   window,
		KeyGenerator: func(c *fiber.Ctx) string { return c.IP() },
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	})
}

func withTimeout(h fiber.Handler, d time.Duration) fiber.Handler {
	return timeout.NewWithContext(h, d)
}

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))
	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())
	app.Use(rateLimit(120, time.Minute))

	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(DeprecationMiddleware([]DeprecatedRoute{
		{Path: "/v1/domains/:id/hulls", SunsetDate: hullsSunset, Alternative: "/v1/domains/:id/groups?format=geojson"},
	}))
	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")

	// Pipeline runs are CPU bound; each client gets far fewer of them.
	runs := v1.Group("/aggregations", rateLimit(10, time.Minute))
	runs.Post("", withTimeout(CreateAggregationHandler(deps), runTimeout))
	runs.Post("/upload", withTimeout(UploadAggregationHandler(deps), runTimeout))

	domains := v1.Group("/domains")
	domains.Get("", withTimeout(ListDomainsHandler(deps), readTimeout))
	domains.Get("/:id", withTimeout(GetDomainHandler(deps), readTimeout))
	domains.Get("/:id/features", withTimeout(DomainFeaturesHandler(deps), readTimeout))
	domains.Get("/:id/groups", withTimeout(DomainGroupsHandler(deps), readTimeout))
	domains.Get("/:id/hulls", withTimeout(DomainHullsHandler(deps), readTimeout))
	domains.Get("/:id/clusters", withTimeout(DomainClustersHandler(deps), readTimeout))

	v1.Get("/params", GetParamsHandler(deps))
	v1.Put("/params", PutParamsHandler(deps))

	app.Post("/graphql", withTimeout(GraphQLHandler(deps), readTimeout))

	SetupDocs(app)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if deps.NATS == nil {
			return errUnavailable(c, "event stream unavailable")
		}
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
