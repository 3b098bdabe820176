package http

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
)

var errDisconnected = errors.New("disconnected")

// readinessCheck probes one backing service. A nil probe means the service
// was not configured.
type readinessCheck struct {
	name     string
	required bool
	probe    func(ctx context.Context) error
}

func readinessChecks(deps *Dependencies) []readinessCheck {
	checks := []readinessCheck{
		{name: "database", required: true},
		{name: "nats"},
		{name: "cache"},
	}
	if deps.DB != nil {
		checks[0].probe = func(ctx context.Context) error { return deps.DB.Pool.Ping(ctx) }
	}
	if deps.NATS != nil {
		checks[1].probe = func(context.Context) error {
			if !deps.NATS.IsConnected() {
				return errDisconnected
			}
			return nil
		}
	}
	if deps.Cache != nil {
		checks[2].probe = deps.Cache.Ping
	}
	return checks
}

// HealthHandler returns a liveness check with the active default params.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	return func(c *fiber.Ctx) error {
		body := fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(startedAt).Truncate(time.Second).String(),
			"version": version,
		}
		if deps.Aggregations != nil {
			body["params"] = deps.Aggregations.Defaults()
		}
		return c.JSON(body)
	}
}

// ReadyHandler probes the database, NATS and the cache. Only the database
// is required; a configured optional service that fails still marks the
// instance not ready.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	checks := readinessChecks(deps)

	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		results := make(map[string]string, len(checks))
		ready := true
		for _, chk := range checks {
			switch {
			case chk.probe == nil:
				results[chk.name] = "not configured"
				if chk.required {
					ready = false
				}
			default:
				if err := chk.probe(ctx); err != nil {
					results[chk.name] = "error: " + err.Error()
					ready = false
				} else {
					results[chk.name] = "ok"
				}
			}
		}

		if !ready {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "not ready",
				"checks": results,
			})
		}
		return c.JSON(fiber.Map{"status": "ready", "checks": results})
	}
}
