package http

import (
	"github.com/gofiber/fiber/v2"
)

// cacheRule assigns a Cache-Control value to a route pattern.
type cacheRule struct {
	pattern string
	value   string
}

// Stored domains and everything derived from them are immutable. Listings,
// params and probes change between requests.
var cacheRules = []cacheRule{
	{"/v1/health", "no-cache"},
	{"/v1/ready", "no-cache"},
	{"/v1/params", "no-cache"},
	{"/metrics", "no-store"},
	{"/v1/domains", "public, max-age=15"},
	{"/v1/domains/:id", "public, max-age=86400, immutable"},
	{"/v1/domains/:id/features", "public, max-age=86400, immutable"},
	{"/v1/domains/:id/groups", "public, max-age=86400, immutable"},
	{"/v1/domains/:id/hulls", "public, max-age=86400, immutable"},
	{"/v1/domains/:id/clusters", "public, max-age=86400, immutable"},
	{"/docs/openapi.yaml", "public, max-age=3600"},
	{"/docs/openapi.json", "public, max-age=3600"},
}

// CachingMiddleware sets Cache-Control on successful GET responses that
// did not set one themselves.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet || c.Response().StatusCode() != fiber.StatusOK {
			return err
		}
		if c.GetRespHeader(fiber.HeaderCacheControl) != "" {
			return err
		}

		path := c.Path()
		for _, r := range cacheRules {
			if _, ok := matchPattern(path, r.pattern); ok {
				c.Set(fiber.HeaderCacheControl, r.value)
				break
			}
		}
		return err
	}
}
