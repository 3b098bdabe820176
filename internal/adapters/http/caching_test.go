package http

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestCachingMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(CachingMiddleware())
	ok := func(c *fiber.Ctx) error { return c.SendString("ok") }
	app.Get("/v1/domains", ok)
	app.Get("/v1/domains/:id", ok)
	app.Get("/v1/domains/:id/features", ok)
	app.Get("/v1/params", ok)
	app.Get("/v1/other", ok)
	app.Get("/v1/custom", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderCacheControl, "private")
		return c.SendString("ok")
	})
	app.Get("/v1/missing", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNotFound) })

	tests := []struct {
		path string
		want string
	}{
		{"/v1/domains", "public, max-age=15"},
		{"/v1/domains/abc", "public, max-age=86400, immutable"},
		{"/v1/domains/abc/features", "public, max-age=86400, immutable"},
		{"/v1/params", "no-cache"},
		{"/v1/other", ""},
		{"/v1/custom", "private"},
		{"/v1/missing", ""},
	}
	for _, tt := range tests {
		resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil), -1)
		if err != nil {
			t.Fatalf("%s: %v", tt.path, err)
		}
		if got := resp.Header.Get(fiber.HeaderCacheControl); got != tt.want {
			t.Errorf("%s: Cache-Control = %q, want %q", tt.path, got, tt.want)
		}
	}
}
