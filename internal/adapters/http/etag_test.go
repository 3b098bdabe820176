package http

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestETagMatches(t *testing.T) {
	cases := []struct {
		header, etag string
		want         bool
	}{
		{"", `"abc"`, false},
		{`"abc"`, `"abc"`, true},
		{`W/"abc"`, `"abc"`, true},
		{`"x", W/"abc"`, `W/"abc"`, true},
		{`"x", "y"`, `"abc"`, false},
		{"*", `"abc"`, true},
	}
	for _, tc := range cases {
		if got := etagMatches(tc.header, tc.etag); got != tc.want {
			t.Errorf("etagMatches(%q, %q) = %v", tc.header, tc.etag, got)
		}
	}
}

func TestETagMiddleware_StrongForDomains(t *testing.T) {
	app := fiber.New()
	app.Use(ETagMiddleware())
	app.Get("/v1/domains/:id", func(c *fiber.Ctx) error { return c.SendString("domain") })
	app.Get("/v1/params", func(c *fiber.Ctx) error { return c.SendString("params") })

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/domains/d1", nil), -1)
	etag := resp.Header.Get("ETag")
	if etag == "" || strings.HasPrefix(etag, "W/") {
		t.Fatalf("expected strong etag, got %q", etag)
	}

	req := httptest.NewRequest("GET", "/v1/domains/d1", nil)
	req.Header.Set("If-None-Match", etag)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 304 {
		t.Fatalf("expected 304, got %d", resp.StatusCode)
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/v1/params", nil), -1)
	if etag := resp.Header.Get("ETag"); !strings.HasPrefix(etag, "W/") {
		t.Fatalf("expected weak etag, got %q", etag)
	}
}
