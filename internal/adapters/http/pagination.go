package http

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// PaginatedResponse wraps list results with pagination metadata.
type PaginatedResponse struct {
	Data       any        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Pagination contains offset-based pagination info.
type Pagination struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
}

// parsePagination reads ?offset and ?limit. Out-of-range values fall back to
// offset 0 and the default limit.
func parsePagination(c *fiber.Ctx) Pagination {
	p := Pagination{Offset: c.QueryInt("offset", 0), Limit: c.QueryInt("limit", defaultPageLimit)}
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 || p.Limit > maxPageLimit {
		p.Limit = defaultPageLimit
	}
	return p
}

// SetLinkHeaders adds RFC 8288 first/prev/next/last links for p.
func SetLinkHeaders(c *fiber.Ctx, p Pagination) {
	page := func(offset int, rel string) string {
		return fmt.Sprintf(`<%s?offset=%d&limit=%d>; rel="%s"`, c.Path(), offset, p.Limit, rel)
	}

	links := []string{page(0, "first")}
	if p.Offset > 0 {
		links = append(links, page(max(p.Offset-p.Limit, 0), "prev"))
	}
	if p.Offset+p.Limit < p.Total {
		links = append(links, page(p.Offset+p.Limit, "next"))
	}
	if p.Total > 0 {
		last := (p.Total - 1) / p.Limit * p.Limit
		links = append(links, page(last, "last"))
	}
	c.Set("Link", strings.Join(links, ", "))
}
