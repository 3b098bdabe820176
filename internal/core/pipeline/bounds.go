package pipeline

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/samirrijal/geoagg/internal/core/domain"
)

// ConvexBoundsCollector computes convex hulls and bounding boxes.
// Cross products with magnitude at most tolerance are treated as collinear.
type ConvexBoundsCollector struct {
	tolerance float64
}

// NewConvexBoundsCollector rejects negative or non-finite tolerances.
func NewConvexBoundsCollector(tolerance float64) (*ConvexBoundsCollector, error) {
	if tolerance < 0 || math.IsNaN(tolerance) || math.IsInf(tolerance, 0) {
		return nil, domain.InvalidParameter("hull_tolerance must be finite and >= 0, got %v", tolerance)
	}
	return &ConvexBoundsCollector{tolerance: tolerance}, nil
}

// Geometries collects the bounds of every coordinate in gs.
func (c *ConvexBoundsCollector) Geometries(gs ...domain.Geometry) domain.Bounds {
	var pts []domain.Point
	for _, g := range gs {
		pts = append(pts, g.Points()...)
	}
	return c.Points(pts)
}

// Points returns the hull and box of pts. Degenerate input produces a
// point or segment hull; the box is defined whenever pts is non-empty.
func (c *ConvexBoundsCollector) Points(pts []domain.Point) domain.Bounds {
	box := domain.EmptyBox()
	for _, p := range pts {
		box = box.Extend(p)
	}
	return domain.Bounds{Hull: c.hull(pts), BBox: box}
}

// Merge combines partial results. The hull of the union of partial hull
// vertices equals the hull of the union of their inputs.
func (c *ConvexBoundsCollector) Merge(parts ...domain.Bounds) domain.Bounds {
	var pts []domain.Point
	box := domain.EmptyBox()
	for _, p := range parts {
		pts = append(pts, p.Hull.Vertices...)
		box = box.Union(p.BBox)
	}
	return domain.Bounds{Hull: c.hull(pts), BBox: box}
}

func (c *ConvexBoundsCollector) hull(in []domain.Point) domain.Hull {
	pts := append([]domain.Point(nil), in...)
	slices.SortFunc(pts, lexLess)
	pts = slices.CompactFunc(pts, func(a, b domain.Point) bool { return a.X == b.X && a.Y == b.Y })

	switch len(pts) {
	case 0:
		return domain.Hull{Kind: domain.HullEmpty}
	case 1:
		return domain.Hull{Kind: domain.HullPoint, Vertices: pts}
	}

	// Andrew's monotone chain.
	h := make([]domain.Point, 0, 2*len(pts))
	for _, p := range pts {
		for len(h) >= 2 && cross(h[len(h)-2], h[len(h)-1], p) <= c.tolerance {
			h = h[:len(h)-1]
		}
		h = append(h, p)
	}
	lower := len(h) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(h) >= lower && cross(h[len(h)-2], h[len(h)-1], p) <= c.tolerance {
			h = h[:len(h)-1]
		}
		h = append(h, p)
	}
	h = h[:len(h)-1]

	if len(h) < 3 {
		seg := []domain.Point{pts[0], pts[len(pts)-1]}
		if lowestFirst(seg[1], seg[0]) {
			seg[0], seg[1] = seg[1], seg[0]
		}
		return domain.Hull{Kind: domain.HullSegment, Vertices: seg}
	}

	start := 0
	for i := range h {
		if lowestFirst(h[i], h[start]) {
			start = i
		}
	}
	out := append(append(make([]domain.Point, 0, len(h)), h[start:]...), h[:start]...)
	return domain.Hull{Kind: domain.HullPolygon, Vertices: out}
}

// FeatureHulls returns one outline per feature: the convex hull when the
// feature has at least three distinct points, its box otherwise. Features
// with identical outlines share one entry.
func (c *ConvexBoundsCollector) FeatureHulls(features []domain.Feature) []domain.FeatureHull {
	var out []domain.FeatureHull
	seen := make(map[string]int)
	for _, f := range features {
		b := c.Geometries(f.Geometry)
		outline := b.BBox.Polygon()
		if b.Hull.Kind == domain.HullPolygon {
			outline = b.Hull.Geometry()
		}
		key := outlineKey(outline)
		if i, ok := seen[key]; ok {
			out[i].FeatureIDs = append(out[i].FeatureIDs, f.ID)
			continue
		}
		seen[key] = len(out)
		out = append(out, domain.FeatureHull{FeatureIDs: []uint64{f.ID}, Outline: outline})
	}
	return out
}

func outlineKey(g domain.Geometry) string {
	var sb strings.Builder
	for _, p := range g.Points() {
		fmt.Fprintf(&sb, "%x,%x;", math.Float64bits(p.X), math.Float64bits(p.Y))
	}
	return sb.String()
}

func cross(o, a, b domain.Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

func lexLess(a, b domain.Point) int {
	switch {
	case a.X < b.X:
		return -1
	case a.X > b.X:
		return 1
	case a.Y < b.Y:
		return -1
	case a.Y > b.Y:
		return 1
	}
	return 0
}

// lowestFirst orders by Y, then X.
func lowestFirst(a, b domain.Point) bool {
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}
