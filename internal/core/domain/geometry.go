package domain

import (
	"fmt"
	"math"
)

// Point is a planar coordinate with an optional Z component.
// Points compare with ==; there is no tolerance at this level.
type Point struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z,omitempty"`
	HasZ bool    `json:"has_z,omitempty"`
}

// Pt builds a 2D point.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// PtZ builds a 3D point.
func PtZ(x, y, z float64) Point { return Point{X: x, Y: y, Z: z, HasZ: true} }

// Finite reports whether every present coordinate is a finite number.
func (p Point) Finite() bool {
	if math.IsNaN(p.X) || math.IsInf(p.X, 0) || math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
		return false
	}
	return !p.HasZ || !(math.IsNaN(p.Z) || math.IsInf(p.Z, 0))
}

// DistSq returns the squared planar distance between p and q.
func (p Point) DistSq(q Point) float64 {
	dx, dy := p.X-q.X, p.Y-q.Y
	return dx*dx + dy*dy
}

// Dist returns the planar Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 { return math.Sqrt(p.DistSq(q)) }

func (p Point) String() string {
	if p.HasZ {
		return fmt.Sprintf("(%g,%g,%g)", p.X, p.Y, p.Z)
	}
	return fmt.Sprintf("(%g,%g)", p.X, p.Y)
}

// Centroid returns the arithmetic mean of pts. Z is averaged only when
// every point carries it. The zero Point is returned for empty input.
func Centroid(pts []Point) Point {
	if len(pts) == 0 {
		return Point{}
	}
	var sx, sy, sz float64
	allZ := true
	for _, p := range pts {
		sx += p.X
		sy += p.Y
		sz += p.Z
		allZ = allZ && p.HasZ
	}
	n := float64(len(pts))
	c := Point{X: sx / n, Y: sy / n}
	if allZ {
		c.Z = sz / n
		c.HasZ = true
	}
	return c
}

// GeometryType tags the variant held by a Geometry.
type GeometryType string

const (
	TypePoint      GeometryType = "Point"
	TypeLineString GeometryType = "LineString"
	TypePolygon    GeometryType = "Polygon"
	TypeMulti      GeometryType = "MultiGeometry"
)

// Geometry is a tagged variant. Only the field matching Type is populated.
type Geometry struct {
	Type    GeometryType `json:"type"`
	Coord   Point        `json:"coord,omitempty"`
	Line    []Point      `json:"line,omitempty"`
	Rings   [][]Point    `json:"rings,omitempty"`
	Members []Geometry   `json:"members,omitempty"`
}

// NewPoint wraps a single coordinate.
func NewPoint(p Point) Geometry {
	return Geometry{Type: TypePoint, Coord: p}
}

// NewLineString builds a line from at least two points.
func NewLineString(pts []Point) (Geometry, error) {
	if len(pts) < 2 {
		return Geometry{}, InvalidParameter("linestring needs at least 2 points, got %d", len(pts))
	}
	return Geometry{Type: TypeLineString, Line: append([]Point(nil), pts...)}, nil
}

// NewPolygon builds a polygon. Every ring must be closed and hold at least
// four points.
func NewPolygon(rings [][]Point) (Geometry, error) {
	if len(rings) == 0 {
		return Geometry{}, InvalidParameter("polygon needs at least one ring")
	}
	out := make([][]Point, len(rings))
	for i, r := range rings {
		if err := validRing(r); err != nil {
			return Geometry{}, fmt.Errorf("ring %d: %w", i, err)
		}
		out[i] = append([]Point(nil), r...)
	}
	return Geometry{Type: TypePolygon, Rings: out}, nil
}

// NewMulti groups geometries into one MultiGeometry.
func NewMulti(members ...Geometry) Geometry {
	return Geometry{Type: TypeMulti, Members: append([]Geometry(nil), members...)}
}

func validRing(r []Point) error {
	if len(r) < 4 {
		return InvalidParameter("ring needs at least 4 points, got %d", len(r))
	}
	if r[0] != r[len(r)-1] {
		return InvalidParameter("ring is not closed")
	}
	return nil
}

// Validate checks the structural invariants of g and its members.
func (g Geometry) Validate() error {
	switch g.Type {
	case TypePoint:
		if !g.Coord.Finite() {
			return InvalidParameter("non-finite coordinate %s", g.Coord)
		}
	case TypeLineString:
		if len(g.Line) < 2 {
			return InvalidParameter("linestring needs at least 2 points")
		}
	case TypePolygon:
		if len(g.Rings) == 0 {
			return InvalidParameter("polygon needs at least one ring")
		}
		for i, r := range g.Rings {
			if err := validRing(r); err != nil {
				return fmt.Errorf("ring %d: %w", i, err)
			}
		}
	case TypeMulti:
		for i, m := range g.Members {
			if err := m.Validate(); err != nil {
				return fmt.Errorf("member %d: %w", i, err)
			}
		}
		return nil
	default:
		return InvalidParameter("unknown geometry type %q", g.Type)
	}
	for _, p := range g.Points() {
		if !p.Finite() {
			return InvalidParameter("non-finite coordinate %s", p)
		}
	}
	return nil
}

// Points flattens every coordinate of g in storage order. Polygon rings
// contribute their closing point too.
func (g Geometry) Points() []Point {
	var out []Point
	g.walk(func(p Point) { out = append(out, p) })
	return out
}

// NumPoints counts coordinates without allocating.
func (g Geometry) NumPoints() int {
	n := 0
	g.walk(func(Point) { n++ })
	return n
}

func (g Geometry) walk(fn func(Point)) {
	switch g.Type {
	case TypePoint:
		fn(g.Coord)
	case TypeLineString:
		for _, p := range g.Line {
			fn(p)
		}
	case TypePolygon:
		for _, r := range g.Rings {
			for _, p := range r {
				fn(p)
			}
		}
	case TypeMulti:
		for _, m := range g.Members {
			m.walk(fn)
		}
	}
}

// Bounds returns the axis-aligned box of every coordinate in g.
func (g Geometry) Bounds() BoundingBox {
	b := EmptyBox()
	g.walk(func(p Point) { b = b.Extend(p) })
	return b
}

// Centroid returns the vertex mean of g.
func (g Geometry) Centroid() Point {
	return Centroid(g.Points())
}

// Transform returns a deep copy of g with fn applied to every coordinate.
// The receiver is left untouched.
func (g Geometry) Transform(fn func(Point) Point) Geometry {
	out, _ := g.TryTransform(func(p Point) (Point, error) { return fn(p), nil })
	return out
}

// TryTransform is Transform for mappings that can fail. The first error
// aborts the copy.
func (g Geometry) TryTransform(fn func(Point) (Point, error)) (Geometry, error) {
	out := Geometry{Type: g.Type}
	var err error
	switch g.Type {
	case TypePoint:
		out.Coord, err = fn(g.Coord)
	case TypeLineString:
		out.Line, err = mapPoints(g.Line, fn)
	case TypePolygon:
		out.Rings = make([][]Point, len(g.Rings))
		for i, r := range g.Rings {
			if out.Rings[i], err = mapPoints(r, fn); err != nil {
				break
			}
		}
	case TypeMulti:
		out.Members = make([]Geometry, len(g.Members))
		for i, m := range g.Members {
			if out.Members[i], err = m.TryTransform(fn); err != nil {
				break
			}
		}
	}
	if err != nil {
		return Geometry{}, err
	}
	return out, nil
}

func mapPoints(in []Point, fn func(Point) (Point, error)) ([]Point, error) {
	out := make([]Point, len(in))
	for i, p := range in {
		q, err := fn(p)
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return out, nil
}
