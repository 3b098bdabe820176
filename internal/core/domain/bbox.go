package domain

import (
	"encoding/json"
	"math"
)

// BoundingBox is an axis-aligned box. A box with Defined=false covers
// nothing; it is the identity for Union and the result for empty input.
type BoundingBox struct {
	Min     Point
	Max     Point
	Defined bool
}

// EmptyBox returns the undefined box.
func EmptyBox() BoundingBox { return BoundingBox{} }

// BoxOf returns the box covering pts.
func BoxOf(pts ...Point) BoundingBox {
	b := EmptyBox()
	for _, p := range pts {
		b = b.Extend(p)
	}
	return b
}

// Extend grows b to include p.
func (b BoundingBox) Extend(p Point) BoundingBox {
	if !b.Defined {
		return BoundingBox{Min: Point{X: p.X, Y: p.Y}, Max: Point{X: p.X, Y: p.Y}, Defined: true}
	}
	b.Min.X = math.Min(b.Min.X, p.X)
	b.Min.Y = math.Min(b.Min.Y, p.Y)
	b.Max.X = math.Max(b.Max.X, p.X)
	b.Max.Y = math.Max(b.Max.Y, p.Y)
	return b
}

// Union returns the component-wise min/max of b and o.
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	if !o.Defined {
		return b
	}
	if !b.Defined {
		return o
	}
	return b.Extend(o.Min).Extend(o.Max)
}

// Contains reports whether p lies inside or on the edge of b.
func (b BoundingBox) Contains(p Point) bool {
	return b.Defined && p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// Intersects reports whether b and o share at least one point.
func (b BoundingBox) Intersects(o BoundingBox) bool {
	if !b.Defined || !o.Defined {
		return false
	}
	return b.Min.X <= o.Max.X && o.Min.X <= b.Max.X && b.Min.Y <= o.Max.Y && o.Min.Y <= b.Max.Y
}

// Polygon returns the closed outline of b, counterclockwise from Min.
func (b BoundingBox) Polygon() Geometry {
	if !b.Defined {
		return NewMulti()
	}
	return Geometry{Type: TypePolygon, Rings: [][]Point{{
		Pt(b.Min.X, b.Min.Y),
		Pt(b.Max.X, b.Min.Y),
		Pt(b.Max.X, b.Max.Y),
		Pt(b.Min.X, b.Max.Y),
		Pt(b.Min.X, b.Min.Y),
	}}}
}

type boxJSON struct {
	Min [2]float64 `json:"min"`
	Max [2]float64 `json:"max"`
}

// MarshalJSON writes null for an undefined box.
func (b BoundingBox) MarshalJSON() ([]byte, error) {
	if !b.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(boxJSON{
		Min: [2]float64{b.Min.X, b.Min.Y},
		Max: [2]float64{b.Max.X, b.Max.Y},
	})
}

func (b *BoundingBox) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*b = EmptyBox()
		return nil
	}
	var v boxJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*b = BoundingBox{Min: Pt(v.Min[0], v.Min[1]), Max: Pt(v.Max[0], v.Max[1]), Defined: true}
	return nil
}
