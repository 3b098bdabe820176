package domain

import "time"

// HullKind describes how many dimensions a hull spans.
type HullKind string

const (
	HullEmpty   HullKind = "empty"
	HullPoint   HullKind = "point"
	HullSegment HullKind = "segment"
	HullPolygon HullKind = "polygon"
)

// Hull is a convex outline. Polygon vertices run counterclockwise from the
// lowest, then leftmost, vertex and are not closed.
type Hull struct {
	Kind     HullKind `json:"kind"`
	Vertices []Point  `json:"vertices"`
}

// Geometry converts the hull into the smallest covering geometry.
func (h Hull) Geometry() Geometry {
	switch h.Kind {
	case HullPoint:
		return NewPoint(h.Vertices[0])
	case HullSegment:
		return Geometry{Type: TypeLineString, Line: append([]Point(nil), h.Vertices...)}
	case HullPolygon:
		ring := append(append([]Point(nil), h.Vertices...), h.Vertices[0])
		return Geometry{Type: TypePolygon, Rings: [][]Point{ring}}
	}
	return NewMulti()
}

// Bounds pairs a hull with the bounding box computed in the same pass.
type Bounds struct {
	Hull Hull        `json:"hull"`
	BBox BoundingBox `json:"bbox"`
}

// GroupBounds is the hull of one grouping key.
type GroupBounds struct {
	Key string `json:"key"`
	Bounds
}

// Cluster is a set of transitively near point features.
// Representative is the smallest member ID.
type Cluster struct {
	Representative uint64   `json:"representative"`
	Members        []uint64 `json:"members"`
	Centroid       Point    `json:"centroid"`
	Bounds
}

// Footprint is a set of features whose boxes overlap transitively.
type Footprint struct {
	BBox    BoundingBox `json:"bbox"`
	Members []uint64    `json:"members"`
}

// FeatureHull is the convex outline of a single feature.
type FeatureHull struct {
	FeatureIDs []uint64 `json:"feature_ids"`
	Outline    Geometry `json:"outline"`
}

// LineExtension is the fan of guide segments drawn at one line vertex:
// forward, backward, then the left and right perpendiculars, each a
// two-point LineString inside a MultiGeometry.
type LineExtension struct {
	FeatureID uint64   `json:"feature_id"`
	Vertex    Point    `json:"vertex"`
	Bend      bool     `json:"bend,omitempty"`
	Segments  Geometry `json:"segments"`
}

// Domain is the result of one pipeline run. It is not modified after the
// run returns it.
type Domain struct {
	ID           string          `json:"id,omitempty"`
	CreatedAt    time.Time       `json:"created_at,omitempty"`
	Params       Params          `json:"params"`
	Features     []Feature       `json:"features"`
	Clusters     []Cluster       `json:"clusters"`
	BBox         BoundingBox     `json:"bbox"`
	Groups       []GroupBounds   `json:"groups"`
	Footprints   []Footprint     `json:"footprints,omitempty"`
	FeatureHulls []FeatureHull   `json:"feature_hulls,omitempty"`
	Extensions   []LineExtension `json:"extensions,omitempty"`
	InputCount   int             `json:"input_count"`
}

// Summary is the listing view of a stored domain.
type Summary struct {
	ID           string      `json:"id"`
	CreatedAt    time.Time   `json:"created_at"`
	FeatureCount int         `json:"feature_count"`
	ClusterCount int         `json:"cluster_count"`
	InputCount   int         `json:"input_count"`
	BBox         BoundingBox `json:"bbox"`
	Params       Params      `json:"params"`
}

// Summarize returns the listing view of d.
func (d *Domain) Summarize() Summary {
	return Summary{
		ID:           d.ID,
		CreatedAt:    d.CreatedAt,
		FeatureCount: len(d.Features),
		ClusterCount: len(d.Clusters),
		InputCount:   d.InputCount,
		BBox:         d.BBox,
		Params:       d.Params,
	}
}
