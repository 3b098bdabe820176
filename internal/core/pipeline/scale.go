package pipeline

import "github.com/samirrijal/geoagg/internal/core/domain"

// ScaleTransformer scales coordinates about an origin. It never mutates its
// input; callers may share geometries across goroutines.
type ScaleTransformer struct {
	factor domain.Scale
	origin *domain.Point
}

// NewScaleTransformer validates factor. A nil origin means each call scales
// about the centroid of what it is given.
func NewScaleTransformer(factor domain.Scale, origin *domain.Point) (*ScaleTransformer, error) {
	if err := factor.Validate(); err != nil {
		return nil, err
	}
	if origin != nil && !origin.Finite() {
		return nil, domain.InvalidParameter("scale origin must be finite")
	}
	s := &ScaleTransformer{factor: factor}
	if origin != nil {
		o := *origin
		s.origin = &o
	}
	return s, nil
}

// Factor returns the configured scale.
func (s *ScaleTransformer) Factor() domain.Scale { return s.factor }

// WithOrigin returns a copy of s pinned to o.
func (s *ScaleTransformer) WithOrigin(o domain.Point) *ScaleTransformer {
	return &ScaleTransformer{factor: s.factor, origin: &o}
}

// Point scales p about o.
func (s *ScaleTransformer) Point(p, o domain.Point) domain.Point {
	q := domain.Point{
		X: o.X + (p.X-o.X)*s.factor.X,
		Y: o.Y + (p.Y-o.Y)*s.factor.Y,
	}
	if p.HasZ {
		q.Z = o.Z + (p.Z-o.Z)*s.factor.Z
		q.HasZ = true
	}
	return q
}

// Geometry returns a scaled copy of g.
func (s *ScaleTransformer) Geometry(g domain.Geometry) domain.Geometry {
	o := s.originFor(func() domain.Point { return g.Centroid() })
	return g.Transform(func(p domain.Point) domain.Point { return s.Point(p, o) })
}

// Features returns scaled copies of fs. Without a fixed origin the whole
// collection is scaled about the centroid of all its coordinates.
func (s *ScaleTransformer) Features(fs []domain.Feature) []domain.Feature {
	o := s.originFor(func() domain.Point {
		var pts []domain.Point
		for _, f := range fs {
			pts = append(pts, f.Geometry.Points()...)
		}
		return domain.Centroid(pts)
	})
	out := make([]domain.Feature, len(fs))
	for i, f := range fs {
		out[i] = domain.Feature{
			ID:         f.ID,
			Source:     f.Source,
			Geometry:   f.Geometry.Transform(func(p domain.Point) domain.Point { return s.Point(p, o) }),
			Properties: f.CloneProperties(),
		}
	}
	return out
}

func (s *ScaleTransformer) originFor(centroid func() domain.Point) domain.Point {
	if s.origin != nil {
		return *s.origin
	}
	return centroid()
}
