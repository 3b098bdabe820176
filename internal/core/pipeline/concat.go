package pipeline

import (
	"context"
	"fmt"
	"math"

	"github.com/samirrijal/geoagg/internal/core/domain"
	"github.com/samirrijal/geoagg/internal/core/ports"
)

// Entry is one input feature after identifier reconciliation, still in its
// source coordinates.
type Entry struct {
	Feature    domain.Feature
	Collection int
}

// Plan is the sequential outcome of concatenation: every entry in source
// order, then in-collection order, with globally unique IDs.
type Plan struct {
	Entries     []Entry
	Origin      domain.Point
	collections []domain.Collection
	units       []*ScaleTransformer // nil when the collection already matches
}

// FeatureConcatenator merges collections into one identifier space and
// brings their coordinates into the target reference system and scale.
type FeatureConcatenator struct {
	targetCRS     string
	targetScale   float64
	user          *ScaleTransformer
	vertexEpsilon float64
	reprojector   ports.Reprojector
}

// NewFeatureConcatenator builds a concatenator. user may be nil when no
// extra scaling is requested; reprojector may be nil when all inputs share
// the target CRS.
func NewFeatureConcatenator(p domain.Params, user *ScaleTransformer, reprojector ports.Reprojector) *FeatureConcatenator {
	return &FeatureConcatenator{
		targetCRS:     p.TargetCRS,
		targetScale:   p.TargetScale,
		user:          user,
		vertexEpsilon: p.VertexEpsilon,
		reprojector:   reprojector,
	}
}

// Plan validates every geometry, assigns identifiers and fixes the scale
// origin. Original IDs are kept unless zero or already taken; replaced IDs
// are stored under domain.PropOriginalID.
func (c *FeatureConcatenator) Plan(cols []domain.Collection) (*Plan, error) {
	var maxID uint64
	total := 0
	for _, col := range cols {
		for i, f := range col.Features {
			if err := f.Geometry.Validate(); err != nil {
				return nil, fmt.Errorf("collection %q feature %d: %w", col.Name, i, err)
			}
			maxID = max(maxID, f.ID)
		}
		total += len(col.Features)
	}
	// Fresh IDs are allocated above the largest one seen.
	if maxID == math.MaxUint64 {
		return nil, domain.InvalidParameter("feature id %d is reserved", uint64(math.MaxUint64))
	}

	plan := &Plan{Entries: make([]Entry, 0, total), collections: cols, units: make([]*ScaleTransformer, len(cols))}
	used := make(map[uint64]struct{}, total)
	next := maxID + 1
	for ci, col := range cols {
		if c.needsReprojection(col) && c.reprojector == nil {
			return nil, fmt.Errorf("%w: collection %q is in %s, no reprojector for %s", domain.ErrProjection, col.Name, col.CRS, c.targetCRS)
		}
		if col.Scale < 0 {
			return nil, domain.InvalidParameter("collection %q has negative scale %v", col.Name, col.Scale)
		}
		if c.targetScale > 0 && col.Scale > 0 && col.Scale != c.targetScale {
			unit, err := NewScaleTransformer(domain.UniformScale(c.targetScale/col.Scale), &domain.Point{})
			if err != nil {
				return nil, fmt.Errorf("collection %q: %w", col.Name, err)
			}
			plan.units[ci] = unit
		}
		for _, f := range col.Features {
			props := f.CloneProperties()
			props[domain.PropSource] = ci
			id := f.ID
			if _, taken := used[id]; id == 0 || taken {
				if f.ID != 0 {
					props[domain.PropOriginalID] = f.ID
				}
				id = next
				next++
			}
			used[id] = struct{}{}
			plan.Entries = append(plan.Entries, Entry{
				Collection: ci,
				Feature:    domain.Feature{ID: id, Source: ci, Geometry: f.Geometry, Properties: props},
			})
		}
	}

	origin, err := c.origin(plan)
	if err != nil {
		return nil, err
	}
	plan.Origin = origin
	return plan, nil
}

// origin is the configured scale origin, or the vertex-weighted mean of the
// per-collection centroids after reprojection and unit scaling.
func (c *FeatureConcatenator) origin(plan *Plan) (domain.Point, error) {
	if c.user == nil {
		return domain.Point{}, nil
	}
	if c.user.origin != nil {
		return *c.user.origin, nil
	}
	var sx, sy, n float64
	for ci, col := range plan.collections {
		var pts []domain.Point
		for _, f := range col.Features {
			pts = append(pts, f.Geometry.Points()...)
		}
		if len(pts) == 0 {
			continue
		}
		ctr, err := c.normalize(plan, ci, domain.Centroid(pts))
		if err != nil {
			return domain.Point{}, err
		}
		w := float64(len(pts))
		sx += ctr.X * w
		sy += ctr.Y * w
		n += w
	}
	if n == 0 {
		return domain.Point{}, nil
	}
	return domain.Pt(sx/n, sy/n), nil
}

// Materialize transforms entries into domain features. It is safe to call
// concurrently on disjoint entry slices.
func (c *FeatureConcatenator) Materialize(ctx context.Context, plan *Plan, entries []Entry) ([]domain.Feature, error) {
	out := make([]domain.Feature, len(entries))
	for i, e := range entries {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		g, err := e.Feature.Geometry.TryTransform(func(p domain.Point) (domain.Point, error) {
			q, err := c.normalize(plan, e.Collection, p)
			if err != nil {
				return domain.Point{}, err
			}
			if c.user != nil {
				q = c.user.Point(q, plan.Origin)
			}
			return q, nil
		})
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", e.Feature.ID, err)
		}
		f := e.Feature
		f.Geometry = ThinVertices(g, c.vertexEpsilon)
		out[i] = f
	}
	return out, nil
}

// Concatenate plans and materializes cols in one call.
func (c *FeatureConcatenator) Concatenate(ctx context.Context, cols []domain.Collection) ([]domain.Feature, error) {
	plan, err := c.Plan(cols)
	if err != nil {
		return nil, err
	}
	return c.Materialize(ctx, plan, plan.Entries)
}

// normalize reprojects p into the target CRS and reconciles nominal scale.
func (c *FeatureConcatenator) normalize(plan *Plan, ci int, p domain.Point) (domain.Point, error) {
	col := plan.collections[ci]
	if c.needsReprojection(col) {
		q, err := c.reprojector.Reproject(p, col.CRS, c.targetCRS)
		if err != nil {
			return domain.Point{}, err
		}
		p = q
	}
	if unit := plan.units[ci]; unit != nil {
		p = unit.Point(p, domain.Point{})
	}
	return p, nil
}

func (c *FeatureConcatenator) needsReprojection(col domain.Collection) bool {
	return col.CRS != "" && c.targetCRS != "" && col.CRS != c.targetCRS
}
