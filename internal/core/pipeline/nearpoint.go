package pipeline

import (
	"math"
	"slices"

	"github.com/samirrijal/geoagg/internal/core/domain"
	"github.com/samirrijal/geoagg/internal/core/spatial"
)

// NearPointFilter groups points that are chained together by pairwise
// distances of at most epsilon. A-B and B-C within epsilon puts A, B and C
// in one cluster even when A-C is farther apart.
type NearPointFilter struct {
	epsilon float64
}

// NewNearPointFilter rejects negative or non-finite thresholds.
func NewNearPointFilter(epsilon float64) (*NearPointFilter, error) {
	if epsilon < 0 || math.IsNaN(epsilon) || math.IsInf(epsilon, 0) {
		return nil, domain.InvalidParameter("epsilon must be finite and >= 0, got %v", epsilon)
	}
	return &NearPointFilter{epsilon: epsilon}, nil
}

// Epsilon returns the distance threshold.
func (f *NearPointFilter) Epsilon() float64 { return f.epsilon }

// Cluster returns one cluster per connected group, ordered by
// representative. Item IDs must be unique.
func (f *NearPointFilter) Cluster(items []spatial.Item) []domain.Cluster {
	return f.ClusterLinked(items, nil)
}

// ClusterLinked is Cluster restricted to pairs accepted by link. A nil link
// accepts every pair.
func (f *NearPointFilter) ClusterLinked(items []spatial.Item, link func(a, b uint64) bool) []domain.Cluster {
	if len(items) == 0 {
		return nil
	}
	byID := make(map[uint64]domain.Point, len(items))
	for _, it := range items {
		byID[it.ID] = it.Point
	}

	idx := spatial.BuildIndex(items)
	uf := spatial.NewUnionFind(len(items))
	ordered := append([]spatial.Item(nil), items...)
	slices.SortFunc(ordered, func(a, b spatial.Item) int { return cmpID(a.ID, b.ID) })

	for _, it := range ordered {
		uf.MakeSet(it.ID)
		for _, nb := range idx.QueryWithin(it.Point, f.epsilon) {
			if nb == it.ID || (link != nil && !link(it.ID, nb)) {
				continue
			}
			uf.Union(it.ID, nb)
		}
	}

	sets := uf.Sets()
	out := make([]domain.Cluster, len(sets))
	for i, members := range sets {
		pts := make([]domain.Point, len(members))
		for j, id := range members {
			pts[j] = byID[id]
		}
		out[i] = domain.Cluster{
			Representative: members[0],
			Members:        members,
			Centroid:       domain.Centroid(pts),
		}
	}
	return out
}

// ThinVertices drops line and multipoint vertices lying within epsilon of a
// vertex already kept, scanning in order. Distances equal to epsilon count
// as near. Lines always keep both endpoints; polygons are returned as is.
func ThinVertices(g domain.Geometry, epsilon float64) domain.Geometry {
	if epsilon <= 0 {
		return g
	}
	switch g.Type {
	case domain.TypeLineString:
		if len(g.Line) < 2 {
			return g
		}
		kept := thin(g.Line, epsilon)
		if last := g.Line[len(g.Line)-1]; kept[len(kept)-1] != last {
			kept = append(kept, last)
		}
		return domain.Geometry{Type: domain.TypeLineString, Line: kept}
	case domain.TypeMulti:
		var pts []domain.Point
		rest := make([]domain.Geometry, 0, len(g.Members))
		for _, m := range g.Members {
			if m.Type == domain.TypePoint {
				pts = append(pts, m.Coord)
				continue
			}
			rest = append(rest, ThinVertices(m, epsilon))
		}
		members := make([]domain.Geometry, 0, len(pts)+len(rest))
		for _, p := range thin(pts, epsilon) {
			members = append(members, domain.NewPoint(p))
		}
		return domain.NewMulti(append(members, rest...)...)
	}
	return g
}

func thin(pts []domain.Point, epsilon float64) []domain.Point {
	if len(pts) == 0 {
		return nil
	}
	idx := spatial.NewIndex()
	kept := make([]domain.Point, 0, len(pts))
	for i, p := range pts {
		if len(idx.QueryWithin(p, epsilon)) > 0 {
			continue
		}
		idx.Insert(uint64(i), p)
		kept = append(kept, p)
	}
	return kept
}

func cmpID(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
