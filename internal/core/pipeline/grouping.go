package pipeline

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/samirrijal/geoagg/internal/core/domain"
	"github.com/samirrijal/geoagg/internal/core/spatial"
)

// AllGroup is the key used when no grouping is requested.
const AllGroup = "*"

// GroupKey returns the hull group f belongs to under the group_by setting.
func GroupKey(f domain.Feature, by string) string {
	switch by {
	case "":
		return AllGroup
	case domain.GroupBySource:
		return strconv.Itoa(f.Source)
	}
	v, ok := f.Properties[by]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// GroupByOverlap returns index sets of boxes that overlap transitively.
// Sets are ordered by their smallest index; undefined boxes stay alone.
func GroupByOverlap(boxes []domain.BoundingBox) [][]int {
	uf := spatial.NewUnionFind(len(boxes))
	order := make([]int, 0, len(boxes))
	for i, b := range boxes {
		uf.MakeSet(uint64(i))
		if b.Defined {
			order = append(order, i)
		}
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case boxes[a].Min.X < boxes[b].Min.X:
			return -1
		case boxes[a].Min.X > boxes[b].Min.X:
			return 1
		}
		return 0
	})

	// Sweep along X keeping only boxes whose span still reaches the cursor.
	var active []int
	for _, i := range order {
		cur := boxes[i]
		kept := active[:0]
		for _, j := range active {
			if boxes[j].Max.X < cur.Min.X {
				continue
			}
			kept = append(kept, j)
			if boxes[j].Intersects(cur) {
				uf.Union(uint64(i), uint64(j))
			}
		}
		active = append(kept, i)
	}

	sets := uf.Sets()
	out := make([][]int, len(sets))
	for i, s := range sets {
		out[i] = make([]int, len(s))
		for j, v := range s {
			out[i][j] = int(v)
		}
	}
	return out
}

// Footprints merges the boxes of overlapping features.
func Footprints(features []domain.Feature) []domain.Footprint {
	boxes := make([]domain.BoundingBox, len(features))
	for i, f := range features {
		boxes[i] = f.Geometry.Bounds()
	}
	groups := GroupByOverlap(boxes)
	out := make([]domain.Footprint, 0, len(groups))
	for _, g := range groups {
		fp := domain.Footprint{BBox: domain.EmptyBox(), Members: make([]uint64, 0, len(g))}
		for _, i := range g {
			fp.BBox = fp.BBox.Union(boxes[i])
			fp.Members = append(fp.Members, features[i].ID)
		}
		slices.Sort(fp.Members)
		out = append(out, fp)
	}
	return out
}

// PickByBoundingBox returns the features whose bounds intersect box, or lie
// entirely inside it when within is set. Input order is preserved.
func PickByBoundingBox(features []domain.Feature, box domain.BoundingBox, within bool) []domain.Feature {
	var out []domain.Feature
	for _, f := range features {
		b := f.Geometry.Bounds()
		if within {
			if box.Contains(b.Min) && box.Contains(b.Max) {
				out = append(out, f)
			}
			continue
		}
		if box.Intersects(b) {
			out = append(out, f)
		}
	}
	return out
}
