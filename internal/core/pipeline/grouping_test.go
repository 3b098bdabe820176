package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/geoagg/internal/core/domain"
	"github.com/samirrijal/geoagg/internal/core/pipeline"
)

func box(x0, y0, x1, y1 float64) domain.BoundingBox {
	return domain.BoxOf(domain.Pt(x0, y0), domain.Pt(x1, y1))
}

func TestGroupByOverlap(t *testing.T) {
	groups := pipeline.GroupByOverlap([]domain.BoundingBox{
		box(0, 0, 2, 2),
		box(10, 10, 11, 11),
		box(1, 1, 3, 3),
		box(2.5, 2.5, 4, 4), // touches box 2 only
		domain.EmptyBox(),
		box(0, 5, 1, 6), // same X span as box 0, no Y overlap
	})
	assert.Equal(t, [][]int{{0, 2, 3}, {1}, {4}, {5}}, groups)
}

func TestFootprints(t *testing.T) {
	fps := pipeline.Footprints([]domain.Feature{
		{ID: 7, Geometry: box(0, 0, 2, 2).Polygon()},
		{ID: 3, Geometry: box(1, 1, 5, 5).Polygon()},
		{ID: 9, Geometry: domain.NewPoint(domain.Pt(20, 20))},
	})
	require.Len(t, fps, 2)
	assert.Equal(t, []uint64{3, 7}, fps[0].Members)
	assert.Equal(t, box(0, 0, 5, 5), fps[0].BBox)
	assert.Equal(t, []uint64{9}, fps[1].Members)
}

func TestPickByBoundingBox(t *testing.T) {
	fs := []domain.Feature{
		{ID: 1, Geometry: domain.NewPoint(domain.Pt(1, 1))},
		{ID: 2, Geometry: box(4, 4, 6, 6).Polygon()},
		{ID: 3, Geometry: domain.NewPoint(domain.Pt(9, 9))},
	}
	q := box(0, 0, 5, 5)

	hit := pipeline.PickByBoundingBox(fs, q, false)
	require.Len(t, hit, 2)
	assert.Equal(t, uint64(1), hit[0].ID)
	assert.Equal(t, uint64(2), hit[1].ID)

	inside := pipeline.PickByBoundingBox(fs, q, true)
	require.Len(t, inside, 1)
	assert.Equal(t, uint64(1), inside[0].ID)

	assert.Empty(t, pipeline.PickByBoundingBox(fs, domain.EmptyBox(), false))
}

func TestGroupKey(t *testing.T) {
	f := domain.Feature{Source: 2, Properties: map[string]any{"layer": "roads", "lanes": 4}}
	assert.Equal(t, pipeline.AllGroup, pipeline.GroupKey(f, ""))
	assert.Equal(t, "2", pipeline.GroupKey(f, domain.GroupBySource))
	assert.Equal(t, "roads", pipeline.GroupKey(f, "layer"))
	assert.Equal(t, "4", pipeline.GroupKey(f, "lanes"))
	assert.Equal(t, "", pipeline.GroupKey(f, "missing"))
}
