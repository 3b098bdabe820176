package pipeline_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/geoagg/internal/core/domain"
	"github.com/samirrijal/geoagg/internal/core/pipeline"
)

func collector(t *testing.T, tol float64) *pipeline.ConvexBoundsCollector {
	t.Helper()
	c, err := pipeline.NewConvexBoundsCollector(tol)
	require.NoError(t, err)
	return c
}

func TestHull_CollinearIsSegment(t *testing.T) {
	b := collector(t, 1e-9).Points([]domain.Point{
		domain.Pt(2, 2), domain.Pt(0, 0), domain.Pt(3, 3), domain.Pt(1, 1),
	})
	assert.Equal(t, domain.HullSegment, b.Hull.Kind)
	assert.Equal(t, []domain.Point{domain.Pt(0, 0), domain.Pt(3, 3)}, b.Hull.Vertices)
	assert.Equal(t, domain.BoxOf(domain.Pt(0, 0), domain.Pt(3, 3)), b.BBox)
}

func TestHull_Degenerate(t *testing.T) {
	c := collector(t, 0)

	empty := c.Points(nil)
	assert.Equal(t, domain.HullEmpty, empty.Hull.Kind)
	assert.False(t, empty.BBox.Defined)

	one := c.Points([]domain.Point{domain.Pt(1, 2), domain.Pt(1, 2)})
	assert.Equal(t, domain.HullPoint, one.Hull.Kind)
	assert.Equal(t, []domain.Point{domain.Pt(1, 2)}, one.Hull.Vertices)
	assert.True(t, one.BBox.Defined)
	assert.Equal(t, one.BBox.Min, one.BBox.Max)

	two := c.Points([]domain.Point{domain.Pt(5, 1), domain.Pt(0, 3)})
	assert.Equal(t, domain.HullSegment, two.Hull.Kind)
	assert.Equal(t, []domain.Point{domain.Pt(5, 1), domain.Pt(0, 3)}, two.Hull.Vertices)
}

func TestHull_SquareOrderedCounterclockwiseFromLowest(t *testing.T) {
	b := collector(t, 1e-9).Points([]domain.Point{
		domain.Pt(1, 1), domain.Pt(0, 1), domain.Pt(0.5, 0.5), domain.Pt(1, 0), domain.Pt(0, 0), domain.Pt(0.5, 0),
	})
	require.Equal(t, domain.HullPolygon, b.Hull.Kind)
	assert.Equal(t, []domain.Point{
		domain.Pt(0, 0), domain.Pt(1, 0), domain.Pt(1, 1), domain.Pt(0, 1),
	}, b.Hull.Vertices)

	g := b.Hull.Geometry()
	assert.Equal(t, domain.TypePolygon, g.Type)
	assert.NoError(t, g.Validate())
}

func TestHull_ContainsEveryInputPoint(t *testing.T) {
	r := rand.New(rand.NewSource(9))
	pts := make([]domain.Point, 300)
	for i := range pts {
		pts[i] = domain.Pt(r.NormFloat64()*10, r.NormFloat64()*10)
	}
	b := collector(t, 0).Points(pts)
	require.Equal(t, domain.HullPolygon, b.Hull.Kind)

	input := make(map[domain.Point]bool, len(pts))
	for _, p := range pts {
		input[p] = true
	}
	for _, v := range b.Hull.Vertices {
		assert.True(t, input[v], "hull vertex %v is not an input point", v)
	}

	hv := b.Hull.Vertices
	for _, p := range pts {
		assert.True(t, b.BBox.Contains(p))
		for i := range hv {
			a, c := hv[i], hv[(i+1)%len(hv)]
			cross := (c.X-a.X)*(p.Y-a.Y) - (c.Y-a.Y)*(p.X-a.X)
			assert.GreaterOrEqual(t, cross, -1e-9, "point %v outside edge %v-%v", p, a, c)
		}
	}
}

func TestCollector_MergeEqualsWhole(t *testing.T) {
	r := rand.New(rand.NewSource(21))
	pts := make([]domain.Point, 200)
	for i := range pts {
		pts[i] = domain.Pt(r.Float64()*50, r.Float64()*50)
	}
	c := collector(t, 1e-9)
	whole := c.Points(pts)
	merged := c.Merge(c.Points(pts[:70]), c.Points(pts[70:150]), c.Points(pts[150:]), c.Points(nil))
	assert.Equal(t, whole, merged)
}

func TestCollector_FeatureHulls(t *testing.T) {
	sq, err := domain.NewPolygon([][]domain.Point{{
		domain.Pt(0, 0), domain.Pt(2, 0), domain.Pt(2, 2), domain.Pt(0, 2), domain.Pt(0, 0),
	}})
	require.NoError(t, err)
	line, err := domain.NewLineString([]domain.Point{domain.Pt(5, 5), domain.Pt(6, 7)})
	require.NoError(t, err)

	hulls := collector(t, 0).FeatureHulls([]domain.Feature{
		{ID: 1, Geometry: sq},
		{ID: 2, Geometry: line},
		{ID: 3, Geometry: sq},
	})
	require.Len(t, hulls, 2)
	assert.Equal(t, []uint64{1, 3}, hulls[0].FeatureIDs)
	assert.Equal(t, []uint64{2}, hulls[1].FeatureIDs)
	assert.Equal(t, domain.BoxOf(domain.Pt(5, 5), domain.Pt(6, 7)).Polygon(), hulls[1].Outline)
}

func TestNewConvexBoundsCollector_Invalid(t *testing.T) {
	_, err := pipeline.NewConvexBoundsCollector(-1e-9)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}
