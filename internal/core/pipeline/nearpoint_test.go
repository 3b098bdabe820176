package pipeline_test

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/geoagg/internal/core/domain"
	"github.com/samirrijal/geoagg/internal/core/pipeline"
	"github.com/samirrijal/geoagg/internal/core/spatial"
)

func items(pts ...domain.Point) []spatial.Item {
	out := make([]spatial.Item, len(pts))
	for i, p := range pts {
		out[i] = spatial.Item{ID: uint64(i + 1), Point: p}
	}
	return out
}

func TestNearPointFilter_Scenario(t *testing.T) {
	f, err := pipeline.NewNearPointFilter(1.0)
	require.NoError(t, err)

	clusters := f.Cluster(items(domain.Pt(0, 0), domain.Pt(0, 0.5), domain.Pt(10, 10)))
	require.Len(t, clusters, 2)

	assert.Equal(t, uint64(1), clusters[0].Representative)
	assert.Equal(t, []uint64{1, 2}, clusters[0].Members)
	assert.Equal(t, domain.Pt(0, 0.25), clusters[0].Centroid)

	assert.Equal(t, uint64(3), clusters[1].Representative)
	assert.Equal(t, []uint64{3}, clusters[1].Members)
	assert.Equal(t, domain.Pt(10, 10), clusters[1].Centroid)
}

func TestNearPointFilter_TransitiveChain(t *testing.T) {
	f, err := pipeline.NewNearPointFilter(1.0)
	require.NoError(t, err)

	var pts []domain.Point
	for i := 0; i < 10; i++ {
		pts = append(pts, domain.Pt(float64(i)*0.9, 0))
	}
	require.Greater(t, pts[0].Dist(pts[9]), 1.0)

	clusters := f.Cluster(items(pts...))
	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0].Members, 10)
	assert.Equal(t, uint64(1), clusters[0].Representative)
}

func TestNearPointFilter_ZeroEpsilonMergesExactDuplicates(t *testing.T) {
	f, err := pipeline.NewNearPointFilter(0)
	require.NoError(t, err)

	clusters := f.Cluster(items(domain.Pt(1, 1), domain.Pt(1, 1), domain.Pt(1, 1.0000001)))
	require.Len(t, clusters, 2)
	assert.Equal(t, []uint64{1, 2}, clusters[0].Members)
	assert.Equal(t, []uint64{3}, clusters[1].Members)
}

func TestNearPointFilter_EmptyAndSingle(t *testing.T) {
	f, err := pipeline.NewNearPointFilter(1)
	require.NoError(t, err)

	assert.Empty(t, f.Cluster(nil))

	single := f.Cluster([]spatial.Item{{ID: 42, Point: domain.Pt(3, 4)}})
	require.Len(t, single, 1)
	assert.Equal(t, uint64(42), single[0].Representative)
	assert.Equal(t, domain.Pt(3, 4), single[0].Centroid)
}

func TestNearPointFilter_Deterministic(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	pts := make([]domain.Point, 400)
	for i := range pts {
		pts[i] = domain.Pt(r.Float64()*20, r.Float64()*20)
	}
	f, err := pipeline.NewNearPointFilter(0.7)
	require.NoError(t, err)

	in := items(pts...)
	first := f.Cluster(in)

	// Reverse the input order; clusters must not change.
	rev := make([]spatial.Item, len(in))
	for i := range in {
		rev[len(in)-1-i] = in[i]
	}
	assert.Equal(t, first, f.Cluster(in))
	assert.Equal(t, first, f.Cluster(rev))
}

func TestNearPointFilter_LinkRestrictsPairs(t *testing.T) {
	f, err := pipeline.NewNearPointFilter(1)
	require.NoError(t, err)

	onlyOdd := func(a, b uint64) bool { return a%2 == 1 && b%2 == 1 }
	clusters := f.ClusterLinked(items(domain.Pt(0, 0), domain.Pt(0.5, 0), domain.Pt(0.6, 0)), onlyOdd)
	require.Len(t, clusters, 2)
	assert.Equal(t, []uint64{1, 3}, clusters[0].Members)
	assert.Equal(t, []uint64{2}, clusters[1].Members)
}

func TestNewNearPointFilter_Invalid(t *testing.T) {
	for _, eps := range []float64{-1, math.NaN(), math.Inf(1)} {
		_, err := pipeline.NewNearPointFilter(eps)
		assert.True(t, errors.Is(err, domain.ErrInvalidParameter), "epsilon %v", eps)
	}
}

func TestThinVertices(t *testing.T) {
	line, err := domain.NewLineString([]domain.Point{
		domain.Pt(0, 0), domain.Pt(0.1, 0), domain.Pt(0.3, 0), domain.Pt(1, 0), domain.Pt(1.2, 0),
	})
	require.NoError(t, err)

	got := pipeline.ThinVertices(line, 0.3)
	// (0.3,0) sits exactly on the threshold and is dropped; the endpoint is kept.
	assert.Equal(t, []domain.Point{domain.Pt(0, 0), domain.Pt(1, 0), domain.Pt(1.2, 0)}, got.Line)
	assert.Len(t, line.Line, 5, "input must not be modified")

	multi := domain.NewMulti(domain.NewPoint(domain.Pt(0, 0)), domain.NewPoint(domain.Pt(0.2, 0)), domain.NewPoint(domain.Pt(2, 0)))
	assert.Equal(t, 2, pipeline.ThinVertices(multi, 0.3).NumPoints())

	assert.Equal(t, line, pipeline.ThinVertices(line, 0))
}

func TestThinVertices_ShortLineUnchanged(t *testing.T) {
	for _, line := range [][]domain.Point{nil, {domain.Pt(1, 1)}} {
		g := domain.Geometry{Type: domain.TypeLineString, Line: line}
		assert.Equal(t, g, pipeline.ThinVertices(g, 0.5))
	}
}
