package spatial_test

import (
	"math/rand"
	"slices"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/geoagg/internal/core/domain"
	"github.com/samirrijal/geoagg/internal/core/spatial"
)

func randomItems(n int, seed int64) []spatial.Item {
	r := rand.New(rand.NewSource(seed))
	items := make([]spatial.Item, n)
	for i := range items {
		// Coarse grid so that duplicates and axis ties are common.
		items[i] = spatial.Item{
			ID:    uint64(i + 1),
			Point: domain.Pt(float64(r.Intn(50))/2, float64(r.Intn(50))/2),
		}
	}
	return items
}

func bruteWithin(items []spatial.Item, c domain.Point, radius float64) []uint64 {
	var out []uint64
	for _, it := range items {
		if it.Point.DistSq(c) <= radius*radius {
			out = append(out, it.ID)
		}
	}
	slices.Sort(out)
	return out
}

func sorted(ids []uint64) []uint64 {
	out := append([]uint64(nil), ids...)
	slices.Sort(out)
	return out
}

func TestQueryWithin_MatchesBruteForce(t *testing.T) {
	items := randomItems(500, 7)
	bulk := spatial.BuildIndex(items)
	inc := spatial.NewIndex()
	for _, it := range items {
		inc.Insert(it.ID, it.Point)
	}
	require.Equal(t, len(items), bulk.Len())
	require.Equal(t, len(items), inc.Len())

	r := rand.New(rand.NewSource(11))
	for i := 0; i < 100; i++ {
		c := domain.Pt(r.Float64()*25, r.Float64()*25)
		radius := r.Float64() * 3
		want := bruteWithin(items, c, radius)
		assert.Equal(t, want, sorted(bulk.QueryWithin(c, radius)), "bulk center=%v r=%v", c, radius)
		assert.Equal(t, want, sorted(inc.QueryWithin(c, radius)), "insert center=%v r=%v", c, radius)
	}
}

func TestQueryWithin_BoundaryIsInclusive(t *testing.T) {
	ix := spatial.BuildIndex([]spatial.Item{
		{ID: 1, Point: domain.Pt(0, 0)},
		{ID: 2, Point: domain.Pt(1, 0)},
		{ID: 3, Point: domain.Pt(2, 0)},
	})
	assert.Equal(t, []uint64{1, 2}, sorted(ix.QueryWithin(domain.Pt(0, 0), 1)))
	assert.Equal(t, []uint64{1}, sorted(ix.QueryWithin(domain.Pt(0, 0), 0)))
}

func TestQueryWithin_Empty(t *testing.T) {
	assert.Empty(t, spatial.NewIndex().QueryWithin(domain.Pt(0, 0), 10))
	assert.Empty(t, spatial.BuildIndex(nil).Nearest(domain.Pt(0, 0), 3))
}

func TestNearest_TiesByAscendingID(t *testing.T) {
	ix := spatial.BuildIndex([]spatial.Item{
		{ID: 9, Point: domain.Pt(1, 0)},
		{ID: 4, Point: domain.Pt(-1, 0)},
		{ID: 7, Point: domain.Pt(0, 1)},
		{ID: 2, Point: domain.Pt(0, -1)},
		{ID: 5, Point: domain.Pt(5, 5)},
	})
	got := ix.Nearest(domain.Pt(0, 0), 3)
	require.Len(t, got, 3)
	assert.Equal(t, uint64(2), got[0].ID)
	assert.Equal(t, uint64(4), got[1].ID)
	assert.Equal(t, uint64(7), got[2].ID)
	assert.Equal(t, 1.0, got[0].DistSq)
}

func TestNearest_MatchesBruteForce(t *testing.T) {
	items := randomItems(300, 3)
	ix := spatial.NewIndex()
	for _, it := range items {
		ix.Insert(it.ID, it.Point)
	}
	q := domain.Pt(12.3, 7.7)
	want := append([]spatial.Item(nil), items...)
	sort.Slice(want, func(i, j int) bool {
		di, dj := want[i].Point.DistSq(q), want[j].Point.DistSq(q)
		if di != dj {
			return di < dj
		}
		return want[i].ID < want[j].ID
	})
	got := ix.Nearest(q, 10)
	require.Len(t, got, 10)
	for i := range got {
		assert.Equal(t, want[i].ID, got[i].ID, "rank %d", i)
	}
}

func TestNearest_KLargerThanIndex(t *testing.T) {
	ix := spatial.BuildIndex(randomItems(4, 1))
	assert.Len(t, ix.Nearest(domain.Pt(0, 0), 10), 4)
}
