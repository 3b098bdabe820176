package pipeline_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/geoagg/internal/core/domain"
	"github.com/samirrijal/geoagg/internal/core/pipeline"
)

// shiftReprojector moves every point by a fixed offset and rejects x < 0.
type shiftReprojector struct {
	dx, dy float64
}

func (s shiftReprojector) Reproject(p domain.Point, src, dst string) (domain.Point, error) {
	if p.X < 0 {
		return domain.Point{}, errors.Join(domain.ErrProjection, errors.New("x out of range"))
	}
	return domain.Pt(p.X+s.dx, p.Y+s.dy), nil
}

func pointFeature(id uint64, x, y float64) domain.Feature {
	return domain.Feature{ID: id, Geometry: domain.NewPoint(domain.Pt(x, y)), Properties: map[string]any{}}
}

func TestConcatenate_IDsProvenanceAndOrder(t *testing.T) {
	c := pipeline.NewFeatureConcatenator(domain.DefaultParams(), nil, nil)
	cols := []domain.Collection{
		{Name: "a", Features: []domain.Feature{pointFeature(5, 0, 0), pointFeature(0, 1, 1)}},
		{Name: "b", Features: []domain.Feature{pointFeature(5, 2, 2), pointFeature(7, 3, 3)}},
	}
	out, err := c.Concatenate(context.Background(), cols)
	require.NoError(t, err)
	require.Len(t, out, 4)

	ids := []uint64{out[0].ID, out[1].ID, out[2].ID, out[3].ID}
	assert.Equal(t, []uint64{5, 8, 9, 7}, ids)

	assert.NotContains(t, out[0].Properties, domain.PropOriginalID)
	assert.NotContains(t, out[1].Properties, domain.PropOriginalID)
	assert.Equal(t, uint64(5), out[2].Properties[domain.PropOriginalID])

	for i, want := range []int{0, 0, 1, 1} {
		assert.Equal(t, want, out[i].Source)
		assert.Equal(t, want, out[i].Properties[domain.PropSource])
	}
	assert.Equal(t, domain.Pt(2, 2), out[2].Geometry.Coord)

	// Inputs are left alone.
	assert.NotContains(t, cols[1].Features[0].Properties, domain.PropOriginalID)
}

func TestConcatenate_ReconcilesNominalScale(t *testing.T) {
	p := domain.DefaultParams()
	p.TargetScale = 1
	c := pipeline.NewFeatureConcatenator(p, nil, nil)
	out, err := c.Concatenate(context.Background(), []domain.Collection{
		{Name: "metres", Scale: 1, Features: []domain.Feature{pointFeature(1, 10, 20)}},
		{Name: "millimetres", Scale: 1000, Features: []domain.Feature{pointFeature(2, 10000, 20000)}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Pt(10, 20), out[0].Geometry.Coord)
	assert.Equal(t, domain.Pt(10, 20), out[1].Geometry.Coord)
}

func TestConcatenate_Reprojects(t *testing.T) {
	p := domain.DefaultParams()
	p.TargetCRS = "EPSG:3857"
	c := pipeline.NewFeatureConcatenator(p, nil, shiftReprojector{dx: 100})
	out, err := c.Concatenate(context.Background(), []domain.Collection{
		{Name: "native", CRS: "EPSG:3857", Features: []domain.Feature{pointFeature(1, 1, 1)}},
		{Name: "foreign", CRS: "EPSG:4326", Features: []domain.Feature{pointFeature(2, 1, 1)}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Pt(1, 1), out[0].Geometry.Coord)
	assert.Equal(t, domain.Pt(101, 1), out[1].Geometry.Coord)

	_, err = c.Concatenate(context.Background(), []domain.Collection{
		{Name: "bad", CRS: "EPSG:4326", Features: []domain.Feature{pointFeature(1, -1, 0)}},
	})
	assert.ErrorIs(t, err, domain.ErrProjection)
}

func TestConcatenate_MissingReprojector(t *testing.T) {
	p := domain.DefaultParams()
	p.TargetCRS = "EPSG:3857"
	c := pipeline.NewFeatureConcatenator(p, nil, nil)
	_, err := c.Plan([]domain.Collection{{Name: "x", CRS: "EPSG:4326"}})
	assert.ErrorIs(t, err, domain.ErrProjection)
}

func TestConcatenate_UserScaleAboutGlobalCentroid(t *testing.T) {
	s, err := pipeline.NewScaleTransformer(domain.UniformScale(2), nil)
	require.NoError(t, err)
	c := pipeline.NewFeatureConcatenator(domain.DefaultParams(), s, nil)
	out, err := c.Concatenate(context.Background(), []domain.Collection{
		{Features: []domain.Feature{pointFeature(1, 0, 0)}},
		{Features: []domain.Feature{pointFeature(2, 4, 0)}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Pt(-2, 0), out[0].Geometry.Coord)
	assert.Equal(t, domain.Pt(6, 0), out[1].Geometry.Coord)
}

func TestConcatenate_RejectsMalformedGeometry(t *testing.T) {
	c := pipeline.NewFeatureConcatenator(domain.DefaultParams(), nil, nil)
	open := [][]domain.Point{{domain.Pt(0, 0), domain.Pt(1, 0), domain.Pt(1, 1), domain.Pt(0, 1)}}

	tests := []struct {
		name string
		geom domain.Geometry
	}{
		{"empty line", domain.Geometry{Type: domain.TypeLineString}},
		{"single point line", domain.Geometry{Type: domain.TypeLineString, Line: []domain.Point{domain.Pt(1, 1)}}},
		{"unclosed ring", domain.Geometry{Type: domain.TypePolygon, Rings: open}},
		{"polygon without rings", domain.Geometry{Type: domain.TypePolygon}},
		{"untyped", domain.Geometry{}},
		{"bad multi member", domain.NewMulti(domain.NewPoint(domain.Pt(0, 0)), domain.Geometry{Type: domain.TypeLineString})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Plan([]domain.Collection{{Name: "in", Features: []domain.Feature{
				pointFeature(1, 0, 0),
				{ID: 2, Geometry: tt.geom},
			}}})
			require.ErrorIs(t, err, domain.ErrInvalidParameter)
			assert.Contains(t, err.Error(), `collection "in" feature 1`)
		})
	}
}

func TestConcatenate_RejectsMaxID(t *testing.T) {
	c := pipeline.NewFeatureConcatenator(domain.DefaultParams(), nil, nil)
	_, err := c.Plan([]domain.Collection{{Features: []domain.Feature{
		pointFeature(math.MaxUint64, 0, 0),
		pointFeature(0, 1, 1),
	}}})
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)

	out, err := c.Concatenate(context.Background(), []domain.Collection{{Features: []domain.Feature{
		pointFeature(math.MaxUint64-1, 0, 0),
		pointFeature(0, 1, 1),
	}}})
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), out[1].ID)
}
