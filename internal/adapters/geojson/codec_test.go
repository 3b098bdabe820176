package geojson_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/geoagg/internal/adapters/geojson"
	"github.com/samirrijal/geoagg/internal/core/domain"
)

const sample = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": 7, "geometry": {"type": "Point", "coordinates": [1, 2]}, "properties": {"name": "a"}},
    {"type": "Feature", "geometry": {"type": "LineString", "coordinates": [[0, 0], [3, 4]]}, "properties": {}},
    {"type": "Feature", "id": "12", "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,0]]]}, "properties": null},
    {"type": "Feature", "geometry": {"type": "MultiPoint", "coordinates": [[5, 5], [6, 6]]}, "properties": {}}
  ]
}`

func TestDecode(t *testing.T) {
	col, err := geojson.Decode([]byte(sample), "roads", "EPSG:4326")
	require.NoError(t, err)
	require.Len(t, col.Features, 4)

	assert.Equal(t, "roads", col.Name)
	assert.Equal(t, "EPSG:4326", col.CRS)

	assert.Equal(t, uint64(7), col.Features[0].ID)
	assert.Equal(t, domain.TypePoint, col.Features[0].Geometry.Type)
	assert.Equal(t, domain.Pt(1, 2), col.Features[0].Geometry.Coord)
	assert.Equal(t, "a", col.Features[0].Properties["name"])

	assert.Equal(t, uint64(2), col.Features[1].ID, "missing id falls back to position")
	assert.Equal(t, domain.TypeLineString, col.Features[1].Geometry.Type)

	assert.Equal(t, uint64(12), col.Features[2].ID)
	assert.Equal(t, domain.TypePolygon, col.Features[2].Geometry.Type)

	assert.Equal(t, domain.TypeMulti, col.Features[3].Geometry.Type)
	assert.Len(t, col.Features[3].Geometry.Members, 2)
}

func TestDecode_OpenRingRejected(t *testing.T) {
	doc := `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1]]]},"properties":{}}]}`
	_, err := geojson.Decode([]byte(doc), "bad", "")
	assert.True(t, errors.Is(err, domain.ErrInvalidParameter), "got %v", err)
}

func TestDecode_Malformed(t *testing.T) {
	_, err := geojson.Decode([]byte(`{"type":`), "broken", "")
	assert.Error(t, err)
}

func TestToOrb_UniformMultiTypes(t *testing.T) {
	mp := domain.NewMulti(domain.NewPoint(domain.Pt(0, 0)), domain.NewPoint(domain.Pt(1, 1)))
	assert.IsType(t, orb.MultiPoint{}, geojson.ToOrb(mp))

	line, err := domain.NewLineString([]domain.Point{domain.Pt(0, 0), domain.Pt(1, 1)})
	require.NoError(t, err)
	mixed := domain.NewMulti(domain.NewPoint(domain.Pt(0, 0)), line)
	assert.IsType(t, orb.Collection{}, geojson.ToOrb(mixed))
}

func TestEncoder_EncodeDomain(t *testing.T) {
	d := &domain.Domain{
		Features: []domain.Feature{
			{ID: 3, Geometry: domain.NewPoint(domain.Pt(1, 1)), Properties: map[string]any{domain.PropClusterSize: 2}},
		},
		BBox: domain.BoxOf(domain.Pt(0, 0), domain.Pt(2, 2)),
	}
	data, err := geojson.Encoder{}.EncodeDomain(d)
	require.NoError(t, err)

	var doc struct {
		Type     string    `json:"type"`
		BBox     []float64 `json:"bbox"`
		Features []struct {
			ID         float64        `json:"id"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "FeatureCollection", doc.Type)
	assert.Equal(t, []float64{0, 0, 2, 2}, doc.BBox)
	require.Len(t, doc.Features, 1)
	assert.Equal(t, float64(3), doc.Features[0].ID)
	assert.Equal(t, float64(2), doc.Features[0].Properties[domain.PropClusterSize])
}

func TestEncoder_Simplify(t *testing.T) {
	line, err := domain.NewLineString([]domain.Point{domain.Pt(0, 0), domain.Pt(1, 0.01), domain.Pt(2, 0)})
	require.NoError(t, err)
	fc := geojson.Encoder{Simplify: 0.1}.Features([]domain.Feature{{ID: 1, Geometry: line}})
	require.Len(t, fc.Features, 1)
	assert.Len(t, fc.Features[0].Geometry.(orb.LineString), 2)
}

func TestEncoder_HullsSkipEmpty(t *testing.T) {
	groups := []domain.GroupBounds{
		{Key: "*", Bounds: domain.Bounds{Hull: domain.Hull{Kind: domain.HullSegment, Vertices: []domain.Point{domain.Pt(0, 0), domain.Pt(1, 1)}}}},
		{Key: "none", Bounds: domain.Bounds{Hull: domain.Hull{Kind: domain.HullEmpty}}},
	}
	fc := geojson.Encoder{}.Hulls(groups)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "*", fc.Features[0].Properties["group"])
	assert.IsType(t, orb.LineString{}, fc.Features[0].Geometry)
}
