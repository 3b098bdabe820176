// Package geojson converts between GeoJSON documents and domain values.
// Coordinates are read as 2D; a third ordinate is dropped by the decoder.
package geojson

import (
	"fmt"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/simplify"

	"github.com/samirrijal/geoagg/internal/core/domain"
)

// Decode parses a FeatureCollection. Features without a numeric id get
// their 1-based position; the pipeline reconciles collisions later.
func Decode(data []byte, name, crs string) (domain.Collection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return domain.Collection{}, fmt.Errorf("%s: %w", name, err)
	}
	return FromFeatureCollection(fc, name, crs)
}

// FromFeatureCollection converts an already parsed collection.
func FromFeatureCollection(fc *geojson.FeatureCollection, name, crs string) (domain.Collection, error) {
	col := domain.Collection{Name: name, CRS: crs, Features: make([]domain.Feature, 0, len(fc.Features))}
	for i, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		g, err := FromOrb(f.Geometry)
		if err != nil {
			return domain.Collection{}, fmt.Errorf("%s: feature %d: %w", name, i, err)
		}
		if err := g.Validate(); err != nil {
			return domain.Collection{}, fmt.Errorf("%s: feature %d: %w", name, i, err)
		}
		id, ok := featureID(f.ID)
		if !ok {
			id = uint64(i + 1)
		}
		props := make(map[string]any, len(f.Properties))
		for k, v := range f.Properties {
			props[k] = v
		}
		col.Features = append(col.Features, domain.Feature{ID: id, Geometry: g, Properties: props})
	}
	return col, nil
}

func featureID(v any) (uint64, bool) {
	switch id := v.(type) {
	case float64:
		if id >= 1 && id == float64(uint64(id)) {
			return uint64(id), true
		}
	case string:
		if n, err := strconv.ParseUint(id, 10, 64); err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}

// FromOrb converts an orb geometry.
func FromOrb(g orb.Geometry) (domain.Geometry, error) {
	switch v := g.(type) {
	case orb.Point:
		return domain.NewPoint(fromPoint(v)), nil
	case orb.MultiPoint:
		members := make([]domain.Geometry, len(v))
		for i, p := range v {
			members[i] = domain.NewPoint(fromPoint(p))
		}
		return domain.NewMulti(members...), nil
	case orb.LineString:
		return domain.NewLineString(fromPoints(v))
	case orb.MultiLineString:
		members := make([]domain.Geometry, len(v))
		for i, ls := range v {
			m, err := domain.NewLineString(fromPoints(ls))
			if err != nil {
				return domain.Geometry{}, err
			}
			members[i] = m
		}
		return domain.NewMulti(members...), nil
	case orb.Ring:
		return domain.NewPolygon([][]domain.Point{fromPoints(v)})
	case orb.Polygon:
		return fromPolygon(v)
	case orb.MultiPolygon:
		members := make([]domain.Geometry, len(v))
		for i, p := range v {
			m, err := fromPolygon(p)
			if err != nil {
				return domain.Geometry{}, err
			}
			members[i] = m
		}
		return domain.NewMulti(members...), nil
	case orb.Collection:
		members := make([]domain.Geometry, len(v))
		for i, c := range v {
			m, err := FromOrb(c)
			if err != nil {
				return domain.Geometry{}, err
			}
			members[i] = m
		}
		return domain.NewMulti(members...), nil
	case orb.Bound:
		return domain.BoxOf(fromPoint(v.Min), fromPoint(v.Max)).Polygon(), nil
	}
	return domain.Geometry{}, domain.InvalidParameter("unsupported geometry %T", g)
}

func fromPolygon(p orb.Polygon) (domain.Geometry, error) {
	rings := make([][]domain.Point, len(p))
	for i, r := range p {
		rings[i] = fromPoints(r)
	}
	return domain.NewPolygon(rings)
}

func fromPoint(p orb.Point) domain.Point { return domain.Pt(p[0], p[1]) }

func fromPoints(ps []orb.Point) []domain.Point {
	out := make([]domain.Point, len(ps))
	for i, p := range ps {
		out[i] = fromPoint(p)
	}
	return out
}

// ToOrb converts a domain geometry. Multi geometries with uniform members
// become the matching orb multi type.
func ToOrb(g domain.Geometry) orb.Geometry {
	switch g.Type {
	case domain.TypePoint:
		return toPoint(g.Coord)
	case domain.TypeLineString:
		return orb.LineString(toPoints(g.Line))
	case domain.TypePolygon:
		return toPolygon(g.Rings)
	}

	switch uniformType(g.Members) {
	case domain.TypePoint:
		mp := make(orb.MultiPoint, len(g.Members))
		for i, m := range g.Members {
			mp[i] = toPoint(m.Coord)
		}
		return mp
	case domain.TypeLineString:
		ml := make(orb.MultiLineString, len(g.Members))
		for i, m := range g.Members {
			ml[i] = toPoints(m.Line)
		}
		return ml
	case domain.TypePolygon:
		mp := make(orb.MultiPolygon, len(g.Members))
		for i, m := range g.Members {
			mp[i] = toPolygon(m.Rings)
		}
		return mp
	}
	c := make(orb.Collection, len(g.Members))
	for i, m := range g.Members {
		c[i] = ToOrb(m)
	}
	return c
}

func uniformType(ms []domain.Geometry) domain.GeometryType {
	if len(ms) == 0 {
		return ""
	}
	t := ms[0].Type
	for _, m := range ms[1:] {
		if m.Type != t {
			return ""
		}
	}
	return t
}

func toPoint(p domain.Point) orb.Point { return orb.Point{p.X, p.Y} }

func toPoints(ps []domain.Point) []orb.Point {
	out := make([]orb.Point, len(ps))
	for i, p := range ps {
		out[i] = toPoint(p)
	}
	return out
}

func toPolygon(rings [][]domain.Point) orb.Polygon {
	p := make(orb.Polygon, len(rings))
	for i, r := range rings {
		p[i] = orb.Ring(toPoints(r))
	}
	return p
}

// Encoder writes domains as GeoJSON FeatureCollections.
// A positive Simplify applies Douglas-Peucker to lines and polygons.
type Encoder struct {
	Simplify float64
}

func (e Encoder) ContentType() string { return "application/geo+json" }

func (e Encoder) Extension() string { return ".geojson" }

// EncodeDomain writes every output feature plus the domain bbox.
func (e Encoder) EncodeDomain(d *domain.Domain) ([]byte, error) {
	fc := e.Features(d.Features)
	if d.BBox.Defined {
		fc.BBox = geojson.NewBBox(orb.Bound{Min: toPoint(d.BBox.Min), Max: toPoint(d.BBox.Max)})
	}
	return fc.MarshalJSON()
}

// Features builds a FeatureCollection from domain features.
func (e Encoder) Features(fs []domain.Feature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range fs {
		g := ToOrb(f.Geometry)
		if e.Simplify > 0 {
			g = simplify.DouglasPeucker(e.Simplify).Simplify(g)
		}
		gf := geojson.NewFeature(g)
		gf.ID = f.ID
		for k, v := range f.Properties {
			gf.Properties[k] = v
		}
		fc.Append(gf)
	}
	return fc
}

// Hulls builds one feature per hull group.
func (e Encoder) Hulls(groups []domain.GroupBounds) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, g := range groups {
		if g.Hull.Kind == domain.HullEmpty {
			continue
		}
		gf := geojson.NewFeature(ToOrb(g.Hull.Geometry()))
		gf.Properties["group"] = g.Key
		gf.Properties["kind"] = string(g.Hull.Kind)
		fc.Append(gf)
	}
	return fc
}
