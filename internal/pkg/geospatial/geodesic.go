// Package geospatial holds great-circle helpers for domains kept in
// geographic coordinates (x = longitude, y = latitude, degrees).
package geospatial

import (
	"math"

	"github.com/samirrijal/geoagg/internal/core/domain"
)

const (
	earthRadiusM    = 6371000.0
	metersPerDegree = 111320.0
)

// Distance returns the great-circle distance in meters between a and b.
func Distance(a, b domain.Point) float64 {
	dLat := toRad(b.Y - a.Y)
	dLon := toRad(b.X - a.X)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Y))*math.Cos(toRad(b.Y))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusM * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Around returns the box enclosing a circle of radiusMeters around center.
// Near the poles the longitude span is clamped to the whole range.
func Around(center domain.Point, radiusMeters float64) domain.BoundingBox {
	latDelta := radiusMeters / metersPerDegree
	cos := math.Cos(toRad(center.Y))
	lonDelta := 180.0
	if cos > 1e-12 {
		lonDelta = math.Min(180, radiusMeters/(metersPerDegree*cos))
	}
	return domain.BoxOf(
		domain.Pt(center.X-lonDelta, math.Max(-90, center.Y-latDelta)),
		domain.Pt(center.X+lonDelta, math.Min(90, center.Y+latDelta)),
	)
}

// Extent returns the east-west width along the box's middle latitude and the
// north-south height, both in meters. An undefined box has no extent.
func Extent(b domain.BoundingBox) (width, height float64) {
	if !b.Defined {
		return 0, 0
	}
	midLat := (b.Min.Y + b.Max.Y) / 2
	width = Distance(domain.Pt(b.Min.X, midLat), domain.Pt(b.Max.X, midLat))
	height = Distance(domain.Pt(b.Min.X, b.Min.Y), domain.Pt(b.Min.X, b.Max.Y))
	return width, height
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
