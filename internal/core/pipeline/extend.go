package pipeline

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/resample"

	"github.com/samirrijal/geoagg/internal/core/domain"
)

// maxLineSegments caps how many pieces one line is resampled into.
const maxLineSegments = 10_000

// zeroLength is the length below which a direction vector has no heading.
const zeroLength = 1e-10

// ExtendLines draws extension fans on the line features of a run.
//
// With a positive SegmentLength each line is resampled into equal pieces no
// longer than that, and every piece end gets a fan oriented along the
// piece. Otherwise a two-point line gets a fan at both ends, and a longer
// line gets one at every inner vertex whose turn exceeds BendThreshold
// degrees. Line members of multi geometries are handled the same way.
// Nothing is drawn unless ExtensionDistance is positive.
func ExtendLines(features []domain.Feature, p domain.Params) []domain.LineExtension {
	if p.ExtensionDistance <= 0 {
		return nil
	}
	var out []domain.LineExtension
	for _, f := range features {
		for _, line := range lineParts(f.Geometry) {
			if p.SegmentLength > 0 {
				out = extendSegmented(out, f.ID, line, p)
			} else {
				out = extendBends(out, f.ID, line, p)
			}
		}
	}
	return out
}

func lineParts(g domain.Geometry) [][]domain.Point {
	switch g.Type {
	case domain.TypeLineString:
		if len(g.Line) >= 2 {
			return [][]domain.Point{g.Line}
		}
	case domain.TypeMulti:
		var out [][]domain.Point
		for _, m := range g.Members {
			out = append(out, lineParts(m)...)
		}
		return out
	}
	return nil
}

func extendSegmented(out []domain.LineExtension, id uint64, line []domain.Point, p domain.Params) []domain.LineExtension {
	ls := make(orb.LineString, len(line))
	for i, pt := range line {
		ls[i] = orb.Point{pt.X, pt.Y}
	}
	length := planar.Length(ls)
	if length < zeroLength {
		return out
	}
	n := min(maxLineSegments, max(1, int(math.Ceil(length/p.SegmentLength))))

	pts := resample.Resample(ls.Clone(), planar.Distance, n+1)
	for i := 1; i < len(pts); i++ {
		at := domain.Pt(pts[i][0], pts[i][1])
		dir := domain.Pt(pts[i][0]-pts[i-1][0], pts[i][1]-pts[i-1][1])
		out = appendFan(out, id, at, dir, reverse(dir), false, p.ExtensionDistance)
	}
	return out
}

func extendBends(out []domain.LineExtension, id uint64, line []domain.Point, p domain.Params) []domain.LineExtension {
	if len(line) == 2 {
		along := delta(line[0], line[1])
		out = appendFan(out, id, line[0], along, reverse(along), false, p.ExtensionDistance)
		return appendFan(out, id, line[1], reverse(along), along, false, p.ExtensionDistance)
	}

	threshold := p.BendThreshold * math.Pi / 180
	for i := 1; i < len(line)-1; i++ {
		in, next := delta(line[i-1], line[i]), delta(line[i], line[i+1])
		turn, ok := turnAngle(in, next)
		if !ok || turn <= threshold {
			continue
		}
		// Forward follows the outgoing piece, backward runs back up the
		// incoming one.
		out = appendFan(out, id, line[i], next, reverse(in), true, p.ExtensionDistance)
	}
	return out
}

// turnAngle is the angle in radians between the incoming and outgoing
// headings at a vertex: 0 for a straight run, Pi for a reversal.
func turnAngle(in, out domain.Point) (float64, bool) {
	li, lo := math.Hypot(in.X, in.Y), math.Hypot(out.X, out.Y)
	if li < zeroLength || lo < zeroLength {
		return 0, false
	}
	cos := (in.X*out.X + in.Y*out.Y) / (li * lo)
	return math.Acos(max(-1, min(1, cos))), true
}

// appendFan adds the four guide segments at vertex. A zero backward
// heading falls back to the reverse of forward; a zero forward heading
// draws nothing.
func appendFan(out []domain.LineExtension, id uint64, vertex, forward, backward domain.Point, bend bool, dist float64) []domain.LineExtension {
	fx, fy, ok := unitVector(forward)
	if !ok {
		return out
	}
	bx, by, ok := unitVector(backward)
	if !ok {
		bx, by = -fx, -fy
	}
	segment := func(ux, uy float64) domain.Geometry {
		end := vertex
		end.X += ux * dist
		end.Y += uy * dist
		return domain.Geometry{Type: domain.TypeLineString, Line: []domain.Point{vertex, end}}
	}
	return append(out, domain.LineExtension{
		FeatureID: id,
		Vertex:    vertex,
		Bend:      bend,
		Segments: domain.NewMulti(
			segment(fx, fy),
			segment(bx, by),
			segment(-fy, fx),
			segment(fy, -fx),
		),
	})
}

func unitVector(v domain.Point) (float64, float64, bool) {
	l := math.Hypot(v.X, v.Y)
	if l < zeroLength {
		return 0, 0, false
	}
	return v.X / l, v.Y / l, true
}

func delta(from, to domain.Point) domain.Point { return domain.Pt(to.X-from.X, to.Y-from.Y) }

func reverse(v domain.Point) domain.Point { return domain.Pt(-v.X, -v.Y) }
