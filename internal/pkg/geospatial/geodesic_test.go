package geospatial

import (
	"math"
	"testing"

	"github.com/samirrijal/geoagg/internal/core/domain"
)

func TestDistance_BilbaoDonostia(t *testing.T) {
	bilbao := domain.Pt(-2.9349, 43.2630)
	donostia := domain.Pt(-1.9812, 43.3183)
	d := Distance(bilbao, donostia)
	// ~77 km in a straight line
	if d < 75000 || d > 80000 {
		t.Fatalf("expected ~77km, got %.0fm", d)
	}
	if Distance(bilbao, bilbao) != 0 {
		t.Fatal("distance to self must be zero")
	}
}

func TestAround_ContainsRadius(t *testing.T) {
	center := domain.Pt(-2.9349, 43.2630)
	box := Around(center, 1000)
	if !box.Contains(center) {
		t.Fatal("box must contain its center")
	}
	north := domain.Pt(center.X, center.Y+999/metersPerDegree)
	if !box.Contains(north) {
		t.Fatal("box must contain a point 999m north")
	}
	w, h := Extent(box)
	if math.Abs(h-2000) > 20 || math.Abs(w-2000) > 20 {
		t.Fatalf("expected ~2000m square, got %.0f x %.0f", w, h)
	}
}

func TestAround_Pole(t *testing.T) {
	box := Around(domain.Pt(0, 90), 1000)
	if box.Max.Y != 90 || box.Max.X-box.Min.X != 360 {
		t.Fatalf("unexpected polar box %+v", box)
	}
}

func TestExtent_Undefined(t *testing.T) {
	if w, h := Extent(domain.EmptyBox()); w != 0 || h != 0 {
		t.Fatalf("expected zero extent, got %v x %v", w, h)
	}
}
