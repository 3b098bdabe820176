package domain_test

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/samirrijal/geoagg/internal/core/domain"
)

func TestNewPolygon_RingInvariant(t *testing.T) {
	open := []domain.Point{domain.Pt(0, 0), domain.Pt(1, 0), domain.Pt(1, 1), domain.Pt(0, 1)}
	if _, err := domain.NewPolygon([][]domain.Point{open}); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter for open ring, got %v", err)
	}

	short := []domain.Point{domain.Pt(0, 0), domain.Pt(1, 0), domain.Pt(0, 0)}
	if _, err := domain.NewPolygon([][]domain.Point{short}); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter for short ring, got %v", err)
	}

	closed := append(open, domain.Pt(0, 0))
	g, err := domain.NewPolygon([][]domain.Point{closed})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.NumPoints() != 5 {
		t.Fatalf("expected 5 points, got %d", g.NumPoints())
	}
}

func TestGeometry_ValidateRejectsNonFinite(t *testing.T) {
	g := domain.NewMulti(domain.NewPoint(domain.Pt(0, 0)), domain.NewPoint(domain.Pt(math.NaN(), 1)))
	if err := g.Validate(); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestGeometry_TransformCopies(t *testing.T) {
	line, err := domain.NewLineString([]domain.Point{domain.Pt(1, 1), domain.Pt(2, 2)})
	if err != nil {
		t.Fatal(err)
	}
	moved := line.Transform(func(p domain.Point) domain.Point { return domain.Pt(p.X+1, p.Y) })
	if line.Line[0] != domain.Pt(1, 1) {
		t.Fatalf("input mutated: %v", line.Line[0])
	}
	if moved.Line[1] != domain.Pt(3, 2) {
		t.Fatalf("expected (3,2), got %v", moved.Line[1])
	}
}

func TestBoundingBox_UndefinedJSON(t *testing.T) {
	data, err := json.Marshal(domain.EmptyBox())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "null" {
		t.Fatalf("expected null, got %s", data)
	}

	var b domain.BoundingBox
	if err := json.Unmarshal([]byte(`{"min":[0,1],"max":[2,3]}`), &b); err != nil {
		t.Fatal(err)
	}
	if !b.Defined || b.Max != domain.Pt(2, 3) {
		t.Fatalf("unexpected box %+v", b)
	}
}

func TestBoundingBox_UnionIgnoresUndefined(t *testing.T) {
	a := domain.BoxOf(domain.Pt(0, 0), domain.Pt(1, 1))
	if got := a.Union(domain.EmptyBox()); got != a {
		t.Fatalf("expected %v, got %v", a, got)
	}
	if got := domain.EmptyBox().Union(a); got != a {
		t.Fatalf("expected %v, got %v", a, got)
	}
}

func TestCentroid_Z(t *testing.T) {
	c := domain.Centroid([]domain.Point{domain.PtZ(0, 0, 2), domain.PtZ(2, 2, 4)})
	if c != domain.PtZ(1, 1, 3) {
		t.Fatalf("expected (1,1,3), got %v", c)
	}
	c = domain.Centroid([]domain.Point{domain.PtZ(0, 0, 2), domain.Pt(2, 2)})
	if c.HasZ {
		t.Fatalf("mixed input must yield 2D centroid, got %v", c)
	}
}

func TestParams_Validate(t *testing.T) {
	if err := domain.DefaultParams().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	p := domain.DefaultParams()
	p.BatchSize = 0
	p.Epsilon = math.Inf(1)
	err := p.Validate()
	if !errors.Is(err, domain.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestParams_ValidateExtension(t *testing.T) {
	for name, mut := range map[string]func(*domain.Params){
		"negative distance": func(p *domain.Params) { p.ExtensionDistance = -1 },
		"nan segment":       func(p *domain.Params) { p.SegmentLength = math.NaN() },
		"threshold too big": func(p *domain.Params) { p.BendThreshold = 181 },
	} {
		p := domain.DefaultParams()
		mut(&p)
		if err := p.Validate(); !errors.Is(err, domain.ErrInvalidParameter) {
			t.Errorf("%s: expected ErrInvalidParameter, got %v", name, err)
		}
	}
}

func TestScale_UnmarshalJSON(t *testing.T) {
	cases := map[string]domain.Scale{
		`2`:                  domain.UniformScale(2),
		`[2, 3]`:             {X: 2, Y: 3, Z: 1},
		`{"x": 2, "y": 0.5}`: {X: 2, Y: 0.5, Z: 1},
	}
	for in, want := range cases {
		var s domain.Scale
		if err := json.Unmarshal([]byte(in), &s); err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if s != want {
			t.Fatalf("%s: expected %+v, got %+v", in, want, s)
		}
	}
}
