package snapshot_test

import (
	"path/filepath"
	"testing"

	"github.com/samirrijal/geoagg/internal/core/domain"
	"github.com/samirrijal/geoagg/internal/pkg/snapshot"
)

func sample() *domain.Domain {
	return &domain.Domain{
		ID:       "d-1",
		Params:   domain.DefaultParams(),
		Features: []domain.Feature{{ID: 1, Geometry: domain.NewPoint(domain.Pt(1, 2))}},
		Clusters: []domain.Cluster{},
		BBox:     domain.BoxOf(domain.Pt(1, 2)),
		Groups:   []domain.GroupBounds{},
	}
}

func TestEncodeDecode(t *testing.T) {
	data, err := snapshot.Encode(sample())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := snapshot.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "d-1" || len(got.Features) != 1 || got.Features[0].Geometry.Coord != domain.Pt(1, 2) {
		t.Fatalf("unexpected domain %+v", got)
	}
	if !got.BBox.Defined {
		t.Fatal("expected defined bbox")
	}
}

func TestFileKeepsUndefinedBox(t *testing.T) {
	d := sample()
	d.BBox = domain.EmptyBox()
	path := filepath.Join(t.TempDir(), "domain.json.zst")
	if err := snapshot.WriteFile(path, d); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := snapshot.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.BBox.Defined {
		t.Fatal("undefined bbox must stay undefined")
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := snapshot.Decode([]byte("not zstd")); err == nil {
		t.Fatal("expected error")
	}
}
