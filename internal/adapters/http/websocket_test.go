package http

import (
	"testing"

	"github.com/samirrijal/geoagg/internal/core/domain"
)

func TestDomainFilter(t *testing.T) {
	s := &domain.Summary{
		FeatureCount: 5,
		BBox:         domain.BoxOf(domain.Pt(0, 0), domain.Pt(1, 1)),
	}
	near := domain.BoxOf(domain.Pt(0.5, 0.5), domain.Pt(2, 2))
	far := domain.BoxOf(domain.Pt(5, 5), domain.Pt(6, 6))

	tests := []struct {
		name   string
		filter domainFilter
		want   bool
	}{
		{"zero value", domainFilter{}, true},
		{"overlapping area", domainFilter{area: &near}, true},
		{"disjoint area", domainFilter{area: &far}, false},
		{"enough features", domainFilter{minFeatures: 5}, true},
		{"too few features", domainFilter{minFeatures: 6}, false},
	}
	for _, tt := range tests {
		if got := tt.filter.match(s); got != tt.want {
			t.Errorf("%s: match = %v, want %v", tt.name, got, tt.want)
		}
	}
}
