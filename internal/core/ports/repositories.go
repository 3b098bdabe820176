package ports

import (
	"context"

	"github.com/samirrijal/geoagg/internal/core/domain"
)

// DomainRepository persists aggregation results.
type DomainRepository interface {
	Save(ctx context.Context, d *domain.Domain) error
	GetSummary(ctx context.Context, id string) (*domain.Summary, error)
	List(ctx context.Context, offset, limit int) ([]domain.Summary, int, error)
	// Features returns the stored features of a domain, optionally limited to
	// those intersecting bbox.
	Features(ctx context.Context, id string, bbox *domain.BoundingBox) ([]domain.Feature, error)
	Groups(ctx context.Context, id string) ([]domain.GroupBounds, error)
}
