package ports

import (
	"context"

	"github.com/samirrijal/geoagg/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishDomainCompleted(ctx context.Context, summary *domain.Summary) error
	PublishAggregationRequest(ctx context.Context, req *domain.AggregationRequest) error
}

// EventSubscriber delivers queued aggregation requests. A handler error
// asks the broker for redelivery.
type EventSubscriber interface {
	SubscribeAggregationRequests(ctx context.Context, handler func(ctx context.Context, req *domain.AggregationRequest) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// Reprojector converts coordinates between reference systems. Out-of-domain
// input fails with an error wrapping domain.ErrProjection.
type Reprojector interface {
	Reproject(p domain.Point, sourceCRS, targetCRS string) (domain.Point, error)
}

// ArtifactStore keeps exported domain files.
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	URL(key string) string
}

// FormatEncoder serializes a domain to an interchange format.
type FormatEncoder interface {
	EncodeDomain(d *domain.Domain) ([]byte, error)
	ContentType() string
	Extension() string
}
