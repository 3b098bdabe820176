package workflows

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/geoagg/internal/core/domain"
)

// ErrTypeInvalidParameter marks application errors that must not be retried.
const ErrTypeInvalidParameter = "InvalidParameter"

// Aggregator is the part of usecases.AggregationService used by activities.
type Aggregator interface {
	Defaults() domain.Params
	Aggregate(ctx context.Context, req *domain.AggregationRequest) (*domain.Domain, error)
	ExportURL(id string) string
}

// AggregationActivities holds the activity implementations for the aggregation workflow.
type AggregationActivities struct {
	Service Aggregator
}

// ValidateRequest rejects requests whose parameters or geometries are invalid.
func (a *AggregationActivities) ValidateRequest(ctx context.Context, req domain.AggregationRequest) error {
	p := a.Service.Defaults()
	if req.Params != nil {
		p = *req.Params
	}
	if err := p.Validate(); err != nil {
		return invalid(err)
	}
	for ci, col := range req.Collections {
		for _, f := range col.Features {
			if err := f.Geometry.Validate(); err != nil {
				return invalid(fmt.Errorf("collection %d (%s) feature %d: %w", ci, col.Name, f.ID, err))
			}
		}
	}
	return nil
}

// RunAggregation runs the pipeline and stores the domain.
func (a *AggregationActivities) RunAggregation(ctx context.Context, req domain.AggregationRequest) (*AggregationResult, error) {
	activity.RecordHeartbeat(ctx, req.Count())
	d, err := a.Service.Aggregate(ctx, &req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidParameter) || errors.Is(err, domain.ErrProjection) {
			return nil, invalid(err)
		}
		return nil, err
	}
	return &AggregationResult{
		DomainID:     d.ID,
		InputCount:   d.InputCount,
		FeatureCount: len(d.Features),
		ClusterCount: len(d.Clusters),
		ExportURL:    a.Service.ExportURL(d.ID),
	}, nil
}

func invalid(err error) error {
	return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidParameter, err)
}
