package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/geoagg/internal/core/domain"
)

// TaskQueue is the default queue served by the aggregation worker.
const TaskQueue = "geoagg-aggregation"

// AggregationInput is the input for the aggregation workflow.
type AggregationInput struct {
	Request domain.AggregationRequest
}

// AggregationResult summarizes a stored domain.
type AggregationResult struct {
	DomainID     string
	InputCount   int
	FeatureCount int
	ClusterCount int
	ExportURL    string
}

// AggregationWorkflow validates a request, then runs and stores the
// aggregation. Invalid requests fail without retries.
func AggregationWorkflow(ctx workflow.Context, input AggregationInput) (*AggregationResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting aggregation workflow", "requestID", input.Request.RequestID, "collections", len(input.Request.Collections))

	validateCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})
	if err := workflow.ExecuteActivity(validateCtx, "ValidateRequest", input.Request).Get(ctx, nil); err != nil {
		return nil, err
	}

	runCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        5 * time.Second,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{ErrTypeInvalidParameter},
		},
	})
	var result AggregationResult
	if err := workflow.ExecuteActivity(runCtx, "RunAggregation", input.Request).Get(ctx, &result); err != nil {
		logger.Warn("aggregation failed", "error", err)
		return nil, err
	}

	logger.Info("Aggregation stored", "domainID", result.DomainID, "features", result.FeatureCount)
	return &result, nil
}
