package pipeline

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/geoagg/internal/core/domain"
	"github.com/samirrijal/geoagg/internal/core/ports"
)

// Observer receives per-batch timings. Implementations must be safe for
// concurrent use.
type Observer interface {
	BatchDone(batch int, elapsed time.Duration, in, out int)
}

type nopObserver struct{}

func (nopObserver) BatchDone(int, time.Duration, int, int) {}

// RunContext carries everything one pipeline run needs. It is built once,
// validated up front, and never shared between runs.
type RunContext struct {
	ID        string
	Params    domain.Params
	Filter    *NearPointFilter
	Collector *ConvexBoundsCollector
	Concat    *FeatureConcatenator
	Logger    *slog.Logger
	Observer  Observer

	reprojector ports.Reprojector
}

// Option customizes a RunContext.
type Option func(*RunContext)

// WithReprojector sets the collaborator used for CRS conversion.
func WithReprojector(r ports.Reprojector) Option {
	return func(rc *RunContext) { rc.reprojector = r }
}

// WithLogger sets the run logger.
func WithLogger(l *slog.Logger) Option {
	return func(rc *RunContext) { rc.Logger = l }
}

// WithObserver sets the batch observer.
func WithObserver(o Observer) Option {
	return func(rc *RunContext) { rc.Observer = o }
}

// WithRunID overrides the generated run ID.
func WithRunID(id string) Option {
	return func(rc *RunContext) { rc.ID = id }
}

// NewRunContext validates p and builds the run's components. Nothing is
// processed when validation fails.
func NewRunContext(p domain.Params, opts ...Option) (*RunContext, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	rc := &RunContext{ID: uuid.NewString(), Params: p, Observer: nopObserver{}}
	for _, o := range opts {
		o(rc)
	}
	if rc.Logger == nil {
		rc.Logger = slog.Default()
	}
	rc.Logger = rc.Logger.With("run_id", rc.ID)

	var err error
	if rc.Filter, err = NewNearPointFilter(p.Epsilon); err != nil {
		return nil, err
	}
	if rc.Collector, err = NewConvexBoundsCollector(p.HullTolerance); err != nil {
		return nil, err
	}
	var user *ScaleTransformer
	if !p.Scale.IsIdentity() {
		if user, err = NewScaleTransformer(p.Scale, p.Origin); err != nil {
			return nil, err
		}
	}
	rc.Concat = NewFeatureConcatenator(p, user, rc.reprojector)
	return rc, nil
}
