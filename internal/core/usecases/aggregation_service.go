package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/geoagg/internal/core/domain"
	"github.com/samirrijal/geoagg/internal/core/pipeline"
	"github.com/samirrijal/geoagg/internal/core/ports"
	"github.com/samirrijal/geoagg/internal/pkg/snapshot"
)

// AggregationService runs pipelines and serves their stored results.
// Every collaborator except the defaults is optional.
type AggregationService struct {
	repo        ports.DomainRepository
	cache       ports.CacheService
	events      ports.EventPublisher
	reprojector ports.Reprojector

	store   ports.ArtifactStore
	encoder ports.FormatEncoder

	observer pipeline.Observer
	onRun    func(start time.Time, err error)
	logger   *slog.Logger
	cacheTTL int
	now      func() time.Time

	mu       sync.RWMutex
	defaults domain.Params
}

// ServiceOption customizes an AggregationService.
type ServiceOption func(*AggregationService)

// WithExport uploads every new domain encoded with enc.
func WithExport(store ports.ArtifactStore, enc ports.FormatEncoder) ServiceOption {
	return func(s *AggregationService) { s.store, s.encoder = store, enc }
}

// WithBatchObserver forwards batch timings of every run.
func WithBatchObserver(o pipeline.Observer) ServiceOption {
	return func(s *AggregationService) { s.observer = o }
}

// WithRunHook is called once per Aggregate with its start time and outcome.
func WithRunHook(fn func(start time.Time, err error)) ServiceOption {
	return func(s *AggregationService) { s.onRun = fn }
}

// WithCacheTTL sets the lifetime of cached snapshots in seconds.
func WithCacheTTL(seconds int) ServiceOption {
	return func(s *AggregationService) { s.cacheTTL = seconds }
}

// WithServiceLogger sets the service logger.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *AggregationService) { s.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *AggregationService) { s.now = now }
}

// NewAggregationService creates a new AggregationService.
func NewAggregationService(
	repo ports.DomainRepository,
	cache ports.CacheService,
	events ports.EventPublisher,
	reprojector ports.Reprojector,
	defaults domain.Params,
	opts ...ServiceOption,
) (*AggregationService, error) {
	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	s := &AggregationService{
		repo:        repo,
		cache:       cache,
		events:      events,
		reprojector: reprojector,
		defaults:    defaults,
		cacheTTL:    3600,
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Defaults returns the parameters used when a request carries none.
func (s *AggregationService) Defaults() domain.Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaults
}

// UpdateParams replaces the defaults for subsequent runs. Runs in flight keep
// the parameters they started with.
func (s *AggregationService) UpdateParams(p domain.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.defaults = p
	s.mu.Unlock()
	s.logger.Info("default parameters updated", "epsilon", p.Epsilon, "batch_size", p.BatchSize, "workers", p.WorkerCount)
	return nil
}

// Aggregate runs the pipeline on req and stores the result. Storage, export
// and notification happen only after a successful run.
func (s *AggregationService) Aggregate(ctx context.Context, req *domain.AggregationRequest) (d *domain.Domain, err error) {
	start := s.now()
	if s.onRun != nil {
		defer func() { s.onRun(start, err) }()
	}

	p := s.Defaults()
	if req.Params != nil {
		p = *req.Params
	}
	id := uuid.NewString()

	opts := []pipeline.Option{
		pipeline.WithRunID(id),
		pipeline.WithLogger(s.logger.With("request_id", req.RequestID)),
	}
	if s.reprojector != nil {
		opts = append(opts, pipeline.WithReprojector(s.reprojector))
	}
	if s.observer != nil {
		opts = append(opts, pipeline.WithObserver(s.observer))
	}
	rc, err := pipeline.NewRunContext(p, opts...)
	if err != nil {
		return nil, err
	}

	d, err = pipeline.NewOrchestrator(rc).Run(ctx, req.Collections)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	d.ID = id
	d.CreatedAt = s.now().UTC()

	if s.repo != nil {
		if err := s.repo.Save(ctx, d); err != nil {
			return nil, fmt.Errorf("save domain: %w", err)
		}
	}
	s.cacheDomain(ctx, d)
	s.export(ctx, d)

	if s.events != nil {
		summary := d.Summarize()
		if err := s.events.PublishDomainCompleted(ctx, &summary); err != nil {
			s.logger.Warn("publish domain completed failed", "domain_id", id, "error", err)
		}
	}

	rc.Logger.Info("aggregation finished",
		"input", d.InputCount,
		"features", len(d.Features),
		"clusters", len(d.Clusters),
		"elapsed", s.now().Sub(start),
	)
	return d, nil
}

// Submit queues req for asynchronous processing and returns its request ID.
func (s *AggregationService) Submit(ctx context.Context, req *domain.AggregationRequest) (string, error) {
	if s.events == nil {
		return "", fmt.Errorf("submit: no event publisher configured")
	}
	if req.Params != nil {
		if err := req.Params.Validate(); err != nil {
			return "", err
		}
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if err := s.events.PublishAggregationRequest(ctx, req); err != nil {
		return "", fmt.Errorf("publish request: %w", err)
	}
	return req.RequestID, nil
}

func domainKey(id string) string  { return "domain:" + id }
func summaryKey(id string) string { return "summary:" + id }

func (s *AggregationService) cacheDomain(ctx context.Context, d *domain.Domain) {
	if s.cache == nil {
		return
	}
	data, err := snapshot.Encode(d)
	if err != nil {
		s.logger.Warn("encode snapshot failed", "domain_id", d.ID, "error", err)
		return
	}
	if err := s.cache.Set(ctx, domainKey(d.ID), data, s.cacheTTL); err != nil {
		s.logger.Warn("cache snapshot failed", "domain_id", d.ID, "error", err)
	}
}

func (s *AggregationService) cachedDomain(ctx context.Context, id string) *domain.Domain {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.Get(ctx, domainKey(id))
	if err != nil {
		return nil
	}
	d, err := snapshot.Decode(data)
	if err != nil {
		s.logger.Warn("discarding corrupt snapshot", "domain_id", id, "error", err)
		_ = s.cache.Delete(ctx, domainKey(id))
		return nil
	}
	return d
}

func (s *AggregationService) export(ctx context.Context, d *domain.Domain) {
	if s.store == nil || s.encoder == nil {
		return
	}
	data, err := s.encoder.EncodeDomain(d)
	if err != nil {
		s.logger.Warn("encode export failed", "domain_id", d.ID, "error", err)
		return
	}
	key := "domains/" + d.ID + s.encoder.Extension()
	if err := s.store.Put(ctx, key, data, s.encoder.ContentType()); err != nil {
		s.logger.Warn("upload export failed", "domain_id", d.ID, "key", key, "error", err)
		return
	}
	s.logger.Debug("domain exported", "domain_id", d.ID, "url", s.store.URL(key))
}

// ExportURL returns where the export of id is stored, or "" without a store.
func (s *AggregationService) ExportURL(id string) string {
	if s.store == nil || s.encoder == nil {
		return ""
	}
	return s.store.URL("domains/" + id + s.encoder.Extension())
}

// Summary returns the listing view of one domain.
func (s *AggregationService) Summary(ctx context.Context, id string) (*domain.Summary, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, summaryKey(id)); err == nil {
			var sum domain.Summary
			if err := json.Unmarshal(data, &sum); err == nil {
				return &sum, nil
			}
		}
	}
	if d := s.cachedDomain(ctx, id); d != nil {
		sum := d.Summarize()
		return &sum, nil
	}
	if s.repo == nil {
		return nil, fmt.Errorf("domain %s: %w", id, domain.ErrNotFound)
	}

	sum, err := s.repo.GetSummary(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if data, err := json.Marshal(sum); err == nil {
			_ = s.cache.Set(ctx, summaryKey(id), data, s.cacheTTL)
		}
	}
	return sum, nil
}

// List returns stored domains newest first. limit is clamped to 1..100.
func (s *AggregationService) List(ctx context.Context, offset, limit int) ([]domain.Summary, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	if s.repo == nil {
		return []domain.Summary{}, 0, nil
	}
	return s.repo.List(ctx, offset, limit)
}

// Features returns the output features of a domain. A non-nil bbox keeps
// features whose bounds intersect it.
func (s *AggregationService) Features(ctx context.Context, id string, bbox *domain.BoundingBox) ([]domain.Feature, error) {
	if d := s.cachedDomain(ctx, id); d != nil {
		if bbox == nil {
			return d.Features, nil
		}
		return pipeline.PickByBoundingBox(d.Features, *bbox, false), nil
	}
	if s.repo == nil {
		return nil, fmt.Errorf("domain %s: %w", id, domain.ErrNotFound)
	}
	return s.repo.Features(ctx, id, bbox)
}

// Groups returns the hull of every group in a domain.
func (s *AggregationService) Groups(ctx context.Context, id string) ([]domain.GroupBounds, error) {
	if d := s.cachedDomain(ctx, id); d != nil {
		return d.Groups, nil
	}
	if s.repo == nil {
		return nil, fmt.Errorf("domain %s: %w", id, domain.ErrNotFound)
	}
	return s.repo.Groups(ctx, id)
}

// Domain returns the full in-memory result of a recent run. Domains are
// kept whole only in the cache; expired ones return domain.ErrNotFound.
func (s *AggregationService) Domain(ctx context.Context, id string) (*domain.Domain, error) {
	if d := s.cachedDomain(ctx, id); d != nil {
		return d, nil
	}
	return nil, fmt.Errorf("domain %s snapshot: %w", id, domain.ErrNotFound)
}
