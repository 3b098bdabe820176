package pipeline

import (
	"context"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/geoagg/internal/core/domain"
	"github.com/samirrijal/geoagg/internal/core/spatial"
)

var tracer = otel.Tracer("github.com/samirrijal/geoagg/internal/core/pipeline")

// Orchestrator runs the pipeline over fixed-size batches on a bounded
// worker pool and merges the partial results in batch order.
type Orchestrator struct {
	rc *RunContext
}

// NewOrchestrator binds an orchestrator to one run.
func NewOrchestrator(rc *RunContext) *Orchestrator {
	return &Orchestrator{rc: rc}
}

type batchCluster struct {
	domain.Cluster
	rep    domain.Feature // representative as it entered the batch
	points []domain.Point
	pos    int // index into batchResult.features
}

type batchResult struct {
	features []domain.Feature
	clusters []batchCluster
	groups   map[string]domain.Bounds
	inputs   int
}

// Run executes the whole pipeline. On failure no Domain is returned; a
// batch failure is reported as *domain.BatchError.
func (o *Orchestrator) Run(ctx context.Context, cols []domain.Collection) (*domain.Domain, error) {
	ctx, span := tracer.Start(ctx, "pipeline.Run")
	defer span.End()

	d, err := o.run(ctx, cols)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("geoagg.input", d.InputCount),
		attribute.Int("geoagg.features", len(d.Features)),
	)
	return d, nil
}

func (o *Orchestrator) run(ctx context.Context, cols []domain.Collection) (*domain.Domain, error) {
	rc := o.rc
	plan, err := rc.Concat.Plan(cols)
	if err != nil {
		return nil, err
	}
	entries := plan.Entries
	if len(entries) == 0 {
		return o.finalize(nil), nil
	}

	size := rc.Params.BatchSize
	n := (len(entries) + size - 1) / size
	results := make([]*batchResult, n)
	rc.Logger.Debug("pipeline run started", "input", len(entries), "batches", n, "workers", rc.Params.WorkerCount)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rc.Params.WorkerCount)
	for i := 0; i < n; i++ {
		lo, hi := i*size, min((i+1)*size, len(entries))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return &domain.BatchError{Batch: i, Err: err}
			}
			res, err := o.runBatch(gctx, i, plan, entries[lo:hi])
			if err != nil {
				return &domain.BatchError{Batch: i, Err: err}
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		rc.Logger.Warn("pipeline run failed", "error", err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return o.finalize(results), nil
}

// RunSerial runs the same stages on the calling goroutine as one batch.
func (o *Orchestrator) RunSerial(ctx context.Context, cols []domain.Collection) (*domain.Domain, error) {
	plan, err := o.rc.Concat.Plan(cols)
	if err != nil {
		return nil, err
	}
	if len(plan.Entries) == 0 {
		return o.finalize(nil), nil
	}
	res, err := o.runBatch(ctx, 0, plan, plan.Entries)
	if err != nil {
		return nil, err
	}
	return o.finalize([]*batchResult{res}), nil
}

func (o *Orchestrator) runBatch(ctx context.Context, idx int, plan *Plan, entries []Entry) (*batchResult, error) {
	_, span := tracer.Start(ctx, "pipeline.batch", trace.WithAttributes(
		attribute.Int("geoagg.batch", idx),
		attribute.Int("geoagg.batch_size", len(entries)),
	))
	defer span.End()
	start := time.Now()

	features, err := o.rc.Concat.Materialize(ctx, plan, entries)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	res := o.process(features)
	o.rc.Observer.BatchDone(idx, time.Since(start), len(entries), len(res.features))
	return res, nil
}

// process deduplicates point features and collects group bounds for one
// batch. Group bounds cover every input coordinate, so they also cover
// every centroid produced by deduplication.
func (o *Orchestrator) process(features []domain.Feature) *batchResult {
	rc := o.rc
	res := &batchResult{inputs: len(features), groups: make(map[string]domain.Bounds)}

	groupPts := make(map[string][]domain.Point)
	var items []spatial.Item
	byID := make(map[uint64]domain.Feature)
	for _, f := range features {
		key := GroupKey(f, rc.Params.GroupBy)
		groupPts[key] = append(groupPts[key], f.Geometry.Points()...)
		if f.Geometry.Type == domain.TypePoint {
			items = append(items, spatial.Item{ID: f.ID, Point: f.Geometry.Coord})
			byID[f.ID] = f
		}
	}
	for key, pts := range groupPts {
		res.groups[key] = rc.Collector.Points(pts)
	}

	clusters := rc.Filter.Cluster(items)
	clusterOf := make(map[uint64]int, len(items))
	for ci, c := range clusters {
		for _, id := range c.Members {
			clusterOf[id] = ci
		}
	}

	res.features = make([]domain.Feature, 0, len(features))
	emitted := make(map[int]bool, len(clusters))
	for _, f := range features {
		ci, ok := clusterOf[f.ID]
		if f.Geometry.Type != domain.TypePoint || !ok {
			res.features = append(res.features, f)
			continue
		}
		if emitted[ci] {
			continue
		}
		emitted[ci] = true
		c := clusters[ci]
		pts := make([]domain.Point, len(c.Members))
		for j, id := range c.Members {
			pts[j] = byID[id].Geometry.Coord
		}
		c.Bounds = rc.Collector.Points(pts)
		bc := batchCluster{Cluster: c, rep: byID[c.Representative], points: pts, pos: len(res.features)}
		res.clusters = append(res.clusters, bc)
		res.features = append(res.features, clusterFeature(bc))
	}
	return res
}

// clusterFeature is the single output feature standing for a cluster.
// Singletons pass through unchanged.
func clusterFeature(c batchCluster) domain.Feature {
	if len(c.Members) == 1 {
		return c.rep
	}
	props := c.rep.CloneProperties()
	props[domain.PropClusterSize] = len(c.Members)
	props[domain.PropClusterMembers] = append([]uint64(nil), c.Members...)
	return domain.Feature{
		ID:         c.Representative,
		Source:     c.rep.Source,
		Geometry:   domain.NewPoint(c.Centroid),
		Properties: props,
	}
}

// finalize joins batch results in batch order. Clusters from different
// batches holding a pair of members within epsilon are merged, so the
// result matches a single-batch run; a merged cluster keeps the position of
// its earliest member.
func (o *Orchestrator) finalize(results []*batchResult) *domain.Domain {
	rc := o.rc
	d := &domain.Domain{
		Params:   rc.Params,
		Features: []domain.Feature{},
		Clusters: []domain.Cluster{},
		Groups:   []domain.GroupBounds{},
		BBox:     domain.EmptyBox(),
	}

	var (
		features []domain.Feature
		clusters []batchCluster
		batchOf  []int
		parts    = make(map[string][]domain.Bounds)
	)
	for bi, r := range results {
		offset := len(features)
		features = append(features, r.features...)
		for _, c := range r.clusters {
			c.pos += offset
			clusters = append(clusters, c)
			batchOf = append(batchOf, bi)
		}
		for k, b := range r.groups {
			parts[k] = append(parts[k], b)
		}
		d.InputCount += r.inputs
	}

	removed := make(map[int]bool)
	if len(results) > 1 {
		byRep := make(map[uint64]int, len(clusters))
		for i, c := range clusters {
			byRep[c.Representative] = i
		}
		var merged []batchCluster
		for _, group := range o.linkAcrossBatches(clusters, batchOf) {
			if len(group) == 1 {
				merged = append(merged, clusters[byRep[group[0]]])
				continue
			}
			m := o.mergeClusters(clusters, byRep, group)
			for _, rep := range group {
				if p := clusters[byRep[rep]].pos; p != m.pos {
					removed[p] = true
				}
			}
			features[m.pos] = clusterFeature(m)
			merged = append(merged, m)
		}
		clusters = merged
	}

	for i, f := range features {
		if !removed[i] {
			d.Features = append(d.Features, f)
		}
	}
	slices.SortFunc(clusters, func(a, b batchCluster) int { return cmpID(a.Representative, b.Representative) })
	for _, c := range clusters {
		d.Clusters = append(d.Clusters, c.Cluster)
	}

	keys := make([]string, 0, len(parts))
	for k := range parts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		b := rc.Collector.Merge(parts[k]...)
		d.Groups = append(d.Groups, domain.GroupBounds{Key: k, Bounds: b})
		d.BBox = d.BBox.Union(b.BBox)
	}

	if rc.Params.MergeOverlaps {
		d.Footprints = Footprints(d.Features)
	}
	if rc.Params.FeatureHulls {
		d.FeatureHulls = rc.Collector.FeatureHulls(d.Features)
	}
	d.Extensions = ExtendLines(d.Features, rc.Params)
	return d
}

// linkAcrossBatches groups clusters that are connected by a member pair
// within epsilon and come from different batches. Groups hold
// representatives in ascending order and are ordered by their first one.
func (o *Orchestrator) linkAcrossBatches(clusters []batchCluster, batchOf []int) [][]uint64 {
	eps := o.rc.Filter.Epsilon()
	centres := make([]spatial.Item, len(clusters))
	radius := make([]float64, len(clusters))
	var widest float64
	for i, c := range clusters {
		centres[i] = spatial.Item{ID: uint64(i), Point: c.Centroid}
		for _, p := range c.points {
			radius[i] = max(radius[i], c.Centroid.Dist(p))
		}
		widest = max(widest, radius[i])
	}

	idx := spatial.BuildIndex(centres)
	members := make(map[int]*spatial.Index)
	uf := spatial.NewUnionFind(len(clusters))
	for i, c := range clusters {
		uf.MakeSet(c.Representative)
		// Two clusters can only touch when their centres are within eps
		// plus both radii. The factor absorbs rounding in the radii.
		reach := (eps + radius[i] + widest) * (1 + 1e-9)
		for _, nb := range idx.QueryWithin(c.Centroid, reach) {
			j := int(nb)
			if j <= i || batchOf[i] == batchOf[j] {
				continue
			}
			other := clusters[j]
			if uf.Find(c.Representative) == uf.Find(other.Representative) {
				continue
			}
			if touches(c.points, other.points, eps, members, j) {
				uf.Union(c.Representative, other.Representative)
			}
		}
	}
	return uf.Sets()
}

// touches reports whether some point of a lies within eps of some point of
// b. The index over b is built once and kept in cache under key.
func touches(a, b []domain.Point, eps float64, cache map[int]*spatial.Index, key int) bool {
	idx, ok := cache[key]
	if !ok {
		items := make([]spatial.Item, len(b))
		for k, p := range b {
			items[k] = spatial.Item{ID: uint64(k), Point: p}
		}
		idx = spatial.BuildIndex(items)
		cache[key] = idx
	}
	for _, p := range a {
		if len(idx.QueryWithin(p, eps)) > 0 {
			return true
		}
	}
	return false
}

func (o *Orchestrator) mergeClusters(clusters []batchCluster, byRep map[uint64]int, reps []uint64) batchCluster {
	// reps is ascending, so the first cluster holds the smallest ID.
	first := clusters[byRep[reps[0]]]
	m := batchCluster{rep: first.rep, pos: first.pos}
	for _, rep := range reps {
		c := clusters[byRep[rep]]
		m.Members = append(m.Members, c.Members...)
		m.points = append(m.points, c.points...)
		m.pos = min(m.pos, c.pos)
	}
	slices.Sort(m.Members)
	m.Representative = m.Members[0]
	m.Centroid = domain.Centroid(m.points)
	m.Bounds = o.rc.Collector.Points(m.points)
	return m
}
