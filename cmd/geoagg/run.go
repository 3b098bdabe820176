package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/samirrijal/geoagg/internal/adapters/geojson"
	"github.com/samirrijal/geoagg/internal/adapters/proj"
	"github.com/samirrijal/geoagg/internal/core/domain"
	"github.com/samirrijal/geoagg/internal/core/pipeline"
	"github.com/samirrijal/geoagg/internal/pkg/config"
	"github.com/samirrijal/geoagg/internal/pkg/geospatial"
	"github.com/samirrijal/geoagg/internal/pkg/snapshot"
)

type runOptions struct {
	epsilon       float64
	hullTolerance float64
	batchSize     int
	workers       int
	scale         []float64
	groupBy       string
	crs           string
	targetCRS     string
	simplify      float64
	around        string
	out           string
	snapshot      string
	serial        bool
	mergeOverlaps bool
	featureHulls  bool

	extensionDistance float64
	segmentLength     float64
	bendThreshold     float64
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run FILE...",
		Short: "Aggregate GeoJSON files and write the result",
		Long: "Reads every FILE as a GeoJSON FeatureCollection, merges near-duplicate\n" +
			"points across all of them, and writes the output features as GeoJSON.\n" +
			"Defaults come from config.yaml and GEOAGG_PIPELINE_* variables; flags win.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAggregate(cmd, opts, args)
		},
	}

	f := cmd.Flags()
	f.Float64Var(&opts.epsilon, "epsilon", 0, "merge distance between points")
	f.Float64Var(&opts.hullTolerance, "hull-tolerance", 0, "collinearity tolerance for hulls")
	f.IntVar(&opts.batchSize, "batch-size", 0, "features per batch")
	f.IntVar(&opts.workers, "workers", 0, "concurrent batches")
	f.Float64SliceVar(&opts.scale, "scale", nil, "scale factor: one value, or x,y[,z]")
	f.StringVar(&opts.groupBy, "group-by", "", "property that splits features into hull groups")
	f.StringVar(&opts.crs, "crs", "", "reference system of every input file, e.g. EPSG:4326")
	f.StringVar(&opts.targetCRS, "target-crs", "", "reproject inputs into this reference system")
	f.Float64Var(&opts.simplify, "simplify", 0, "Douglas-Peucker threshold for output lines and polygons")
	f.StringVar(&opts.around, "around", "", "keep output features near lon,lat,meters (geographic output only)")
	f.StringVarP(&opts.out, "out", "o", "-", "GeoJSON output file, - for stdout")
	f.StringVar(&opts.snapshot, "snapshot", "", "also write a compressed snapshot of the whole domain")
	f.BoolVar(&opts.serial, "serial", false, "process batches one at a time")
	f.BoolVar(&opts.mergeOverlaps, "merge-overlaps", false, "merge groups whose boxes overlap")
	f.BoolVar(&opts.featureHulls, "feature-hulls", false, "compute a hull per distinct output outline")
	f.Float64Var(&opts.extensionDistance, "extension-distance", 0, "length of the guide segments drawn on lines, 0 disables them")
	f.Float64Var(&opts.segmentLength, "segment-length", 0, "draw guides every this many units along lines instead of at bends")
	f.Float64Var(&opts.bendThreshold, "bend-threshold", 0, "minimum turn in degrees for a bend guide")

	return cmd
}

// params applies the flags the user set on top of base.
func (o *runOptions) params(cmd *cobra.Command, base domain.Params) (domain.Params, error) {
	p := base
	changed := cmd.Flags().Changed
	if changed("epsilon") {
		p.Epsilon = o.epsilon
	}
	if changed("hull-tolerance") {
		p.HullTolerance = o.hullTolerance
	}
	if changed("batch-size") {
		p.BatchSize = o.batchSize
	}
	if changed("workers") {
		p.WorkerCount = o.workers
	}
	if changed("scale") {
		s, err := domain.ScaleFromSlice(o.scale)
		if err != nil {
			return p, err
		}
		p.Scale = s
	}
	if changed("group-by") {
		p.GroupBy = o.groupBy
	}
	if changed("target-crs") {
		p.TargetCRS = o.targetCRS
	}
	if changed("merge-overlaps") {
		p.MergeOverlaps = o.mergeOverlaps
	}
	if changed("feature-hulls") {
		p.FeatureHulls = o.featureHulls
	}
	if changed("extension-distance") {
		p.ExtensionDistance = o.extensionDistance
	}
	if changed("segment-length") {
		p.SegmentLength = o.segmentLength
	}
	if changed("bend-threshold") {
		p.BendThreshold = o.bendThreshold
	}
	return p, p.Validate()
}

func runAggregate(cmd *cobra.Command, opts *runOptions, files []string) error {
	cfg, err := config.Load("geoagg-cli")
	if err != nil {
		return err
	}
	base, err := cfg.Params()
	if err != nil {
		return err
	}
	p, err := opts.params(cmd, base)
	if err != nil {
		return err
	}

	var near *domain.BoundingBox
	if opts.around != "" {
		box, err := parseAround(opts.around)
		if err != nil {
			return err
		}
		near = &box
	}

	cols := make([]domain.Collection, 0, len(files))
	for _, name := range files {
		data, err := os.ReadFile(name)
		if err != nil {
			return err
		}
		col, err := geojson.Decode(data, strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)), opts.crs)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		cols = append(cols, col)
	}

	rc, err := pipeline.NewRunContext(p,
		pipeline.WithReprojector(proj.New(nil)),
		pipeline.WithLogger(slog.Default()),
	)
	if err != nil {
		return err
	}
	orch := pipeline.NewOrchestrator(rc)
	run := orch.Run
	if opts.serial {
		run = orch.RunSerial
	}
	d, err := run(cmd.Context(), cols)
	if err != nil {
		return err
	}
	d.ID = rc.ID

	if opts.snapshot != "" {
		if err := snapshot.WriteFile(opts.snapshot, d); err != nil {
			return err
		}
	}

	features := d.Features
	if near != nil {
		features = pipeline.PickByBoundingBox(features, *near, false)
	}
	data, err := geojson.Encoder{Simplify: opts.simplify}.Features(features).MarshalJSON()
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if opts.out != "-" {
		f, err := os.Create(opts.out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "%d input features → %d output features, %d clusters\n",
		d.InputCount, len(d.Features), len(d.Clusters))
	return nil
}

// parseAround reads lon,lat,meters into the box enclosing that circle.
func parseAround(raw string) (domain.BoundingBox, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return domain.BoundingBox{}, fmt.Errorf("--around must be lon,lat,meters")
	}
	var v [3]float64
	for i, s := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return domain.BoundingBox{}, fmt.Errorf("--around value %q is not a number", s)
		}
		v[i] = f
	}
	if v[2] <= 0 {
		return domain.BoundingBox{}, fmt.Errorf("--around radius must be positive")
	}
	return geospatial.Around(domain.Pt(v[0], v[1]), v[2]), nil
}
