package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Scale holds per-axis factors. Uniform scaling sets all three equal.
type Scale struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// UniformScale returns a Scale with the same factor on every axis.
func UniformScale(f float64) Scale { return Scale{X: f, Y: f, Z: f} }

// ScaleFromSlice accepts one factor (uniform), two (X, Y) or three (X, Y, Z).
func ScaleFromSlice(v []float64) (Scale, error) {
	switch len(v) {
	case 0:
		return UniformScale(1), nil
	case 1:
		return UniformScale(v[0]), nil
	case 2:
		return Scale{X: v[0], Y: v[1], Z: 1}, nil
	case 3:
		return Scale{X: v[0], Y: v[1], Z: v[2]}, nil
	}
	return Scale{}, InvalidParameter("scale takes 1 to 3 factors, got %d", len(v))
}

// IsIdentity reports whether s leaves coordinates unchanged.
func (s Scale) IsIdentity() bool { return s.X == 1 && s.Y == 1 && s.Z == 1 }

// Validate rejects zero and non-finite factors.
func (s Scale) Validate() error {
	for i, f := range [3]float64{s.X, s.Y, s.Z} {
		if f == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return InvalidParameter("scale factor %c=%v must be finite and non-zero", "xyz"[i], f)
		}
	}
	return nil
}

// UnmarshalJSON accepts a number, an array of 1 to 3 numbers, or an object.
func (s *Scale) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*s = UniformScale(f)
		return nil
	}
	var arr []float64
	if err := json.Unmarshal(data, &arr); err == nil {
		v, err := ScaleFromSlice(arr)
		if err != nil {
			return err
		}
		*s = v
		return nil
	}
	type plain Scale
	v := plain{Z: 1}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = Scale(v)
	return nil
}

// GroupBySource groups hulls by source collection index instead of a property.
const GroupBySource = "@source"

// Params is the configuration consumed by one pipeline run.
type Params struct {
	Epsilon       float64 `json:"epsilon"`
	HullTolerance float64 `json:"hull_tolerance"`
	BatchSize     int     `json:"batch_size"`
	WorkerCount   int     `json:"worker_count"`
	Scale         Scale   `json:"scale"`
	Origin        *Point  `json:"origin,omitempty"`
	GroupBy       string  `json:"group_by,omitempty"`
	TargetCRS     string  `json:"target_crs,omitempty"`
	TargetScale   float64 `json:"target_scale,omitempty"`
	VertexEpsilon float64 `json:"vertex_epsilon,omitempty"`
	MergeOverlaps bool    `json:"merge_overlaps,omitempty"`
	FeatureHulls  bool    `json:"feature_hulls,omitempty"`

	// Line extensions are drawn only when ExtensionDistance > 0.
	ExtensionDistance float64 `json:"extension_distance,omitempty"`
	SegmentLength     float64 `json:"segment_length,omitempty"`
	BendThreshold     float64 `json:"bend_threshold,omitempty"` // degrees
}

// DefaultParams mirrors the defaults shipped in configuration.
func DefaultParams() Params {
	return Params{
		Epsilon:       0.3,
		HullTolerance: 1e-9,
		BatchSize:     100,
		WorkerCount:   4,
		Scale:         UniformScale(1),
	}
}

// Validate collects every violation into a single ErrInvalidParameter.
func (p Params) Validate() error {
	var errs []string
	if !finiteNonNeg(p.Epsilon) {
		errs = append(errs, fmt.Sprintf("epsilon must be finite and >= 0, got %v", p.Epsilon))
	}
	if !finiteNonNeg(p.HullTolerance) {
		errs = append(errs, fmt.Sprintf("hull_tolerance must be finite and >= 0, got %v", p.HullTolerance))
	}
	if p.BatchSize <= 0 {
		errs = append(errs, fmt.Sprintf("batch_size must be > 0, got %d", p.BatchSize))
	}
	if p.WorkerCount < 1 {
		errs = append(errs, fmt.Sprintf("worker_count must be >= 1, got %d", p.WorkerCount))
	}
	if err := p.Scale.Validate(); err != nil {
		errs = append(errs, strings.TrimPrefix(err.Error(), ErrInvalidParameter.Error()+": "))
	}
	if p.Origin != nil && !p.Origin.Finite() {
		errs = append(errs, "origin must be finite")
	}
	if !finiteNonNeg(p.TargetScale) {
		errs = append(errs, fmt.Sprintf("target_scale must be finite and >= 0, got %v", p.TargetScale))
	}
	if !finiteNonNeg(p.VertexEpsilon) {
		errs = append(errs, fmt.Sprintf("vertex_epsilon must be finite and >= 0, got %v", p.VertexEpsilon))
	}
	if !finiteNonNeg(p.ExtensionDistance) {
		errs = append(errs, fmt.Sprintf("extension_distance must be finite and >= 0, got %v", p.ExtensionDistance))
	}
	if !finiteNonNeg(p.SegmentLength) {
		errs = append(errs, fmt.Sprintf("segment_length must be finite and >= 0, got %v", p.SegmentLength))
	}
	if !finiteNonNeg(p.BendThreshold) || p.BendThreshold > 180 {
		errs = append(errs, fmt.Sprintf("bend_threshold must be between 0 and 180 degrees, got %v", p.BendThreshold))
	}
	if len(errs) > 0 {
		return InvalidParameter("%s", strings.Join(errs, "; "))
	}
	return nil
}

func finiteNonNeg(f float64) bool {
	return f >= 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}
