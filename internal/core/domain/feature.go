package domain

// Property keys written by the pipeline.
const (
	PropOriginalID     = "original_id"
	PropSource         = "source"
	PropClusterSize    = "cluster_size"
	PropClusterMembers = "cluster_members"
)

// Feature is a geometry with properties and a run-unique identifier.
type Feature struct {
	ID         uint64         `json:"id"`
	Source     int            `json:"source"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties,omitempty"`
}

// CloneProperties returns a shallow copy of the property map.
func (f Feature) CloneProperties() map[string]any {
	out := make(map[string]any, len(f.Properties)+2)
	for k, v := range f.Properties {
		out[k] = v
	}
	return out
}

// Collection is one named input feature set.
// Scale is the nominal scale in coordinate units per metre; zero means it
// already matches the target.
type Collection struct {
	Name     string    `json:"name"`
	CRS      string    `json:"crs,omitempty"`
	Scale    float64   `json:"scale,omitempty"`
	Features []Feature `json:"features"`
}
