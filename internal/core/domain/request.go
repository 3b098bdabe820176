package domain

// AggregationRequest asks for one pipeline run. Params, when set, replaces
// the service defaults for that run.
type AggregationRequest struct {
	RequestID   string       `json:"request_id,omitempty"`
	Collections []Collection `json:"collections"`
	Params      *Params      `json:"params,omitempty"`
}

// Count returns the total number of input features.
func (r *AggregationRequest) Count() int {
	n := 0
	for _, c := range r.Collections {
		n += len(c.Features)
	}
	return n
}
