package domain

// ReviewAggregate is an app's review counts at one observation.
type ReviewAggregate struct {
	Total    int64 `json:"total"`
	Positive int64 `json:"positive"`
	Negative int64 `json:"negative"`
}

// Score returns the positive share in percent. ok is false when there are no
// reviews.
func (r ReviewAggregate) Score() (score float64, ok bool) {
	if r.Total <= 0 {
		return 0, false
	}
	return 100.0 * float64(r.Positive) / float64(r.Total), true
}

// ReviewCache maps app id to the last observed aggregate.
type ReviewCache map[string]ReviewAggregate
