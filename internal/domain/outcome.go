package domain

import "time"

// OutcomeStatus is the terminal state of one record's lookup
type OutcomeStatus string

const (
	OutcomeEnriched  OutcomeStatus = "enriched"
	OutcomeSkipped   OutcomeStatus = "skipped"
	OutcomeExhausted OutcomeStatus = "exhausted"
)

// Outcome describes what happened to a single record during a run
type Outcome struct {
	Index      int           `json:"index"`
	Status     OutcomeStatus `json:"status"`
	Field      string        `json:"field,omitempty"` // candidate field that produced the result
	Query      string        `json:"query,omitempty"`
	Attempts   int           `json:"attempts"` // network attempts across all candidates
	Cached     bool          `json:"cached,omitempty"`
	Enrichment *Enrichment   `json:"enrichment,omitempty"`
	Err        error         `json:"-"`
	Error      string        `json:"error,omitempty"`
}

// RunReport summarizes one enrichment run
type RunReport struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
	Total      int           `json:"total"`
	Enriched   int           `json:"enriched"`
	Skipped    int           `json:"skipped"`
	Exhausted  int           `json:"exhausted"`
	OutputPath string        `json:"output_path,omitempty"`
	Outcomes   []Outcome     `json:"outcomes"`
}

// Tally recomputes the per-status counters from Outcomes
func (r *RunReport) Tally() {
	r.Total = len(r.Outcomes)
	r.Enriched, r.Skipped, r.Exhausted = 0, 0, 0
	for _, o := range r.Outcomes {
		switch o.Status {
		case OutcomeEnriched:
			r.Enriched++
		case OutcomeSkipped:
			r.Skipped++
		case OutcomeExhausted:
			r.Exhausted++
		}
	}
}
