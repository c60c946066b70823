package bulk

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the outcome of one target.
type Status string

const (
	StatusSucceeded    Status = "succeeded"
	StatusFailed       Status = "failed"
	StatusNotAttempted Status = "not-attempted"
)

// AbortReason is recorded for every target skipped by the circuit breaker.
var AbortReason = fmt.Sprintf("not attempted: aborted after %d consecutive failures", Threshold)

// TargetResult is the outcome for one entry of the target list.
type TargetResult struct {
	Index int `json:"index"`

	// Target is the entry as supplied, before validation.
	Target any `json:"target"`

	// ID is the validated identifier; zero if validation failed or the
	// target was not attempted.
	ID int `json:"id,omitempty"`

	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Report summarizes a bulk run. Succeeded+Failed+NotAttempted == Total.
type Report struct {
	ID        uuid.UUID `json:"id"`
	Operation string    `json:"operation"`
	Total     int       `json:"total"`

	Succeeded    int `json:"succeeded"`
	Failed       int `json:"failed"`
	NotAttempted int `json:"not_attempted"`

	// Aborted is set when the circuit breaker tripped. Results collected
	// before that point remain valid.
	Aborted bool `json:"aborted"`

	Results []TargetResult `json:"results"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func (r *Report) add(res TargetResult) {
	switch res.Status {
	case StatusSucceeded:
		r.Succeeded++
	case StatusFailed:
		r.Failed++
	case StatusNotAttempted:
		r.NotAttempted++
	}
	r.Results = append(r.Results, res)
}

func (r *Report) skipRemaining(targets []any, offset int, reason string) {
	for j, target := range targets {
		r.add(TargetResult{
			Index:  offset + j,
			Target: target,
			Status: StatusNotAttempted,
			Error:  reason,
		})
	}
}

// Failures returns the failed targets in order.
func (r *Report) Failures() []TargetResult {
	var out []TargetResult
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			out = append(out, res)
		}
	}
	return out
}

// FailedTargets returns the raw targets that failed or were not attempted,
// in order, for a caller that wants to re-run them.
func (r *Report) FailedTargets() []any {
	var out []any
	for _, res := range r.Results {
		if res.Status != StatusSucceeded {
			out = append(out, res.Target)
		}
	}
	return out
}

// OK reports whether every target succeeded.
func (r *Report) OK() bool {
	return r.Succeeded == r.Total
}

// Duration returns how long the run took.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
