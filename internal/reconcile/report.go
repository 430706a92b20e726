package reconcile

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/yourusername/tipwatch/internal/models"
)

// ProviderReport summarizes one provider's contribution to a run.
type ProviderReport struct {
	Provider   models.Provider `json:"provider"`
	Fetched    int             `json:"fetched"`
	Skipped    int             `json:"skipped"`
	Invalid    int             `json:"invalid"`
	Unresolved int             `json:"unresolved"`
	Upserted   int             `json:"upserted"`
	Error      string          `json:"error,omitempty"`
}

// Report tracks what one reconciliation pass for one date did.
type Report struct {
	mu sync.Mutex

	Date               string                       `json:"date"`
	StartTime          time.Time                    `json:"start_time"`
	Duration           time.Duration                `json:"duration"`
	Meetings           int                          `json:"meetings"`
	Tips               int                          `json:"tips"`
	Providers          []*ProviderReport            `json:"providers"`
	MeetingsCreated    int                          `json:"meetings_created"`
	ResultsAdopted     int                          `json:"results_adopted"`
	OutcomesWritten    map[models.OutcomeStatus]int `json:"outcomes_written"`
	OutcomesUnchanged  int                          `json:"outcomes_unchanged"`
	PrecedenceRefusals int                          `json:"precedence_refusals"`
	AmbiguousMatches   int                          `json:"ambiguous_matches"`
	PricesBackfilled   int                          `json:"prices_backfilled"`
	Pending            int                          `json:"pending"`
	Errors             []string                     `json:"errors,omitempty"`
}

// NewReport creates an empty report for date.
func NewReport(date time.Time) *Report {
	return &Report{
		Date:            models.DateKey(date),
		StartTime:       time.Now(),
		OutcomesWritten: make(map[models.OutcomeStatus]int),
	}
}

// Provider returns the per-provider entry, creating it on first use.
func (r *Report) Provider(p models.Provider) *ProviderReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pr := range r.Providers {
		if pr.Provider == p {
			return pr
		}
	}
	pr := &ProviderReport{Provider: p}
	r.Providers = append(r.Providers, pr)
	return pr
}

// RecordError notes a provider failure. The run continues.
func (r *Report) RecordError(p models.Provider, err error) {
	pr := r.Provider(p)
	r.mu.Lock()
	defer r.mu.Unlock()
	pr.Error = err.Error()
	r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", p, err))
}

// RecordOutcome counts a written outcome.
func (r *Report) RecordOutcome(status models.OutcomeStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.OutcomesWritten[status]++
}

// Partial reports whether some provider failed during the run.
func (r *Report) Partial() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Errors) > 0
}

// ResultsWritten returns the number of result rows upserted across providers.
func (r *Report) ResultsWritten() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.ResultsAdopted
	for _, pr := range r.Providers {
		n += pr.Upserted
	}
	return n
}

// TotalOutcomesWritten returns the number of outcome writes across statuses.
func (r *Report) TotalOutcomesWritten() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.OutcomesWritten {
		n += c
	}
	return n
}

// String returns a formatted string representation of the report
func (r *Report) String() string {
	statuses := make([]string, 0, len(r.OutcomesWritten))
	for s := range r.OutcomesWritten {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)
	written := ""
	for _, s := range statuses {
		written += fmt.Sprintf(" %s=%d", s, r.OutcomesWritten[models.OutcomeStatus(s)])
	}

	return fmt.Sprintf(
		"Report{Date=%s, Tips=%d, Results=%d, Outcomes=[%s], Pending=%d, Refusals=%d, Ambiguous=%d, Backfilled=%d, Errors=%d, Duration=%v}",
		r.Date,
		r.Tips,
		r.ResultsWritten(),
		written,
		r.Pending,
		r.PrecedenceRefusals,
		r.AmbiguousMatches,
		r.PricesBackfilled,
		len(r.Errors),
		r.Duration,
	)
}

// RangeReport collects the per-day reports of a multi-day run.
type RangeReport struct {
	From    string    `json:"from"`
	To      string    `json:"to"`
	Days    []*Report `json:"days"`
	Partial bool      `json:"partial"`
}
