package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Result status texts written by the reconciler. Providers may supply their own
// free-text values (FIN, SCR, ...), which are stored as given.
const (
	ResultStatusRun       = "RUN"
	ResultStatusScratched = "SCRATCHED"
	ResultStatusNoResult  = "NO_RESULT"
)

var scratchedStatuses = map[string]struct{}{
	"SCR":             {},
	"SCRATCHED":       {},
	"LSCR":            {},
	"LATE SCRATCHING": {},
	"LATE SCRATCHED":  {},
}

// IsScratchedStatus reports whether a provider status text denotes a scratching.
func IsScratchedStatus(status string) bool {
	_, ok := scratchedStatuses[strings.ToUpper(strings.TrimSpace(status))]
	return ok
}

// RaceResult is how one runner finished in one race, as reported by one provider.
// Unique per (provider, race, tab number).
type RaceResult struct {
	ID             uuid.UUID        `db:"id" json:"id"`
	Provider       Provider         `db:"provider" json:"provider" validate:"required"`
	RaceID         uuid.UUID        `db:"race_id" json:"race_id" validate:"required"`
	TabNumber      int              `db:"tab_number" json:"tab_number" validate:"required,gt=0"`
	HorseName      string           `db:"horse_name" json:"horse_name"`
	FinishPosition *int             `db:"finish_position" json:"finish_position"`
	Status         string           `db:"status" json:"status"`
	MarginText     *string          `db:"margin_text" json:"margin_text,omitempty"`
	StartingPrice  *decimal.Decimal `db:"starting_price" json:"starting_price"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// RaceResultKey is the natural key of a RaceResult.
type RaceResultKey struct {
	Provider  Provider
	RaceID    uuid.UUID
	TabNumber int
}

// Key returns the result's natural key.
func (r *RaceResult) Key() RaceResultKey {
	return RaceResultKey{Provider: NormalizeProvider(string(r.Provider)), RaceID: r.RaceID, TabNumber: r.TabNumber}
}

// IsScratched reports whether the stored status marks the runner as scratched.
func (r *RaceResult) IsScratched() bool {
	return IsScratchedStatus(r.Status)
}

// Outcome classifies the result for a tip on this runner.
func (r *RaceResult) Outcome() OutcomeStatus {
	return Classify(r.FinishPosition, r.IsScratched())
}

// ResultStatusText derives the stored status when a feed does not supply one.
func ResultStatusText(pos *int, scratched bool) string {
	switch {
	case scratched:
		return ResultStatusScratched
	case pos == nil:
		return ResultStatusNoResult
	default:
		return ResultStatusRun
	}
}

// BestResult picks the highest-precedence result from rs. Ties keep the earlier entry.
func BestResult(rs []*RaceResult) *RaceResult {
	var best *RaceResult
	for _, r := range rs {
		if r == nil {
			continue
		}
		if best == nil || r.Provider.Outranks(best.Provider) {
			best = r
		}
	}
	return best
}
