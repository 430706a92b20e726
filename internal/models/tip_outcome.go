package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OutcomeStatus is the canonical state of a tip.
type OutcomeStatus string

const (
	OutcomeStatusWin       OutcomeStatus = "WIN"
	OutcomeStatusPlace     OutcomeStatus = "PLACE"
	OutcomeStatusLose      OutcomeStatus = "LOSE"
	OutcomeStatusScratched OutcomeStatus = "SCRATCHED"
	OutcomeStatusNoResult  OutcomeStatus = "NO_RESULT"
	OutcomeStatusPending   OutcomeStatus = "PENDING"
)

// Settled reports whether the status represents a run race with a known placing.
func (s OutcomeStatus) Settled() bool {
	return s == OutcomeStatusWin || s == OutcomeStatusPlace || s == OutcomeStatusLose
}

// Classify derives an outcome from a finishing position and scratched flag.
// Scratched always wins over the position; unknown or non-positive positions are NO_RESULT.
func Classify(pos *int, scratched bool) OutcomeStatus {
	if scratched {
		return OutcomeStatusScratched
	}
	if pos == nil || *pos <= 0 {
		return OutcomeStatusNoResult
	}
	switch *pos {
	case 1:
		return OutcomeStatusWin
	case 2, 3:
		return OutcomeStatusPlace
	default:
		return OutcomeStatusLose
	}
}

// TipOutcome is the single canonical outcome of a tip. Primary key is TipID.
type TipOutcome struct {
	TipID          uuid.UUID        `db:"tip_id" json:"tip_id" validate:"required"`
	Provider       Provider         `db:"provider" json:"provider" validate:"required"`
	RaceResultID   *uuid.UUID       `db:"race_result_id" json:"race_result_id,omitempty"`
	FinishPosition *int             `db:"finish_position" json:"finish_position"`
	Status         OutcomeStatus    `db:"outcome_status" json:"outcome_status" validate:"required"`
	StartingPrice  *decimal.Decimal `db:"starting_price" json:"starting_price"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// NewTipOutcome builds the outcome of tip derived from result.
func NewTipOutcome(tipID uuid.UUID, result *RaceResult) *TipOutcome {
	id := result.ID
	return &TipOutcome{
		TipID:          tipID,
		Provider:       NormalizeProvider(string(result.Provider)),
		RaceResultID:   &id,
		FinishPosition: result.FinishPosition,
		Status:         result.Outcome(),
		StartingPrice:  result.StartingPrice,
	}
}

// SameAs reports whether o already carries the same derived data as other.
func (o *TipOutcome) SameAs(other *TipOutcome) bool {
	if o == nil || other == nil {
		return o == other
	}
	return o.Provider == other.Provider &&
		uuidPtrEqual(o.RaceResultID, other.RaceResultID) &&
		intPtrEqual(o.FinishPosition, other.FinishPosition) &&
		o.Status == other.Status &&
		decimalPtrEqual(o.StartingPrice, other.StartingPrice)
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func decimalPtrEqual(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
