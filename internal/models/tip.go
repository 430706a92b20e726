package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TipType is the semantic slot a tip fills within its run.
type TipType string

const (
	TipTypeAIBest TipType = "AI_BEST" // primary selection
	TipTypeDanger TipType = "DANGER"  // main contender
	TipTypeValue  TipType = "VALUE"   // value-style selection
)

// TipTypes lists the categories in display order.
var TipTypes = []TipType{TipTypeAIBest, TipTypeDanger, TipTypeValue}

// Valid reports whether t is a known category.
func (t TipType) Valid() bool {
	switch t {
	case TipTypeAIBest, TipTypeDanger, TipTypeValue:
		return true
	}
	return false
}

// TipRun is one batch of tips generated together for a meeting.
type TipRun struct {
	ID           uuid.UUID       `db:"id" json:"id" validate:"required"`
	Source       string          `db:"source" json:"source" validate:"required"`
	ModelVersion string          `db:"model_version" json:"model_version"`
	MeetingID    uuid.UUID       `db:"meeting_id" json:"meeting_id" validate:"required"`
	Meta         json.RawMessage `db:"meta" json:"meta,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// Tip is a single recommendation for one runner in one race.
// Tips are immutable; a newer TipRun for the same race supersedes them.
type Tip struct {
	ID         uuid.UUID       `db:"id" json:"id" validate:"required"`
	TipRunID   uuid.UUID       `db:"tip_run_id" json:"tip_run_id" validate:"required"`
	RaceID     uuid.UUID       `db:"race_id" json:"race_id" validate:"required"`
	TipType    TipType         `db:"tip_type" json:"tip_type" validate:"required,oneof=AI_BEST DANGER VALUE"`
	TabNumber  int             `db:"tab_number" json:"tab_number" validate:"required,gt=0"`
	HorseName  string          `db:"horse_name" json:"horse_name"`
	Reasoning  string          `db:"reasoning" json:"reasoning,omitempty"`
	Confidence *float64        `db:"confidence" json:"confidence,omitempty"`
	StakeUnits decimal.Decimal `db:"stake_units" json:"stake_units"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// Units returns the stake-unit weight, defaulting to 1 when unset.
func (t *Tip) Units() decimal.Decimal {
	if t.StakeUnits.IsZero() || t.StakeUnits.IsNegative() {
		return decimal.NewFromInt(1)
	}
	return t.StakeUnits
}

// TipDetail is a tip joined with its race, meeting and (optional) outcome.
type TipDetail struct {
	Tip     Tip         `json:"tip"`
	Race    Race        `json:"race"`
	Meeting Meeting     `json:"meeting"`
	Outcome *TipOutcome `json:"outcome,omitempty"`
}

// Status returns the outcome status, PENDING when no outcome exists yet.
func (d *TipDetail) Status() OutcomeStatus {
	if d.Outcome == nil {
		return OutcomeStatusPending
	}
	return d.Outcome.Status
}
