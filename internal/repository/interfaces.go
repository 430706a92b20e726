package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yourusername/tipwatch/internal/models"
)

// MeetingRepository defines the interface for meeting data access
type MeetingRepository interface {
	// GetOrCreate returns the meeting with m's (date, track name, state) key,
	// inserting m when none exists. created reports whether m was inserted.
	GetOrCreate(ctx context.Context, m *models.Meeting) (meeting *models.Meeting, created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error)
	ListByDate(ctx context.Context, date time.Time) ([]*models.Meeting, error)
	// UpdateExternalIDs patches provider identifiers in. Nil arguments leave the stored value alone.
	UpdateExternalIDs(ctx context.Context, id uuid.UUID, pfMeetingID *int, raMeetCode *string) error
}

// RaceRepository defines the interface for race data access
type RaceRepository interface {
	// GetOrCreate returns the race with r's (meeting, race number) key, inserting r when none exists.
	GetOrCreate(ctx context.Context, r *models.Race) (race *models.Race, created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Race, error)
	ListByMeetings(ctx context.Context, meetingIDs []uuid.UUID) ([]*models.Race, error)
}

// TipRunRepository defines the interface for tip run data access
type TipRunRepository interface {
	Create(ctx context.Context, run *models.TipRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.TipRun, error)
}

// TipFilter narrows tip listings. Empty fields match everything.
// TrackName is compared with tracks.FuzzyMatch; Provider matches the
// provider of the tip's outcome.
type TipFilter struct {
	State     string
	TrackName string
	TipType   models.TipType
	Provider  models.Provider
}

// TipRepository defines the interface for tip data access
type TipRepository interface {
	Create(ctx context.Context, tip *models.Tip) error
	// ListByDate returns every tip on meetings of date, superseded runs included.
	ListByDate(ctx context.Context, date time.Time) ([]*models.Tip, error)
	// ListTipDetails returns tips of meetings in [from, to] joined with race, meeting
	// and outcome. Only tips from the most recent run for each race are returned.
	ListTipDetails(ctx context.Context, from, to time.Time, filter TipFilter) ([]*models.TipDetail, error)
}

// RaceResultRepository defines the interface for race result data access
type RaceResultRepository interface {
	// Upsert inserts or updates the row keyed by (provider, race, tab number) and
	// returns the stored row. A nil starting price keeps the stored one.
	Upsert(ctx context.Context, result *models.RaceResult) (*models.RaceResult, error)
	ListByRaces(ctx context.Context, raceIDs []uuid.UUID) ([]*models.RaceResult, error)
	// BackfillStartingPrice sets the price only when none is stored.
	BackfillStartingPrice(ctx context.Context, id uuid.UUID, price decimal.Decimal) (bool, error)
}

// TipOutcomeRepository defines the interface for tip outcome data access
type TipOutcomeRepository interface {
	Get(ctx context.Context, tipID uuid.UUID) (*models.TipOutcome, error)
	ListByTips(ctx context.Context, tipIDs []uuid.UUID) ([]*models.TipOutcome, error)
	// Upsert writes the outcome keyed by tip id. An existing outcome from a
	// higher-precedence provider is kept; written is false in that case.
	Upsert(ctx context.Context, outcome *models.TipOutcome) (written bool, err error)
	// BackfillStartingPrice sets the price only when none is stored.
	BackfillStartingPrice(ctx context.Context, tipID uuid.UUID, price decimal.Decimal) (bool, error)
}
