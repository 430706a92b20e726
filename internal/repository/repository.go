// Package repository persists meetings, tips, provider results and tip outcomes.
package repository

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/yourusername/tipwatch/internal/database"
	"github.com/yourusername/tipwatch/internal/models"
	"github.com/yourusername/tipwatch/internal/tracks"
)

// Repositories holds all repository implementations
type Repositories struct {
	Meeting    MeetingRepository
	Race       RaceRepository
	TipRun     TipRunRepository
	Tip        TipRepository
	RaceResult RaceResultRepository
	TipOutcome TipOutcomeRepository
}

// NewRepositories creates and returns all repository implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		Meeting:    NewPostgresMeetingRepository(db),
		Race:       NewPostgresRaceRepository(db),
		TipRun:     NewPostgresTipRunRepository(db),
		Tip:        NewPostgresTipRepository(db),
		RaceResult: NewPostgresRaceResultRepository(db),
		TipOutcome: NewPostgresTipOutcomeRepository(db),
	}, nil
}

// NewMemoryRepositories returns every repository backed by one MemoryStore.
func NewMemoryRepositories() (*Repositories, *MemoryStore) {
	store := NewMemoryStore()
	return &Repositories{
		Meeting:    store.Meetings(),
		Race:       store.Races(),
		TipRun:     store.TipRuns(),
		Tip:        store.Tips(),
		RaceResult: store.RaceResults(),
		TipOutcome: store.TipOutcomes(),
	}, store
}

// matches applies the filter to a joined tip.
func (f TipFilter) matches(d *models.TipDetail) bool {
	if f.State != "" && !strings.EqualFold(f.State, d.Meeting.State) {
		return false
	}
	if f.TrackName != "" && !tracks.FuzzyMatch(f.TrackName, d.Meeting.TrackName) {
		return false
	}
	if f.TipType != "" && f.TipType != d.Tip.TipType {
		return false
	}
	if f.Provider != "" {
		if d.Outcome == nil || models.NormalizeProvider(string(d.Outcome.Provider)) != models.NormalizeProvider(string(f.Provider)) {
			return false
		}
	}
	return true
}

// decimalArg converts an optional decimal into a query argument.
func decimalArg(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

// parseDecimal converts NUMERIC scanned as text back into a decimal.
func parseDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, fmt.Errorf("invalid numeric %q: %w", *s, err)
	}
	return &d, nil
}

// providerRankExpr renders models.ProviderRank as a SQL expression over col.
func providerRankExpr(col string) string {
	return fmt.Sprintf("(CASE UPPER(%s) WHEN '%s' THEN %d WHEN '%s' THEN %d ELSE 0 END)",
		col,
		models.ProviderPF, models.ProviderRank(models.ProviderPF),
		models.ProviderRA, models.ProviderRank(models.ProviderRA),
	)
}
