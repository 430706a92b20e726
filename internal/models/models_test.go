package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		pos       *int
		scratched bool
		want      OutcomeStatus
	}{
		{"winner", intPtr(1), false, OutcomeStatusWin},
		{"second", intPtr(2), false, OutcomeStatusPlace},
		{"third", intPtr(3), false, OutcomeStatusPlace},
		{"fourth", intPtr(4), false, OutcomeStatusLose},
		{"tail ender", intPtr(18), false, OutcomeStatusLose},
		{"not run yet", nil, false, OutcomeStatusNoResult},
		{"zero position", intPtr(0), false, OutcomeStatusNoResult},
		{"negative position", intPtr(-2), false, OutcomeStatusNoResult},
		{"scratched without position", nil, true, OutcomeStatusScratched},
		{"scratched overrides winner", intPtr(1), true, OutcomeStatusScratched},
		{"scratched overrides loser", intPtr(7), true, OutcomeStatusScratched},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.pos, tt.scratched))
		})
	}
}

func TestProviderPrecedence(t *testing.T) {
	assert.True(t, ProviderPF.Outranks(ProviderRA))
	assert.True(t, ProviderRA.Outranks(Provider("TAB")))
	assert.True(t, ProviderPF.Outranks(Provider("TAB")))
	assert.False(t, ProviderRA.Outranks(ProviderPF))
	assert.False(t, ProviderPF.Outranks(ProviderPF))

	assert.Equal(t, 0, CompareProviders("pf", ProviderPF))
	assert.Equal(t, 0, CompareProviders("TAB", "XYZ"))
	assert.Equal(t, -1, CompareProviders(ProviderRA, ProviderPF))

	assert.True(t, ProviderPF.MayOverwrite(ProviderRA))
	assert.True(t, ProviderRA.MayOverwrite(ProviderRA))
	assert.False(t, ProviderRA.MayOverwrite(ProviderPF))
}

func TestBestResult(t *testing.T) {
	ra := &RaceResult{ID: uuid.New(), Provider: ProviderRA}
	pf := &RaceResult{ID: uuid.New(), Provider: ProviderPF}
	other := &RaceResult{ID: uuid.New(), Provider: "TAB"}

	assert.Nil(t, BestResult(nil))
	assert.Equal(t, pf, BestResult([]*RaceResult{other, ra, pf}))
	assert.Equal(t, ra, BestResult([]*RaceResult{other, ra}))
	assert.Equal(t, other, BestResult([]*RaceResult{other}))
}

func TestRaceResultScratchedStatus(t *testing.T) {
	for _, s := range []string{"SCR", "scratched", " LSCR ", "Late Scratching"} {
		r := &RaceResult{Status: s, FinishPosition: intPtr(1)}
		assert.True(t, r.IsScratched(), s)
		assert.Equal(t, OutcomeStatusScratched, r.Outcome(), s)
	}

	r := &RaceResult{Status: "FIN", FinishPosition: intPtr(2)}
	assert.False(t, r.IsScratched())
	assert.Equal(t, OutcomeStatusPlace, r.Outcome())
}

func TestNewTipOutcome(t *testing.T) {
	price := decimal.RequireFromString("3.60")
	result := &RaceResult{
		ID:             uuid.New(),
		Provider:       "pf",
		RaceID:         uuid.New(),
		TabNumber:      4,
		FinishPosition: intPtr(1),
		Status:         ResultStatusRun,
		StartingPrice:  &price,
	}
	tipID := uuid.New()

	outcome := NewTipOutcome(tipID, result)
	assert.Equal(t, tipID, outcome.TipID)
	assert.Equal(t, ProviderPF, outcome.Provider)
	assert.Equal(t, OutcomeStatusWin, outcome.Status)
	assert.Equal(t, result.ID, *outcome.RaceResultID)
	assert.True(t, outcome.StartingPrice.Equal(price))
	assert.True(t, outcome.SameAs(NewTipOutcome(tipID, result)))
}

func TestTipUnitsDefault(t *testing.T) {
	tip := Tip{}
	assert.True(t, tip.Units().Equal(decimal.NewFromInt(1)))

	tip.StakeUnits = decimal.RequireFromString("0.5")
	assert.True(t, tip.Units().Equal(decimal.RequireFromString("0.5")))
}

func TestValidationErrorIsInvalidInput(t *testing.T) {
	err := NewValidationError("bad_tab", "tab number must be positive")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "bad_tab: tab number must be positive", err.Error())
}
