package analytics

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/tipwatch/internal/models"
)

var ten = decimal.NewFromInt(10)

func detail(status models.OutcomeStatus, pos *int, sp *decimal.Decimal) *models.TipDetail {
	td := &models.TipDetail{Tip: models.Tip{TipType: models.TipTypeAIBest, TabNumber: 4}}
	if status != models.OutcomeStatusPending {
		td.Outcome = &models.TipOutcome{
			Provider:       models.ProviderRA,
			Status:         status,
			FinishPosition: pos,
			StartingPrice:  sp,
		}
	}
	return td
}

func TestBucketAddCountsAndStakes(t *testing.T) {
	b := NewBucket("all")

	assert.True(t, b.Add(detail(models.OutcomeStatusWin, intPtr(1), decPtr("3.60")), ten))
	assert.True(t, b.Add(detail(models.OutcomeStatusPlace, intPtr(2), decPtr("5.00")), ten))
	assert.True(t, b.Add(detail(models.OutcomeStatusPlace, intPtr(3), nil), ten))
	assert.True(t, b.Add(detail(models.OutcomeStatusLose, intPtr(7), decPtr("12")), ten))
	assert.True(t, b.Add(detail(models.OutcomeStatusNoResult, nil, nil), ten))
	assert.True(t, b.Add(detail(models.OutcomeStatusPending, nil, nil), ten))
	assert.False(t, b.Add(detail(models.OutcomeStatusScratched, nil, nil), ten))

	assert.Equal(t, 6, b.Tips)
	assert.Equal(t, 1, b.Wins)
	assert.Equal(t, 1, b.Seconds)
	assert.Equal(t, 1, b.Thirds)
	assert.Equal(t, 1, b.Pending)
	assert.Equal(t, 3, b.Podium())

	assert.True(t, b.Staked.Equal(decimal.NewFromInt(40)), "staked %s", b.Staked)
	assert.True(t, b.Returned.Equal(decimal.NewFromInt(36)), "returned %s", b.Returned)
	assert.True(t, b.Profit().Equal(decimal.NewFromInt(-4)))
	assert.True(t, b.ROI().Equal(decimal.RequireFromString("-0.1")), "roi %s", b.ROI())

	assert.InDelta(t, 1.0/6.0, b.WinStrikeRate(), 1e-9)
	assert.InDelta(t, 0.5, b.PlaceStrikeRate(), 1e-9)
}

func TestBucketWinWithoutPriceIsNotStaked(t *testing.T) {
	b := NewBucket("all")
	b.Add(detail(models.OutcomeStatusWin, intPtr(1), nil), ten)

	assert.Equal(t, 1, b.Wins)
	assert.True(t, b.Staked.IsZero())
	assert.True(t, b.Returned.IsZero())
	assert.True(t, b.ROI().IsZero())
}

func TestBucketStakeUsesUnits(t *testing.T) {
	b := NewBucket("all")
	td := detail(models.OutcomeStatusWin, intPtr(1), decPtr("2.50"))
	td.Tip.StakeUnits = decimal.RequireFromString("0.5")
	b.Add(td, ten)

	assert.True(t, b.Staked.Equal(decimal.NewFromInt(5)))
	assert.True(t, b.Returned.Equal(decimal.RequireFromString("12.5")))
	assert.True(t, b.ROI().Equal(decimal.RequireFromString("1.5")))
}

func TestEmptyBucketIsWellDefined(t *testing.T) {
	b := NewBucket("empty")

	assert.Zero(t, b.WinStrikeRate())
	assert.Zero(t, b.PlaceStrikeRate())
	assert.True(t, b.ROI().IsZero())
}

func TestBucketMerge(t *testing.T) {
	a := NewBucket("a")
	a.Add(detail(models.OutcomeStatusWin, intPtr(1), decPtr("4")), ten)
	b := NewBucket("b")
	b.Add(detail(models.OutcomeStatusLose, intPtr(5), decPtr("8")), ten)

	a.Merge(b)
	assert.Equal(t, 2, a.Tips)
	assert.True(t, a.Staked.Equal(decimal.NewFromInt(20)))
	assert.True(t, a.ROI().Equal(decimal.NewFromInt(1)))
}

func TestBucketJSON(t *testing.T) {
	b := NewBucket("Race 1")
	b.Add(detail(models.OutcomeStatusWin, intPtr(1), decPtr("3.60")), ten)

	raw, err := json.Marshal(b)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "Race 1", out["label"])
	assert.Equal(t, float64(1), out["win_strike_rate"])
	assert.Equal(t, "2.6", out["roi"])
}

func TestLeaderboardAppliesMinimumSample(t *testing.T) {
	small := &Bucket{Label: "small", Tips: 2, Wins: 2}
	strong := &Bucket{Label: "strong", Tips: 10, Wins: 4}
	weak := &Bucket{Label: "weak", Tips: 10, Wins: 1}

	got := leaderboard([]*Bucket{weak, small, strong}, 5)
	require.Len(t, got, 2)
	assert.Equal(t, "strong", got[0].Label)
	assert.Equal(t, "weak", got[1].Label)
}
