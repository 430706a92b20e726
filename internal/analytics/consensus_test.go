package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/tipwatch/internal/datasource"
	"github.com/yourusername/tipwatch/internal/models"
)

type stubPriceFeed struct {
	byDay map[string][]datasource.PriceRow
	fail  map[string]error
	calls int
}

func (f *stubPriceFeed) Provider() models.Provider { return models.ProviderSkynet }

func (f *stubPriceFeed) FetchPrices(_ context.Context, date time.Time) ([]datasource.PriceRow, error) {
	f.calls++
	key := models.DateKey(date)
	if err := f.fail[key]; err != nil {
		return nil, err
	}
	return f.byDay[key], nil
}

func ranked(pfID *int, track string, race, tab, rank int, price string) datasource.PriceRow {
	return datasource.PriceRow{
		PFMeetingID: pfID,
		Track:       track,
		RaceNumber:  race,
		TabNumber:   tab,
		Price:       decimal.RequireFromString(price),
		Rank:        intPtr(rank),
	}
}

func TestConsensus(t *testing.T) {
	day2 := day1.AddDate(0, 0, 1)
	day3 := day1.AddDate(0, 0, 2)
	s := newSeeder(t)
	s.add(
		tipFixture{Track: "Caulfield", State: "VIC", Race: 1, PFID: intPtr(9001), Type: models.TipTypeAIBest, Tab: 3, Status: models.OutcomeStatusWin, Pos: 1, SP: "2.80"},
		tipFixture{Track: "Caulfield", State: "VIC", Race: 2, Type: models.TipTypeAIBest, Tab: 6, Status: models.OutcomeStatusLose, Pos: 4, SP: "3.10"},
		tipFixture{Track: "Caulfield", State: "VIC", Race: 3, Type: models.TipTypeAIBest, Tab: 2, Status: models.OutcomeStatusWin, Pos: 1, SP: "6.00"},
		tipFixture{Track: "Caulfield", State: "VIC", Race: 4, Type: models.TipTypeAIBest, Tab: 8, Status: models.OutcomeStatusScratched},
		tipFixture{Track: "Caulfield", State: "VIC", Race: 1, Type: models.TipTypeDanger, Tab: 5, Status: models.OutcomeStatusPlace, Pos: 2},
		tipFixture{Day: day2, Track: "Ascot", State: "WA", Race: 1, Type: models.TipTypeAIBest, Tab: 1, Status: models.OutcomeStatusWin, Pos: 1, SP: "2.00"},
		tipFixture{Day: day3, Track: "Ballarat", State: "VIC", Race: 1, Type: models.TipTypeAIBest, Tab: 1},
	)
	feed := &stubPriceFeed{
		byDay: map[string][]datasource.PriceRow{
			models.DateKey(day1): {
				ranked(intPtr(9001), "Caulfield Heath", 1, 3, 1, "2.60"),
				ranked(nil, "Caulfield", 2, 6, 1, "3.00"),
				ranked(nil, "Caulfield", 3, 5, 1, "2.20"),
				ranked(nil, "Caulfield", 3, 2, 2, "5.50"),
				ranked(nil, "Caulfield", 4, 8, 1, "4.00"),
			},
			models.DateKey(day3): {
				ranked(nil, "Ballarat", 1, 1, 1, "1.90"),
			},
		},
		fail: map[string]error{models.DateKey(day2): errors.New("upstream 503")},
	}
	agg := newTestAggregator(s.repos, feed, NewReportCache(time.Minute))

	report, err := agg.Consensus(context.Background(), day1, day3)
	require.NoError(t, err)

	assert.True(t, report.HasData)
	assert.Equal(t, 6, report.AIBestTips, "DANGER tips are not considered")
	assert.Equal(t, 4, report.Matched)
	assert.Equal(t, 1, report.Scratched)
	assert.Equal(t, 3, report.Overall.Tips)
	assert.Equal(t, 1, report.Overall.Wins)
	assert.Equal(t, 1, report.Overall.Pending)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "2025-11-19")

	require.Len(t, report.ByState, 1)
	assert.Equal(t, "VIC", report.ByState[0].Label)

	require.Len(t, report.Samples, 3)
	assert.Equal(t, "2.6", report.Samples[0].MarketPrice.String())

	_, err = agg.Consensus(context.Background(), day1, day3)
	require.NoError(t, err)
	assert.Equal(t, 6, feed.calls, "reports with price errors are not cached")
}

func TestConsensusNeedsPriceFeed(t *testing.T) {
	agg := newTestAggregator(newSeeder(t).repos, nil, nil)

	_, err := agg.Consensus(context.Background(), day1, day1)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
