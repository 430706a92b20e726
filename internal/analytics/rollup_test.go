package analytics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/tipwatch/internal/models"
)

func TestDayRollup(t *testing.T) {
	s := newSeeder(t)
	s.add(
		// Race 1: all three categories fill the places.
		tipFixture{Track: "Flemington", State: "VIC", Race: 1, Type: models.TipTypeAIBest, Tab: 1, Status: models.OutcomeStatusWin, Pos: 1, SP: "4.00"},
		tipFixture{Track: "Flemington", State: "VIC", Race: 1, Type: models.TipTypeDanger, Tab: 2, Status: models.OutcomeStatusPlace, Pos: 3},
		tipFixture{Track: "Flemington", State: "VIC", Race: 1, Type: models.TipTypeValue, Tab: 3, Status: models.OutcomeStatusPlace, Pos: 2},
		// Race 2: first and second covered, third missed.
		tipFixture{Track: "Flemington", State: "VIC", Race: 2, Type: models.TipTypeAIBest, Tab: 6, Status: models.OutcomeStatusPlace, Pos: 2},
		tipFixture{Track: "Flemington", State: "VIC", Race: 2, Type: models.TipTypeDanger, Tab: 7, Status: models.OutcomeStatusLose, Pos: 5},
		tipFixture{Track: "Flemington", State: "VIC", Race: 2, Type: models.TipTypeValue, Tab: 8, Status: models.OutcomeStatusWin, Pos: 1, SP: "11.50"},
		// Another meeting, nothing landed.
		tipFixture{Track: "Doomben", State: "QLD", Race: 5, Type: models.TipTypeAIBest, Tab: 4, Status: models.OutcomeStatusLose, Pos: 9},
		tipFixture{Track: "Doomben", State: "QLD", Race: 5, Type: models.TipTypeDanger, Tab: 5, Status: models.OutcomeStatusScratched},
	)
	agg := newTestAggregator(s.repos, nil, nil)

	rollup, err := agg.DayRollup(context.Background(), day1)
	require.NoError(t, err)
	assert.Equal(t, "2025-11-18", rollup.Date)
	require.Len(t, rollup.Meetings, 2)

	doomben := rollup.Meetings[0]
	assert.Equal(t, "Doomben", doomben.TrackName)
	assert.Equal(t, 1, doomben.Stats.Tips)
	assert.Zero(t, doomben.Quinellas)

	flem := rollup.Meetings[1]
	require.Len(t, flem.Races, 2)
	r1, r2 := flem.Races[0], flem.Races[1]
	assert.Equal(t, 1, r1.RaceNumber)
	assert.True(t, r1.Quinella)
	assert.True(t, r1.Trifecta)
	assert.True(t, r2.Quinella)
	assert.False(t, r2.Trifecta)

	assert.Equal(t, 2, flem.Quinellas)
	assert.Equal(t, 1, flem.Trifectas)
	assert.Equal(t, 6, flem.Stats.Tips)
	assert.Equal(t, 2, flem.Stats.Wins)
	assert.Equal(t, "60", flem.Stats.Staked.String())
	assert.Equal(t, "155", flem.Stats.Returned.String())

	assert.Equal(t, 7, rollup.Stats.Tips)
	assert.Equal(t, "70", rollup.Stats.Staked.String())
	assert.Equal(t, "85", rollup.Stats.Profit().String())
	assert.Equal(t, 2, rollup.Quinellas)
	assert.Equal(t, 1, rollup.Trifectas)
}

func TestDayRollupTurnoverCountsSettledTipsOnly(t *testing.T) {
	s := newSeeder(t)
	s.add(
		tipFixture{Track: "Eagle Farm", State: "QLD", Race: 1, Type: models.TipTypeAIBest, Tab: 1, Status: models.OutcomeStatusWin, Pos: 1},
		tipFixture{Track: "Eagle Farm", State: "QLD", Race: 1, Type: models.TipTypeDanger, Tab: 2, Status: models.OutcomeStatusLose, Pos: 6},
		tipFixture{Track: "Eagle Farm", State: "QLD", Race: 2, Type: models.TipTypeAIBest, Tab: 3},
	)
	agg := newTestAggregator(s.repos, nil, nil)

	rollup, err := agg.DayRollup(context.Background(), day1)
	require.NoError(t, err)
	assert.Equal(t, 3, rollup.Stats.Tips)
	assert.Equal(t, 1, rollup.Stats.Wins)
	assert.Equal(t, "10", rollup.Stats.Staked.String(), "only the LOSE tip is staked")
	assert.True(t, rollup.Stats.Returned.IsZero())
}

func TestQuinellaAndTrifectaRules(t *testing.T) {
	assert.False(t, quinella(map[models.TipType][]int{models.TipTypeAIBest: {1}}))
	assert.True(t, quinella(map[models.TipType][]int{models.TipTypeAIBest: {2}, models.TipTypeValue: {1}}))

	assert.False(t, trifecta(map[models.TipType][]int{
		models.TipTypeAIBest: {1},
		models.TipTypeDanger: {2},
	}))
	assert.False(t, trifecta(map[models.TipType][]int{
		models.TipTypeAIBest: {1},
		models.TipTypeDanger: {2},
		models.TipTypeValue:  {4},
	}))
	assert.True(t, trifecta(map[models.TipType][]int{
		models.TipTypeAIBest: {3},
		models.TipTypeDanger: {1},
		models.TipTypeValue:  {2},
	}))
}
