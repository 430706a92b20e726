package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/tipwatch/internal/datasource"
	"github.com/yourusername/tipwatch/internal/models"
	"github.com/yourusername/tipwatch/internal/repository"
)

var raceDay = time.Date(2025, 11, 18, 0, 0, 0, 0, time.UTC)

type stubResultFeed struct {
	provider models.Provider
	rows     []datasource.RawResultRow
	err      error
	calls    int
	lastReq  datasource.FetchRequest
}

func (f *stubResultFeed) Provider() models.Provider { return f.provider }

func (f *stubResultFeed) FetchResults(_ context.Context, req datasource.FetchRequest) (*datasource.FeedBatch, error) {
	f.calls++
	f.lastReq = req
	rows := append([]datasource.RawResultRow(nil), f.rows...)
	return &datasource.FeedBatch{Provider: f.provider, Rows: rows}, f.err
}

type stubPriceFeed struct {
	rows []datasource.PriceRow
	err  error
}

func (f *stubPriceFeed) Provider() models.Provider { return models.ProviderSkynet }

func (f *stubPriceFeed) FetchPrices(context.Context, time.Time) ([]datasource.PriceRow, error) {
	return f.rows, f.err
}

func intPtr(v int) *int { return &v }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func quietLogger() (*logrus.Logger, *logtest.Hook) {
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return log, hook
}

// seedTip stores a meeting, race, run and AI_BEST tip.
func seedTip(t *testing.T, repos *repository.Repositories, track, state string, raceNumber, tab int) *models.Tip {
	t.Helper()
	ctx := context.Background()

	meeting, _, err := repos.Meeting.GetOrCreate(ctx, &models.Meeting{Date: raceDay, TrackName: track, State: state})
	require.NoError(t, err)
	race, _, err := repos.Race.GetOrCreate(ctx, &models.Race{MeetingID: meeting.ID, RaceNumber: raceNumber})
	require.NoError(t, err)
	run := &models.TipRun{Source: "model", MeetingID: meeting.ID}
	require.NoError(t, repos.TipRun.Create(ctx, run))
	tip := &models.Tip{TipRunID: run.ID, RaceID: race.ID, TipType: models.TipTypeAIBest, TabNumber: tab}
	require.NoError(t, repos.Tip.Create(ctx, tip))
	return tip
}

func row(provider models.Provider, track, state string, raceNumber, tab int, pos *int) datasource.RawResultRow {
	return datasource.RawResultRow{
		Provider:       provider,
		State:          state,
		Track:          track,
		RaceNumber:     raceNumber,
		TabNumber:      tab,
		HorseName:      "Runner",
		FinishPosition: pos,
	}
}

func TestReconcileFuzzyTrackWinIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repos, store := repository.NewMemoryRepositories()
	tip := seedTip(t, repos, "Rosehill Gardens", "VIC", 3, 4)

	ra := row(models.ProviderRA, "Rosehill", "VIC", 3, 4, intPtr(1))
	ra.StartingPrice = decPtr("3.60")
	feed := &stubResultFeed{provider: models.ProviderRA, rows: []datasource.RawResultRow{ra}}

	log, _ := quietLogger()
	rec := NewReconciler(repos, []datasource.ResultFeed{feed}, nil, log)

	first, err := rec.ReconcileDate(ctx, raceDay)
	require.NoError(t, err)
	assert.False(t, first.Partial())
	assert.Equal(t, 0, first.MeetingsCreated)
	assert.Equal(t, 1, first.OutcomesWritten[models.OutcomeStatusWin])
	assert.Equal(t, 0, first.Pending)

	second, err := rec.ReconcileDate(ctx, raceDay)
	require.NoError(t, err)
	assert.Equal(t, 0, second.TotalOutcomesWritten())
	assert.Equal(t, 1, second.OutcomesUnchanged)

	outcome, err := repos.TipOutcome.Get(ctx, tip.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeStatusWin, outcome.Status)
	assert.Equal(t, models.ProviderRA, outcome.Provider)
	require.NotNil(t, outcome.StartingPrice)
	assert.True(t, outcome.StartingPrice.Equal(decimal.RequireFromString("3.60")))

	results, outcomes := store.Counts()
	assert.Equal(t, 1, results)
	assert.Equal(t, 1, outcomes)
}

func TestReconcileScratchedRunner(t *testing.T) {
	ctx := context.Background()
	repos, _ := repository.NewMemoryRepositories()
	tip := seedTip(t, repos, "Flemington", "VIC", 5, 7)

	scr := row(models.ProviderRA, "Flemington", "VIC", 5, 7, nil)
	scr.Scratched = true
	feed := &stubResultFeed{provider: models.ProviderRA, rows: []datasource.RawResultRow{scr}}

	log, _ := quietLogger()
	_, err := NewReconciler(repos, []datasource.ResultFeed{feed}, nil, log).ReconcileDate(ctx, raceDay)
	require.NoError(t, err)

	outcome, err := repos.TipOutcome.Get(ctx, tip.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeStatusScratched, outcome.Status)
}

func TestReconcileScratchedFlagOverridesStatusAndPosition(t *testing.T) {
	ctx := context.Background()
	repos, _ := repository.NewMemoryRepositories()
	tip := seedTip(t, repos, "Moonee Valley", "VIC", 2, 3)

	scr := row(models.ProviderRA, "Moonee Valley", "VIC", 2, 3, intPtr(1))
	scr.Scratched = true
	scr.Status = "FIN"
	feed := &stubResultFeed{provider: models.ProviderRA, rows: []datasource.RawResultRow{scr}}

	log, _ := quietLogger()
	report, err := NewReconciler(repos, []datasource.ResultFeed{feed}, nil, log).ReconcileDate(ctx, raceDay)
	require.NoError(t, err)
	assert.Equal(t, 1, report.OutcomesWritten[models.OutcomeStatusScratched])
	assert.Zero(t, report.OutcomesWritten[models.OutcomeStatusWin])

	outcome, err := repos.TipOutcome.Get(ctx, tip.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeStatusScratched, outcome.Status)

	results, err := repos.RaceResult.ListByRaces(ctx, []uuid.UUID{tip.RaceID})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.ResultStatusScratched, results[0].Status)
}

func TestReconcileProviderPrecedence(t *testing.T) {
	ctx := context.Background()
	repos, _ := repository.NewMemoryRepositories()
	tip := seedTip(t, repos, "Randwick", "NSW", 2, 1)

	pf := &stubResultFeed{provider: models.ProviderPF, rows: []datasource.RawResultRow{
		row(models.ProviderPF, "Randwick", "NSW", 2, 1, intPtr(2)),
	}}
	ra := &stubResultFeed{provider: models.ProviderRA, rows: []datasource.RawResultRow{
		row(models.ProviderRA, "Randwick", "NSW", 2, 1, intPtr(1)),
	}}

	log, _ := quietLogger()
	rec := NewReconciler(repos, []datasource.ResultFeed{pf, ra}, nil, log)
	_, err := rec.ReconcileDate(ctx, raceDay)
	require.NoError(t, err)

	outcome, err := repos.TipOutcome.Get(ctx, tip.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProviderPF, outcome.Provider)
	assert.Equal(t, models.OutcomeStatusPlace, outcome.Status)

	// PF goes down; RA keeps reporting. The PF-sourced outcome must not change.
	pf.rows = nil
	pf.err = errors.New("connection refused")
	report, err := rec.ReconcileDate(ctx, raceDay)
	require.NoError(t, err)
	assert.True(t, report.Partial())
	assert.Len(t, report.Errors, 1)

	outcome, err = repos.TipOutcome.Get(ctx, tip.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProviderPF, outcome.Provider)
	assert.Equal(t, models.OutcomeStatusPlace, outcome.Status)
	assert.Equal(t, 2, *outcome.FinishPosition)
}

func TestReconcileAllFeedsFailedLeavesTipsPending(t *testing.T) {
	ctx := context.Background()
	repos, store := repository.NewMemoryRepositories()
	seedTip(t, repos, "Eagle Farm", "QLD", 1, 3)
	seedTip(t, repos, "Eagle Farm", "QLD", 2, 6)

	down := errors.New("timeout")
	feeds := []datasource.ResultFeed{
		&stubResultFeed{provider: models.ProviderPF, err: down},
		&stubResultFeed{provider: models.ProviderRA, err: down},
	}
	log, _ := quietLogger()
	report, err := NewReconciler(repos, feeds, &stubPriceFeed{err: down}, log).ReconcileDate(ctx, raceDay)
	require.NoError(t, err)

	assert.True(t, report.Partial())
	assert.Equal(t, 2, report.Pending)
	assert.Len(t, report.Errors, 3)
	_, outcomes := store.Counts()
	assert.Equal(t, 0, outcomes)

	details, err := repos.Tip.ListTipDetails(ctx, raceDay, raceDay, repository.TipFilter{})
	require.NoError(t, err)
	for _, d := range details {
		assert.Equal(t, models.OutcomeStatusPending, d.Status())
	}
}

func TestReconcileAmbiguousMatchIsAudited(t *testing.T) {
	ctx := context.Background()
	repos, _ := repository.NewMemoryRepositories()
	hillside := seedTip(t, repos, "Sandown Hillside", "VIC", 4, 2)
	seedTip(t, repos, "Sandown Lakeside", "VIC", 4, 9)

	feed := &stubResultFeed{provider: models.ProviderRA, rows: []datasource.RawResultRow{
		row(models.ProviderRA, "Sandown", "VIC", 4, 2, intPtr(3)),
	}}
	log, hook := quietLogger()
	report, err := NewReconciler(repos, []datasource.ResultFeed{feed}, nil, log).ReconcileDate(ctx, raceDay)
	require.NoError(t, err)
	assert.Equal(t, 1, report.AmbiguousMatches)

	// Ties resolve to the first candidate by track name.
	outcome, err := repos.TipOutcome.Get(ctx, hillside.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeStatusPlace, outcome.Status)

	var audited *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == "Ambiguous track match resolved by tie-break" {
			audited = e
		}
	}
	require.NotNil(t, audited)
	assert.Equal(t, "audit", audited.Data["component"])
	assert.Equal(t, "Sandown Hillside", audited.Data["chosen"])
	assert.Equal(t, []string{"Sandown Hillside", "Sandown Lakeside"}, audited.Data["candidates"])
}

func TestReconcileCreatesMeetingOnFirstSighting(t *testing.T) {
	ctx := context.Background()
	repos, _ := repository.NewMemoryRepositories()
	seedTip(t, repos, "Caulfield", "VIC", 1, 1)

	code := "MORPH"
	r := row(models.ProviderRA, "Morphettville", "SA", 6, 3, intPtr(4))
	r.MeetCode = &code
	feed := &stubResultFeed{provider: models.ProviderRA, rows: []datasource.RawResultRow{r, r}}

	log, _ := quietLogger()
	report, err := NewReconciler(repos, []datasource.ResultFeed{feed}, nil, log).ReconcileDate(ctx, raceDay)
	require.NoError(t, err)
	assert.Equal(t, 1, report.MeetingsCreated)
	assert.Equal(t, 1, report.Pending)

	meetings, err := repos.Meeting.ListByDate(ctx, raceDay)
	require.NoError(t, err)
	require.Len(t, meetings, 2)
	var created *models.Meeting
	for _, m := range meetings {
		if m.TrackName == "Morphettville" {
			created = m
		}
	}
	require.NotNil(t, created)
	require.NotNil(t, created.RAMeetCode)
	assert.Equal(t, "MORPH", *created.RAMeetCode)
}

func TestReconcilePatchesProviderIdentifiers(t *testing.T) {
	ctx := context.Background()
	repos, _ := repository.NewMemoryRepositories()
	tip := seedTip(t, repos, "Doomben", "QLD", 7, 5)

	pfRow := row(models.ProviderPF, "Doomben", "QLD", 7, 5, intPtr(1))
	pfRow.PFMeetingID = intPtr(998877)
	feed := &stubResultFeed{provider: models.ProviderPF, rows: []datasource.RawResultRow{pfRow}}

	log, _ := quietLogger()
	_, err := NewReconciler(repos, []datasource.ResultFeed{feed}, nil, log).ReconcileDate(ctx, raceDay)
	require.NoError(t, err)

	race, err := repos.Race.GetByID(ctx, tip.RaceID)
	require.NoError(t, err)
	meeting, err := repos.Meeting.GetByID(ctx, race.MeetingID)
	require.NoError(t, err)
	require.NotNil(t, meeting.PFMeetingID)
	assert.Equal(t, 998877, *meeting.PFMeetingID)

	// A PF-settled tip is not requested again.
	_, err = NewReconciler(repos, []datasource.ResultFeed{feed}, nil, log).ReconcileDate(ctx, raceDay)
	require.NoError(t, err)
	assert.Empty(t, feed.lastReq.Meetings)
}

func TestReconcileBackfillsMissingPrice(t *testing.T) {
	ctx := context.Background()
	repos, _ := repository.NewMemoryRepositories()
	tip := seedTip(t, repos, "Ascot", "WA", 2, 8)

	pfRow := row(models.ProviderPF, "Ascot", "WA", 2, 8, intPtr(1))
	pfRow.PFMeetingID = intPtr(4242)
	feed := &stubResultFeed{provider: models.ProviderPF, rows: []datasource.RawResultRow{pfRow}}
	prices := &stubPriceFeed{rows: []datasource.PriceRow{
		{PFMeetingID: intPtr(4242), Track: "Ascot", State: "WA", RaceNumber: 2, TabNumber: 8, Price: decimal.RequireFromString("5.50")},
	}}

	log, _ := quietLogger()
	report, err := NewReconciler(repos, []datasource.ResultFeed{feed}, prices, log).ReconcileDate(ctx, raceDay)
	require.NoError(t, err)
	assert.Equal(t, 1, report.PricesBackfilled)

	outcome, err := repos.TipOutcome.Get(ctx, tip.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeStatusWin, outcome.Status)
	require.NotNil(t, outcome.StartingPrice)
	assert.True(t, outcome.StartingPrice.Equal(decimal.RequireFromString("5.50")))

	// A later price never overwrites the stored one.
	prices.rows[0].Price = decimal.RequireFromString("9.00")
	report, err = NewReconciler(repos, []datasource.ResultFeed{feed}, prices, log).ReconcileDate(ctx, raceDay)
	require.NoError(t, err)
	assert.Equal(t, 0, report.PricesBackfilled)
	outcome, err = repos.TipOutcome.Get(ctx, tip.ID)
	require.NoError(t, err)
	assert.True(t, outcome.StartingPrice.Equal(decimal.RequireFromString("5.50")))
}

func TestReconcileAdoptsResultsFromDriftedMeeting(t *testing.T) {
	ctx := context.Background()
	repos, _ := repository.NewMemoryRepositories()

	// An earlier pass stored the feed's spelling as its own meeting.
	drifted, _, err := repos.Meeting.GetOrCreate(ctx, &models.Meeting{Date: raceDay, TrackName: "Rosehill", State: "NSW"})
	require.NoError(t, err)
	_, _, err = repos.Race.GetOrCreate(ctx, &models.Race{MeetingID: drifted.ID, RaceNumber: 3})
	require.NoError(t, err)
	tip := seedTip(t, repos, "Rosehill Gardens", "NSW", 3, 4)

	ra := row(models.ProviderRA, "Rosehill", "NSW", 3, 4, intPtr(1))
	ra.StartingPrice = decPtr("3.60")
	feed := &stubResultFeed{provider: models.ProviderRA, rows: []datasource.RawResultRow{ra}}

	log, _ := quietLogger()
	report, err := NewReconciler(repos, []datasource.ResultFeed{feed}, nil, log).ReconcileDate(ctx, raceDay)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ResultsAdopted)

	outcome, err := repos.TipOutcome.Get(ctx, tip.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeStatusWin, outcome.Status)

	results, err := repos.RaceResult.ListByRaces(ctx, []uuid.UUID{tip.RaceID})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, *outcome.RaceResultID, results[0].ID)
}

func TestReconcileKeepsExactResultWhenFeedFailsOnRerun(t *testing.T) {
	ctx := context.Background()
	repos, _ := repository.NewMemoryRepositories()
	tip := seedTip(t, repos, "Ballarat", "VIC", 3, 4)

	synthetic, _, err := repos.Meeting.GetOrCreate(ctx, &models.Meeting{Date: raceDay, TrackName: "Ballarat Synthetic", State: "VIC"})
	require.NoError(t, err)
	_, _, err = repos.Race.GetOrCreate(ctx, &models.Race{MeetingID: synthetic.ID, RaceNumber: 3})
	require.NoError(t, err)

	feed := &stubResultFeed{provider: models.ProviderRA, rows: []datasource.RawResultRow{
		row(models.ProviderRA, "Ballarat", "VIC", 3, 4, intPtr(1)),
		row(models.ProviderRA, "Ballarat Synthetic", "VIC", 3, 4, intPtr(7)),
	}}
	log, _ := quietLogger()
	rec := NewReconciler(repos, []datasource.ResultFeed{feed}, nil, log)

	first, err := rec.ReconcileDate(ctx, raceDay)
	require.NoError(t, err)
	assert.Equal(t, 0, first.ResultsAdopted)

	feed.rows = nil
	feed.err = errors.New("connection reset")
	second, err := rec.ReconcileDate(ctx, raceDay)
	require.NoError(t, err)
	assert.True(t, second.Partial())
	assert.Equal(t, 0, second.ResultsAdopted)

	outcome, err := repos.TipOutcome.Get(ctx, tip.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeStatusWin, outcome.Status)
	require.NotNil(t, outcome.FinishPosition)
	assert.Equal(t, 1, *outcome.FinishPosition)

	results, err := repos.RaceResult.ListByRaces(ctx, []uuid.UUID{tip.RaceID})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, *results[0].FinishPosition)
}

func TestReconcileDropsInvalidRows(t *testing.T) {
	ctx := context.Background()
	repos, _ := repository.NewMemoryRepositories()
	seedTip(t, repos, "Caulfield", "VIC", 1, 1)

	bad := row(models.ProviderRA, "Caulfield", "VIC", 1, 99, intPtr(1))
	otherDay := row(models.ProviderRA, "Caulfield", "VIC", 1, 1, intPtr(1))
	otherDay.MeetingDate = raceDay.AddDate(0, 0, -1)
	feed := &stubResultFeed{provider: models.ProviderRA, rows: []datasource.RawResultRow{bad, otherDay}}

	log, _ := quietLogger()
	report, err := NewReconciler(repos, []datasource.ResultFeed{feed}, nil, log).ReconcileDate(ctx, raceDay)
	require.NoError(t, err)
	require.Len(t, report.Providers, 1)
	assert.Equal(t, 1, report.Providers[0].Invalid)
	assert.Equal(t, 1, report.Providers[0].Unresolved)
	assert.Equal(t, 0, report.Providers[0].Upserted)
	assert.Equal(t, 1, report.Pending)
}

func TestReconcileRangeValidation(t *testing.T) {
	repos, _ := repository.NewMemoryRepositories()
	log, _ := quietLogger()
	rec := NewReconciler(repos, nil, nil, log)

	_, err := rec.ReconcileRange(context.Background(), raceDay, raceDay.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = rec.ReconcileRange(context.Background(), raceDay, raceDay.AddDate(0, 0, MaxRangeDays))
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	out, err := rec.ReconcileRange(context.Background(), raceDay, raceDay.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Len(t, out.Days, 3)
	assert.False(t, out.Partial)
	assert.Equal(t, "2025-11-20", out.To)
}
