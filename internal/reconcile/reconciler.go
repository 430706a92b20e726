// Package reconcile matches stored tips to provider race results and writes
// one canonical outcome per tip.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/tipwatch/internal/datasource"
	"github.com/yourusername/tipwatch/internal/logger"
	"github.com/yourusername/tipwatch/internal/metrics"
	"github.com/yourusername/tipwatch/internal/models"
	"github.com/yourusername/tipwatch/internal/repository"
	"github.com/yourusername/tipwatch/internal/tracks"
)

// MaxRangeDays bounds a single ReconcileRange call.
const MaxRangeDays = 93

// Reconciler runs reconciliation passes. It holds no state between passes,
// so concurrent passes over the same date are safe.
type Reconciler struct {
	repos     *repository.Repositories
	results   []datasource.ResultFeed
	prices    datasource.PriceFeed
	validator *RowValidator
	logger    *logrus.Entry
	audit     *logger.AuditLogger
	runLog    *logger.RunLogger
}

// NewReconciler creates a reconciler. results must be ordered by provider
// precedence; prices may be nil.
func NewReconciler(repos *repository.Repositories, results []datasource.ResultFeed, prices datasource.PriceFeed, log *logrus.Logger) *Reconciler {
	return &Reconciler{
		repos:     repos,
		results:   results,
		prices:    prices,
		validator: NewRowValidator(log),
		logger:    log.WithField("component", "reconciler"),
		audit:     logger.NewAuditLogger(log),
		runLog:    logger.NewRunLogger(log),
	}
}

// pass is the working state of one ReconcileDate call.
type pass struct {
	*Reconciler
	report   *Report
	idx      *dayIndex
	res      *resolver
	tips     []*models.Tip
	outcomes map[uuid.UUID]*models.TipOutcome
	byRunner map[runnerKey][]*models.RaceResult
	prices   *datasource.PriceIndex
	audited  map[uuid.UUID]bool
}

// ReconcileRange reconciles every date in [from, to]. Days are processed in order;
// a storage failure stops the run and returns the days completed so far.
func (r *Reconciler) ReconcileRange(ctx context.Context, from, to time.Time) (*RangeReport, error) {
	from, to = models.TruncateDate(from), models.TruncateDate(to)
	if to.Before(from) {
		return nil, models.NewValidationError("INVALID_RANGE", "end date is before start date")
	}
	if days := int(to.Sub(from).Hours()/24) + 1; days > MaxRangeDays {
		return nil, models.NewValidationError("RANGE_TOO_LONG", fmt.Sprintf("%d days requested, at most %d allowed", days, MaxRangeDays))
	}

	out := &RangeReport{From: models.DateKey(from), To: models.DateKey(to)}
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		report, err := r.ReconcileDate(ctx, day)
		if report != nil {
			out.Days = append(out.Days, report)
			out.Partial = out.Partial || report.Partial()
		}
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// ReconcileDate runs one pass for the meetings on date. Provider failures are
// recorded in the report and never fail the pass; only storage errors do.
func (r *Reconciler) ReconcileDate(ctx context.Context, date time.Time) (*Report, error) {
	day := models.TruncateDate(date)
	p := &pass{
		Reconciler: r,
		report:     NewReport(day),
		byRunner:   make(map[runnerKey][]*models.RaceResult),
		audited:    make(map[uuid.UUID]bool),
	}
	err := p.run(ctx, day)
	p.report.Duration = time.Since(p.report.StartTime)
	return p.report, err
}

func (p *pass) run(ctx context.Context, day time.Time) error {
	var err error
	if p.idx, err = loadDay(ctx, p.repos, day); err != nil {
		return err
	}
	if p.tips, err = p.repos.Tip.ListByDate(ctx, day); err != nil {
		return fmt.Errorf("failed to load tips: %w", err)
	}
	if p.outcomes, err = p.loadOutcomes(ctx); err != nil {
		return err
	}
	p.report.Meetings = len(p.idx.meetings)
	p.report.Tips = len(p.tips)
	p.runLog.LogRunStarted(p.report.Date, p.report.Meetings, p.report.Tips)

	p.res = newResolver(p.repos, p.audit, p.report, p.idx)
	req := p.idx.fetchRequest(p.tips, p.outcomes)
	for _, feed := range p.results {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.ingest(ctx, feed, req); err != nil {
			return err
		}
	}

	results, err := p.repos.RaceResult.ListByRaces(ctx, p.idx.raceIDs())
	if err != nil {
		return fmt.Errorf("failed to load results: %w", err)
	}
	p.prices = p.fetchPrices(ctx, day)
	if err := p.backfillResults(ctx, results); err != nil {
		return err
	}
	for _, rr := range results {
		k := runnerKey{raceID: rr.RaceID, tabNumber: rr.TabNumber}
		p.byRunner[k] = append(p.byRunner[k], rr)
	}

	if err := p.writeOutcomes(ctx); err != nil {
		return err
	}
	if err := p.backfillOutcomes(ctx); err != nil {
		return err
	}

	for _, t := range p.tips {
		if p.outcomes[t.ID] == nil {
			p.report.Pending++
		}
	}

	duration := time.Since(p.report.StartTime)
	metrics.RecordReconcileRun(p.report.Partial(), duration.Seconds(), p.report.Pending)
	p.runLog.LogRunCompleted(p.report.Date, p.report.ResultsWritten(), p.report.TotalOutcomesWritten(),
		p.report.Pending, p.report.Partial(), duration)
	return nil
}

func (p *pass) loadOutcomes(ctx context.Context) (map[uuid.UUID]*models.TipOutcome, error) {
	ids := make([]uuid.UUID, len(p.tips))
	for i, t := range p.tips {
		ids[i] = t.ID
	}
	list, err := p.repos.TipOutcome.ListByTips(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load outcomes: %w", err)
	}
	out := make(map[uuid.UUID]*models.TipOutcome, len(list))
	for _, o := range list {
		out[o.TipID] = o
	}
	return out, nil
}

// ingest fetches one provider and upserts its rows.
func (p *pass) ingest(ctx context.Context, feed datasource.ResultFeed, req datasource.FetchRequest) error {
	provider := models.NormalizeProvider(string(feed.Provider()))
	pr := p.report.Provider(provider)

	start := time.Now()
	batch, err := feed.FetchResults(ctx, req)
	if err != nil {
		p.report.RecordError(provider, err)
		p.audit.LogFeedFailure(string(provider), p.report.Date, err)
	}
	if batch == nil {
		return nil
	}
	pr.Fetched = len(batch.Rows)
	pr.Skipped = batch.Skipped
	p.runLog.LogFeedFetched(string(provider), p.report.Date, len(batch.Rows), time.Since(start))

	for i := range batch.Rows {
		row := &batch.Rows[i]
		if !row.MeetingDate.IsZero() && models.DateKey(row.MeetingDate) != p.report.Date {
			pr.Unresolved++
			continue
		}
		if !p.validator.Usable(row) {
			pr.Invalid++
			continue
		}

		placed, err := p.res.resolve(ctx, provider, row)
		if err != nil {
			return err
		}

		_, err = p.repos.RaceResult.Upsert(ctx, &models.RaceResult{
			Provider:       provider,
			RaceID:         placed.race.ID,
			TabNumber:      row.TabNumber,
			HorseName:      row.HorseName,
			FinishPosition: row.FinishPosition,
			Status:         row.ResultStatus(),
			MarginText:     row.MarginText,
			StartingPrice:  row.StartingPrice,
		})
		if err != nil {
			return fmt.Errorf("failed to store %s result: %w", provider, err)
		}
		pr.Upserted++
	}

	metrics.RecordResultsUpserted(string(provider), pr.Upserted)
	return nil
}

func (p *pass) fetchPrices(ctx context.Context, day time.Time) *datasource.PriceIndex {
	if p.Reconciler.prices == nil {
		return nil
	}
	provider := models.NormalizeProvider(string(p.Reconciler.prices.Provider()))
	rows, err := p.Reconciler.prices.FetchPrices(ctx, day)
	if err != nil {
		p.report.RecordError(provider, err)
		p.audit.LogFeedFailure(string(provider), p.report.Date, err)
	}
	p.report.Provider(provider).Fetched = len(rows)
	if len(rows) == 0 {
		return nil
	}
	return datasource.NewPriceIndex(rows)
}

// backfillResults fills missing starting prices from the live-price feed.
// Stored prices are never overwritten.
func (p *pass) backfillResults(ctx context.Context, results []*models.RaceResult) error {
	if p.prices == nil {
		return nil
	}
	for _, rr := range results {
		if rr.StartingPrice != nil || rr.IsScratched() {
			continue
		}
		m, race, ok := p.idx.placement(rr.RaceID)
		if !ok {
			continue
		}
		row, ok := p.prices.Lookup(m.PFMeetingID, m.TrackName, race.RaceNumber, rr.TabNumber)
		if !ok {
			continue
		}
		filled, err := p.repos.RaceResult.BackfillStartingPrice(ctx, rr.ID, row.Price)
		if err != nil {
			return err
		}
		if !filled {
			continue
		}
		price := row.Price
		rr.StartingPrice = &price
		p.report.PricesBackfilled++
		metrics.RecordPriceBackfill("result")
		p.audit.LogPriceBackfill("result", rr.ID.String(), rr.TabNumber, price.String())
	}
	return nil
}

// writeOutcomes derives each tip's outcome from the best stored result for its runner.
func (p *pass) writeOutcomes(ctx context.Context) error {
	for _, tip := range p.tips {
		if err := p.adopt(ctx, tip); err != nil {
			return err
		}

		best := models.BestResult(p.byRunner[runnerKey{raceID: tip.RaceID, tabNumber: tip.TabNumber}])
		if best == nil {
			continue
		}

		next := models.NewTipOutcome(tip.ID, best)
		prev := p.outcomes[tip.ID]
		if prev != nil {
			if next.StartingPrice == nil {
				next.StartingPrice = prev.StartingPrice
			}
			if prev.SameAs(next) {
				p.report.OutcomesUnchanged++
				continue
			}
		}

		written, err := p.repos.TipOutcome.Upsert(ctx, next)
		if err != nil {
			return fmt.Errorf("failed to write outcome for tip %s: %w", tip.ID, err)
		}
		if !written {
			existing := ""
			if prev != nil {
				existing = string(prev.Provider)
			}
			p.audit.LogPrecedenceRefusal(tip.ID.String(), existing, string(next.Provider))
			metrics.RecordPrecedenceRefusal()
			p.report.PrecedenceRefusals++
			continue
		}

		p.report.RecordOutcome(next.Status)
		metrics.RecordOutcomeWritten(string(next.Status))
		p.outcomes[tip.ID] = next
	}
	return nil
}

// adopt covers a tip whose meeting was stored under one track spelling while a
// feed reported the race under another, creating a second same-state meeting.
// The sibling's results for the tip's runner are copied onto the tip's race so
// an outcome always references a result of the tip's own race. A runner that
// already has any stored result on its own race is never touched.
func (p *pass) adopt(ctx context.Context, tip *models.Tip) error {
	own := runnerKey{raceID: tip.RaceID, tabNumber: tip.TabNumber}
	if len(p.byRunner[own]) > 0 {
		return nil
	}
	m, race, ok := p.idx.placement(tip.RaceID)
	if !ok {
		return nil
	}
	candidates := p.idx.candidates(m.State, race.RaceNumber, m.ID)
	if len(candidates) == 0 {
		return nil
	}
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.TrackName
	}
	sel, ok := tracks.Select(m.TrackName, names)
	if !ok {
		return nil
	}
	source := p.idx.races[raceKey{meetingID: candidates[sel.Index].ID, raceNumber: race.RaceNumber}]
	found := p.byRunner[runnerKey{raceID: source.ID, tabNumber: tip.TabNumber}]
	if len(found) == 0 {
		return nil
	}
	if sel.Ambiguous && !p.audited[race.ID] {
		p.audited[race.ID] = true
		recordAmbiguity(p.audit, p.report, m.State, m.TrackName, race.RaceNumber, sel, names)
	}

	for _, src := range found {
		c := *src
		c.ID = uuid.Nil
		c.RaceID = race.ID
		stored, err := p.repos.RaceResult.Upsert(ctx, &c)
		if err != nil {
			return fmt.Errorf("failed to adopt %s result: %w", src.Provider, err)
		}
		p.replace(own, stored)
		p.report.ResultsAdopted++

		p.logger.WithFields(logrus.Fields{
			"tip_id":      tip.ID,
			"track":       m.TrackName,
			"source":      candidates[sel.Index].TrackName,
			"race_number": race.RaceNumber,
			"provider":    src.Provider,
			"strategy":    sel.Strategy.String(),
		}).Debug("Adopted result from a differently named meeting")
	}
	return nil
}

// replace swaps rr into the runner's result list, keyed by provider.
func (p *pass) replace(k runnerKey, rr *models.RaceResult) {
	list := p.byRunner[k]
	for i, existing := range list {
		if existing.Provider == rr.Provider {
			list[i] = rr
			return
		}
	}
	p.byRunner[k] = append(list, rr)
}

// backfillOutcomes fills missing outcome prices from the live-price feed.
func (p *pass) backfillOutcomes(ctx context.Context) error {
	if p.prices == nil {
		return nil
	}
	for _, tip := range p.tips {
		o := p.outcomes[tip.ID]
		if o == nil || o.StartingPrice != nil || !o.Status.Settled() {
			continue
		}
		m, race, ok := p.idx.placement(tip.RaceID)
		if !ok {
			continue
		}
		row, ok := p.prices.Lookup(m.PFMeetingID, m.TrackName, race.RaceNumber, tip.TabNumber)
		if !ok {
			continue
		}
		filled, err := p.repos.TipOutcome.BackfillStartingPrice(ctx, tip.ID, row.Price)
		if err != nil {
			return err
		}
		if !filled {
			continue
		}
		price := row.Price
		o.StartingPrice = &price
		p.report.PricesBackfilled++
		metrics.RecordPriceBackfill("outcome")
		p.audit.LogPriceBackfill("outcome", tip.ID.String(), tip.TabNumber, price.String())
	}
	return nil
}
