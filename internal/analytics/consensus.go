package analytics

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/tipwatch/internal/datasource"
	"github.com/yourusername/tipwatch/internal/metrics"
	"github.com/yourusername/tipwatch/internal/models"
)

// consensusSamples caps the example matches kept on a report.
const consensusSamples = 20

// ConsensusMatch is one AI_BEST tip that was also the price feed's top pick.
type ConsensusMatch struct {
	Date        string               `json:"date"`
	Track       string               `json:"track"`
	State       string               `json:"state"`
	RaceNumber  int                  `json:"race_number"`
	TabNumber   int                  `json:"tab_number"`
	HorseName   string               `json:"horse_name"`
	MarketPrice decimal.Decimal      `json:"market_price"`
	Status      models.OutcomeStatus `json:"status"`
}

// ConsensusReport measures AI_BEST tips that coincide with the live-price
// feed's rank-1 runner.
type ConsensusReport struct {
	HasData     bool             `json:"has_data"`
	From        string           `json:"date_from"`
	To          string           `json:"date_to"`
	AIBestTips  int              `json:"ai_best_tips"`
	Matched     int              `json:"matched"`
	MatchRate   float64          `json:"match_rate"`
	Scratched   int              `json:"scratched"`
	Overall     *Bucket          `json:"overall"`
	ByState     []*Bucket        `json:"by_state"`
	ByPrice     []*Bucket        `json:"by_price"`
	ByTrackType []*Bucket        `json:"by_track_type"`
	Samples     []ConsensusMatch `json:"samples,omitempty"`
	Errors      []string         `json:"errors,omitempty"`
}

// Consensus walks [from, to] day by day, fetching the live-price ranking of
// every day that has AI_BEST tips. Days whose prices cannot be fetched are
// reported in Errors and skipped.
func (a *Aggregator) Consensus(ctx context.Context, from, to time.Time) (*ConsensusReport, error) {
	start := time.Now()
	defer func() { metrics.RecordAnalyticsQuery("consensus", time.Since(start).Seconds()) }()

	if a.prices == nil {
		return nil, models.NewValidationError("PRICE_FEED_DISABLED", "consensus needs the live-price feed")
	}
	from, to, err := a.Window(from, to)
	if err != nil {
		return nil, err
	}
	key := CacheKey{Kind: "consensus", From: from, To: to}
	if v, ok := a.cache.Get(key); ok {
		if r, ok := v.(*ConsensusReport); ok {
			return r, nil
		}
	}

	ds, err := a.details(ctx, from, to, Filter{TipType: models.TipTypeAIBest})
	if err != nil {
		return nil, err
	}
	byDay := make(map[string][]*models.TipDetail)
	for _, d := range ds {
		k := models.DateKey(d.Meeting.Date)
		byDay[k] = append(byDay[k], d)
	}

	report := &ConsensusReport{
		From:    models.DateKey(from),
		To:      models.DateKey(to),
		Overall: NewBucket("Overall"),
	}
	byState := newBucketSet(DimensionState)
	byPrice := newBucketSet(DimensionPrice)
	byTrackType := newBucketSet(DimensionTrackType)

	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		tips := byDay[models.DateKey(day)]
		if len(tips) == 0 {
			continue
		}
		report.AIBestTips += len(tips)

		rows, err := a.prices.FetchPrices(ctx, day)
		if err != nil {
			a.logger.WithError(err).WithField("date", models.DateKey(day)).Warn("Price feed failed, skipping day")
			report.Errors = append(report.Errors, models.DateKey(day)+": "+err.Error())
			continue
		}
		idx := datasource.NewPriceIndex(rows)

		for _, d := range tips {
			top, ok := idx.TopRanked(d.Meeting.PFMeetingID, d.Meeting.TrackName, d.Race.RaceNumber)
			if !ok || top.TabNumber != d.Tip.TabNumber {
				continue
			}
			report.Matched++
			if d.Status() == models.OutcomeStatusScratched {
				report.Scratched++
				continue
			}
			report.Overall.Add(d, a.stakePerUnit)
			byState.add(d, a.stakePerUnit)
			byPrice.add(d, a.stakePerUnit)
			byTrackType.add(d, a.stakePerUnit)
			if d.Outcome != nil {
				report.HasData = true
			}

			if len(report.Samples) < consensusSamples {
				report.Samples = append(report.Samples, ConsensusMatch{
					Date:        models.DateKey(day),
					Track:       d.Meeting.TrackName,
					State:       d.Meeting.State,
					RaceNumber:  d.Race.RaceNumber,
					TabNumber:   d.Tip.TabNumber,
					HorseName:   d.Tip.HorseName,
					MarketPrice: top.Price,
					Status:      d.Status(),
				})
			}
		}
	}

	report.MatchRate = ratio(report.Matched, report.AIBestTips)
	report.ByState = leaderboard(byState.sorted(), a.cfg.MinSampleSize)
	report.ByPrice = leaderboard(byPrice.sorted(), a.cfg.MinSampleSize)
	report.ByTrackType = leaderboard(byTrackType.sorted(), a.cfg.MinSampleSize)

	a.logger.WithFields(logrus.Fields{
		"from":       report.From,
		"to":         report.To,
		"ai_best":    report.AIBestTips,
		"matched":    report.Matched,
		"wins":       report.Overall.Wins,
		"price_errs": len(report.Errors),
	}).Info("Consensus computed")

	if len(report.Errors) == 0 {
		a.cache.Set(key, report)
	}
	return report, nil
}
