// Package analytics summarises reconciled tip outcomes into strike rates,
// staking returns and per-dimension breakdowns.
package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/tipwatch/internal/config"
	"github.com/yourusername/tipwatch/internal/datasource"
	"github.com/yourusername/tipwatch/internal/metrics"
	"github.com/yourusername/tipwatch/internal/models"
	"github.com/yourusername/tipwatch/internal/repository"
)

// MaxWindowDays bounds analytics windows.
const MaxWindowDays = 366

// Filter narrows the tips an analytics query looks at. Empty fields match everything.
type Filter struct {
	State     string          `json:"state,omitempty"`
	TrackName string          `json:"track_name,omitempty"`
	TipType   models.TipType  `json:"tip_type,omitempty"`
	Provider  models.Provider `json:"provider,omitempty"`
}

// Validate rejects unknown tip types.
func (f Filter) Validate() error {
	if f.TipType != "" && !f.TipType.Valid() {
		return models.NewValidationError("UNKNOWN_TIP_TYPE", fmt.Sprintf("unknown tip type %q", f.TipType))
	}
	return nil
}

func (f Filter) tipFilter() repository.TipFilter {
	return repository.TipFilter{
		State:     strings.TrimSpace(f.State),
		TrackName: strings.TrimSpace(f.TrackName),
		TipType:   f.TipType,
		Provider:  models.NormalizeProvider(string(f.Provider)),
	}
}

// Aggregator answers analytics queries over stored tips and outcomes.
type Aggregator struct {
	repos        *repository.Repositories
	prices       datasource.PriceFeed
	cfg          config.AnalyticsConfig
	stakePerUnit decimal.Decimal
	cache        *ReportCache
	logger       *logrus.Entry
	now          func() time.Time
}

// NewAggregator creates an aggregator. prices and cache may be nil; without a
// price feed Consensus is unavailable.
func NewAggregator(repos *repository.Repositories, cfg config.AnalyticsConfig, prices datasource.PriceFeed, reportCache *ReportCache, log *logrus.Logger) *Aggregator {
	return &Aggregator{
		repos:        repos,
		prices:       prices,
		cfg:          cfg,
		stakePerUnit: decimal.NewFromFloat(cfg.StakePerUnit),
		cache:        reportCache,
		logger:       log.WithField("component", "analytics"),
		now:          time.Now,
	}
}

// Cache returns the aggregator's report cache, possibly nil.
func (a *Aggregator) Cache() *ReportCache {
	return a.cache
}

// Window resolves an analytics date window. A zero to means today; a zero
// from means DefaultWindowDays before to.
func (a *Aggregator) Window(from, to time.Time) (time.Time, time.Time, error) {
	if to.IsZero() {
		to = a.now()
	}
	to = models.TruncateDate(to)
	if from.IsZero() {
		days := a.cfg.DefaultWindowDays
		if days <= 0 {
			days = 60
		}
		from = to.AddDate(0, 0, -(days - 1))
	}
	from = models.TruncateDate(from)

	if to.Before(from) {
		return from, to, models.NewValidationError("INVALID_RANGE", "end date is before start date")
	}
	if days := int(to.Sub(from).Hours()/24) + 1; days > MaxWindowDays {
		return from, to, models.NewValidationError("RANGE_TOO_LONG", fmt.Sprintf("%d days requested, at most %d allowed", days, MaxWindowDays))
	}
	return from, to, nil
}

func (a *Aggregator) details(ctx context.Context, from, to time.Time, filter Filter) ([]*models.TipDetail, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	ds, err := a.repos.Tip.ListTipDetails(ctx, from, to, filter.tipFilter())
	if err != nil {
		return nil, fmt.Errorf("failed to list tips: %w", err)
	}
	return ds, nil
}

// Buckets groups the tips of [from, to] along dim. Every bucket is returned,
// whatever its sample size, in the dimension's natural order.
func (a *Aggregator) Buckets(ctx context.Context, from, to time.Time, dim Dimension, filter Filter) ([]*Bucket, error) {
	start := time.Now()
	defer func() { metrics.RecordAnalyticsQuery("buckets", time.Since(start).Seconds()) }()

	if _, err := ParseDimension(string(dim)); err != nil {
		return nil, err
	}
	from, to, err := a.Window(from, to)
	if err != nil {
		return nil, err
	}

	key := CacheKey{Kind: "buckets", From: from, To: to, Filter: filter}.withExtra("%s", dim)
	if v, ok := a.cache.Get(key); ok {
		if bs, ok := v.([]*Bucket); ok {
			return bs, nil
		}
	}

	ds, err := a.details(ctx, from, to, filter)
	if err != nil {
		return nil, err
	}
	set := newBucketSet(dim)
	for _, d := range ds {
		set.add(d, a.stakePerUnit)
	}
	out := set.sorted()
	a.cache.Set(key, out)
	return out, nil
}

// Insight names the strongest and weakest bucket of one dimension.
type Insight struct {
	Dimension Dimension `json:"dimension"`
	Best      *Bucket   `json:"best"`
	Worst     *Bucket   `json:"worst,omitempty"`
}

// TrendReport is the multi-dimension summary of a window.
type TrendReport struct {
	HasData      bool                    `json:"has_data"`
	From         string                  `json:"date_from"`
	To           string                  `json:"date_to"`
	Filter       Filter                  `json:"filter"`
	StakePerUnit decimal.Decimal         `json:"stake_per_unit"`
	MinSample    int                     `json:"min_sample"`
	Overall      *Bucket                 `json:"overall,omitempty"`
	Leaderboards map[Dimension][]*Bucket `json:"leaderboards,omitempty"`
	Totals       map[Dimension][]*Bucket `json:"totals,omitempty"`
	Insights     []Insight               `json:"insights,omitempty"`
}

// Trends summarises [from, to] along every dimension. A window without any
// reconciled tip yields a report with HasData false and no breakdowns.
func (a *Aggregator) Trends(ctx context.Context, from, to time.Time, filter Filter) (*TrendReport, error) {
	start := time.Now()
	defer func() { metrics.RecordAnalyticsQuery("trends", time.Since(start).Seconds()) }()

	from, to, err := a.Window(from, to)
	if err != nil {
		return nil, err
	}
	key := CacheKey{Kind: "trends", From: from, To: to, Filter: filter}
	if v, ok := a.cache.Get(key); ok {
		if r, ok := v.(*TrendReport); ok {
			return r, nil
		}
	}

	ds, err := a.details(ctx, from, to, filter)
	if err != nil {
		return nil, err
	}

	report := &TrendReport{
		From:   models.DateKey(from),
		To:     models.DateKey(to),
		Filter: filter,
	}

	overall := NewBucket("Overall")
	sets := make(map[Dimension]*bucketSet, len(Dimensions))
	for _, dim := range Dimensions {
		sets[dim] = newBucketSet(dim)
	}
	for _, d := range ds {
		if d.Outcome != nil && d.Outcome.Status != models.OutcomeStatusScratched {
			report.HasData = true
		}
		overall.Add(d, a.stakePerUnit)
		for _, dim := range Dimensions {
			sets[dim].add(d, a.stakePerUnit)
		}
	}

	if !report.HasData {
		a.logger.WithFields(logrus.Fields{"from": report.From, "to": report.To, "tips": len(ds)}).Info("No reconciled tips in window")
		a.cache.Set(key, report)
		return report, nil
	}

	report.StakePerUnit = a.stakePerUnit
	report.MinSample = a.cfg.MinSampleSize
	report.Overall = overall
	report.Leaderboards = make(map[Dimension][]*Bucket, len(Dimensions))
	report.Totals = make(map[Dimension][]*Bucket, len(Dimensions))
	for _, dim := range Dimensions {
		all := sets[dim].sorted()
		report.Totals[dim] = all
		report.Leaderboards[dim] = leaderboard(all, a.cfg.MinSampleSize)
	}
	for _, dim := range insightDimensions {
		if in, ok := insightFor(dim, report.Totals[dim], a.cfg.InsightMinSampleSize); ok {
			report.Insights = append(report.Insights, in)
		}
	}

	a.cache.Set(key, report)
	return report, nil
}

func insightFor(dim Dimension, buckets []*Bucket, minTips int) (Insight, bool) {
	ranked := leaderboard(buckets, minTips)
	if len(ranked) == 0 {
		return Insight{}, false
	}
	in := Insight{Dimension: dim, Best: ranked[0]}
	if len(ranked) > 1 {
		in.Worst = ranked[len(ranked)-1]
	}
	return in, true
}
