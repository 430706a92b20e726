package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/tipwatch/internal/metrics"
	"github.com/yourusername/tipwatch/internal/models"
)

// RaceRollup totals one race's tips.
type RaceRollup struct {
	RaceID     uuid.UUID `json:"race_id"`
	RaceNumber int       `json:"race_number"`
	Name       string    `json:"name,omitempty"`
	Stats      *Bucket   `json:"stats"`
	Quinella   bool      `json:"quinella"`
	Trifecta   bool      `json:"trifecta"`

	positions map[models.TipType][]int
}

// MeetingRollup totals one meeting's races.
type MeetingRollup struct {
	MeetingID uuid.UUID     `json:"meeting_id"`
	TrackName string        `json:"track_name"`
	State     string        `json:"state"`
	Stats     *Bucket       `json:"stats"`
	Quinellas int           `json:"quinellas"`
	Trifectas int           `json:"trifectas"`
	Races     []*RaceRollup `json:"races"`
}

// DayRollup totals every meeting of one day.
type DayRollup struct {
	Date         string           `json:"date"`
	StakePerUnit string           `json:"stake_per_unit"`
	Stats        *Bucket          `json:"stats"`
	Quinellas    int              `json:"quinellas"`
	Trifectas    int              `json:"trifectas"`
	Meetings     []*MeetingRollup `json:"meetings"`
}

// DayRollup totals tips, wins, turnover and returns per race, per meeting and
// for the whole day, and flags quinella and trifecta hits per race.
// Turnover follows Bucket staking: only WIN, PLACE and LOSE tips are staked and
// a WIN without a starting price is left out, so it is not stake times tip count.
func (a *Aggregator) DayRollup(ctx context.Context, date time.Time) (*DayRollup, error) {
	start := time.Now()
	defer func() { metrics.RecordAnalyticsQuery("rollup", time.Since(start).Seconds()) }()

	day := models.TruncateDate(date)
	ds, err := a.details(ctx, day, day, Filter{})
	if err != nil {
		return nil, err
	}

	out := &DayRollup{
		Date:         models.DateKey(day),
		StakePerUnit: a.stakePerUnit.String(),
		Stats:        NewBucket(models.DateKey(day)),
	}
	meetings := make(map[uuid.UUID]*MeetingRollup)
	races := make(map[uuid.UUID]*RaceRollup)

	for _, d := range ds {
		mr, ok := meetings[d.Meeting.ID]
		if !ok {
			mr = &MeetingRollup{
				MeetingID: d.Meeting.ID,
				TrackName: d.Meeting.TrackName,
				State:     d.Meeting.State,
				Stats:     NewBucket(d.Meeting.TrackName),
			}
			meetings[d.Meeting.ID] = mr
			out.Meetings = append(out.Meetings, mr)
		}
		rr, ok := races[d.Race.ID]
		if !ok {
			rr = &RaceRollup{
				RaceID:     d.Race.ID,
				RaceNumber: d.Race.RaceNumber,
				Name:       d.Race.Name,
				Stats:      NewBucket(RaceNumberBucket(d.Race.RaceNumber)),
				positions:  make(map[models.TipType][]int),
			}
			races[d.Race.ID] = rr
			mr.Races = append(mr.Races, rr)
		}
		rr.Stats.Add(d, a.stakePerUnit)
		if d.Outcome != nil && d.Outcome.Status.Settled() && d.Outcome.FinishPosition != nil {
			rr.positions[d.Tip.TipType] = append(rr.positions[d.Tip.TipType], *d.Outcome.FinishPosition)
		}
	}

	sort.SliceStable(out.Meetings, func(i, j int) bool {
		if out.Meetings[i].State != out.Meetings[j].State {
			return out.Meetings[i].State < out.Meetings[j].State
		}
		return out.Meetings[i].TrackName < out.Meetings[j].TrackName
	})
	for _, mr := range out.Meetings {
		sort.SliceStable(mr.Races, func(i, j int) bool {
			return mr.Races[i].RaceNumber < mr.Races[j].RaceNumber
		})
		for _, rr := range mr.Races {
			rr.Quinella = quinella(rr.positions)
			rr.Trifecta = trifecta(rr.positions)
			mr.Stats.Merge(rr.Stats)
			if rr.Quinella {
				mr.Quinellas++
			}
			if rr.Trifecta {
				mr.Trifectas++
			}
		}
		out.Stats.Merge(mr.Stats)
		out.Quinellas += mr.Quinellas
		out.Trifectas += mr.Trifectas
	}

	a.logger.WithFields(logrus.Fields{
		"date":      out.Date,
		"meetings":  len(out.Meetings),
		"tips":      out.Stats.Tips,
		"wins":      out.Stats.Wins,
		"quinellas": out.Quinellas,
		"trifectas": out.Trifectas,
	}).Debug("Day rollup computed")
	return out, nil
}

// quinella reports whether first and second were both tipped, by any category.
func quinella(positions map[models.TipType][]int) bool {
	var first, second bool
	for _, tt := range models.TipTypes {
		for _, p := range positions[tt] {
			first = first || p == 1
			second = second || p == 2
		}
	}
	return first && second
}

// trifecta reports whether one AI_BEST, one DANGER and one VALUE tip filled
// the first three places between them.
func trifecta(positions map[models.TipType][]int) bool {
	for _, a := range positions[models.TipTypeAIBest] {
		for _, b := range positions[models.TipTypeDanger] {
			for _, c := range positions[models.TipTypeValue] {
				if a != b && b != c && a != c && a <= 3 && b <= 3 && c <= 3 {
					return true
				}
			}
		}
	}
	return false
}
