package analytics

import (
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/yourusername/tipwatch/internal/models"
)

// Bucket accumulates outcomes of the tips sharing one dimension value.
type Bucket struct {
	Label    string
	Tips     int
	Wins     int
	Seconds  int
	Thirds   int
	Pending  int
	Staked   decimal.Decimal
	Returned decimal.Decimal
}

// NewBucket returns an empty bucket.
func NewBucket(label string) *Bucket {
	return &Bucket{Label: label, Staked: decimal.Zero, Returned: decimal.Zero}
}

// Add folds one tip into the bucket. Scratched tips are not counted and Add
// returns false for them.
//
// Only WIN, PLACE and LOSE are staked. A WIN without a known starting price
// is left out of both staked and returned so it cannot drag ROI down.
func (b *Bucket) Add(td *models.TipDetail, stakePerUnit decimal.Decimal) bool {
	status := td.Status()
	if status == models.OutcomeStatusScratched {
		return false
	}
	b.Tips++

	switch status {
	case models.OutcomeStatusPending:
		b.Pending++
		return true
	case models.OutcomeStatusWin:
		b.Wins++
	case models.OutcomeStatusPlace:
		if pos := td.Outcome.FinishPosition; pos != nil && *pos == 2 {
			b.Seconds++
		} else {
			b.Thirds++
		}
	}
	if !status.Settled() {
		return true
	}

	stake := stakePerUnit.Mul(td.Tip.Units())
	if status == models.OutcomeStatusWin {
		sp := td.Outcome.StartingPrice
		if sp == nil || !sp.IsPositive() {
			return true
		}
		b.Returned = b.Returned.Add(stake.Mul(*sp))
	}
	b.Staked = b.Staked.Add(stake)
	return true
}

// Merge adds other's counts into b.
func (b *Bucket) Merge(other *Bucket) {
	b.Tips += other.Tips
	b.Wins += other.Wins
	b.Seconds += other.Seconds
	b.Thirds += other.Thirds
	b.Pending += other.Pending
	b.Staked = b.Staked.Add(other.Staked)
	b.Returned = b.Returned.Add(other.Returned)
}

// Podium is wins plus seconds plus thirds.
func (b *Bucket) Podium() int {
	return b.Wins + b.Seconds + b.Thirds
}

// WinStrikeRate is wins / tips, 0 for an empty bucket.
func (b *Bucket) WinStrikeRate() float64 {
	return ratio(b.Wins, b.Tips)
}

// PlaceStrikeRate is podium finishes / tips, 0 for an empty bucket.
func (b *Bucket) PlaceStrikeRate() float64 {
	return ratio(b.Podium(), b.Tips)
}

// Profit is returned minus staked.
func (b *Bucket) Profit() decimal.Decimal {
	return b.Returned.Sub(b.Staked)
}

// ROI is returned / staked - 1, 0 when nothing was staked.
func (b *Bucket) ROI() decimal.Decimal {
	if !b.Staked.IsPositive() {
		return decimal.Zero
	}
	return b.Returned.Div(b.Staked).Sub(decimal.NewFromInt(1))
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

type bucketJSON struct {
	Label           string          `json:"label"`
	Tips            int             `json:"tips"`
	Wins            int             `json:"wins"`
	Seconds         int             `json:"seconds"`
	Thirds          int             `json:"thirds"`
	Podium          int             `json:"podium"`
	Pending         int             `json:"pending"`
	WinStrikeRate   float64         `json:"win_strike_rate"`
	PlaceStrikeRate float64         `json:"place_strike_rate"`
	Staked          decimal.Decimal `json:"staked"`
	Returned        decimal.Decimal `json:"returned"`
	Profit          decimal.Decimal `json:"profit"`
	ROI             decimal.Decimal `json:"roi"`
}

// MarshalJSON emits the counts together with the derived rates.
func (b *Bucket) MarshalJSON() ([]byte, error) {
	return json.Marshal(bucketJSON{
		Label:           b.Label,
		Tips:            b.Tips,
		Wins:            b.Wins,
		Seconds:         b.Seconds,
		Thirds:          b.Thirds,
		Podium:          b.Podium(),
		Pending:         b.Pending,
		WinStrikeRate:   b.WinStrikeRate(),
		PlaceStrikeRate: b.PlaceStrikeRate(),
		Staked:          b.Staked,
		Returned:        b.Returned,
		Profit:          b.Profit(),
		ROI:             b.ROI().Round(4),
	})
}

// bucketSet groups tips into buckets by label.
type bucketSet struct {
	dim     Dimension
	byLabel map[string]*Bucket
}

func newBucketSet(dim Dimension) *bucketSet {
	return &bucketSet{dim: dim, byLabel: make(map[string]*Bucket)}
}

func (s *bucketSet) add(td *models.TipDetail, stakePerUnit decimal.Decimal) {
	label := s.dim.Label(td)
	b, ok := s.byLabel[label]
	if !ok {
		b = NewBucket(label)
	}
	if b.Add(td, stakePerUnit) && !ok {
		s.byLabel[label] = b
	}
}

// sorted returns every bucket in the dimension's natural order: band order
// for banded dimensions, label order otherwise.
func (s *bucketSet) sorted() []*Bucket {
	out := make([]*Bucket, 0, len(s.byLabel))
	for _, b := range s.byLabel {
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, ok := s.dim.order(out[i].Label)
		if ok {
			rj, _ := s.dim.order(out[j].Label)
			if ri != rj {
				return ri < rj
			}
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// leaderboard keeps buckets with at least minTips tips, best win strike rate first.
func leaderboard(buckets []*Bucket, minTips int) []*Bucket {
	out := make([]*Bucket, 0, len(buckets))
	for _, b := range buckets {
		if b.Tips >= minTips {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		wi, wj := out[i].WinStrikeRate(), out[j].WinStrikeRate()
		if wi != wj {
			return wi > wj
		}
		if out[i].Tips != out[j].Tips {
			return out[i].Tips > out[j].Tips
		}
		return out[i].Label < out[j].Label
	})
	return out
}
