package analytics

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/yourusername/tipwatch/internal/models"
	"github.com/yourusername/tipwatch/internal/tracks"
)

// UnknownLabel is used when the attribute a dimension bands on is missing.
const UnknownLabel = "Unknown"

type band struct {
	below int
	label string
}

// distanceBands are upper-exclusive limits in metres.
var distanceBands = []band{
	{1000, "Sprint (<1000m)"},
	{1200, "1000-1199m"},
	{1400, "1200-1399m"},
	{1600, "1400-1599m"},
	{1800, "1600-1799m"},
	{2000, "1800-1999m"},
	{2400, "2000-2399m"},
}

const stayerLabel = "Stayer (2400m+)"

type priceBand struct {
	below decimal.Decimal
	label string
}

var priceBands = []priceBand{
	{decimal.NewFromInt(2), "$1.01-$1.99 (Hot Fav)"},
	{decimal.NewFromInt(3), "$2.00-$2.99 (Fav)"},
	{decimal.NewFromInt(4), "$3.00-$3.99"},
	{decimal.NewFromInt(6), "$4.00-$5.99"},
	{decimal.NewFromInt(10), "$6.00-$9.99"},
	{decimal.NewFromInt(15), "$10.00-$14.99"},
	{decimal.NewFromInt(21), "$15.00-$20.99"},
}

const roughieLabel = "$21.00+ (Roughie)"

// DistanceBucket bands a race distance in metres.
func DistanceBucket(distanceM *int) string {
	if distanceM == nil || *distanceM <= 0 {
		return UnknownLabel
	}
	for _, b := range distanceBands {
		if *distanceM < b.below {
			return b.label
		}
	}
	return stayerLabel
}

// PriceBucket bands a starting price.
func PriceBucket(price *decimal.Decimal) string {
	if price == nil || !price.IsPositive() {
		return UnknownLabel
	}
	for _, b := range priceBands {
		if price.LessThan(b.below) {
			return b.label
		}
	}
	return roughieLabel
}

var (
	benchmarkRe     = regexp.MustCompile(`\b(?:benchmark|bm)\s*(\d+)`)
	benchmarkWordRe = regexp.MustCompile(`\b(?:benchmark|bm)\b`)
	classRe         = regexp.MustCompile(`\bclass\s*(\d+)`)
	groupRe         = regexp.MustCompile(`\b(?:group|g1|g2|g3)\b`)
)

// ClassBucket labels a race by class, reading both the class text and the race name.
// Rules are checked in order; the first hit wins.
func ClassBucket(classText, raceName string) string {
	text := strings.ToLower(classText + " " + raceName)

	switch {
	case strings.Contains(text, "maiden"):
		return "Maiden"
	case benchmarkRe.MatchString(text):
		bm, _ := strconv.Atoi(benchmarkRe.FindStringSubmatch(text)[1])
		switch {
		case bm <= 58:
			return "BM58 & below"
		case bm <= 68:
			return "BM64-68"
		case bm <= 78:
			return "BM72-78"
		default:
			return "BM82+"
		}
	case benchmarkWordRe.MatchString(text):
		return "Benchmark"
	case classRe.MatchString(text):
		return "Class " + classRe.FindStringSubmatch(text)[1]
	case strings.Contains(text, "class"):
		return "Class race"
	case groupRe.MatchString(text):
		return "Group/Stakes"
	case strings.Contains(text, "listed"):
		return "Listed"
	case strings.Contains(text, "restricted"):
		return "Restricted"
	case strings.Contains(text, "handicap"):
		return "Handicap"
	case strings.Contains(text, "open"):
		return "Open"
	default:
		return "Other"
	}
}

// TrackTypeBucket labels a track Metro, Provincial or Country.
func TrackTypeBucket(track string) string {
	if strings.TrimSpace(track) == "" {
		return UnknownLabel
	}
	return tracks.Type(track)
}

// RaceNumberBucket labels a race number.
func RaceNumberBucket(n int) string {
	if n <= 0 {
		return UnknownLabel
	}
	return "Race " + strconv.Itoa(n)
}

// Dimension is an attribute tips can be grouped by.
type Dimension string

const (
	DimensionDistance   Dimension = "distance"
	DimensionPrice      Dimension = "price"
	DimensionTrackType  Dimension = "track_type"
	DimensionRaceNumber Dimension = "race_number"
	DimensionClass      Dimension = "class"
	DimensionState      Dimension = "state"
	DimensionTipType    Dimension = "tip_type"
	DimensionTrack      Dimension = "track"
	DimensionProvider   Dimension = "provider"
)

// Dimensions lists every supported dimension.
var Dimensions = []Dimension{
	DimensionDistance,
	DimensionPrice,
	DimensionTrackType,
	DimensionRaceNumber,
	DimensionClass,
	DimensionState,
	DimensionTipType,
	DimensionTrack,
	DimensionProvider,
}

// insightDimensions are the categories best/worst insights are drawn from.
var insightDimensions = []Dimension{
	DimensionDistance,
	DimensionPrice,
	DimensionTrackType,
	DimensionRaceNumber,
	DimensionClass,
	DimensionState,
	DimensionTipType,
}

// ParseDimension validates a dimension name.
func ParseDimension(s string) (Dimension, error) {
	d := Dimension(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Dimensions {
		if d == known {
			return d, nil
		}
	}
	return "", models.NewValidationError("UNKNOWN_DIMENSION", fmt.Sprintf("unknown dimension %q", s))
}

// Label returns the bucket label of a joined tip along d.
func (d Dimension) Label(td *models.TipDetail) string {
	switch d {
	case DimensionDistance:
		return DistanceBucket(td.Race.DistanceM)
	case DimensionPrice:
		if td.Outcome == nil {
			return UnknownLabel
		}
		return PriceBucket(td.Outcome.StartingPrice)
	case DimensionTrackType:
		return TrackTypeBucket(td.Meeting.TrackName)
	case DimensionRaceNumber:
		return RaceNumberBucket(td.Race.RaceNumber)
	case DimensionClass:
		return ClassBucket(td.Race.ClassText, td.Race.Name)
	case DimensionState:
		return orUnknown(strings.ToUpper(td.Meeting.State))
	case DimensionTipType:
		return orUnknown(string(td.Tip.TipType))
	case DimensionTrack:
		if td.Meeting.TrackName == "" {
			return UnknownLabel
		}
		return fmt.Sprintf("%s (%s)", td.Meeting.TrackName, strings.ToUpper(td.Meeting.State))
	case DimensionProvider:
		if td.Outcome == nil {
			return UnknownLabel
		}
		return orUnknown(string(td.Outcome.Provider))
	default:
		return UnknownLabel
	}
}

// order returns the display rank of label within d for banded dimensions.
// ok is false for dimensions that are ordered by label.
func (d Dimension) order(label string) (rank int, ok bool) {
	switch d {
	case DimensionDistance:
		for i, b := range distanceBands {
			if b.label == label {
				return i, true
			}
		}
		if label == stayerLabel {
			return len(distanceBands), true
		}
		return len(distanceBands) + 1, true
	case DimensionPrice:
		for i, b := range priceBands {
			if b.label == label {
				return i, true
			}
		}
		if label == roughieLabel {
			return len(priceBands), true
		}
		return len(priceBands) + 1, true
	case DimensionRaceNumber:
		n, err := strconv.Atoi(strings.TrimPrefix(label, "Race "))
		if err != nil {
			return 1 << 30, true
		}
		return n, true
	case DimensionTipType:
		for i, t := range models.TipTypes {
			if string(t) == label {
				return i, true
			}
		}
		return len(models.TipTypes), true
	}
	return 0, false
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return UnknownLabel
	}
	return s
}
