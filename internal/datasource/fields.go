package datasource

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Aliases is the ordered list of payload keys that may carry one logical value.
// Earlier keys win.
type Aliases []string

// Field aliases shared by every adapter.
var (
	AliasMeetings    = Aliases{"meetings", "data", "results"}
	AliasTrack       = Aliases{"track", "track_name", "trackName", "meeting_name", "venue"}
	AliasState       = Aliases{"state", "State"}
	AliasCountry     = Aliases{"country", "Country"}
	AliasMeetCode    = Aliases{"ra_meetcode", "meetCode", "meetingCode"}
	AliasMeetingID   = Aliases{"meetingId", "meeting_id", "pf_meeting_id"}
	AliasMeetingDate = Aliases{"meeting_date", "meetingDate", "date"}
	AliasRaces       = Aliases{"races", "results"}
	AliasRaceNumber  = Aliases{"raceNo", "race_number", "raceNumber", "race_no", "number"}
	AliasRaceName    = Aliases{"raceName", "race_name", "name"}
	AliasRunners     = Aliases{"results", "runners", "Runners", "runner", "participants"}
	AliasTabNumber   = Aliases{"tabNumber", "tab_number", "tabNo", "tab_no", "horse_number", "saddle_number", "saddle", "number"}
	AliasHorseName   = Aliases{"horseName", "horse_name", "runnerName", "runner_name", "horse", "name"}
	AliasPosition    = Aliases{"finishPosition", "finish_position", "finishing_pos", "posFin", "finishPos", "pos_fin", "position", "pos"}
	AliasStatus      = Aliases{"status", "result_status", "race_status", "posFinText"}
	AliasMargin      = Aliases{"margin_text", "margin", "marginText", "margFin", "margin_lens"}
	AliasPrice       = Aliases{"startingPrice", "starting_price", "sp", "win_dividend"}
	AliasLivePrice   = Aliases{"tabCurrentPrice", "price", "currentPrice"}
	AliasScratched   = Aliases{"is_scratched", "isScratched", "scratched"}
	AliasRank        = Aliases{"rank", "Rank"}
	AliasPayload     = Aliases{"payLoad", "payload"}
)

// Lookup returns the first alias present in row with a non-null, non-blank value.
func Lookup(row map[string]any, aliases Aliases) (any, bool) {
	for _, key := range aliases {
		v, ok := row[key]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

// LookupString returns the value as trimmed text. Numbers are formatted without
// trailing zeros.
func LookupString(row map[string]any, aliases Aliases) (string, bool) {
	v, ok := Lookup(row, aliases)
	if !ok {
		return "", false
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case json.Number:
		return x.String(), true
	case int:
		return strconv.Itoa(x), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}

// LookupInt returns the value as an integer. Whole floats and numeric strings
// are accepted; anything else is reported as absent.
func LookupInt(row map[string]any, aliases Aliases) (int, bool) {
	v, ok := Lookup(row, aliases)
	if !ok {
		return 0, false
	}
	return toInt(v)
}

func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		if x != math.Trunc(x) {
			return 0, false
		}
		return int(x), true
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) {
			return int(f), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// LookupIntPtr is LookupInt returning nil when absent or unparseable.
func LookupIntPtr(row map[string]any, aliases Aliases) *int {
	n, ok := LookupInt(row, aliases)
	if !ok {
		return nil
	}
	return &n
}

// LookupDecimal returns the value as a decimal. Strings may carry a leading "$".
func LookupDecimal(row map[string]any, aliases Aliases) (decimal.Decimal, bool) {
	v, ok := Lookup(row, aliases)
	if !ok {
		return decimal.Zero, false
	}
	switch x := v.(type) {
	case float64:
		return decimal.NewFromFloat(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimPrefix(strings.TrimSpace(x), "$"))
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}

// LookupPrice returns a strictly positive price or nil.
func LookupPrice(row map[string]any, aliases Aliases) *decimal.Decimal {
	d, ok := LookupDecimal(row, aliases)
	if !ok || !d.IsPositive() {
		return nil
	}
	return &d
}

// LookupBool returns the value as a boolean. Accepts true/false, yes/no, y/n and 1/0.
func LookupBool(row map[string]any, aliases Aliases) (bool, bool) {
	v, ok := Lookup(row, aliases)
	if !ok {
		return false, false
	}
	switch x := v.(type) {
	case bool:
		return x, true
	case float64:
		return x != 0, true
	case int:
		return x != 0, true
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "yes", "y", "1":
			return true, true
		case "false", "no", "n", "0":
			return false, true
		}
	}
	return false, false
}

// LookupList returns the first alias holding a JSON array of objects.
// Non-object elements are dropped.
func LookupList(row map[string]any, aliases Aliases) ([]map[string]any, bool) {
	for _, key := range aliases {
		if list, ok := asObjectList(row[key]); ok {
			return list, true
		}
	}
	return nil, false
}

func asObjectList(v any) ([]map[string]any, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if obj, isObj := item.(map[string]any); isObj {
			out = append(out, obj)
		}
	}
	return out, true
}
