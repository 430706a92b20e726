package tracks

import "strings"

// Strategy is one track-name comparison heuristic. Lower values are stronger.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyExact
	StrategyAffix
	StrategySubstring
)

// RankedStrategies lists the strategies strongest first.
var RankedStrategies = []Strategy{StrategyExact, StrategyAffix, StrategySubstring}

func (s Strategy) String() string {
	switch s {
	case StrategyExact:
		return "exact"
	case StrategyAffix:
		return "prefix_suffix"
	case StrategySubstring:
		return "substring"
	default:
		return "none"
	}
}

// Match applies the strategy to two canonical keys. Empty keys never match.
func (s Strategy) Match(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	switch s {
	case StrategyExact:
		return a == b
	case StrategyAffix:
		return strings.HasPrefix(a, b) || strings.HasSuffix(a, b) ||
			strings.HasPrefix(b, a) || strings.HasSuffix(b, a)
	case StrategySubstring:
		return strings.Contains(a, b) || strings.Contains(b, a)
	default:
		return false
	}
}

// BestStrategy returns the strongest strategy matching the two raw names,
// or StrategyNone.
func BestStrategy(a, b string) Strategy {
	ca, cb := Canonical(a), Canonical(b)
	for _, s := range RankedStrategies {
		if s.Match(ca, cb) {
			return s
		}
	}
	return StrategyNone
}

// FuzzyMatch reports whether two raw track names plausibly refer to the same track.
// It is symmetric.
func FuzzyMatch(a, b string) bool {
	return BestStrategy(a, b) != StrategyNone
}

// Selection is the outcome of picking one candidate track for a target.
type Selection struct {
	Index     int
	Strategy  Strategy
	Ambiguous bool
	// Tied holds the indexes that matched at the deciding strategy when Ambiguous.
	Tied []int
}

// Select picks the candidate that best matches target. Strategies are tried
// strongest first and the first one that yields exactly one candidate decides.
// If none is unique, the first candidate (in the given order) of the strongest
// strategy with any match is returned and the selection is marked ambiguous.
// ok is false when nothing matches at all.
func Select(target string, candidates []string) (sel Selection, ok bool) {
	key := Canonical(target)
	keys := make([]string, len(candidates))
	for i, c := range candidates {
		keys[i] = Canonical(c)
	}

	var fallback *Selection
	for _, s := range RankedStrategies {
		var hits []int
		for i, k := range keys {
			if s.Match(key, k) {
				hits = append(hits, i)
			}
		}
		switch {
		case len(hits) == 1:
			return Selection{Index: hits[0], Strategy: s}, true
		case len(hits) > 1 && fallback == nil:
			fallback = &Selection{Index: hits[0], Strategy: s, Ambiguous: true, Tied: hits}
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return Selection{Index: -1}, false
}
