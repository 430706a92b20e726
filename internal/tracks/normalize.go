// Package tracks canonicalizes and compares race track names across providers.
//
// Every function here is pure: no I/O, no shared mutable state.
package tracks

import (
	"strings"
)

// Normalize trims, lower-cases and collapses internal whitespace.
func Normalize(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// Sponsor names that providers prepend to the track name. Multi-word entries are
// matched as whole word sequences.
var sponsors = [][]string{
	{"thomas", "farms"},
	{"aquis", "park"},
	{"sportsbet"},
	{"ladbrokes"},
	{"bet365"},
	{"picklebet"},
	{"aquis"},
	{"tabtouch"},
	{"tab"},
}

// Generic words removed from the end of a name, longest first.
var genericSuffixes = [][]string{
	{"race", "club", "incorporated"},
	{"race", "club", "inc"},
	{"race", "club"},
	{"racecourse"},
	{"raceway"},
	{"rc"},
	{"park"},
	{"gh"},
}

// Canonical returns the key used to compare track names for equality.
//
// Sponsor tokens are removed wherever they appear, along with a generic word
// immediately following a sponsor ("bet365 Park Kyneton" -> "kyneton"). Other
// generic words are only stripped from the end, so "Park Avenue" survives intact.
func Canonical(name string) string {
	s := strings.ToLower(name)
	s = strings.NewReplacer("-", " ", ",", " ", "/", " ").Replace(s)
	words := strings.Fields(s)
	if len(words) == 0 {
		return ""
	}

	words = stripSponsors(words)
	words = stripGenericSuffixes(words)

	return applyAliases(strings.Join(words, " "))
}

func stripSponsors(words []string) []string {
	out := make([]string, 0, len(words))
	for i := 0; i < len(words); {
		n := matchAt(words, i, sponsors)
		if n == 0 {
			out = append(out, words[i])
			i++
			continue
		}
		i += n
		// "bet365 Park Kyneton": the generic word belongs to the sponsor.
		if g := matchAt(words, i, genericSuffixes); g > 0 && i+g < len(words) {
			i += g
		}
	}
	if len(out) == 0 {
		return words
	}
	return out
}

func stripGenericSuffixes(words []string) []string {
	for len(words) > 1 {
		trimmed := false
		for _, suffix := range genericSuffixes {
			if len(suffix) < len(words) && hasSuffix(words, suffix) {
				words = words[:len(words)-len(suffix)]
				trimmed = true
				break
			}
		}
		if !trimmed {
			break
		}
	}
	return words
}

// matchAt returns the length of the first phrase matching words at position i, or 0.
func matchAt(words []string, i int, phrases [][]string) int {
	for _, p := range phrases {
		if i+len(p) > len(words) {
			continue
		}
		ok := true
		for j, w := range p {
			if words[i+j] != w {
				ok = false
				break
			}
		}
		if ok {
			return len(p)
		}
	}
	return 0
}

func hasSuffix(words, suffix []string) bool {
	off := len(words) - len(suffix)
	for j, w := range suffix {
		if words[off+j] != w {
			return false
		}
	}
	return true
}

func applyAliases(s string) string {
	switch {
	case strings.HasPrefix(s, "southside cranbourne"):
		return "cranbourne"
	case strings.HasPrefix(s, "southside pakenham"):
		return "pakenham"
	case strings.Contains(s, "yarra valley"):
		return "yarra glen"
	case strings.Contains(s, "port lincoln"):
		return "port lincoln"
	case s == "darwin":
		return "fannie bay"
	}
	if strings.HasPrefix(s, "mt ") {
		s = "mount " + strings.TrimPrefix(s, "mt ")
	}
	return s
}
