package tracks

import (
	"sort"
	"strings"
)

// Australian states and territories.
const (
	StateNSW = "NSW"
	StateVIC = "VIC"
	StateQLD = "QLD"
	StateSA  = "SA"
	StateWA  = "WA"
	StateTAS = "TAS"
	StateNT  = "NT"
	StateACT = "ACT"
)

var stateTracks = map[string][]string{
	StateNSW: {
		"warwick farm", "randwick", "royal randwick", "rosehill", "rosehill gardens", "canterbury",
		"newcastle", "kembla grange", "hawkesbury", "gosford", "wyong", "scone", "tamworth",
		"dubbo", "mudgee", "bathurst", "goulburn", "wagga", "albury", "queanbeyan",
		"moruya", "nowra", "port macquarie", "taree", "grafton", "lismore", "ballina",
		"coffs harbour", "muswellbrook",
	},
	StateVIC: {
		"flemington", "caulfield", "moonee valley", "sandown", "sandown lakeside", "sandown hillside",
		"cranbourne", "pakenham", "mornington", "geelong", "ballarat", "bendigo", "kilmore",
		"kyneton", "seymour", "wangaratta", "wodonga", "echuca", "swan hill", "mildura", "horsham",
		"hamilton", "warrnambool", "stony creek", "sale", "traralgon", "bairnsdale", "yarra glen",
	},
	StateQLD: {
		"doomben", "eagle farm", "sunshine coast", "gold coast", "ipswich", "toowoomba",
		"rockhampton", "mackay", "townsville", "cairns", "beaudesert",
	},
	StateSA: {
		"morphettville", "morphettville parks", "murray bridge", "gawler", "balaklava",
		"strathalbyn", "oakbank", "mount gambier", "port lincoln",
	},
	StateWA: {
		"ascot", "belmont", "pinjarra", "bunbury", "northam", "geraldton", "kalgoorlie", "albany",
	},
	StateTAS: {"hobart", "launceston", "devonport"},
	StateNT:  {"darwin", "fannie bay", "alice springs"},
	StateACT: {"canberra"},
}

type trackState struct {
	track string
	state string
}

// knownTracks is sorted longest name first so partial matches prefer the most specific track.
var knownTracks = func() []trackState {
	var out []trackState
	for state, names := range stateTracks {
		for _, n := range names {
			out = append(out, trackState{track: n, state: state})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].track) != len(out[j].track) {
			return len(out[i].track) > len(out[j].track)
		}
		return out[i].track < out[j].track
	})
	return out
}()

// InferState guesses the state of a track from its name. It returns "" when unknown.
func InferState(track string) string {
	n := Normalize(track)
	c := Canonical(track)
	if n == "" {
		return ""
	}
	for _, ts := range knownTracks {
		if ts.track == n || ts.track == c {
			return ts.state
		}
	}
	for _, ts := range knownTracks {
		if strings.Contains(n, ts.track) || (len(n) > 3 && strings.Contains(ts.track, n)) {
			return ts.state
		}
	}
	return ""
}

// Track type labels.
const (
	TypeMetro      = "Metro"
	TypeProvincial = "Provincial"
	TypeCountry    = "Provincial/Country"
)

var metroTracks = []string{
	"flemington", "caulfield", "moonee valley", "sandown",
	"randwick", "rosehill", "warwick farm", "canterbury",
	"doomben", "eagle farm",
	"morphettville",
	"ascot", "belmont",
}

var provincialIndicators = []string{"park", "gardens", "lakeside"}

// Type classifies a track as Metro, Provincial or Provincial/Country.
func Type(track string) string {
	n := Normalize(track)
	for _, m := range metroTracks {
		if strings.Contains(n, m) {
			return TypeMetro
		}
	}
	for _, ind := range provincialIndicators {
		if strings.Contains(n, ind) {
			return TypeProvincial
		}
	}
	return TypeCountry
}
