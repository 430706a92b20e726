package datasource

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/tipwatch/internal/models"
	"github.com/yourusername/tipwatch/internal/tracks"
)

const skynetSource = "skynet"

// SkynetDate formats a date the way the live-price endpoint expects ("18-nov-2025").
func SkynetDate(d time.Time) string {
	return strings.ToLower(d.Format("02-Jan-2006"))
}

// SkynetFeed reads current prices for every runner on a date.
type SkynetFeed struct {
	httpClient *RateLimitedHTTPClient
	url        string
	apiKey     string
	timeout    time.Duration
	logger     *logrus.Entry
}

// NewSkynetFeed creates a live-price feed.
func NewSkynetFeed(httpClient *RateLimitedHTTPClient, pricesURL, apiKey string, timeout time.Duration, logger *logrus.Logger) *SkynetFeed {
	return &SkynetFeed{
		httpClient: httpClient,
		url:        pricesURL,
		apiKey:     apiKey,
		timeout:    timeout,
		logger:     logger.WithFields(logrus.Fields{"component": "feed", "provider": string(models.ProviderSkynet)}),
	}
}

// Provider returns models.ProviderSkynet.
func (f *SkynetFeed) Provider() models.Provider {
	return models.ProviderSkynet
}

// FetchPrices returns one PriceRow per priced runner. Rows without a race,
// tab number or positive price are dropped.
func (f *SkynetFeed) FetchPrices(ctx context.Context, date time.Time) ([]PriceRow, error) {
	ctx, cancel := withTimeout(ctx, f.timeout)
	defer cancel()

	query := url.Values{
		"meetingDate": {SkynetDate(date)},
		"apikey":      {f.apiKey},
	}
	var raw any
	if err := f.httpClient.GetJSON(ctx, skynetSource, f.url, query, &raw); err != nil {
		return nil, err
	}

	var items []map[string]any
	switch v := raw.(type) {
	case []any:
		items, _ = asObjectList(v)
	case map[string]any:
		items, _ = LookupList(v, Aliases{"data"})
	}

	rows := make([]PriceRow, 0, len(items))
	skipped := 0
	for _, item := range items {
		row, ok := parsePriceRow(item)
		if !ok {
			skipped++
			continue
		}
		rows = append(rows, row)
	}

	f.logger.WithFields(logrus.Fields{
		"date":    models.DateKey(date),
		"prices":  len(rows),
		"skipped": skipped,
	}).Debug("Live prices parsed")
	return rows, nil
}

func parsePriceRow(item map[string]any) (PriceRow, bool) {
	raceNumber, okRace := LookupInt(item, Aliases{"raceNumber", "raceNo", "race_number"})
	tab, okTab := LookupInt(item, Aliases{"tabNumber", "tabNo", "tab_number"})
	price := LookupPrice(item, AliasLivePrice)
	if !okRace || !okTab || raceNumber <= 0 || tab <= 0 || price == nil {
		return PriceRow{}, false
	}
	track, _ := LookupString(item, AliasTrack)
	horse, _ := LookupString(item, AliasHorseName)
	row := PriceRow{
		PFMeetingID: LookupIntPtr(item, AliasMeetingID),
		Track:       track,
		State:       tracks.InferState(track),
		RaceNumber:  raceNumber,
		TabNumber:   tab,
		HorseName:   horse,
		Price:       *price,
		Rank:        LookupIntPtr(item, AliasRank),
	}
	return row, true
}

type priceKey struct {
	meetingID int
	race      int
	tab       int
}

// PriceIndex answers per-runner price lookups for one date.
type PriceIndex struct {
	byMeeting map[priceKey]PriceRow
	rows      []PriceRow
}

// NewPriceIndex indexes rows by (PF meeting id, race, tab). Later rows for the same key win.
func NewPriceIndex(rows []PriceRow) *PriceIndex {
	idx := &PriceIndex{
		byMeeting: make(map[priceKey]PriceRow, len(rows)),
		rows:      rows,
	}
	for _, r := range rows {
		if r.PFMeetingID != nil {
			idx.byMeeting[priceKey{*r.PFMeetingID, r.RaceNumber, r.TabNumber}] = r
		}
	}
	return idx
}

// Len returns the number of indexed rows.
func (idx *PriceIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.rows)
}

// Lookup finds the price row for a runner. The PF meeting id is tried first;
// without one the track name is fuzzy-matched among rows for the same race and tab.
func (idx *PriceIndex) Lookup(pfMeetingID *int, track string, raceNumber, tabNumber int) (PriceRow, bool) {
	if idx == nil {
		return PriceRow{}, false
	}
	if pfMeetingID != nil {
		if r, ok := idx.byMeeting[priceKey{*pfMeetingID, raceNumber, tabNumber}]; ok {
			return r, true
		}
	}
	return idx.byTrack(track, func(r PriceRow) bool {
		return r.RaceNumber == raceNumber && r.TabNumber == tabNumber
	})
}

// TopRanked returns the rank-1 runner of a race, if the feed ranked it.
func (idx *PriceIndex) TopRanked(pfMeetingID *int, track string, raceNumber int) (PriceRow, bool) {
	if idx == nil {
		return PriceRow{}, false
	}
	isTop := func(r PriceRow) bool {
		return r.RaceNumber == raceNumber && r.Rank != nil && *r.Rank == 1
	}
	if pfMeetingID != nil {
		for _, r := range idx.rows {
			if isTop(r) && r.PFMeetingID != nil && *r.PFMeetingID == *pfMeetingID {
				return r, true
			}
		}
	}
	return idx.byTrack(track, isTop)
}

func (idx *PriceIndex) byTrack(track string, keep func(PriceRow) bool) (PriceRow, bool) {
	if track == "" {
		return PriceRow{}, false
	}
	var candidates []PriceRow
	var names []string
	for _, r := range idx.rows {
		if keep(r) && r.Track != "" {
			candidates = append(candidates, r)
			names = append(names, r.Track)
		}
	}
	sel, ok := tracks.Select(track, names)
	if !ok {
		return PriceRow{}, false
	}
	return candidates[sel.Index], true
}
