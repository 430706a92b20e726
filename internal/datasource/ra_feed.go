package datasource

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/tipwatch/internal/models"
)

const (
	raSource     = "ra_crawler"
	defaultState = "VIC"
)

// RAFeed reads date-wide results from the crawler service.
//
// The crawler has served two shapes over time: a flat list of runner rows and
// a nested meetings -> races -> runners document. Both are accepted.
type RAFeed struct {
	httpClient *RateLimitedHTTPClient
	baseURL    string
	timeout    time.Duration
	logger     *logrus.Entry
}

// NewRAFeed creates a crawler results feed.
func NewRAFeed(httpClient *RateLimitedHTTPClient, baseURL string, timeout time.Duration, logger *logrus.Logger) *RAFeed {
	return &RAFeed{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		logger:     logger.WithFields(logrus.Fields{"component": "feed", "provider": string(models.ProviderRA)}),
	}
}

// Provider returns models.ProviderRA.
func (f *RAFeed) Provider() models.Provider {
	return models.ProviderRA
}

// FetchResults retrieves every result the crawler holds for req.Date.
func (f *RAFeed) FetchResults(ctx context.Context, req FetchRequest) (*FeedBatch, error) {
	batch := &FeedBatch{Provider: models.ProviderRA}

	ctx, cancel := withTimeout(ctx, f.timeout)
	defer cancel()

	var payload any
	query := url.Values{"date": {models.DateKey(req.Date)}}
	if err := f.httpClient.GetJSON(ctx, raSource, f.baseURL+"/results", query, &payload); err != nil {
		return batch, err
	}

	meetingDate := models.TruncateDate(req.Date)
	for _, item := range raItems(payload) {
		if _, nested := LookupList(item, AliasRaces); nested && isRAMeeting(item) {
			f.parseMeeting(batch, meetingDate, item)
			continue
		}
		row, ok := parseRAFlatRow(meetingDate, item)
		if !ok {
			batch.Skipped++
			continue
		}
		batch.Rows = append(batch.Rows, row)
	}

	f.logger.WithFields(logrus.Fields{
		"date":    models.DateKey(req.Date),
		"rows":    len(batch.Rows),
		"skipped": batch.Skipped,
	}).Debug("Crawler results parsed")
	return batch, nil
}

// raItems unwraps the top-level document into a list of meeting or runner objects.
func raItems(payload any) []map[string]any {
	switch v := payload.(type) {
	case []any:
		items, _ := asObjectList(v)
		return items
	case map[string]any:
		items, _ := LookupList(v, AliasMeetings)
		return items
	default:
		return nil
	}
}

// isRAMeeting distinguishes a nested meeting object from a flat runner row,
// which may also carry a "results" key in some crawler builds.
func isRAMeeting(item map[string]any) bool {
	_, hasTab := LookupInt(item, Aliases{"tabNumber", "tab_number", "tabNo", "horse_number"})
	return !hasTab
}

func (f *RAFeed) parseMeeting(batch *FeedBatch, meetingDate time.Time, m map[string]any) {
	track, ok := LookupString(m, AliasTrack)
	if !ok {
		batch.Skipped++
		return
	}
	state, ok := LookupString(m, AliasState)
	if !ok {
		state = defaultState
	}
	var meetCode *string
	if code, ok := LookupString(m, AliasMeetCode); ok {
		meetCode = &code
	}

	races, _ := LookupList(m, AliasRaces)
	for _, rj := range races {
		raceNumber, ok := LookupInt(rj, AliasRaceNumber)
		if !ok || raceNumber <= 0 {
			batch.Skipped++
			continue
		}
		raceName, _ := LookupString(rj, AliasRaceName)

		runners, _ := LookupList(rj, AliasRunners)
		for _, runner := range runners {
			row := RawResultRow{
				Provider:    models.ProviderRA,
				MeetingDate: meetingDate,
				State:       strings.ToUpper(state),
				Track:       track,
				MeetCode:    meetCode,
				RaceNumber:  raceNumber,
				RaceName:    raceName,
			}
			if !fillRunner(&row, runner, AliasPrice) {
				batch.Skipped++
				continue
			}
			batch.Rows = append(batch.Rows, row)
		}
	}
}

func parseRAFlatRow(meetingDate time.Time, item map[string]any) (RawResultRow, bool) {
	row := RawResultRow{
		Provider:    models.ProviderRA,
		MeetingDate: meetingDate,
	}
	row.Track, _ = LookupString(item, AliasTrack)
	state, _ := LookupString(item, AliasState)
	row.State = strings.ToUpper(state)
	row.RaceNumber, _ = LookupInt(item, Aliases{"race_no", "raceNo", "race_number", "raceNumber"})
	if code, ok := LookupString(item, AliasMeetCode); ok {
		row.MeetCode = &code
	}
	if d, ok := LookupString(item, AliasMeetingDate); ok {
		if parsed, err := time.Parse("2006-01-02", d); err == nil {
			row.MeetingDate = parsed
		}
	}
	if !fillRunner(&row, item, AliasPrice) {
		return row, false
	}
	return row, row.Valid()
}

// fillRunner copies the per-runner fields from obj into row.
// It reports false when no usable tab number is present.
func fillRunner(row *RawResultRow, obj map[string]any, priceAliases Aliases) bool {
	tab, ok := LookupInt(obj, AliasTabNumber)
	if !ok || tab <= 0 {
		return false
	}
	row.TabNumber = tab

	if name, ok := LookupString(obj, AliasHorseName); ok {
		row.HorseName = name
	} else {
		row.HorseName = fmt.Sprintf("Runner #%d", tab)
	}

	if pos := LookupIntPtr(obj, AliasPosition); pos != nil && *pos > 0 {
		row.FinishPosition = pos
	}
	row.Status, _ = LookupString(obj, AliasStatus)
	scratched, _ := LookupBool(obj, AliasScratched)
	row.Scratched = scratched || models.IsScratchedStatus(row.Status)

	if margin, ok := LookupString(obj, AliasMargin); ok {
		row.MarginText = &margin
	}
	row.StartingPrice = LookupPrice(obj, priceAliases)
	return true
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
