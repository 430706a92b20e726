package datasource

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/tipwatch/internal/models"
)

const pfSource = "pf_post_race"

// pfBlocks are the per-runner sub-documents of the newer post-race shape.
// When the same key appears in several blocks the first non-null value is kept.
var pfBlocks = []string{"rating", "sectional", "benchmark", "jockey"}

// pfTopLevel are outer runner keys copied into the merged row when missing.
var pfTopLevel = []string{
	"meetingDate", "track", "meetingId", "raceId", "runnerId", "raceNo",
	"runnerName", "tabNo", "posFin", "margFin", "status",
}

// PFFeed reads post-race runner data one race at a time. It only covers
// meetings whose PF meeting id is known.
type PFFeed struct {
	httpClient *RateLimitedHTTPClient
	url        string
	apiKey     string
	timeout    time.Duration
	logger     *logrus.Entry
}

// NewPFFeed creates a post-race runner feed.
func NewPFFeed(httpClient *RateLimitedHTTPClient, postRaceURL, apiKey string, timeout time.Duration, logger *logrus.Logger) *PFFeed {
	return &PFFeed{
		httpClient: httpClient,
		url:        postRaceURL,
		apiKey:     apiKey,
		timeout:    timeout,
		logger:     logger.WithFields(logrus.Fields{"component": "feed", "provider": string(models.ProviderPF)}),
	}
}

// Provider returns models.ProviderPF.
func (f *PFFeed) Provider() models.Provider {
	return models.ProviderPF
}

// FetchResults calls the post-race endpoint for every race of every meeting in
// req that has a PF meeting id. A failed race does not stop the others; the
// failures are joined into the returned error.
func (f *PFFeed) FetchResults(ctx context.Context, req FetchRequest) (*FeedBatch, error) {
	batch := &FeedBatch{Provider: models.ProviderPF}
	meetingDate := models.TruncateDate(req.Date)

	var errs []error
	for _, m := range req.Meetings {
		if m.PFMeetingID == nil {
			continue
		}
		for _, raceNumber := range m.RaceNumbers {
			if err := ctx.Err(); err != nil {
				return batch, errors.Join(append(errs, err)...)
			}
			runners, err := f.fetchRace(ctx, *m.PFMeetingID, raceNumber)
			if err != nil {
				f.logger.WithError(err).WithFields(logrus.Fields{
					"meeting_id":  *m.PFMeetingID,
					"race_number": raceNumber,
				}).Warn("Post-race fetch failed")
				errs = append(errs, err)
				continue
			}
			for _, runner := range runners {
				row := RawResultRow{
					Provider:    models.ProviderPF,
					MeetingDate: meetingDate,
					State:       strings.ToUpper(m.State),
					Track:       m.Track,
					PFMeetingID: m.PFMeetingID,
					RaceNumber:  raceNumber,
				}
				if !fillRunner(&row, runner, AliasPrice) || !row.Valid() {
					batch.Skipped++
					continue
				}
				if row.Status == "" && row.FinishPosition != nil && !row.Scratched {
					row.Status = "FIN"
				}
				batch.Rows = append(batch.Rows, row)
			}
		}
	}
	return batch, errors.Join(errs...)
}

func (f *PFFeed) fetchRace(ctx context.Context, meetingID, raceNumber int) ([]map[string]any, error) {
	ctx, cancel := withTimeout(ctx, f.timeout)
	defer cancel()

	query := url.Values{
		"meetingId":  {strconv.Itoa(meetingID)},
		"raceNumber": {strconv.Itoa(raceNumber)},
		"apiKey":     {f.apiKey},
	}
	var raw any
	if err := f.httpClient.GetJSON(ctx, pfSource, f.url, query, &raw); err != nil {
		return nil, err
	}
	return extractPFRunners(raw), nil
}

// extractPFRunners normalizes the post-race payload into flat runner objects.
// Accepted shapes:
//
//	{"payLoad": [runner, ...]}
//	{"payLoad": {"runners": [runner, ...]}}
//	[runner, ...]
//
// where each runner is either flat or split into rating/sectional/benchmark/jockey blocks.
func extractPFRunners(raw any) []map[string]any {
	payload := raw
	if obj, ok := raw.(map[string]any); ok {
		if inner, found := Lookup(obj, AliasPayload); found {
			payload = inner
		}
	}

	var runners []map[string]any
	switch v := payload.(type) {
	case []any:
		runners, _ = asObjectList(v)
	case map[string]any:
		runners, _ = LookupList(v, Aliases{"runners", "Runners", "runner"})
	}

	out := make([]map[string]any, 0, len(runners))
	for _, r := range runners {
		out = append(out, mergePFBlocks(r))
	}
	return out
}

func mergePFBlocks(r map[string]any) map[string]any {
	var blocks []map[string]any
	for _, name := range pfBlocks {
		if b, ok := r[name].(map[string]any); ok {
			blocks = append(blocks, b)
		}
	}
	if len(blocks) == 0 {
		return r
	}

	merged := make(map[string]any)
	for _, b := range blocks {
		for k, v := range b {
			if _, seen := merged[k]; v != nil && !seen {
				merged[k] = v
			}
		}
	}
	for _, k := range pfTopLevel {
		if _, seen := merged[k]; seen {
			continue
		}
		if v, ok := r[k]; ok && v != nil {
			merged[k] = v
		}
	}
	return merged
}
