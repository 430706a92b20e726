package datasource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/tipwatch/internal/logger"
	"github.com/yourusername/tipwatch/internal/models"
)

var feedDate = time.Date(2025, 11, 18, 0, 0, 0, 0, time.UTC)

func testHTTPClient() *RateLimitedHTTPClient {
	cfg := DefaultHTTPClientConfig()
	cfg.MaxRetries = 0
	cfg.RetryWaitMin = time.Millisecond
	cfg.RetryWaitMax = time.Millisecond
	cfg.RateLimit = 1000
	cfg.Timeout = 2 * time.Second
	return NewRateLimitedHTTPClient(cfg, logger.Discard())
}

func serveJSON(t *testing.T, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func quietLogger() *logrus.Logger {
	return logger.Discard()
}

func TestRAFeedNestedShape(t *testing.T) {
	body := `{
	  "date": "2025-11-18",
	  "meetings": [
	    {
	      "track": "bet365 Park Kyneton",
	      "ra_meetcode": "VIC_KYNT_20251118",
	      "races": [
	        {
	          "raceNo": 7,
	          "raceName": "Global Turf Handicap",
	          "results": [
	            {"tabNumber": 3, "horseName": "Winner Horse", "finishPosition": 1, "status": "RUN", "margin": "1.5L", "startingPrice": 3.6},
	            {"tabNumber": 5, "finishPosition": null, "status": "SCR"},
	            {"horseName": "No Tab"}
	          ]
	        },
	        {"raceName": "missing number", "results": []}
	      ]
	    }
	  ]
	}`
	srv := serveJSON(t, body, func(r *http.Request) {
		assert.Equal(t, "/results", r.URL.Path)
		assert.Equal(t, "2025-11-18", r.URL.Query().Get("date"))
	})

	feed := NewRAFeed(testHTTPClient(), srv.URL+"/", time.Second, quietLogger())
	batch, err := feed.FetchResults(context.Background(), FetchRequest{Date: feedDate})
	require.NoError(t, err)
	require.Len(t, batch.Rows, 2)
	assert.Equal(t, 2, batch.Skipped)

	win := batch.Rows[0]
	assert.Equal(t, models.ProviderRA, win.Provider)
	assert.Equal(t, "VIC", win.State, "state defaults to VIC")
	assert.Equal(t, "bet365 Park Kyneton", win.Track)
	assert.Equal(t, "VIC_KYNT_20251118", *win.MeetCode)
	assert.Equal(t, 7, win.RaceNumber)
	assert.Equal(t, 1, *win.FinishPosition)
	assert.Equal(t, "3.6", win.StartingPrice.String())
	assert.Equal(t, "1.5L", *win.MarginText)

	scr := batch.Rows[1]
	assert.True(t, scr.Scratched)
	assert.Nil(t, scr.FinishPosition)
	assert.Equal(t, "Runner #5", scr.HorseName)
}

func TestRAFeedFlatShape(t *testing.T) {
	body := `[
	  {"meeting_date": "2025-11-18", "state": "nsw", "track": "Rosehill", "race_no": 3, "horse_number": 4,
	   "horse_name": "Lucky Four", "finishing_pos": 1, "is_scratched": false, "margin_lens": 0.5, "starting_price": 3.6},
	  {"meeting_date": "2025-11-18", "state": "NSW", "track": "Rosehill", "race_no": 3, "horse_number": 9,
	   "horse_name": "Gone", "finishing_pos": null, "is_scratched": true},
	  {"state": "NSW", "track": "Rosehill", "horse_number": 2}
	]`
	srv := serveJSON(t, body, nil)

	feed := NewRAFeed(testHTTPClient(), srv.URL, time.Second, quietLogger())
	batch, err := feed.FetchResults(context.Background(), FetchRequest{Date: feedDate})
	require.NoError(t, err)
	require.Len(t, batch.Rows, 2)
	assert.Equal(t, 1, batch.Skipped)

	assert.Equal(t, "NSW", batch.Rows[0].State)
	assert.Equal(t, 4, batch.Rows[0].TabNumber)
	assert.Equal(t, "0.5", *batch.Rows[0].MarginText)
	assert.Equal(t, models.ResultStatusRun, batch.Rows[0].ResultStatus())
	assert.True(t, batch.Rows[1].Scratched)
	assert.Equal(t, models.ResultStatusScratched, batch.Rows[1].ResultStatus())
}

func TestRAFeedServerErrorDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	feed := NewRAFeed(testHTTPClient(), srv.URL, time.Second, quietLogger())
	batch, err := feed.FetchResults(context.Background(), FetchRequest{Date: feedDate})
	require.Error(t, err)
	require.NotNil(t, batch)
	assert.Empty(t, batch.Rows)
	assert.Equal(t, ErrCodeServerError, ErrorCode(err))
}

func TestRAFeedMalformedJSON(t *testing.T) {
	srv := serveJSON(t, `{"meetings": [`, nil)

	feed := NewRAFeed(testHTTPClient(), srv.URL, time.Second, quietLogger())
	batch, err := feed.FetchResults(context.Background(), FetchRequest{Date: feedDate})
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidData, ErrorCode(err))
	assert.Empty(t, batch.Rows)
}

func TestPFFeedMergesBlocks(t *testing.T) {
	body := `{
	  "statusCode": 200,
	  "payLoad": {
	    "runners": [
	      {"rating": {"runnerName": "Block Runner", "tabNo": 4, "posFin": 1, "margFin": null},
	       "sectional": {"margFin": "0.2L", "tabNo": 99},
	       "status": ""},
	      {"runnerName": "Flat Runner", "tabNo": "6", "posFin": "2", "status": "FIN"},
	      {"rating": {"runnerName": "Scratched", "tabNo": 8, "status": "SCR"}},
	      {"rating": {"runnerName": "No Tab"}}
	    ]
	  }
	}`
	var calls []string
	srv := serveJSON(t, body, func(r *http.Request) {
		q := r.URL.Query()
		calls = append(calls, q.Get("meetingId")+"/"+q.Get("raceNumber"))
		assert.Equal(t, "secret", q.Get("apiKey"))
	})

	id := 231456
	req := FetchRequest{
		Date: feedDate,
		Meetings: []MeetingRef{
			{State: "nsw", Track: "Rosehill Gardens", PFMeetingID: &id, RaceNumbers: []int{3}},
			{State: "VIC", Track: "Sale", RaceNumbers: []int{1, 2}},
		},
	}
	feed := NewPFFeed(testHTTPClient(), srv.URL, "secret", time.Second, quietLogger())
	batch, err := feed.FetchResults(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"231456/3"}, calls, "meetings without a PF id are not requested")
	require.Len(t, batch.Rows, 3)
	assert.Equal(t, 1, batch.Skipped)

	first := batch.Rows[0]
	assert.Equal(t, "NSW", first.State)
	assert.Equal(t, "Rosehill Gardens", first.Track)
	assert.Equal(t, 4, first.TabNumber, "first block wins")
	assert.Equal(t, "0.2L", *first.MarginText)
	assert.Equal(t, "FIN", first.Status, "blank status with a position becomes FIN")
	assert.Equal(t, id, *first.PFMeetingID)

	assert.Equal(t, 6, batch.Rows[1].TabNumber)
	assert.Equal(t, 2, *batch.Rows[1].FinishPosition)
	assert.True(t, batch.Rows[2].Scratched)
}

func TestPFFeedPartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("raceNumber") == "2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"payLoad": [{"runnerName": "A", "tabNo": 1, "posFin": 1}]}`))
	}))
	defer srv.Close()

	id := 7
	req := FetchRequest{Date: feedDate, Meetings: []MeetingRef{{State: "QLD", Track: "Doomben", PFMeetingID: &id, RaceNumbers: []int{1, 2, 3}}}}
	feed := NewPFFeed(testHTTPClient(), srv.URL, "k", time.Second, quietLogger())
	batch, err := feed.FetchResults(context.Background(), req)

	require.Error(t, err)
	assert.Equal(t, ErrCodeAuthenticationFailed, ErrorCode(err))
	assert.Len(t, batch.Rows, 2)
}

func TestPFFeedScratchedFlagBeatsPosition(t *testing.T) {
	body := `{"payLoad": [{"runnerName": "Late Scratching", "tabNo": 5, "posFin": 1, "isScratched": true}]}`
	srv := serveJSON(t, body, nil)

	id := 11
	req := FetchRequest{Date: feedDate, Meetings: []MeetingRef{{State: "VIC", Track: "Sale", PFMeetingID: &id, RaceNumbers: []int{1}}}}
	feed := NewPFFeed(testHTTPClient(), srv.URL, "k", time.Second, quietLogger())
	batch, err := feed.FetchResults(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, batch.Rows, 1)

	scr := batch.Rows[0]
	assert.True(t, scr.Scratched)
	assert.Empty(t, scr.Status, "no FIN default for a scratched runner")
	assert.Equal(t, models.ResultStatusScratched, scr.ResultStatus())
}

func TestResultStatusScratchedFlagWins(t *testing.T) {
	pos := 1
	cases := []struct {
		name string
		row  RawResultRow
		want string
	}{
		{"flag over FIN", RawResultRow{Scratched: true, Status: "FIN", FinishPosition: &pos}, models.ResultStatusScratched},
		{"feed text kept", RawResultRow{Status: "FIN", FinishPosition: &pos}, "FIN"},
		{"derived run", RawResultRow{FinishPosition: &pos}, models.ResultStatusRun},
		{"derived no result", RawResultRow{}, models.ResultStatusNoResult},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.row.ResultStatus())
		})
	}
}

func TestSkynetFeedAndIndex(t *testing.T) {
	body := `{"data": [
	  {"meetingId": 231456, "track": "Rosehill Gardens", "raceNumber": 3, "tabNumber": 4, "tabCurrentPrice": 3.6, "rank": 1, "horse": "Lucky Four"},
	  {"meetingId": 231456, "track": "Rosehill Gardens", "raceNumber": 3, "tabNumber": 5, "tabCurrentPrice": "7.5", "rank": 2},
	  {"track": "Flemington", "raceNumber": 1, "tabNumber": 2, "price": 4.0, "rank": 1},
	  {"meetingId": 1, "raceNumber": 1, "tabNumber": 1}
	]}`
	srv := serveJSON(t, body, func(r *http.Request) {
		assert.Equal(t, "18-nov-2025", r.URL.Query().Get("meetingDate"))
	})

	feed := NewSkynetFeed(testHTTPClient(), srv.URL, "k", time.Second, quietLogger())
	rows, err := feed.FetchPrices(context.Background(), feedDate)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "NSW", rows[0].State)
	assert.Equal(t, "VIC", rows[2].State)

	idx := NewPriceIndex(rows)
	assert.Equal(t, 3, idx.Len())
	id := 231456

	r, ok := idx.Lookup(&id, "", 3, 5)
	require.True(t, ok)
	assert.Equal(t, "7.5", r.Price.String())

	r, ok = idx.Lookup(nil, "Flemington Racecourse", 1, 2)
	require.True(t, ok)
	assert.Equal(t, "4", r.Price.String())

	_, ok = idx.Lookup(nil, "Randwick", 1, 2)
	assert.False(t, ok)

	top, ok := idx.TopRanked(nil, "Rosehill", 3)
	require.True(t, ok)
	assert.Equal(t, 4, top.TabNumber)
}

func TestSkynetDate(t *testing.T) {
	assert.Equal(t, "02-dec-2025", SkynetDate(time.Date(2025, 12, 2, 0, 0, 0, 0, time.UTC)))
}

func TestCircuitBreakerOpens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := DefaultHTTPClientConfig()
	cfg.MaxRetries = 0
	cfg.RateLimit = 1000
	cfg.CircuitBreakerMax = 2
	client := NewRateLimitedHTTPClient(cfg, quietLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := client.Get(ctx, srv.URL)
		assert.Error(t, err)
	}
	_, err := client.Get(ctx, srv.URL)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "circuit breaker open"))
}
