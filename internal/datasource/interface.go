package datasource

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yourusername/tipwatch/internal/models"
)

// ResultFeed fetches finished-race rows from one external provider.
//
// Implementations degrade instead of failing: the returned batch is always
// usable (possibly empty) and a non-nil error only describes what went wrong.
type ResultFeed interface {
	// Provider identifies the feed for precedence decisions.
	Provider() models.Provider

	// FetchResults retrieves result rows for the meetings in req.
	FetchResults(ctx context.Context, req FetchRequest) (*FeedBatch, error)
}

// PriceFeed fetches per-runner prices for a whole date.
type PriceFeed interface {
	Provider() models.Provider
	FetchPrices(ctx context.Context, date time.Time) ([]PriceRow, error)
}

// FetchRequest describes what a reconciliation pass wants results for.
// Feeds that work per meeting (PF) use Meetings; date-wide feeds only need Date.
type FetchRequest struct {
	Date     time.Time    `json:"date"`
	Meetings []MeetingRef `json:"meetings,omitempty"`
}

// MeetingRef is a known meeting and its races.
type MeetingRef struct {
	State       string `json:"state"`
	Track       string `json:"track"`
	PFMeetingID *int   `json:"pf_meeting_id,omitempty"`
	RaceNumbers []int  `json:"race_numbers"`
}

// FeedBatch is the normalized output of one fetch.
type FeedBatch struct {
	Provider models.Provider `json:"provider"`
	Rows     []RawResultRow  `json:"rows"`
	// Skipped counts malformed rows that were dropped.
	Skipped int `json:"skipped"`
}

// RawResultRow is one runner's result in the common shape every adapter emits.
type RawResultRow struct {
	Provider       models.Provider  `json:"provider"`
	MeetingDate    time.Time        `json:"meeting_date"`
	State          string           `json:"state" validate:"required"`
	Track          string           `json:"track" validate:"required"`
	MeetCode       *string          `json:"meet_code,omitempty"`
	PFMeetingID    *int             `json:"pf_meeting_id,omitempty"`
	RaceNumber     int              `json:"race_number" validate:"gt=0,lte=30"`
	RaceName       string           `json:"race_name,omitempty"`
	TabNumber      int              `json:"tab_number" validate:"gt=0,lte=40"`
	HorseName      string           `json:"horse_name"`
	FinishPosition *int             `json:"finish_position"`
	Scratched      bool             `json:"is_scratched"`
	Status         string           `json:"status"`
	MarginText     *string          `json:"margin_text,omitempty"`
	StartingPrice  *decimal.Decimal `json:"starting_price"`
}

// Valid reports whether the row carries the minimum keys needed for matching.
func (r *RawResultRow) Valid() bool {
	return r.State != "" && r.Track != "" && r.RaceNumber > 0 && r.TabNumber > 0
}

// ResultStatus returns the status text to store, deriving one when the feed sent none.
// A scratched row is always stored as scratched whatever text the feed sent.
func (r *RawResultRow) ResultStatus() string {
	if r.Scratched {
		return models.ResultStatusScratched
	}
	if r.Status != "" {
		return r.Status
	}
	return models.ResultStatusText(r.FinishPosition, r.Scratched)
}

// PriceRow is one runner's current price from the live-price feed.
type PriceRow struct {
	PFMeetingID *int            `json:"pf_meeting_id,omitempty"`
	Track       string          `json:"track"`
	State       string          `json:"state"`
	RaceNumber  int             `json:"race_number"`
	TabNumber   int             `json:"tab_number"`
	HorseName   string          `json:"horse_name"`
	Price       decimal.Decimal `json:"price"`
	Rank        *int            `json:"rank,omitempty"`
}

// DataSourceError represents errors from data source operations
type DataSourceError struct {
	Source  string // Data source name
	Code    string // Error code (e.g., "rate_limit_exceeded")
	Message string // Error message
	Err     error  // Underlying error
}

func (e DataSourceError) Error() string {
	if e.Err != nil {
		return e.Source + ": " + e.Code + ": " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Source + ": " + e.Code + ": " + e.Message
}

// Unwrap exposes the underlying error.
func (e DataSourceError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrCodeRateLimitExceeded    = "rate_limit_exceeded"
	ErrCodeAuthenticationFailed = "authentication_failed"
	ErrCodeNotFound             = "not_found"
	ErrCodeInvalidData          = "invalid_data"
	ErrCodeNetworkError         = "network_error"
	ErrCodeServerError          = "server_error"
	ErrCodeTimeout              = "timeout"
	ErrCodeUnknown              = "unknown"
)

// Error constructors
var (
	ErrRateLimitExceeded    = errors.New("rate limit exceeded")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrNotFound             = errors.New("data not found")
	ErrInvalidData          = errors.New("invalid data format")
	ErrNetworkError         = errors.New("network error")
	ErrServerError          = errors.New("server error")
	ErrCircuitOpen          = errors.New("circuit breaker open")
)

// NewDataSourceError creates a new data source error
func NewDataSourceError(source, code, message string, err error) DataSourceError {
	return DataSourceError{
		Source:  source,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ErrorCode extracts the DataSourceError code from err, or ErrCodeUnknown.
func ErrorCode(err error) string {
	var dsErr DataSourceError
	if errors.As(err, &dsErr) {
		return dsErr.Code
	}
	return ErrCodeUnknown
}
