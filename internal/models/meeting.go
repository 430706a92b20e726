package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultCountry is used when a feed does not disclose the meeting's country.
const DefaultCountry = "AUS"

// Meeting is one race meeting at one track on one day.
// Unique per (date, track name, state).
type Meeting struct {
	ID          uuid.UUID `db:"id" json:"id" validate:"required"`
	Date        time.Time `db:"date" json:"date" validate:"required"`
	TrackName   string    `db:"track_name" json:"track_name" validate:"required"`
	State       string    `db:"state" json:"state" validate:"required"`
	Country     string    `db:"country" json:"country"`
	PFMeetingID *int      `db:"pf_meeting_id" json:"pf_meeting_id,omitempty"`
	RAMeetCode  *string   `db:"ra_meetcode" json:"ra_meetcode,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// MeetingKey is the natural key of a meeting.
type MeetingKey struct {
	Date      string
	TrackName string
	State     string
}

// Key returns the natural key used by the store's uniqueness constraint.
func (m *Meeting) Key() MeetingKey {
	return MeetingKey{
		Date:      DateKey(m.Date),
		TrackName: m.TrackName,
		State:     strings.ToUpper(m.State),
	}
}

// DateKey formats a date as YYYY-MM-DD, ignoring the time of day.
func DateKey(t time.Time) string {
	return t.Format(time.DateOnly)
}

// TruncateDate returns midnight UTC of the calendar date in t's location.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
