package models

import (
	"time"

	"github.com/google/uuid"
)

// Race belongs to exactly one Meeting and is unique per (meeting, race number).
// Distance, class and start time are descriptive only and never used as matching keys.
type Race struct {
	ID             uuid.UUID  `db:"id" json:"id" validate:"required"`
	MeetingID      uuid.UUID  `db:"meeting_id" json:"meeting_id" validate:"required"`
	RaceNumber     int        `db:"race_number" json:"race_number" validate:"required,gt=0"`
	Name           string     `db:"name" json:"name"`
	DistanceM      *int       `db:"distance_m" json:"distance_m,omitempty"`
	ClassText      string     `db:"class_text" json:"class_text"`
	ScheduledStart *time.Time `db:"scheduled_start" json:"scheduled_start,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}
