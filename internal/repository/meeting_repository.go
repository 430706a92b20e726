package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yourusername/tipwatch/internal/database"
	"github.com/yourusername/tipwatch/internal/models"
)

const meetingColumns = `id, date, track_name, state, country, pf_meeting_id, ra_meetcode, created_at`

// PostgresMeetingRepository implements MeetingRepository for PostgreSQL
type PostgresMeetingRepository struct {
	db *database.DB
}

// NewPostgresMeetingRepository creates a new meeting repository
func NewPostgresMeetingRepository(db *database.DB) MeetingRepository {
	return &PostgresMeetingRepository{db: db}
}

func scanMeeting(row pgx.Row) (*models.Meeting, error) {
	m := &models.Meeting{}
	err := row.Scan(&m.ID, &m.Date, &m.TrackName, &m.State, &m.Country, &m.PFMeetingID, &m.RAMeetCode, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetOrCreate inserts the meeting unless its natural key already exists.
func (r *PostgresMeetingRepository) GetOrCreate(ctx context.Context, m *models.Meeting) (*models.Meeting, bool, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Country == "" {
		m.Country = models.DefaultCountry
	}

	insert := `
		INSERT INTO meetings (id, date, track_name, state, country, pf_meeting_id, ra_meetcode)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (date, track_name, state) DO NOTHING
		RETURNING ` + meetingColumns

	created, err := scanMeeting(r.db.GetPool().QueryRow(ctx, insert,
		m.ID, models.TruncateDate(m.Date), m.TrackName, m.State, m.Country, m.PFMeetingID, m.RAMeetCode,
	))
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to create meeting: %w", err)
	}

	query := `SELECT ` + meetingColumns + ` FROM meetings WHERE date = $1 AND track_name = $2 AND state = $3`
	existing, err := scanMeeting(r.db.GetPool().QueryRow(ctx, query, models.TruncateDate(m.Date), m.TrackName, m.State))
	if err != nil {
		return nil, false, fmt.Errorf("failed to get meeting: %w", err)
	}
	return existing, false, nil
}

// GetByID retrieves a meeting by ID
func (r *PostgresMeetingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings WHERE id = $1`

	m, err := scanMeeting(r.db.GetPool().QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meeting: %w", err)
	}
	return m, nil
}

// ListByDate retrieves all meetings on a date
func (r *PostgresMeetingRepository) ListByDate(ctx context.Context, date time.Time) ([]*models.Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings WHERE date = $1 ORDER BY state, track_name`

	rows, err := r.db.GetPool().Query(ctx, query, models.TruncateDate(date))
	if err != nil {
		return nil, fmt.Errorf("failed to query meetings: %w", err)
	}
	defer rows.Close()

	var meetings []*models.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meeting: %w", err)
		}
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}

// UpdateExternalIDs patches provider identifiers onto a meeting
func (r *PostgresMeetingRepository) UpdateExternalIDs(ctx context.Context, id uuid.UUID, pfMeetingID *int, raMeetCode *string) error {
	query := `
		UPDATE meetings
		SET pf_meeting_id = COALESCE($2, pf_meeting_id),
		    ra_meetcode = COALESCE($3, ra_meetcode)
		WHERE id = $1
	`

	tag, err := r.db.GetPool().Exec(ctx, query, id, pfMeetingID, raMeetCode)
	if err != nil {
		return fmt.Errorf("failed to update meeting identifiers: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
