package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yourusername/tipwatch/internal/database"
	"github.com/yourusername/tipwatch/internal/models"
)

const raceColumns = `id, meeting_id, race_number, name, distance_m, class_text, scheduled_start, created_at`

// PostgresRaceRepository implements RaceRepository for PostgreSQL
type PostgresRaceRepository struct {
	db *database.DB
}

// NewPostgresRaceRepository creates a new race repository
func NewPostgresRaceRepository(db *database.DB) RaceRepository {
	return &PostgresRaceRepository{db: db}
}

func scanRace(row pgx.Row) (*models.Race, error) {
	race := &models.Race{}
	err := row.Scan(&race.ID, &race.MeetingID, &race.RaceNumber, &race.Name, &race.DistanceM,
		&race.ClassText, &race.ScheduledStart, &race.CreatedAt)
	if err != nil {
		return nil, err
	}
	return race, nil
}

// GetOrCreate inserts the race unless (meeting, race number) already exists.
func (r *PostgresRaceRepository) GetOrCreate(ctx context.Context, race *models.Race) (*models.Race, bool, error) {
	if race.ID == uuid.Nil {
		race.ID = uuid.New()
	}

	insert := `
		INSERT INTO races (id, meeting_id, race_number, name, distance_m, class_text, scheduled_start)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (meeting_id, race_number) DO NOTHING
		RETURNING ` + raceColumns

	created, err := scanRace(r.db.GetPool().QueryRow(ctx, insert,
		race.ID, race.MeetingID, race.RaceNumber, race.Name, race.DistanceM, race.ClassText, race.ScheduledStart,
	))
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to create race: %w", err)
	}

	query := `SELECT ` + raceColumns + ` FROM races WHERE meeting_id = $1 AND race_number = $2`
	existing, err := scanRace(r.db.GetPool().QueryRow(ctx, query, race.MeetingID, race.RaceNumber))
	if err != nil {
		return nil, false, fmt.Errorf("failed to get race: %w", err)
	}
	return existing, false, nil
}

// GetByID retrieves a race by ID
func (r *PostgresRaceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Race, error) {
	query := `SELECT ` + raceColumns + ` FROM races WHERE id = $1`

	race, err := scanRace(r.db.GetPool().QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get race: %w", err)
	}
	return race, nil
}

// ListByMeetings retrieves the races of the given meetings
func (r *PostgresRaceRepository) ListByMeetings(ctx context.Context, meetingIDs []uuid.UUID) ([]*models.Race, error) {
	if len(meetingIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + raceColumns + ` FROM races WHERE meeting_id = ANY($1) ORDER BY meeting_id, race_number`

	rows, err := r.db.GetPool().Query(ctx, query, meetingIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query races: %w", err)
	}
	defer rows.Close()

	var races []*models.Race
	for rows.Next() {
		race, err := scanRace(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan race: %w", err)
		}
		races = append(races, race)
	}
	return races, rows.Err()
}
