package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/yourusername/tipwatch/internal/database"
	"github.com/yourusername/tipwatch/internal/models"
)

// PostgresTipRunRepository implements TipRunRepository for PostgreSQL
type PostgresTipRunRepository struct {
	db *database.DB
}

// NewPostgresTipRunRepository creates a new tip run repository
func NewPostgresTipRunRepository(db *database.DB) TipRunRepository {
	return &PostgresTipRunRepository{db: db}
}

// Create inserts a new tip run
func (r *PostgresTipRunRepository) Create(ctx context.Context, run *models.TipRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	query := `
		INSERT INTO tip_runs (id, source, model_version, meeting_id, meta)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	var meta any
	if len(run.Meta) > 0 {
		meta = string(run.Meta)
	}

	err := r.db.GetPool().QueryRow(ctx, query, run.ID, run.Source, run.ModelVersion, run.MeetingID, meta).Scan(&run.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return models.ErrDuplicateKey
		}
		return fmt.Errorf("failed to create tip run: %w", err)
	}
	return nil
}

// GetByID retrieves a tip run by ID
func (r *PostgresTipRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.TipRun, error) {
	query := `SELECT id, source, model_version, meeting_id, COALESCE(meta::text, ''), created_at FROM tip_runs WHERE id = $1`

	run := &models.TipRun{}
	var meta string
	err := r.db.GetPool().QueryRow(ctx, query, id).Scan(&run.ID, &run.Source, &run.ModelVersion, &run.MeetingID, &meta, &run.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tip run: %w", err)
	}
	if meta != "" {
		run.Meta = []byte(meta)
	}
	return run, nil
}

// PostgresTipRepository implements TipRepository for PostgreSQL
type PostgresTipRepository struct {
	db *database.DB
}

// NewPostgresTipRepository creates a new tip repository
func NewPostgresTipRepository(db *database.DB) TipRepository {
	return &PostgresTipRepository{db: db}
}

// Create inserts a new tip
func (r *PostgresTipRepository) Create(ctx context.Context, tip *models.Tip) error {
	if tip.ID == uuid.Nil {
		tip.ID = uuid.New()
	}

	query := `
		INSERT INTO tips (id, tip_run_id, race_id, tip_type, tab_number, horse_name, reasoning, confidence, stake_units)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric)
		RETURNING created_at
	`

	err := r.db.GetPool().QueryRow(ctx, query,
		tip.ID, tip.TipRunID, tip.RaceID, string(tip.TipType), tip.TabNumber,
		tip.HorseName, tip.Reasoning, tip.Confidence, tip.Units().String(),
	).Scan(&tip.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return models.ErrDuplicateKey
		}
		return fmt.Errorf("failed to create tip: %w", err)
	}
	return nil
}

const tipColumns = `t.id, t.tip_run_id, t.race_id, t.tip_type, t.tab_number, t.horse_name, t.reasoning, t.confidence, t.stake_units::text, t.created_at`

func scanTipInto(tip *models.Tip, dest []any) []any {
	return append(dest, &tip.ID, &tip.TipRunID, &tip.RaceID, &tip.TipType, &tip.TabNumber,
		&tip.HorseName, &tip.Reasoning, &tip.Confidence)
}

// ListByDate retrieves all tips on meetings of a date
func (r *PostgresTipRepository) ListByDate(ctx context.Context, date time.Time) ([]*models.Tip, error) {
	query := `
		SELECT ` + tipColumns + `
		FROM tips t
		JOIN races r ON r.id = t.race_id
		JOIN meetings m ON m.id = r.meeting_id
		WHERE m.date = $1
		ORDER BY m.state, m.track_name, r.race_number, t.tip_type
	`

	rows, err := r.db.GetPool().Query(ctx, query, models.TruncateDate(date))
	if err != nil {
		return nil, fmt.Errorf("failed to query tips: %w", err)
	}
	defer rows.Close()

	var tips []*models.Tip
	for rows.Next() {
		tip := &models.Tip{}
		var stake string
		dest := append(scanTipInto(tip, nil), &stake, &tip.CreatedAt)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan tip: %w", err)
		}
		if tip.StakeUnits, err = decimal.NewFromString(stake); err != nil {
			return nil, fmt.Errorf("failed to parse stake units: %w", err)
		}
		tips = append(tips, tip)
	}
	return tips, rows.Err()
}

// ListTipDetails retrieves tips of the latest run per race, joined with race, meeting and outcome
func (r *PostgresTipRepository) ListTipDetails(ctx context.Context, from, to time.Time, filter TipFilter) ([]*models.TipDetail, error) {
	query := `
		SELECT ` + tipColumns + `,
		       r.id, r.meeting_id, r.race_number, r.name, r.distance_m, r.class_text, r.scheduled_start, r.created_at,
		       m.id, m.date, m.track_name, m.state, m.country, m.pf_meeting_id, m.ra_meetcode, m.created_at,
		       o.provider, o.race_result_id, o.finish_position, o.outcome_status, o.starting_price::text, o.created_at, o.updated_at
		FROM tips t
		JOIN races r ON r.id = t.race_id
		JOIN meetings m ON m.id = r.meeting_id
		LEFT JOIN tip_outcomes o ON o.tip_id = t.id
		WHERE m.date BETWEEN $1 AND $2
		  AND t.tip_run_id = (
		      SELECT t2.tip_run_id
		      FROM tips t2
		      JOIN tip_runs tr ON tr.id = t2.tip_run_id
		      WHERE t2.race_id = t.race_id
		      ORDER BY tr.created_at DESC, tr.id DESC
		      LIMIT 1
		  )
		  AND ($3::text = '' OR UPPER(m.state) = UPPER($3::text))
		  AND ($4::text = '' OR t.tip_type = $4::text)
		  AND ($5::text = '' OR UPPER(o.provider) = UPPER($5::text))
		ORDER BY m.date, m.state, m.track_name, r.race_number, t.tip_type
	`

	rows, err := r.db.GetPool().Query(ctx, query,
		models.TruncateDate(from), models.TruncateDate(to),
		filter.State, string(filter.TipType), string(filter.Provider),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query tip details: %w", err)
	}
	defer rows.Close()

	var details []*models.TipDetail
	for rows.Next() {
		d := &models.TipDetail{}
		var (
			stake                string
			provider, status     *string
			resultID             *uuid.UUID
			position             *int
			price                *string
			createdAt, updatedAt *time.Time
		)
		dest := append(scanTipInto(&d.Tip, nil), &stake, &d.Tip.CreatedAt,
			&d.Race.ID, &d.Race.MeetingID, &d.Race.RaceNumber, &d.Race.Name, &d.Race.DistanceM,
			&d.Race.ClassText, &d.Race.ScheduledStart, &d.Race.CreatedAt,
			&d.Meeting.ID, &d.Meeting.Date, &d.Meeting.TrackName, &d.Meeting.State, &d.Meeting.Country,
			&d.Meeting.PFMeetingID, &d.Meeting.RAMeetCode, &d.Meeting.CreatedAt,
			&provider, &resultID, &position, &status, &price, &createdAt, &updatedAt,
		)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan tip detail: %w", err)
		}
		if d.Tip.StakeUnits, err = decimal.NewFromString(stake); err != nil {
			return nil, fmt.Errorf("failed to parse stake units: %w", err)
		}
		if status != nil {
			sp, err := parseDecimal(price)
			if err != nil {
				return nil, err
			}
			d.Outcome = &models.TipOutcome{
				TipID:          d.Tip.ID,
				Provider:       models.Provider(*provider),
				RaceResultID:   resultID,
				FinishPosition: position,
				Status:         models.OutcomeStatus(*status),
				StartingPrice:  sp,
				CreatedAt:      *createdAt,
				UpdatedAt:      *updatedAt,
			}
		}
		if !filter.matches(d) {
			continue
		}
		details = append(details, d)
	}
	return details, rows.Err()
}
