package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/yourusername/tipwatch/internal/database"
	"github.com/yourusername/tipwatch/internal/models"
)

const raceResultColumns = `id, provider, race_id, tab_number, horse_name, finish_position, status, margin_text, starting_price::text, created_at, updated_at`

// PostgresRaceResultRepository implements RaceResultRepository for PostgreSQL
type PostgresRaceResultRepository struct {
	db *database.DB
}

// NewPostgresRaceResultRepository creates a new race result repository
func NewPostgresRaceResultRepository(db *database.DB) RaceResultRepository {
	return &PostgresRaceResultRepository{db: db}
}

func scanRaceResult(row pgx.Row) (*models.RaceResult, error) {
	rr := &models.RaceResult{}
	var price *string
	err := row.Scan(&rr.ID, &rr.Provider, &rr.RaceID, &rr.TabNumber, &rr.HorseName, &rr.FinishPosition,
		&rr.Status, &rr.MarginText, &price, &rr.CreatedAt, &rr.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if rr.StartingPrice, err = parseDecimal(price); err != nil {
		return nil, err
	}
	return rr, nil
}

// Upsert inserts or updates a provider result by (provider, race, tab number)
func (r *PostgresRaceResultRepository) Upsert(ctx context.Context, result *models.RaceResult) (*models.RaceResult, error) {
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}

	query := `
		INSERT INTO race_results (id, provider, race_id, tab_number, horse_name, finish_position, status, margin_text, starting_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric)
		ON CONFLICT (provider, race_id, tab_number) DO UPDATE SET
			horse_name = EXCLUDED.horse_name,
			finish_position = EXCLUDED.finish_position,
			status = EXCLUDED.status,
			margin_text = EXCLUDED.margin_text,
			starting_price = COALESCE(EXCLUDED.starting_price, race_results.starting_price),
			updated_at = NOW()
		RETURNING ` + raceResultColumns

	stored, err := scanRaceResult(r.db.GetPool().QueryRow(ctx, query,
		result.ID, string(models.NormalizeProvider(string(result.Provider))), result.RaceID, result.TabNumber,
		result.HorseName, result.FinishPosition, result.Status, result.MarginText, decimalArg(result.StartingPrice),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert race result: %w", err)
	}
	return stored, nil
}

// ListByRaces retrieves every provider's results for the given races
func (r *PostgresRaceResultRepository) ListByRaces(ctx context.Context, raceIDs []uuid.UUID) ([]*models.RaceResult, error) {
	if len(raceIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + raceResultColumns + ` FROM race_results WHERE race_id = ANY($1) ORDER BY race_id, tab_number, provider`

	rows, err := r.db.GetPool().Query(ctx, query, raceIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query race results: %w", err)
	}
	defer rows.Close()

	var results []*models.RaceResult
	for rows.Next() {
		rr, err := scanRaceResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan race result: %w", err)
		}
		results = append(results, rr)
	}
	return results, rows.Err()
}

// BackfillStartingPrice sets a missing starting price
func (r *PostgresRaceResultRepository) BackfillStartingPrice(ctx context.Context, id uuid.UUID, price decimal.Decimal) (bool, error) {
	query := `
		UPDATE race_results
		SET starting_price = $2::numeric, updated_at = NOW()
		WHERE id = $1 AND starting_price IS NULL
	`

	tag, err := r.db.GetPool().Exec(ctx, query, id, price.String())
	if err != nil {
		return false, fmt.Errorf("failed to backfill race result price: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
