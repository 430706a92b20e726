package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/yourusername/tipwatch/internal/database"
	"github.com/yourusername/tipwatch/internal/models"
)

const tipOutcomeColumns = `tip_id, provider, race_result_id, finish_position, outcome_status, starting_price::text, created_at, updated_at`

// PostgresTipOutcomeRepository implements TipOutcomeRepository for PostgreSQL
type PostgresTipOutcomeRepository struct {
	db *database.DB
}

// NewPostgresTipOutcomeRepository creates a new tip outcome repository
func NewPostgresTipOutcomeRepository(db *database.DB) TipOutcomeRepository {
	return &PostgresTipOutcomeRepository{db: db}
}

func scanTipOutcome(row pgx.Row) (*models.TipOutcome, error) {
	o := &models.TipOutcome{}
	var price *string
	err := row.Scan(&o.TipID, &o.Provider, &o.RaceResultID, &o.FinishPosition, &o.Status, &price, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if o.StartingPrice, err = parseDecimal(price); err != nil {
		return nil, err
	}
	return o, nil
}

// Get retrieves the outcome of a tip
func (r *PostgresTipOutcomeRepository) Get(ctx context.Context, tipID uuid.UUID) (*models.TipOutcome, error) {
	query := `SELECT ` + tipOutcomeColumns + ` FROM tip_outcomes WHERE tip_id = $1`

	o, err := scanTipOutcome(r.db.GetPool().QueryRow(ctx, query, tipID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tip outcome: %w", err)
	}
	return o, nil
}

// ListByTips retrieves the outcomes of the given tips
func (r *PostgresTipOutcomeRepository) ListByTips(ctx context.Context, tipIDs []uuid.UUID) ([]*models.TipOutcome, error) {
	if len(tipIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + tipOutcomeColumns + ` FROM tip_outcomes WHERE tip_id = ANY($1)`

	rows, err := r.db.GetPool().Query(ctx, query, tipIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query tip outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []*models.TipOutcome
	for rows.Next() {
		o, err := scanTipOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tip outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// Upsert writes a tip outcome unless a higher-precedence provider already owns it
func (r *PostgresTipOutcomeRepository) Upsert(ctx context.Context, outcome *models.TipOutcome) (bool, error) {
	query := `
		INSERT INTO tip_outcomes (tip_id, provider, race_result_id, finish_position, outcome_status, starting_price)
		VALUES ($1, $2, $3, $4, $5, $6::numeric)
		ON CONFLICT (tip_id) DO UPDATE SET
			provider = EXCLUDED.provider,
			race_result_id = EXCLUDED.race_result_id,
			finish_position = EXCLUDED.finish_position,
			outcome_status = EXCLUDED.outcome_status,
			starting_price = COALESCE(EXCLUDED.starting_price, tip_outcomes.starting_price),
			updated_at = NOW()
		WHERE ` + providerRankExpr("EXCLUDED.provider") + ` >= ` + providerRankExpr("tip_outcomes.provider")

	tag, err := r.db.GetPool().Exec(ctx, query,
		outcome.TipID, string(models.NormalizeProvider(string(outcome.Provider))), outcome.RaceResultID,
		outcome.FinishPosition, string(outcome.Status), decimalArg(outcome.StartingPrice),
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert tip outcome: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// BackfillStartingPrice sets a missing starting price on a tip outcome
func (r *PostgresTipOutcomeRepository) BackfillStartingPrice(ctx context.Context, tipID uuid.UUID, price decimal.Decimal) (bool, error) {
	query := `
		UPDATE tip_outcomes
		SET starting_price = $2::numeric, updated_at = NOW()
		WHERE tip_id = $1 AND starting_price IS NULL
	`

	tag, err := r.db.GetPool().Exec(ctx, query, tipID, price.String())
	if err != nil {
		return false, fmt.Errorf("failed to backfill tip outcome price: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
