package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/epeers/fintel/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const assetColumns = `id, symbol, description, category, currency, status, failure_streak, next_attempt, created_at, updated_at`

// AssetRepository handles database operations for assets
type AssetRepository struct {
	pool *pgxpool.Pool
}

var _ AssetStore = (*AssetRepository)(nil)

// NewAssetRepository creates a new AssetRepository
func NewAssetRepository(pool *pgxpool.Pool) *AssetRepository {
	return &AssetRepository{pool: pool}
}

func scanAsset(row pgx.Row) (*models.Asset, error) {
	a := &models.Asset{}
	var category, status string
	if err := row.Scan(&a.ID, &a.Symbol, &a.Description, &category, &a.Currency, &status,
		&a.FailureStreak, &a.NextAttempt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Category = models.AssetCategory(category)
	a.Status = models.AssetStatus(status)
	return a, nil
}

func collectAssets(rows pgx.Rows) ([]*models.Asset, error) {
	defer rows.Close()
	var result []*models.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// RegisterIfAbsent inserts a pending asset, or returns the existing row when the
// symbol is already registered. The unique constraint on symbol arbitrates races.
func (r *AssetRepository) RegisterIfAbsent(ctx context.Context, symbol string) (*models.Asset, bool, error) {
	query := `
		INSERT INTO assets (symbol, status)
		VALUES ($1, 'pending')
		ON CONFLICT (symbol) DO NOTHING
		RETURNING ` + assetColumns

	a, err := scanAsset(r.pool.QueryRow(ctx, query, symbol))
	if err == nil {
		return a, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to register asset %s: %w", symbol, err)
	}

	existing, err := r.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetBySymbol retrieves an asset by its normalized symbol
func (r *AssetRepository) GetBySymbol(ctx context.Context, symbol string) (*models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE symbol = $1`
	a, err := scanAsset(r.pool.QueryRow(ctx, query, symbol))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset %s: %w", symbol, err)
	}
	return a, nil
}

// GetByID retrieves an asset by ID
func (r *AssetRepository) GetByID(ctx context.Context, id int64) (*models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = $1`
	a, err := scanAsset(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset %d: %w", id, err)
	}
	return a, nil
}

// ListActive retrieves every active asset ordered by symbol
func (r *AssetRepository) ListActive(ctx context.Context) ([]*models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE status = 'active' ORDER BY symbol`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active assets: %w", err)
	}
	return collectAssets(rows)
}

// ListAll retrieves every asset ordered by symbol
func (r *AssetRepository) ListAll(ctx context.Context) ([]*models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets ORDER BY symbol`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	return collectAssets(rows)
}

// ListPendingDue retrieves pending assets whose retry time has arrived
func (r *AssetRepository) ListPendingDue(ctx context.Context, now time.Time) ([]*models.Asset, error) {
	query := `
		SELECT ` + assetColumns + `
		FROM assets
		WHERE status = 'pending' AND (next_attempt IS NULL OR next_attempt <= $1)
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending assets: %w", err)
	}
	return collectAssets(rows)
}

// SetStatus updates the lifecycle status of an asset
func (r *AssetRepository) SetStatus(ctx context.Context, id int64, status models.AssetStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE assets SET status = $2, updated_at = now() WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("failed to set status for asset %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAssetNotFound
	}
	return nil
}

// SetMetadata fills descriptive fields that are still unset. Values already
// stored are never overwritten.
func (r *AssetRepository) SetMetadata(ctx context.Context, id int64, meta models.AssetMetadata) error {
	query := `
		UPDATE assets SET
			description = COALESCE(description, NULLIF($2, '')),
			category    = CASE WHEN category = 'unset' THEN $3 ELSE category END,
			currency    = COALESCE(currency, NULLIF($4, '')),
			updated_at  = now()
		WHERE id = $1
	`
	category := meta.Category
	if category == "" {
		category = models.AssetCategoryUnset
	}
	tag, err := r.pool.Exec(ctx, query, id, meta.Description, string(category), meta.Currency)
	if err != nil {
		return fmt.Errorf("failed to set metadata for asset %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAssetNotFound
	}
	return nil
}

// RecordIngestionFailure bumps the failure streak and schedules the next attempt
func (r *AssetRepository) RecordIngestionFailure(ctx context.Context, id int64, nextAttempt time.Time) (int, error) {
	query := `
		UPDATE assets
		SET failure_streak = failure_streak + 1, next_attempt = $2, updated_at = now()
		WHERE id = $1
		RETURNING failure_streak
	`
	var streak int
	err := r.pool.QueryRow(ctx, query, id, nextAttempt).Scan(&streak)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrAssetNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to record failure for asset %d: %w", id, err)
	}
	return streak, nil
}

// RecordIngestionSuccess clears the failure streak
func (r *AssetRepository) RecordIngestionSuccess(ctx context.Context, id int64, nextAttempt *time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE assets
		SET failure_streak = 0, next_attempt = $2, updated_at = now()
		WHERE id = $1
	`, id, nextAttempt)
	if err != nil {
		return fmt.Errorf("failed to record success for asset %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAssetNotFound
	}
	return nil
}

// Delete removes an asset. Prices, models and predictions go with it via ON DELETE CASCADE.
func (r *AssetRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM assets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete asset %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAssetNotFound
	}
	return nil
}
