package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/epeers/fintel/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const modelColumns = `m.id, m.model_name, m.asset_id, m.model_type, m.model_data, m.training_cutoff, m.sample_count, m.created_at, m.last_trained`

// ModelRepository handles database operations for trained models
type ModelRepository struct {
	pool *pgxpool.Pool
}

var _ ModelStore = (*ModelRepository)(nil)

// NewModelRepository creates a new ModelRepository
func NewModelRepository(pool *pgxpool.Pool) *ModelRepository {
	return &ModelRepository{pool: pool}
}

func scanModel(row pgx.Row) (*models.Model, error) {
	m := &models.Model{}
	err := row.Scan(&m.ID, &m.Name, &m.AssetID, &m.Kind, &m.Data, &m.TrainingCutoff,
		&m.SampleCount, &m.CreatedAt, &m.LastTrained)
	return m, err
}

// PromoteModel stores a new model version and makes it the asset's current model.
// The asset row is locked for the duration so a concurrent delete either waits for
// the promotion and then cascades over it, or wins and the promotion fails with ErrAssetGone.
func (r *ModelRepository) PromoteModel(ctx context.Context, m *models.Model) (*models.Model, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin model promotion: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM assets WHERE id = $1 FOR UPDATE`, m.AssetID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAssetGone
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock asset %d: %w", m.AssetID, err)
	}
	if models.AssetStatus(status) != models.AssetStatusActive {
		return nil, ErrAssetNotActive
	}

	stored := *m
	err = tx.QueryRow(ctx, `
		INSERT INTO ai_models (model_name, asset_id, model_type, model_data, training_cutoff, sample_count, last_trained)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, m.Name, m.AssetID, m.Kind, m.Data, models.DateOnly(m.TrainingCutoff), m.SampleCount, m.LastTrained,
	).Scan(&stored.ID, &stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert model %s: %w", m.Name, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO current_models (asset_id, model_id, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (asset_id) DO UPDATE
		SET model_id = EXCLUDED.model_id, updated_at = EXCLUDED.updated_at
	`, m.AssetID, stored.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update current model: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit model promotion: %w", err)
	}
	return &stored, nil
}

// GetCurrentModel retrieves the model the asset's current pointer references
func (r *ModelRepository) GetCurrentModel(ctx context.Context, assetID int64) (*models.Model, error) {
	query := `
		SELECT ` + modelColumns + `
		FROM current_models c
		JOIN ai_models m ON m.id = c.model_id
		WHERE c.asset_id = $1
	`
	m, err := scanModel(r.pool.QueryRow(ctx, query, assetID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoCurrentModel
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current model for asset %d: %w", assetID, err)
	}
	return m, nil
}

// ListModels retrieves every stored model version for an asset, newest first
func (r *ModelRepository) ListModels(ctx context.Context, assetID int64) ([]*models.Model, error) {
	query := `
		SELECT ` + modelColumns + `
		FROM ai_models m
		WHERE m.asset_id = $1
		ORDER BY m.last_trained DESC, m.id DESC
	`
	rows, err := r.pool.Query(ctx, query, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query models: %w", err)
	}
	defer rows.Close()

	var result []*models.Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}
