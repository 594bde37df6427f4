package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/epeers/fintel/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PredictionRepository handles database operations for predictions
type PredictionRepository struct {
	pool *pgxpool.Pool
}

var _ PredictionStore = (*PredictionRepository)(nil)

// NewPredictionRepository creates a new PredictionRepository
func NewPredictionRepository(pool *pgxpool.Pool) *PredictionRepository {
	return &PredictionRepository{pool: pool}
}

func collectPredictions(rows pgx.Rows) ([]models.Prediction, error) {
	defer rows.Close()
	var result []models.Prediction
	for rows.Next() {
		var p models.Prediction
		var target string
		if err := rows.Scan(&p.ID, &p.AssetID, &p.ModelID, &p.Date, &target, &p.Value, &p.CreatedAt, &p.Retrained); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		p.Target = models.Target(target)
		result = append(result, p)
	}
	return result, rows.Err()
}

// AppendPredictions inserts new prediction rows. Existing rows are never touched.
func (r *PredictionRepository) AppendPredictions(ctx context.Context, predictions []models.Prediction) error {
	if len(predictions) == 0 {
		return nil
	}

	query := `
		INSERT INTO predictions (asset_id, model_id, date, prediction_type, prediction, retrained)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	batch := &pgx.Batch{}
	for _, p := range predictions {
		batch.Queue(query, p.AssetID, p.ModelID, models.DateOnly(p.Date), string(p.Target), p.Value, p.Retrained)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range predictions {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to append prediction: %w", err)
		}
	}
	return nil
}

// GetLatestPredictions retrieves the newest prediction per (date, target) within a date range
func (r *PredictionRepository) GetLatestPredictions(ctx context.Context, assetID int64, start, end time.Time) ([]models.Prediction, error) {
	query := `
		SELECT DISTINCT ON (date, prediction_type)
			id, asset_id, model_id, date, prediction_type, prediction, created_at, retrained
		FROM predictions
		WHERE asset_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC, prediction_type ASC, created_at DESC, id DESC
	`
	rows, err := r.pool.Query(ctx, query, assetID, models.DateOnly(start), models.DateOnly(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	return collectPredictions(rows)
}

// ListPredictionHistory retrieves every forecast made for one (date, target), oldest first
func (r *PredictionRepository) ListPredictionHistory(ctx context.Context, assetID int64, date time.Time, target models.Target) ([]models.Prediction, error) {
	query := `
		SELECT id, asset_id, model_id, date, prediction_type, prediction, created_at, retrained
		FROM predictions
		WHERE asset_id = $1 AND date = $2 AND prediction_type = $3
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.pool.Query(ctx, query, assetID, models.DateOnly(date), string(target))
	if err != nil {
		return nil, fmt.Errorf("failed to query prediction history: %w", err)
	}
	return collectPredictions(rows)
}
