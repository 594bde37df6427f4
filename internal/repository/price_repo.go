package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/epeers/fintel/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const priceColumns = `asset_id, date, source, open_price, high_price, low_price, close_price, adjusted_close, volume`

// PriceRepository handles database operations for daily price points
type PriceRepository struct {
	pool *pgxpool.Pool
}

var _ PriceStore = (*PriceRepository)(nil)

// NewPriceRepository creates a new PriceRepository
func NewPriceRepository(pool *pgxpool.Pool) *PriceRepository {
	return &PriceRepository{pool: pool}
}

func collectPrices(rows pgx.Rows) ([]models.PricePoint, error) {
	defer rows.Close()
	var prices []models.PricePoint
	for rows.Next() {
		var p models.PricePoint
		var source string
		var adj decimal.NullDecimal
		if err := rows.Scan(&p.AssetID, &p.Date, &source, &p.Open, &p.High, &p.Low, &p.Close, &adj, &p.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan price point: %w", err)
		}
		p.Source = models.Source(source)
		if adj.Valid {
			v := adj.Decimal
			p.AdjustedClose = &v
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

// UpsertPrices stores price points in one transaction. A row that already exists for
// (asset, date, source) is overwritten, so re-ingesting the same window is idempotent.
func (r *PriceRepository) UpsertPrices(ctx context.Context, prices []models.PricePoint) error {
	if len(prices) == 0 {
		return nil
	}

	query := `
		INSERT INTO price_points (` + priceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (asset_id, date, source) DO UPDATE
		SET open_price = EXCLUDED.open_price, high_price = EXCLUDED.high_price,
		    low_price = EXCLUDED.low_price, close_price = EXCLUDED.close_price,
		    adjusted_close = EXCLUDED.adjusted_close, volume = EXCLUDED.volume,
		    ingested_at = now()
	`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin price upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, p := range prices {
		batch.Queue(query, p.AssetID, models.DateOnly(p.Date), string(p.Source),
			p.Open, p.High, p.Low, p.Close, p.AdjustedClose, p.Volume)
	}

	br := tx.SendBatch(ctx, batch)
	for range prices {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to upsert price: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to upsert prices: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit prices: %w", err)
	}
	return nil
}

// GetPrices retrieves all sources' prices for an asset within a date range
func (r *PriceRepository) GetPrices(ctx context.Context, assetID int64, start, end time.Time) ([]models.PricePoint, error) {
	query := `
		SELECT ` + priceColumns + `
		FROM price_points
		WHERE asset_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC, source ASC
	`
	rows, err := r.pool.Query(ctx, query, assetID, models.DateOnly(start), models.DateOnly(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	return collectPrices(rows)
}

// GetRecentPrices retrieves all sources' prices for the latest `days` distinct dates
func (r *PriceRepository) GetRecentPrices(ctx context.Context, assetID int64, days int) ([]models.PricePoint, error) {
	if days <= 0 {
		rows, err := r.pool.Query(ctx, `
			SELECT `+priceColumns+`
			FROM price_points
			WHERE asset_id = $1
			ORDER BY date ASC, source ASC
		`, assetID)
		if err != nil {
			return nil, fmt.Errorf("failed to query price history: %w", err)
		}
		return collectPrices(rows)
	}

	query := `
		SELECT ` + priceColumns + `
		FROM price_points
		WHERE asset_id = $1 AND date >= (
			SELECT COALESCE(MIN(d.date), '-infinity'::date) FROM (
				SELECT DISTINCT date FROM price_points
				WHERE asset_id = $1
				ORDER BY date DESC
				LIMIT $2
			) d
		)
		ORDER BY date ASC, source ASC
	`
	rows, err := r.pool.Query(ctx, query, assetID, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent prices: %w", err)
	}
	return collectPrices(rows)
}

// CountDistinctDates returns the number of trading days stored for an asset across all sources
func (r *PriceRepository) CountDistinctDates(ctx context.Context, assetID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT date) FROM price_points WHERE asset_id = $1`, assetID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count price dates: %w", err)
	}
	return n, nil
}

// GetLatestDate returns the most recent stored date for an asset, or nil if none
func (r *PriceRepository) GetLatestDate(ctx context.Context, assetID int64) (*time.Time, error) {
	var latest *time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT MAX(date) FROM price_points WHERE asset_id = $1`, assetID).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest price date: %w", err)
	}
	return latest, nil
}
