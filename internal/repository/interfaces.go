package repository

import (
	"context"
	"time"

	"github.com/epeers/fintel/internal/models"
)

// AssetStore persists asset identity and lifecycle status.
type AssetStore interface {
	// RegisterIfAbsent returns the existing asset for symbol or creates it as pending.
	// created reports whether this call inserted the row.
	RegisterIfAbsent(ctx context.Context, symbol string) (asset *models.Asset, created bool, err error)

	// GetBySymbol returns ErrAssetNotFound when the symbol was never registered.
	GetBySymbol(ctx context.Context, symbol string) (*models.Asset, error)

	// GetByID returns ErrAssetNotFound when the asset does not exist.
	GetByID(ctx context.Context, id int64) (*models.Asset, error)

	ListActive(ctx context.Context) ([]*models.Asset, error)
	ListAll(ctx context.Context) ([]*models.Asset, error)

	// ListPendingDue returns pending assets whose next attempt is unset or not after now.
	ListPendingDue(ctx context.Context, now time.Time) ([]*models.Asset, error)

	SetStatus(ctx context.Context, id int64, status models.AssetStatus) error

	// SetMetadata fills description, category and currency where they are still unset.
	SetMetadata(ctx context.Context, id int64, meta models.AssetMetadata) error

	// RecordIngestionFailure increments the failure streak and returns the new value.
	RecordIngestionFailure(ctx context.Context, id int64, nextAttempt time.Time) (int, error)

	// RecordIngestionSuccess resets the failure streak and sets the next attempt (nil clears it).
	RecordIngestionSuccess(ctx context.Context, id int64, nextAttempt *time.Time) error

	// Delete removes the asset and, by cascade, its prices, models and predictions.
	Delete(ctx context.Context, id int64) error
}

// PriceStore persists source-tagged daily price points.
type PriceStore interface {
	// UpsertPrices inserts or overwrites rows keyed by (asset, date, source).
	UpsertPrices(ctx context.Context, prices []models.PricePoint) error

	// GetPrices returns every source's rows within [start, end], ordered by date then source.
	GetPrices(ctx context.Context, assetID int64, start, end time.Time) ([]models.PricePoint, error)

	// GetRecentPrices returns every source's rows for the latest `days` distinct dates.
	// days <= 0 returns the full history.
	GetRecentPrices(ctx context.Context, assetID int64, days int) ([]models.PricePoint, error)

	CountDistinctDates(ctx context.Context, assetID int64) (int, error)

	// GetLatestDate returns nil when the asset has no rows.
	GetLatestDate(ctx context.Context, assetID int64) (*time.Time, error)
}

// ModelStore persists trained model artifacts and the current-model pointer.
type ModelStore interface {
	// PromoteModel writes a new model row and flips the asset's current pointer to it
	// in one transaction. Returns ErrAssetGone if the asset was deleted.
	PromoteModel(ctx context.Context, m *models.Model) (*models.Model, error)

	// GetCurrentModel returns ErrNoCurrentModel when the asset was never trained.
	GetCurrentModel(ctx context.Context, assetID int64) (*models.Model, error)

	// ListModels returns every stored version for the asset, newest first.
	ListModels(ctx context.Context, assetID int64) ([]*models.Model, error)
}

// PredictionStore persists append-only forecasts.
type PredictionStore interface {
	AppendPredictions(ctx context.Context, predictions []models.Prediction) error

	// GetLatestPredictions returns the most recent row per (date, target) within [start, end].
	GetLatestPredictions(ctx context.Context, assetID int64, start, end time.Time) ([]models.Prediction, error)

	// ListPredictionHistory returns every row for (asset, date, target), oldest first.
	ListPredictionHistory(ctx context.Context, assetID int64, date time.Time, target models.Target) ([]models.Prediction, error)
}
