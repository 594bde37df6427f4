package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/epeers/fintel/internal/cache"
	"github.com/epeers/fintel/internal/models"
	"github.com/epeers/fintel/internal/repository"
	log "github.com/sirupsen/logrus"
)

// Scheduler accepts assets for background ingestion
type Scheduler interface {
	Enqueue(assetID int64) bool
}

// AssetService handles asset registration and removal
type AssetService struct {
	assets    repository.AssetStore
	cache     *cache.SeriesCache
	scheduler Scheduler
}

// NewAssetService creates a new AssetService
func NewAssetService(assets repository.AssetStore, seriesCache *cache.SeriesCache) *AssetService {
	return &AssetService{assets: assets, cache: seriesCache}
}

// SetScheduler attaches the background pipeline. Until set, registered assets are only stored.
func (s *AssetService) SetScheduler(scheduler Scheduler) {
	s.scheduler = scheduler
}

// ParseSymbolList decodes a requestAssets payload. The payload must be a non-empty
// JSON array whose every element is a valid symbol string; anything else rejects
// the whole list. Symbols are normalized and deduplicated in order.
func ParseSymbolList(payload []byte) ([]string, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(payload, &elements); err != nil {
		return nil, fmt.Errorf("%w: payload must be a JSON array of symbol strings", models.ErrValidation)
	}
	if len(elements) == 0 {
		return nil, fmt.Errorf("%w: symbol list is empty", models.ErrValidation)
	}

	raw := make([]string, 0, len(elements))
	for i, el := range elements {
		var s string
		if err := json.Unmarshal(el, &s); err != nil {
			return nil, fmt.Errorf("%w: element %d is not a string", models.ErrInvalidAssetSymbol, i)
		}
		raw = append(raw, s)
	}
	return NormalizeSymbols(raw)
}

// NormalizeSymbols validates every symbol before any is used
func NormalizeSymbols(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: symbol list is empty", models.ErrValidation)
	}
	seen := make(map[string]bool, len(raw))
	symbols := make([]string, 0, len(raw))
	for i, r := range raw {
		symbol, err := models.NormalizeSymbol(r)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		if seen[symbol] {
			continue
		}
		seen[symbol] = true
		symbols = append(symbols, symbol)
	}
	return symbols, nil
}

// RequestAssets registers each symbol (creating pending assets for unseen ones)
// and enqueues all of them for ingestion. Validation happens before any write.
func (s *AssetService) RequestAssets(ctx context.Context, raw []string) ([]*models.Asset, error) {
	symbols, err := NormalizeSymbols(raw)
	if err != nil {
		return nil, err
	}

	result := make([]*models.Asset, 0, len(symbols))
	for _, symbol := range symbols {
		asset, created, err := s.assets.RegisterIfAbsent(ctx, symbol)
		if err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", symbol, err)
		}
		if created {
			log.WithFields(log.Fields{"symbol": symbol, "asset_id": asset.ID}).Info("registered new asset")
		}
		if s.scheduler != nil && !s.scheduler.Enqueue(asset.ID) {
			log.WithField("symbol", symbol).Debug("asset not enqueued, the next cycle will pick it up")
		}
		result = append(result, asset)
	}
	return result, nil
}

// GetAsset returns the asset for a client supplied symbol
func (s *AssetService) GetAsset(ctx context.Context, rawSymbol string) (*models.Asset, error) {
	symbol, err := models.NormalizeSymbol(rawSymbol)
	if err != nil {
		return nil, err
	}
	asset, err := s.assets.GetBySymbol(ctx, symbol)
	if errors.Is(err, repository.ErrAssetNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, symbol)
	}
	return asset, err
}

// DeleteAsset removes an asset with its prices, models and predictions.
// A training run still in flight for it is discarded at promotion.
func (s *AssetService) DeleteAsset(ctx context.Context, rawSymbol string) error {
	asset, err := s.GetAsset(ctx, rawSymbol)
	if err != nil {
		return err
	}
	if err := s.assets.Delete(ctx, asset.ID); err != nil {
		if errors.Is(err, repository.ErrAssetNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownAsset, asset.Symbol)
		}
		return err
	}
	if s.cache != nil {
		s.cache.InvalidateAsset(asset.ID)
	}
	log.WithFields(log.Fields{"symbol": asset.Symbol, "asset_id": asset.ID}).Info("deleted asset")
	return nil
}
