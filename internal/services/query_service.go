package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/epeers/fintel/internal/cache"
	"github.com/epeers/fintel/internal/models"
	"github.com/epeers/fintel/internal/repository"
	"github.com/shopspring/decimal"
)

// QueryService serves what is persisted. It never triggers ingestion or training.
type QueryService struct {
	assets      repository.AssetStore
	prices      repository.PriceStore
	models      repository.ModelStore
	predictions repository.PredictionStore
	training    *TrainingService
	cache       *cache.SeriesCache
	priority    []models.Source
}

// NewQueryService creates a new QueryService
func NewQueryService(
	assets repository.AssetStore,
	prices repository.PriceStore,
	modelStore repository.ModelStore,
	predictions repository.PredictionStore,
	training *TrainingService,
	seriesCache *cache.SeriesCache,
	priority []models.Source,
) *QueryService {
	return &QueryService{
		assets:      assets,
		prices:      prices,
		models:      modelStore,
		predictions: predictions,
		training:    training,
		cache:       seriesCache,
		priority:    priority,
	}
}

// ListActiveSymbols returns the symbols of every active asset
func (s *QueryService) ListActiveSymbols(ctx context.Context) ([]string, error) {
	assets, err := s.assets.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	symbols := make([]string, 0, len(assets))
	for _, a := range assets {
		symbols = append(symbols, a.Symbol)
	}
	return symbols, nil
}

func (s *QueryService) lookup(ctx context.Context, rawSymbol string) (*models.Asset, error) {
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

// GetSeries returns one merged row per stored date in [start, end]. With
// includePredictions, the newest forecast per (date, target) is attached, and
// forecast-only dates appear as rows without prices. A pending asset with no rows
// yields an empty series, not an error.
func (s *QueryService) GetSeries(ctx context.Context, rawSymbol string, start, end time.Time, includePredictions bool) (*models.SeriesResponse, error) {
	defer TrackTime("GetSeries", time.Now())

	start, end = models.DateOnly(start), models.DateOnly(end)
	if start.After(end) {
		return nil, fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange,
			models.FormatDate(start), models.FormatDate(end))
	}

	asset, err := s.lookup(ctx, rawSymbol)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(asset.ID, start, end, includePredictions); ok {
			for _, w := range cached.Warnings {
				AddWarning(ctx, w)
			}
			out := *cached
			return &out, nil
		}
	}

	var warnings []models.Warning
	warn := func(w models.Warning) {
		warnings = append(warnings, w)
		AddWarning(ctx, w)
	}

	if !asset.IsActive() {
		warn(models.Warning{
			Code:    models.WarnAssetPending,
			Message: fmt.Sprintf("%s is still collecting history; the series may be partial", asset.Symbol),
		})
	}

	rows, err := s.prices.GetPrices(ctx, asset.ID, start, end)
	if err != nil {
		return nil, err
	}
	merged := models.MergeBySource(rows, s.priority)

	points := make(map[string]*models.SeriesPoint, len(merged))
	for i := range merged {
		points[models.FormatDate(merged[i].Date)] = seriesPointFromPrice(&merged[i])
	}

	if includePredictions {
		if err := s.attachPredictions(ctx, asset, start, end, points, warn); err != nil {
			return nil, err
		}
	}

	resp := &models.SeriesResponse{
		Symbol:      asset.Symbol,
		Description: asset.Description,
		Status:      asset.Status,
		StartDate:   models.FormatDate(start),
		EndDate:     models.FormatDate(end),
		Prices:      make([]models.SeriesPoint, 0, len(points)),
		Warnings:    warnings,
	}
	for _, p := range points {
		resp.Prices = append(resp.Prices, *p)
	}
	sort.Slice(resp.Prices, func(i, j int) bool { return resp.Prices[i].Date < resp.Prices[j].Date })

	if s.cache != nil {
		s.cache.Set(asset.ID, start, end, includePredictions, resp)
	}
	out := *resp
	return &out, nil
}

func (s *QueryService) attachPredictions(
	ctx context.Context,
	asset *models.Asset,
	start, end time.Time,
	points map[string]*models.SeriesPoint,
	warn func(models.Warning),
) error {
	current, err := s.models.GetCurrentModel(ctx, asset.ID)
	if errors.Is(err, repository.ErrNoCurrentModel) {
		if asset.IsActive() {
			warn(models.Warning{
				Code:    models.WarnNoCurrentModel,
				Message: fmt.Sprintf("%s has no trained model yet; predicted values are absent", asset.Symbol),
			})
		}
		return nil
	}
	if err != nil {
		return err
	}

	predictions, err := s.predictions.GetLatestPredictions(ctx, asset.ID, start, end)
	if err != nil {
		return err
	}
	if len(predictions) == 0 {
		warn(models.Warning{
			Code:    models.WarnPredictionsAbsent,
			Message: fmt.Sprintf("no predictions for %s fall within the requested range", asset.Symbol),
		})
		return nil
	}

	stale := false
	for _, p := range predictions {
		key := models.FormatDate(p.Date)
		point, ok := points[key]
		if !ok {
			point = &models.SeriesPoint{Date: key}
			points[key] = point
		}
		if point.PredictedValues == nil {
			point.PredictedValues = make(map[models.Target]decimal.Decimal)
		}
		point.PredictedValues[p.Target] = p.Value
		if p.ModelID != current.ID && p.Date.After(current.TrainingCutoff) {
			stale = true
		}
	}
	if stale {
		warn(models.Warning{
			Code:    models.WarnPredictionsStale,
			Message: fmt.Sprintf("some predictions for %s were made by a model older than the current one", asset.Symbol),
		})
	}
	return nil
}

func seriesPointFromPrice(p *models.PricePoint) *models.SeriesPoint {
	open, high, low, closePrice := p.Open, p.High, p.Low, p.Close
	volume := p.Volume
	return &models.SeriesPoint{
		Date:          models.FormatDate(p.Date),
		Open:          &open,
		High:          &high,
		Low:           &low,
		Close:         &closePrice,
		AdjustedClose: p.AdjustedClose,
		Volume:        &volume,
		Source:        p.Source,
	}
}

// DescribeAsset returns an asset with its training state and current model
func (s *QueryService) DescribeAsset(ctx context.Context, rawSymbol string) (*models.AssetStatusResponse, error) {
	asset, err := s.lookup(ctx, rawSymbol)
	if err != nil {
		return nil, err
	}

	resp := &models.AssetStatusResponse{Asset: asset, TrainingState: models.TrainingStateNoModel}
	if s.training == nil {
		return resp, nil
	}

	state, current, err := s.training.State(ctx, asset.ID)
	if err != nil {
		return nil, err
	}
	resp.TrainingState = state
	if current != nil {
		resp.CurrentModel = &models.ModelSummary{
			ModelName:      current.Name,
			ModelType:      current.Kind,
			TrainingCutoff: models.FormatDate(current.TrainingCutoff),
			SampleCount:    current.SampleCount,
			LastTrained:    current.LastTrained,
		}
	}
	return resp, nil
}
