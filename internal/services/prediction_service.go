package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/epeers/fintel/internal/cache"
	"github.com/epeers/fintel/internal/metrics"
	"github.com/epeers/fintel/internal/models"
	"github.com/epeers/fintel/internal/predictor"
	"github.com/epeers/fintel/internal/repository"
	"github.com/epeers/fintel/internal/util"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// predictionPlaces is the scale stored predictions are rounded to
const predictionPlaces = 6

// PredictionService runs an asset's current model forward and appends the forecasts
type PredictionService struct {
	assets      repository.AssetStore
	models      repository.ModelStore
	predictions repository.PredictionStore
	predictor   predictor.Predictor
	cache       *cache.SeriesCache
	metrics     *metrics.Recorder
	horizon     int
}

// NewPredictionService creates a new PredictionService forecasting horizon trading days
func NewPredictionService(
	assets repository.AssetStore,
	modelStore repository.ModelStore,
	predictions repository.PredictionStore,
	p predictor.Predictor,
	seriesCache *cache.SeriesCache,
	recorder *metrics.Recorder,
	horizon int,
) *PredictionService {
	if horizon <= 0 {
		horizon = 1
	}
	return &PredictionService{
		assets:      assets,
		models:      modelStore,
		predictions: predictions,
		predictor:   p,
		cache:       seriesCache,
		metrics:     recorder,
		horizon:     horizon,
	}
}

// Generate forecasts every target for the trading days after the current model's
// cutoff and appends them. retrained marks forecasts made right after a training run.
// Model and price state are only read.
func (s *PredictionService) Generate(ctx context.Context, assetID int64, retrained bool) ([]models.Prediction, error) {
	asset, err := s.assets.GetByID(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if !asset.IsActive() {
		return nil, fmt.Errorf("predict %s: %w", asset.Symbol, repository.ErrAssetNotActive)
	}

	model, err := s.models.GetCurrentModel(ctx, assetID)
	if err != nil {
		return nil, err
	}

	steps, err := s.predictor.Predict(ctx, model.Data, s.horizon)
	if err != nil {
		if errors.Is(err, predictor.ErrCorruptArtifact) {
			log.WithFields(log.Fields{
				"symbol":        asset.Symbol,
				"model":         model.Name,
				"failure_class": "corrupt_artifact",
			}).WithError(err).Error("prediction failed, leaving a gap")
		}
		s.metrics.RecordPrediction("failed")
		return nil, fmt.Errorf("predict %s: %w", asset.Symbol, err)
	}

	dates := util.NextTradingDays(model.TrainingCutoff, len(steps))
	rows := make([]models.Prediction, 0, len(steps)*len(models.AllTargets))
	for i, step := range steps {
		for _, target := range models.AllTargets {
			v, ok := step[target]
			if !ok {
				continue
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				s.metrics.RecordPrediction("failed")
				return nil, fmt.Errorf("predict %s: non-finite %s forecast: %w", asset.Symbol, target, predictor.ErrNonConvergence)
			}
			rows = append(rows, models.Prediction{
				AssetID:   assetID,
				ModelID:   model.ID,
				Date:      dates[i],
				Target:    target,
				Value:     decimal.NewFromFloat(v).Round(predictionPlaces),
				Retrained: retrained,
			})
		}
	}

	if err := s.predictions.AppendPredictions(ctx, rows); err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.InvalidateAsset(assetID)
	}
	s.metrics.RecordPrediction("generated")

	log.WithFields(log.Fields{
		"symbol":    asset.Symbol,
		"model":     model.Name,
		"rows":      len(rows),
		"retrained": retrained,
	}).Info("generated predictions")
	return rows, nil
}
