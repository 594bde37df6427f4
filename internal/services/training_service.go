package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/epeers/fintel/internal/lease"
	"github.com/epeers/fintel/internal/metrics"
	"github.com/epeers/fintel/internal/models"
	"github.com/epeers/fintel/internal/predictor"
	"github.com/epeers/fintel/internal/repository"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// TrainingConfig tunes the training scheduler
type TrainingConfig struct {
	MaxModelAge time.Duration
	// Window is how many of the most recent trading days a run trains on. Zero uses all history.
	Window int
}

// TrainingOutcome describes one training request
type TrainingOutcome struct {
	Model     *models.Model
	Trained   bool
	Coalesced bool
	Reason    string
}

// TrainingService decides when an asset needs a new model and produces it.
// At most one run per asset is in flight: concurrent requests in this process
// share the leader's run, and the training lease keeps other processes out.
type TrainingService struct {
	assets    repository.AssetStore
	prices    repository.PriceStore
	models    repository.ModelStore
	predictor predictor.Predictor
	locker    lease.Locker
	metrics   *metrics.Recorder
	priority  []models.Source
	cfg       TrainingConfig

	group    singleflight.Group
	mu       sync.Mutex
	inFlight map[int64]bool
	now      func() time.Time
}

// NewTrainingService creates a new TrainingService. priority orders sources when
// several providers stored the same date.
func NewTrainingService(
	assets repository.AssetStore,
	prices repository.PriceStore,
	modelStore repository.ModelStore,
	p predictor.Predictor,
	locker lease.Locker,
	recorder *metrics.Recorder,
	priority []models.Source,
	cfg TrainingConfig,
) *TrainingService {
	return &TrainingService{
		assets:    assets,
		prices:    prices,
		models:    modelStore,
		predictor: p,
		locker:    locker,
		metrics:   recorder,
		priority:  priority,
		cfg:       cfg,
		inFlight:  make(map[int64]bool),
		now:       time.Now,
	}
}

// NeedsTraining recomputes whether the asset's model is missing or stale. A model
// is stale once rows exist past its training cutoff or it is older than MaxModelAge.
func (s *TrainingService) NeedsTraining(ctx context.Context, assetID int64) (bool, string, error) {
	current, err := s.models.GetCurrentModel(ctx, assetID)
	if errors.Is(err, repository.ErrNoCurrentModel) {
		return true, "no_model", nil
	}
	if err != nil {
		return false, "", err
	}

	latest, err := s.prices.GetLatestDate(ctx, assetID)
	if err != nil {
		return false, "", err
	}
	if latest != nil && latest.After(current.TrainingCutoff) {
		return true, "new_data", nil
	}
	if s.cfg.MaxModelAge > 0 && s.now().Sub(current.LastTrained) > s.cfg.MaxModelAge {
		return true, "model_age", nil
	}
	return false, "", nil
}

// State reports the asset's position in the training state machine
func (s *TrainingService) State(ctx context.Context, assetID int64) (models.TrainingState, *models.Model, error) {
	current, err := s.models.GetCurrentModel(ctx, assetID)
	if err != nil && !errors.Is(err, repository.ErrNoCurrentModel) {
		return "", nil, err
	}

	s.mu.Lock()
	training := s.inFlight[assetID]
	s.mu.Unlock()
	if training {
		return models.TrainingStateTraining, current, nil
	}
	if current == nil {
		return models.TrainingStateNoModel, nil, nil
	}

	needs, _, err := s.NeedsTraining(ctx, assetID)
	if err != nil {
		return "", nil, err
	}
	if needs {
		return models.TrainingStateStale, current, nil
	}
	return models.TrainingStateTrained, current, nil
}

// TrainIfNeeded trains the asset when its model is missing or stale. A call that
// arrives while a run for the same asset is in flight gets that run's result
// with Coalesced set instead of starting another.
func (s *TrainingService) TrainIfNeeded(ctx context.Context, assetID int64) (*TrainingOutcome, error) {
	led := false
	v, err, _ := s.group.Do(strconv.FormatInt(assetID, 10), func() (any, error) {
		led = true
		return s.train(ctx, assetID)
	})
	if err != nil {
		if !led {
			return &TrainingOutcome{Coalesced: true}, nil
		}
		return nil, err
	}

	outcome := *v.(*TrainingOutcome)
	if !led {
		outcome.Coalesced = true
		outcome.Trained = false
	}
	return &outcome, nil
}

func (s *TrainingService) train(ctx context.Context, assetID int64) (*TrainingOutcome, error) {
	started := s.now()
	defer TrackTime("Train", started)

	release, err := s.locker.TryAcquire(ctx, lease.TrainingKey(assetID))
	if errors.Is(err, lease.ErrHeld) {
		s.metrics.RecordTraining("coalesced", s.now().Sub(started))
		return nil, ErrTrainingCoalesced
	}
	if err != nil {
		return nil, err
	}
	defer release()

	s.setInFlight(assetID, true)
	defer s.setInFlight(assetID, false)

	asset, err := s.assets.GetByID(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if !asset.IsActive() {
		return &TrainingOutcome{Reason: "asset_pending"}, nil
	}
	logger := log.WithFields(log.Fields{"symbol": asset.Symbol, "asset_id": asset.ID})

	needs, reason, err := s.NeedsTraining(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if !needs {
		current, err := s.models.GetCurrentModel(ctx, assetID)
		if err != nil {
			return nil, err
		}
		return &TrainingOutcome{Model: current, Reason: "fresh"}, nil
	}

	series, err := s.readSeries(ctx, assetID)
	if err != nil {
		return nil, err
	}

	artifact, err := s.predictor.Fit(ctx, series)
	if err != nil {
		class := "training_failure"
		switch {
		case errors.Is(err, predictor.ErrInsufficientData):
			class = "insufficient_data"
		case errors.Is(err, predictor.ErrNonConvergence):
			class = "non_convergence"
		}
		logger.WithFields(log.Fields{
			"failure_class": class,
			"rows":          len(series),
		}).WithError(err).Warn("training failed, keeping previous model")
		s.metrics.RecordTraining("failed", s.now().Sub(started))
		return nil, fmt.Errorf("training %s: %w", asset.Symbol, err)
	}

	candidate := &models.Model{
		Name:           uuid.NewString(),
		AssetID:        assetID,
		Kind:           s.predictor.Kind(),
		Data:           artifact,
		TrainingCutoff: series[len(series)-1].Date,
		SampleCount:    len(series),
		LastTrained:    s.now(),
	}
	promoted, err := s.models.PromoteModel(ctx, candidate)
	if errors.Is(err, repository.ErrAssetGone) || errors.Is(err, repository.ErrAssetNotActive) {
		logger.WithError(err).Warn("discarding trained model")
		s.metrics.RecordTraining("discarded", s.now().Sub(started))
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTraining("trained", s.now().Sub(started))
	logger.WithFields(log.Fields{
		"model":   promoted.Name,
		"reason":  reason,
		"samples": promoted.SampleCount,
		"cutoff":  models.FormatDate(promoted.TrainingCutoff),
	}).Info("promoted new model")
	return &TrainingOutcome{Model: promoted, Trained: true, Reason: reason}, nil
}

// readSeries loads the training window under the asset lease so it never sees a
// partially written ingestion batch
func (s *TrainingService) readSeries(ctx context.Context, assetID int64) ([]models.PricePoint, error) {
	release, err := s.locker.Acquire(ctx, lease.AssetKey(assetID))
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lease for asset %d: %w", assetID, err)
	}
	defer release()

	rows, err := s.prices.GetRecentPrices(ctx, assetID, s.cfg.Window)
	if err != nil {
		return nil, err
	}
	return models.MergeBySource(rows, s.priority), nil
}

func (s *TrainingService) setInFlight(assetID int64, training bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if training {
		s.inFlight[assetID] = true
		return
	}
	delete(s.inFlight, assetID)
}
