package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"github.com/epeers/fintel/internal/cache"
	"github.com/epeers/fintel/internal/lease"
	"github.com/epeers/fintel/internal/metrics"
	"github.com/epeers/fintel/internal/models"
	"github.com/epeers/fintel/internal/providers"
	"github.com/epeers/fintel/internal/repository"
	"github.com/epeers/fintel/internal/util"
	log "github.com/sirupsen/logrus"
)

const (
	// fetchOverlapDays re-fetches the tail of stored history so provider revisions land
	fetchOverlapDays = 5

	maxDescriptionLength = 100
)

// IngestionConfig tunes the ingestion worker
type IngestionConfig struct {
	MinHistoryDays        int
	HistoryYears          int
	MaxAttempts           int
	BackoffInitial        time.Duration
	BackoffMax            time.Duration
	PendingRetryDelay     time.Duration
	FailureAlertThreshold int
}

// IngestionOutcome labels the result of one ingestion cycle
type IngestionOutcome string

const (
	IngestionActivated IngestionOutcome = "activated"
	IngestionUpdated   IngestionOutcome = "updated"
	IngestionPending   IngestionOutcome = "pending"
	IngestionNoData    IngestionOutcome = "no_data"
	IngestionFailed    IngestionOutcome = "failed"
)

// IngestionResult describes one ingestion cycle for an asset
type IngestionResult struct {
	Asset     *models.Asset
	Outcome   IngestionOutcome
	Source    models.Source
	Rows      int
	TotalDays int
}

// IngestionService pulls history from the providers, stores it and advances asset status
type IngestionService struct {
	assets  repository.AssetStore
	prices  repository.PriceStore
	adapter *providers.Adapter
	locker  lease.Locker
	cache   *cache.SeriesCache
	metrics *metrics.Recorder
	cfg     IngestionConfig
	now     func() time.Time
}

// NewIngestionService creates a new IngestionService
func NewIngestionService(
	assets repository.AssetStore,
	prices repository.PriceStore,
	adapter *providers.Adapter,
	locker lease.Locker,
	seriesCache *cache.SeriesCache,
	recorder *metrics.Recorder,
	cfg IngestionConfig,
) *IngestionService {
	return &IngestionService{
		assets:  assets,
		prices:  prices,
		adapter: adapter,
		locker:  locker,
		cache:   seriesCache,
		metrics: recorder,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Ingest runs one ingestion cycle for an asset. Providers are tried in priority
// order; retryable failures back off and retry up to MaxAttempts before falling
// through, other failures fall through at once. The first provider that returns
// data wins the cycle.
func (s *IngestionService) Ingest(ctx context.Context, assetID int64) (*IngestionResult, error) {
	started := s.now()
	defer TrackTime("Ingest", started)

	asset, err := s.assets.GetByID(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load asset %d: %w", assetID, err)
	}
	logger := log.WithFields(log.Fields{"symbol": asset.Symbol, "asset_id": asset.ID})

	latest, err := s.prices.GetLatestDate(ctx, asset.ID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	start := util.FetchWindowStart(latest, now, s.cfg.HistoryYears, fetchOverlapDays)
	end := models.DateOnly(now)

	var (
		raw      []providers.RawPricePoint
		source   models.Source
		failures []error
		allEmpty = true
	)
	for _, p := range s.adapter.Providers() {
		bars, err := s.fetchWithRetry(ctx, asset.Symbol, p.Source(), start, end)
		if err == nil {
			raw, source = bars, p.Source()
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		kind := providers.KindOf(err)
		logger.WithFields(log.Fields{
			"source":        p.Source(),
			"failure_class": kind,
		}).WithError(err).Warn("provider failed, falling through")
		failures = append(failures, err)
		if kind != providers.KindNoData {
			allEmpty = false
		}
	}

	if raw == nil {
		if allEmpty && len(failures) > 0 {
			return s.finishWithoutData(ctx, asset, started)
		}
		return s.recordTotalFailure(ctx, asset, started, failures)
	}

	points := providers.ToPricePoints(asset.ID, source, raw)
	if err := s.store(ctx, asset.ID, points); err != nil {
		return nil, err
	}

	total, err := s.prices.CountDistinctDates(ctx, asset.ID)
	if err != nil {
		return nil, err
	}

	result := &IngestionResult{Asset: asset, Source: source, Rows: len(points), TotalDays: total}
	switch {
	case asset.IsActive():
		result.Outcome = IngestionUpdated
		err = s.assets.RecordIngestionSuccess(ctx, asset.ID, nil)
	case total >= s.cfg.MinHistoryDays:
		result.Outcome = IngestionActivated
		err = s.activate(ctx, asset, source)
	default:
		result.Outcome = IngestionPending
		next := util.NextMarketDate(now)
		err = s.assets.RecordIngestionSuccess(ctx, asset.ID, &next)
		logger.WithFields(log.Fields{
			"days":     total,
			"required": s.cfg.MinHistoryDays,
		}).Info("below minimum history, asset stays pending")
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.InvalidateAsset(asset.ID)
	}
	s.metrics.SetFailureStreak(asset.Symbol, 0)
	s.metrics.RecordIngestion(string(result.Outcome), s.now().Sub(started))

	logger.WithFields(log.Fields{
		"source":  source,
		"rows":    result.Rows,
		"outcome": result.Outcome,
	}).Info("ingested price history")

	if result.Asset, err = s.assets.GetByID(ctx, asset.ID); err != nil {
		return nil, err
	}
	return result, nil
}

// fetchWithRetry fetches from one provider, retrying rate-limited and transient
// failures with exponential backoff
func (s *IngestionService) fetchWithRetry(ctx context.Context, symbol string, source models.Source, start, end time.Time) ([]providers.RawPricePoint, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.BackoffInitial
	b.MaxInterval = s.cfg.BackoffMax
	b.MaxElapsedTime = 0

	retries := s.cfg.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)

	var bars []providers.RawPricePoint
	err := backoff.Retry(func() error {
		var err error
		bars, err = s.adapter.FetchHistory(ctx, symbol, start, end, source)
		if err == nil {
			s.metrics.RecordProviderAttempt(string(source), "success")
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}

		kind := providers.KindOf(err)
		s.metrics.RecordProviderAttempt(string(source), string(kind))

		var pe *providers.Error
		if errors.As(err, &pe) && pe.Retryable() {
			log.WithFields(log.Fields{
				"symbol":        symbol,
				"source":        source,
				"failure_class": kind,
			}).Debug("retryable provider failure")
			return err
		}
		return backoff.Permanent(err)
	}, policy)
	if err != nil {
		return nil, err
	}
	return bars, nil
}

// store upserts a batch while holding the asset's lease so training never reads a half-written batch
func (s *IngestionService) store(ctx context.Context, assetID int64, points []models.PricePoint) error {
	release, err := s.locker.Acquire(ctx, lease.AssetKey(assetID))
	if err != nil {
		return fmt.Errorf("failed to acquire lease for asset %d: %w", assetID, err)
	}
	defer release()

	if err := s.prices.UpsertPrices(ctx, points); err != nil {
		return fmt.Errorf("failed to store prices for asset %d: %w", assetID, err)
	}
	return nil
}

// activate promotes a pending asset and fills its metadata from whichever provider can describe it
func (s *IngestionService) activate(ctx context.Context, asset *models.Asset, source models.Source) error {
	if err := s.assets.SetStatus(ctx, asset.ID, models.AssetStatusActive); err != nil {
		return err
	}
	if err := s.assets.RecordIngestionSuccess(ctx, asset.ID, nil); err != nil {
		return err
	}
	log.WithFields(log.Fields{"symbol": asset.Symbol, "asset_id": asset.ID}).Info("asset promoted to active")

	hints := []models.Source{source}
	for _, other := range s.adapter.Priority() {
		if other != source {
			hints = append(hints, other)
		}
	}
	for _, hint := range hints {
		meta, err := s.adapter.DescribeSymbol(ctx, asset.Symbol, hint)
		if err != nil {
			log.WithFields(log.Fields{"symbol": asset.Symbol, "source": hint}).WithError(err).Warn("failed to describe symbol")
			continue
		}
		if meta == nil {
			continue
		}
		if err := s.assets.SetMetadata(ctx, asset.ID, sanitizeMetadata(*meta)); err != nil {
			log.WithField("symbol", asset.Symbol).WithError(err).Warn("failed to store metadata")
		}
		return nil
	}
	return nil
}

// finishWithoutData handles a cycle where every provider answered but had no bars
// in the window (weekend, holiday, fresh listing). It is not a failure.
func (s *IngestionService) finishWithoutData(ctx context.Context, asset *models.Asset, started time.Time) (*IngestionResult, error) {
	var next *time.Time
	if !asset.IsActive() {
		n := util.NextMarketDate(s.now())
		next = &n
	}
	if err := s.assets.RecordIngestionSuccess(ctx, asset.ID, next); err != nil {
		return nil, err
	}
	total, err := s.prices.CountDistinctDates(ctx, asset.ID)
	if err != nil {
		return nil, err
	}
	s.metrics.SetFailureStreak(asset.Symbol, 0)
	s.metrics.RecordIngestion(string(IngestionNoData), s.now().Sub(started))
	return &IngestionResult{Asset: asset, Outcome: IngestionNoData, TotalDays: total}, nil
}

// recordTotalFailure leaves the asset as it is, schedules a retry and raises an
// alert once the failure streak reaches the threshold
func (s *IngestionService) recordTotalFailure(ctx context.Context, asset *models.Asset, started time.Time, failures []error) (*IngestionResult, error) {
	streak, err := s.assets.RecordIngestionFailure(ctx, asset.ID, s.now().Add(s.cfg.PendingRetryDelay))
	if err != nil {
		return nil, err
	}
	s.metrics.SetFailureStreak(asset.Symbol, streak)
	s.metrics.RecordIngestion(string(IngestionFailed), s.now().Sub(started))

	if s.cfg.FailureAlertThreshold > 0 && streak >= s.cfg.FailureAlertThreshold {
		s.metrics.RecordAlert(asset.Symbol)
		log.WithFields(log.Fields{
			"symbol":         asset.Symbol,
			"asset_id":       asset.ID,
			"failure_streak": streak,
			"alert":          true,
		}).Error("ALERT: every provider has failed for consecutive ingestion cycles")
	}

	return &IngestionResult{Asset: asset, Outcome: IngestionFailed},
		fmt.Errorf("%w for %s: %w", ErrAllProvidersFailed, asset.Symbol, errors.Join(failures...))
}

func sanitizeMetadata(meta models.AssetMetadata) models.AssetMetadata {
	meta.Description = strings.TrimSpace(meta.Description)
	meta.Currency = strings.ToUpper(strings.TrimSpace(meta.Currency))
	if utf8.RuneCountInString(meta.Description) > maxDescriptionLength {
		meta.Description = string([]rune(meta.Description)[:maxDescriptionLength])
	}
	if len(meta.Currency) != 3 {
		meta.Currency = ""
	}
	return meta
}
