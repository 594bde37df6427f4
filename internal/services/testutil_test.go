package services

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/epeers/fintel/internal/cache"
	"github.com/epeers/fintel/internal/lease"
	"github.com/epeers/fintel/internal/metrics"
	"github.com/epeers/fintel/internal/models"
	"github.com/epeers/fintel/internal/predictor"
	"github.com/epeers/fintel/internal/providers"
	"github.com/epeers/fintel/internal/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// testNow is a Monday evening, after the US close
var testNow = time.Date(2026, 3, 2, 22, 0, 0, 0, time.UTC)

// stubProvider returns queued errors first, then its bars
type stubProvider struct {
	source models.Source
	meta   *models.AssetMetadata

	mu    sync.Mutex
	bars  []providers.RawPricePoint
	errs  []error
	calls int
}

func (p *stubProvider) Source() models.Source { return p.source }

func (p *stubProvider) NormalizeSymbol(s string) string { return s }

func (p *stubProvider) FetchHistory(_ context.Context, _ string, _, _ time.Time) ([]providers.RawPricePoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		return nil, err
	}
	out := make([]providers.RawPricePoint, len(p.bars))
	copy(out, p.bars)
	return out, nil
}

func (p *stubProvider) DescribeSymbol(_ context.Context, _ string) (*models.AssetMetadata, error) {
	return p.meta, nil
}

func (p *stubProvider) setBars(bars []providers.RawPricePoint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bars = bars
}

func (p *stubProvider) failWith(errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs = append(p.errs, errs...)
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func providerErr(source models.Source, kind providers.Kind) error {
	return providers.NewError(source, kind, nil)
}

// tradingBars builds n weekday bars ending on or before end, oldest first
func tradingBars(end time.Time, n int) []providers.RawPricePoint {
	dates := make([]time.Time, 0, n)
	for d := models.DateOnly(end); len(dates) < n; d = d.AddDate(0, 0, -1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			dates = append(dates, d)
		}
	}

	bars := make([]providers.RawPricePoint, n)
	for i := range dates {
		d := dates[n-1-i]
		c := 100 + 0.05*float64(i) + 2*math.Sin(float64(i)/7)
		adj := decimal.NewFromFloat(c * 0.99).Round(4)
		bars[i] = providers.RawPricePoint{
			Date:          d,
			Open:          decimal.NewFromFloat(c - 0.5).Round(4),
			High:          decimal.NewFromFloat(c + 1).Round(4),
			Low:           decimal.NewFromFloat(c - 1).Round(4),
			Close:         decimal.NewFromFloat(c).Round(4),
			AdjustedClose: &adj,
			Volume:        int64(1_000_000 + 1000*i),
		}
	}
	return bars
}

// gatedPredictor wraps the real predictor so tests can fail or pause Fit
type gatedPredictor struct {
	*predictor.Autoregressive

	mu      sync.Mutex
	failErr error
	started chan struct{}
	gate    chan struct{}
	fits    int
}

func (p *gatedPredictor) Fit(ctx context.Context, series []models.PricePoint) ([]byte, error) {
	p.mu.Lock()
	p.fits++
	failErr, started, gate := p.failErr, p.started, p.gate
	p.started = nil
	p.mu.Unlock()

	if started != nil {
		close(started)
	}
	if gate != nil {
		<-gate
	}
	if failErr != nil {
		return nil, failErr
	}
	return p.Autoregressive.Fit(ctx, series)
}

func (p *gatedPredictor) fitCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fits
}

type harness struct {
	store      *memory.Store
	primary    *stubProvider
	secondary  *stubProvider
	recorder   *metrics.Recorder
	locker     *lease.LocalLocker
	cache      *cache.SeriesCache
	predictor  *gatedPredictor
	assets     *AssetService
	ingestion  *IngestionService
	training   *TrainingService
	prediction *PredictionService
	query      *QueryService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		store:     memory.NewStore(),
		primary:   &stubProvider{source: models.SourceYahooFinance},
		secondary: &stubProvider{source: models.SourceAlphaVantage},
		recorder:  metrics.New(),
		locker:    lease.NewLocalLocker(),
		cache:     cache.NewSeriesCache(time.Minute),
		predictor: &gatedPredictor{Autoregressive: predictor.NewAutoregressive()},
	}
	adapter := providers.NewAdapter(h.primary, h.secondary)

	h.assets = NewAssetService(h.store, h.cache)
	h.ingestion = NewIngestionService(h.store, h.store, adapter, h.locker, h.cache, h.recorder, IngestionConfig{
		MinHistoryDays:        300,
		HistoryYears:          2,
		MaxAttempts:           3,
		BackoffInitial:        time.Millisecond,
		BackoffMax:            5 * time.Millisecond,
		PendingRetryDelay:     time.Hour,
		FailureAlertThreshold: 3,
	})
	h.ingestion.now = func() time.Time { return testNow }

	h.training = NewTrainingService(h.store, h.store, h.store, h.predictor, h.locker, h.recorder,
		adapter.Priority(), TrainingConfig{MaxModelAge: 7 * 24 * time.Hour})
	h.training.now = func() time.Time { return testNow }

	h.prediction = NewPredictionService(h.store, h.store, h.store, h.predictor, h.cache, h.recorder, 5)
	h.query = NewQueryService(h.store, h.store, h.store, h.store, h.training, h.cache, adapter.Priority())
	return h
}

// register creates a pending asset
func (h *harness) register(t *testing.T, symbol string) *models.Asset {
	t.Helper()
	assets, err := h.assets.RequestAssets(context.Background(), []string{symbol})
	require.NoError(t, err)
	require.Len(t, assets, 1)
	return assets[0]
}

// activeAsset registers symbol and ingests n days of history from the primary
func (h *harness) activeAsset(t *testing.T, symbol string, n int) *models.Asset {
	t.Helper()
	a := h.register(t, symbol)
	h.primary.setBars(tradingBars(testNow, n))
	result, err := h.ingestion.Ingest(context.Background(), a.ID)
	require.NoError(t, err)
	require.True(t, result.Asset.IsActive())
	return result.Asset
}
