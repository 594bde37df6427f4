package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/epeers/fintel/internal/lease"
	"github.com/epeers/fintel/internal/models"
	"github.com/epeers/fintel/internal/predictor"
	"github.com/epeers/fintel/internal/providers"
	"github.com/epeers/fintel/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// addRow stores one primary bar for date
func addRow(t *testing.T, h *harness, assetID int64, date time.Time) {
	t.Helper()
	c := decimal.NewFromInt(120)
	err := h.store.UpsertPrices(context.Background(), []models.PricePoint{{
		AssetID: assetID,
		Date:    date,
		Source:  models.SourceYahooFinance,
		Open:    c,
		High:    c,
		Low:     c,
		Close:   c,
		Volume:  2_000_000,
	}})
	require.NoError(t, err)
}

func TestTrainIfNeeded_TrainsOnceThenFresh(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.activeAsset(t, "AAPL", 400)

	first, err := h.training.TrainIfNeeded(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, first.Trained)
	assert.Equal(t, "no_model", first.Reason)
	assert.Equal(t, predictor.KindAutoregressive, first.Model.Kind)
	assert.Equal(t, 400, first.Model.SampleCount)
	assert.Equal(t, "2026-03-02", models.FormatDate(first.Model.TrainingCutoff))

	second, err := h.training.TrainIfNeeded(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, second.Trained)
	assert.Equal(t, "fresh", second.Reason)
	assert.Equal(t, first.Model.ID, second.Model.ID)
	assert.Equal(t, 1, h.predictor.fitCount())

	state, current, err := h.training.State(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TrainingStateTrained, state)
	assert.Equal(t, first.Model.ID, current.ID)
}

func TestNeedsTraining_StaleOnNewDataAndAge(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.activeAsset(t, "AAPL", 400)

	needs, reason, err := h.training.NeedsTraining(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, needs)
	assert.Equal(t, "no_model", reason)

	_, err = h.training.TrainIfNeeded(ctx, a.ID)
	require.NoError(t, err)

	needs, _, err = h.training.NeedsTraining(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, needs)

	h.training.now = func() time.Time { return testNow.Add(8 * 24 * time.Hour) }
	needs, reason, err = h.training.NeedsTraining(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, needs)
	assert.Equal(t, "model_age", reason)

	h.training.now = func() time.Time { return testNow }
	addRow(t, h, a.ID, testNow.AddDate(0, 0, 1))
	needs, reason, err = h.training.NeedsTraining(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, needs)
	assert.Equal(t, "new_data", reason)

	state, _, err := h.training.State(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TrainingStateStale, state)
}

func TestTrainIfNeeded_FailureKeepsPreviousModel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.activeAsset(t, "AAPL", 400)

	first, err := h.training.TrainIfNeeded(ctx, a.ID)
	require.NoError(t, err)

	addRow(t, h, a.ID, testNow.AddDate(0, 0, 1))
	h.predictor.failErr = predictor.ErrNonConvergence

	_, err = h.training.TrainIfNeeded(ctx, a.ID)
	require.ErrorIs(t, err, predictor.ErrNonConvergence)

	current, err := h.store.GetCurrentModel(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Model.ID, current.ID)

	all, err := h.store.ListModels(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Contains(t, scrapeMetrics(t, h), `fintel_training_runs_total{outcome="failed"} 1`)
}

func TestTrainIfNeeded_InsufficientData(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.register(t, "TINY")
	require.NoError(t, h.store.UpsertPrices(ctx,
		providers.ToPricePoints(a.ID, models.SourceYahooFinance, tradingBars(testNow, 20))))
	require.NoError(t, h.store.SetStatus(ctx, a.ID, models.AssetStatusActive))

	_, err := h.training.TrainIfNeeded(ctx, a.ID)
	require.ErrorIs(t, err, predictor.ErrInsufficientData)

	_, err = h.store.GetCurrentModel(ctx, a.ID)
	assert.ErrorIs(t, err, repository.ErrNoCurrentModel)
}

func TestTrainIfNeeded_SkipsPendingAsset(t *testing.T) {
	h := newHarness(t)
	a := h.register(t, "WAIT")

	outcome, err := h.training.TrainIfNeeded(context.Background(), a.ID)
	require.NoError(t, err)
	assert.False(t, outcome.Trained)
	assert.Equal(t, "asset_pending", outcome.Reason)
	assert.Zero(t, h.predictor.fitCount())
}

func TestTrainIfNeeded_ConcurrentRequestsShareOneRun(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.activeAsset(t, "AAPL", 400)

	started, gate := make(chan struct{}), make(chan struct{})
	h.predictor.started, h.predictor.gate = started, gate

	var wg sync.WaitGroup
	outcomes := make([]*TrainingOutcome, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		o, err := h.training.TrainIfNeeded(ctx, a.ID)
		if assert.NoError(t, err) {
			outcomes[0] = o
		}
	}()
	<-started

	state, _, err := h.training.State(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TrainingStateTraining, state)

	wg.Add(1)
	go func() {
		defer wg.Done()
		o, err := h.training.TrainIfNeeded(ctx, a.ID)
		if assert.NoError(t, err) {
			outcomes[1] = o
		}
	}()
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	require.NotNil(t, outcomes[0])
	require.NotNil(t, outcomes[1])
	assert.True(t, outcomes[0].Trained)
	assert.False(t, outcomes[1].Trained)
	assert.Equal(t, 1, h.predictor.fitCount())

	all, err := h.store.ListModels(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestTrainIfNeeded_LeaseHeldElsewhereIsCoalesced(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.activeAsset(t, "AAPL", 400)

	release, err := h.locker.TryAcquire(ctx, lease.TrainingKey(a.ID))
	require.NoError(t, err)
	defer release()

	_, err = h.training.TrainIfNeeded(ctx, a.ID)
	assert.ErrorIs(t, err, ErrTrainingCoalesced)
	assert.Zero(t, h.predictor.fitCount())
}

func TestTrainIfNeeded_DeletedDuringTrainingIsDiscarded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.activeAsset(t, "AAPL", 400)

	started, gate := make(chan struct{}), make(chan struct{})
	h.predictor.started, h.predictor.gate = started, gate

	errCh := make(chan error, 1)
	go func() {
		_, err := h.training.TrainIfNeeded(ctx, a.ID)
		errCh <- err
	}()
	<-started
	require.NoError(t, h.assets.DeleteAsset(ctx, "AAPL"))
	close(gate)

	assert.ErrorIs(t, <-errCh, repository.ErrAssetGone)
	all, err := h.store.ListModels(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, all)
}
