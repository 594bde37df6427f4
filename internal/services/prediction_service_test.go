package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/epeers/fintel/internal/models"
	"github.com/epeers/fintel/internal/predictor"
	"github.com/epeers/fintel/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trainedAsset returns an active asset with a promoted model
func trainedAsset(t *testing.T, h *harness, symbol string) *models.Asset {
	t.Helper()
	a := h.activeAsset(t, symbol, 400)
	outcome, err := h.training.TrainIfNeeded(context.Background(), a.ID)
	require.NoError(t, err)
	require.True(t, outcome.Trained)
	return a
}

func TestGenerate_ForecastsTradingDaysAfterCutoff(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := trainedAsset(t, h, "AAPL")

	rows, err := h.prediction.Generate(ctx, a.ID, true)
	require.NoError(t, err)
	require.Len(t, rows, 5*len(models.AllTargets))

	dates := map[string]bool{}
	for _, r := range rows {
		dates[models.FormatDate(r.Date)] = true
		assert.True(t, r.Retrained)
		assert.False(t, r.Value.IsNegative(), "%s on %s", r.Target, models.FormatDate(r.Date))
		assert.LessOrEqual(t, -r.Value.Exponent(), int32(predictionPlaces))
	}
	assert.Equal(t, map[string]bool{
		"2026-03-03": true,
		"2026-03-04": true,
		"2026-03-05": true,
		"2026-03-06": true,
		"2026-03-09": true,
	}, dates)
}

func TestGenerate_IsAppendOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := trainedAsset(t, h, "AAPL")

	_, err := h.prediction.Generate(ctx, a.ID, true)
	require.NoError(t, err)
	_, err = h.prediction.Generate(ctx, a.ID, false)
	require.NoError(t, err)

	date := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	history, err := h.store.ListPredictionHistory(ctx, a.ID, date, models.TargetClose)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].Retrained, "oldest first")
	assert.False(t, history[1].Retrained)

	latest, err := h.store.GetLatestPredictions(ctx, a.ID, date, date.AddDate(0, 0, 10))
	require.NoError(t, err)
	assert.Len(t, latest, 5*len(models.AllTargets))
	for _, p := range latest {
		assert.False(t, p.Retrained)
	}
}

func TestGenerate_Preconditions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pending := h.register(t, "WAIT")
	_, err := h.prediction.Generate(ctx, pending.ID, false)
	assert.ErrorIs(t, err, repository.ErrAssetNotActive)

	active := h.activeAsset(t, "NOMODEL", 320)
	_, err = h.prediction.Generate(ctx, active.ID, false)
	assert.ErrorIs(t, err, repository.ErrNoCurrentModel)
}

func TestGenerate_CorruptArtifactLeavesGap(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.activeAsset(t, "AAPL", 400)

	_, err := h.store.PromoteModel(ctx, &models.Model{
		Name:           "broken",
		AssetID:        a.ID,
		Kind:           predictor.KindAutoregressive,
		Data:           []byte("not json"),
		TrainingCutoff: testNow,
		LastTrained:    testNow,
	})
	require.NoError(t, err)

	_, err = h.prediction.Generate(ctx, a.ID, false)
	require.ErrorIs(t, err, predictor.ErrCorruptArtifact)

	latest, err := h.store.GetLatestPredictions(ctx, a.ID, testNow, testNow.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Empty(t, latest)
	assert.Contains(t, scrapeMetrics(t, h), `fintel_prediction_runs_total{outcome="failed"} 1`)
}

func TestGenerate_DivergingArtifactLeavesGap(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.activeAsset(t, "AAPL", 400)

	lags := strings.TrimSuffix(strings.Repeat("1e300,", predictor.DefaultOrder), ",")
	data := fmt.Sprintf(`{"kind":%q,"order":%d,"samples":100,"targets":{"close_price":{"min":0,"max":1,"coef":[0,%s],"history":[%s]}}}`,
		predictor.KindAutoregressive, predictor.DefaultOrder, lags, lags)
	_, err := h.store.PromoteModel(ctx, &models.Model{
		Name:           "diverging",
		AssetID:        a.ID,
		Kind:           predictor.KindAutoregressive,
		Data:           []byte(data),
		TrainingCutoff: testNow,
		LastTrained:    testNow,
	})
	require.NoError(t, err)

	require.NotPanics(t, func() {
		_, err = h.prediction.Generate(ctx, a.ID, false)
	})
	require.ErrorIs(t, err, predictor.ErrCorruptArtifact)

	latest, err := h.store.GetLatestPredictions(ctx, a.ID, testNow, testNow.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Empty(t, latest)
}

// infinitePredictor forecasts +Inf for every step
type infinitePredictor struct {
	*predictor.Autoregressive
}

func (infinitePredictor) Predict(_ context.Context, _ []byte, horizon int) ([]predictor.TargetValues, error) {
	out := make([]predictor.TargetValues, horizon)
	for i := range out {
		out[i] = predictor.TargetValues{models.TargetClose: math.Inf(1)}
	}
	return out, nil
}

func TestGenerate_RejectsNonFiniteForecast(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := trainedAsset(t, h, "AAPL")

	svc := NewPredictionService(h.store, h.store, h.store,
		infinitePredictor{predictor.NewAutoregressive()}, h.cache, h.recorder, 2)
	require.NotPanics(t, func() {
		_, err := svc.Generate(ctx, a.ID, false)
		require.ErrorIs(t, err, predictor.ErrNonConvergence)
	})

	latest, err := h.store.GetLatestPredictions(ctx, a.ID, testNow, testNow.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Empty(t, latest)
}
