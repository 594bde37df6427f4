package predictor

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/epeers/fintel/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeSeries builds n sessions whose close follows f(i)
func makeSeries(n int, f func(i int) float64) []models.PricePoint {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	series := make([]models.PricePoint, n)
	for i := range series {
		v := decimal.NewFromFloat(f(i))
		series[i] = models.PricePoint{
			Date:   start.AddDate(0, 0, i),
			Source: models.SourceYahooFinance,
			Open:   v,
			High:   v.Add(decimal.NewFromInt(1)),
			Low:    v.Sub(decimal.NewFromInt(1)),
			Close:  v,
			Volume: int64(1000 + i),
		}
	}
	return series
}

func TestFit_InsufficientData(t *testing.T) {
	p := NewAutoregressive()
	_, err := p.Fit(context.Background(), makeSeries(p.Order+minSamplesPastOrder-1, func(i int) float64 { return 100 }))
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestFitPredict_LinearTrend(t *testing.T) {
	p := NewAutoregressive()
	series := makeSeries(200, func(i int) float64 { return 100 + float64(i) })

	artifact, err := p.Fit(context.Background(), series)
	require.NoError(t, err)

	decoded, err := decodeArtifact(artifact)
	require.NoError(t, err)
	assert.Equal(t, models.FormatDate(series[len(series)-1].Date), decoded.Cutoff)
	assert.Equal(t, 200, decoded.Samples)

	steps, err := p.Predict(context.Background(), artifact, 3)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	for _, step := range steps {
		assert.Len(t, step, len(models.AllTargets))
	}

	// Last close is 299; the trend continues at +1 per session.
	assert.InDelta(t, 300, steps[0][models.TargetClose], 2.0)
	assert.InDelta(t, 301, steps[1][models.TargetClose], 3.0)
	assert.Equal(t, math.Round(steps[0][models.TargetVolume]), steps[0][models.TargetVolume])
	// Without adjusted closes the target falls back to the close.
	assert.InDelta(t, steps[0][models.TargetClose], steps[0][models.TargetAdjustedClose], 1e-6)
}

func TestPredict_Deterministic(t *testing.T) {
	p := NewAutoregressive()
	artifact, err := p.Fit(context.Background(), makeSeries(120, func(i int) float64 { return 50 + 10*math.Sin(float64(i)/5) }))
	require.NoError(t, err)

	a, err := p.Predict(context.Background(), artifact, 5)
	require.NoError(t, err)
	b, err := p.Predict(context.Background(), artifact, 5)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFit_ConstantSeries(t *testing.T) {
	p := NewAutoregressive()
	artifact, err := p.Fit(context.Background(), makeSeries(60, func(int) float64 { return 42 }))
	require.NoError(t, err)

	steps, err := p.Predict(context.Background(), artifact, 1)
	require.NoError(t, err)
	assert.InDelta(t, 42, steps[0][models.TargetClose], 1e-6)
}

func TestFitTarget_NonFinite(t *testing.T) {
	p := NewAutoregressive()
	values := make([]float64, 40)
	values[7] = math.NaN()
	_, err := p.fitTarget(values)
	assert.ErrorIs(t, err, ErrNonConvergence)
}

func TestPredict_CorruptArtifact(t *testing.T) {
	p := NewAutoregressive()
	tests := map[string]string{
		"not json":     `\x00\x01`,
		"wrong kind":   `{"kind":"lstm/v1","order":10,"targets":{}}`,
		"short coef":   `{"kind":"ar-ridge/v1","order":2,"targets":{"close_price":{"min":0,"max":1,"coef":[1],"history":[0,1]}}}`,
		"bad target":   `{"kind":"ar-ridge/v1","order":1,"targets":{"foo":{"min":0,"max":1,"coef":[0,1],"history":[1]}}}`,
		"empty object": `{}`,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := p.Predict(context.Background(), []byte(data), 1)
			assert.ErrorIs(t, err, ErrCorruptArtifact)
		})
	}
}

func TestPredict_DivergingForecastIsCorrupt(t *testing.T) {
	big := make([]float64, DefaultOrder)
	for i := range big {
		big[i] = 1e300
	}
	data, err := json.Marshal(artifact{
		Kind:    KindAutoregressive,
		Order:   DefaultOrder,
		Samples: 100,
		Targets: map[models.Target]targetModel{
			models.TargetClose: {Min: 0, Max: 1, Coef: append([]float64{0}, big...), History: big},
		},
	})
	require.NoError(t, err)

	_, err = NewAutoregressive().Predict(context.Background(), data, 3)
	assert.ErrorIs(t, err, ErrCorruptArtifact)
}

func TestPredict_RejectsNonPositiveHorizon(t *testing.T) {
	p := NewAutoregressive()
	artifact, err := p.Fit(context.Background(), makeSeries(60, func(i int) float64 { return float64(i) }))
	require.NoError(t, err)
	_, err = p.Predict(context.Background(), artifact, 0)
	assert.Error(t, err)
}

func TestSolve_Singular(t *testing.T) {
	_, ok := solve([][]float64{{1, 2}, {2, 4}}, []float64{1, 2})
	assert.False(t, ok)

	x, ok := solve([][]float64{{2, 1}, {1, 3}}, []float64{3, 5})
	require.True(t, ok)
	assert.InDelta(t, 0.8, x[0], 1e-9)
	assert.InDelta(t, 1.4, x[1], 1e-9)
}
