package predictor

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/epeers/fintel/internal/models"
)

// KindAutoregressive tags artifacts produced by Autoregressive
const KindAutoregressive = "ar-ridge/v1"

const (
	// DefaultOrder is the number of lagged sessions each forecast looks at
	DefaultOrder = 10

	// DefaultLambda is the ridge penalty on the lag coefficients
	DefaultLambda = 1e-3

	// minSamplesPastOrder is how many rows beyond the order Fit requires
	minSamplesPastOrder = 20
)

// Autoregressive fits, per target, a linear model on the previous Order min-max
// scaled values with a ridge penalty. Forecasts beyond one step feed earlier
// forecasts back in.
type Autoregressive struct {
	Order  int
	Lambda float64
}

var _ Predictor = (*Autoregressive)(nil)

// NewAutoregressive creates a predictor with the default order and penalty
func NewAutoregressive() *Autoregressive {
	return &Autoregressive{Order: DefaultOrder, Lambda: DefaultLambda}
}

type targetModel struct {
	Min     float64   `json:"min"`
	Max     float64   `json:"max"`
	Coef    []float64 `json:"coef"`
	History []float64 `json:"history"`
}

type artifact struct {
	Kind    string                        `json:"kind"`
	Order   int                           `json:"order"`
	Cutoff  string                        `json:"cutoff"`
	Samples int                           `json:"samples"`
	Targets map[models.Target]targetModel `json:"targets"`
}

// Kind returns the artifact tag
func (p *Autoregressive) Kind() string {
	return KindAutoregressive
}

// Fit trains one model per target over the whole series
func (p *Autoregressive) Fit(ctx context.Context, series []models.PricePoint) ([]byte, error) {
	if len(series) < p.Order+minSamplesPastOrder {
		return nil, fmt.Errorf("%w: have %d rows, need %d", ErrInsufficientData, len(series), p.Order+minSamplesPastOrder)
	}

	a := artifact{
		Kind:    KindAutoregressive,
		Order:   p.Order,
		Cutoff:  series[len(series)-1].Date.Format("2006-01-02"),
		Samples: len(series),
		Targets: make(map[models.Target]targetModel, len(models.AllTargets)),
	}

	for _, target := range models.AllTargets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		values := make([]float64, len(series))
		for i := range series {
			values[i] = series[i].Value(target)
		}
		tm, err := p.fitTarget(values)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", target, err)
		}
		a.Targets[target] = tm
	}

	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to encode artifact: %w", err)
	}
	return data, nil
}

func (p *Autoregressive) fitTarget(values []float64) (targetModel, error) {
	if !allFinite(values) {
		return targetModel{}, fmt.Errorf("%w: non-finite input", ErrNonConvergence)
	}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}
	scaled := make([]float64, len(values))
	for i, v := range values {
		scaled[i] = (v - lo) / span
	}

	// Normal equations for [1, s(t-1) .. s(t-order)] -> s(t).
	dim := p.Order + 1
	xtx := make([][]float64, dim)
	for i := range xtx {
		xtx[i] = make([]float64, dim)
	}
	xty := make([]float64, dim)
	row := make([]float64, dim)
	for t := p.Order; t < len(scaled); t++ {
		row[0] = 1
		for k := 1; k <= p.Order; k++ {
			row[k] = scaled[t-k]
		}
		for i := 0; i < dim; i++ {
			xty[i] += row[i] * scaled[t]
			for j := 0; j < dim; j++ {
				xtx[i][j] += row[i] * row[j]
			}
		}
	}
	for i := 1; i < dim; i++ {
		xtx[i][i] += p.Lambda
	}

	coef, ok := solve(xtx, xty)
	if !ok || !allFinite(coef) {
		return targetModel{}, fmt.Errorf("%w: singular system", ErrNonConvergence)
	}

	history := make([]float64, p.Order)
	copy(history, scaled[len(scaled)-p.Order:])
	return targetModel{Min: lo, Max: lo + span, Coef: coef, History: history}, nil
}

// Predict forecasts horizon steps from an artifact produced by Fit
func (p *Autoregressive) Predict(ctx context.Context, data []byte, horizon int) ([]TargetValues, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("horizon must be positive, got %d", horizon)
	}
	a, err := decodeArtifact(data)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]TargetValues, horizon)
	for i := range out {
		out[i] = make(TargetValues, len(a.Targets))
	}

	for target, tm := range a.Targets {
		window := append([]float64(nil), tm.History...)
		span := tm.Max - tm.Min
		for step := 0; step < horizon; step++ {
			next := tm.Coef[0]
			for k := 1; k <= a.Order; k++ {
				next += tm.Coef[k] * window[len(window)-k]
			}
			window = append(window, next)

			v := math.Max(tm.Min+next*span, 0)
			if target == models.TargetVolume {
				v = math.Round(v)
			}
			if !allFinite([]float64{next, v}) {
				return nil, fmt.Errorf("%w: %s forecast diverged at step %d", ErrCorruptArtifact, target, step+1)
			}
			out[step][target] = v
		}
	}
	return out, nil
}

func decodeArtifact(data []byte) (*artifact, error) {
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
	}
	if a.Kind != KindAutoregressive {
		return nil, fmt.Errorf("%w: unexpected kind %q", ErrCorruptArtifact, a.Kind)
	}
	if a.Order <= 0 || len(a.Targets) == 0 {
		return nil, fmt.Errorf("%w: missing order or targets", ErrCorruptArtifact)
	}
	for target, tm := range a.Targets {
		if !target.Valid() || len(tm.Coef) != a.Order+1 || len(tm.History) != a.Order ||
			!allFinite(tm.Coef) || !allFinite(tm.History) {
			return nil, fmt.Errorf("%w: bad parameters for %s", ErrCorruptArtifact, target)
		}
	}
	return &a, nil
}
