// Package predictor defines the trainable time-series capability the pipeline drives.
package predictor

import (
	"context"
	"errors"

	"github.com/epeers/fintel/internal/models"
)

var (
	// ErrInsufficientData is returned by Fit when the series is too short to train on.
	ErrInsufficientData = errors.New("insufficient history to train")

	// ErrNonConvergence is returned by Fit when the numerical solve fails.
	ErrNonConvergence = errors.New("training did not converge")

	// ErrCorruptArtifact is returned by Predict when the artifact cannot be decoded.
	ErrCorruptArtifact = errors.New("model artifact is corrupt")
)

// TargetValues holds one forecast step for every target
type TargetValues map[models.Target]float64

// Predictor fits an opaque artifact from a daily series and forecasts from it.
// Fit receives one merged point per date in ascending order. Predict returns
// horizon steps, one per subsequent trading day, and must not depend on anything
// but its arguments.
type Predictor interface {
	Kind() string
	Fit(ctx context.Context, series []models.PricePoint) ([]byte, error)
	Predict(ctx context.Context, artifact []byte, horizon int) ([]TargetValues, error)
}
