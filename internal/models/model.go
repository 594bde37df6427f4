package models

import (
	"time"
)

// Model is a persisted, trained predictor artifact for one asset.
// Name is the unique model identifier; Kind tags the predictor implementation and version.
type Model struct {
	ID             int64     `json:"id"`
	Name           string    `json:"model_name"`
	AssetID        int64     `json:"asset_id"`
	Kind           string    `json:"model_type"`
	Data           []byte    `json:"-"`
	TrainingCutoff time.Time `json:"training_cutoff"`
	SampleCount    int       `json:"sample_count"`
	CreatedAt      time.Time `json:"created_at"`
	LastTrained    time.Time `json:"last_trained"`
}

// TrainingState is the per-asset training lifecycle state
type TrainingState string

const (
	TrainingStateNoModel  TrainingState = "no_model"
	TrainingStateTraining TrainingState = "training"
	TrainingStateTrained  TrainingState = "trained"
	TrainingStateStale    TrainingState = "stale"
)
