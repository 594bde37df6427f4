package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Target is a price field a model forecasts
type Target string

const (
	TargetOpen          Target = "open_price"
	TargetHigh          Target = "high_price"
	TargetLow           Target = "low_price"
	TargetClose         Target = "close_price"
	TargetAdjustedClose Target = "adjusted_close"
	TargetVolume        Target = "volume"
)

// AllTargets lists every forecast target in a stable order.
var AllTargets = []Target{
	TargetOpen,
	TargetHigh,
	TargetLow,
	TargetClose,
	TargetAdjustedClose,
	TargetVolume,
}

// Valid reports whether t is a known target.
func (t Target) Valid() bool {
	for _, known := range AllTargets {
		if t == known {
			return true
		}
	}
	return false
}

// Prediction is one forecast value. Rows are append-only; a newer forecast for the
// same (asset, date, target) is a new row.
type Prediction struct {
	ID        int64           `json:"id"`
	AssetID   int64           `json:"asset_id"`
	ModelID   int64           `json:"model_id"`
	Date      time.Time       `json:"date"`
	Target    Target          `json:"target"`
	Value     decimal.Decimal `json:"value"`
	CreatedAt time.Time       `json:"created_at"`
	Retrained bool            `json:"retrained"`
}
