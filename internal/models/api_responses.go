package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RequestAssetsResponse is returned after a list of symbols has been registered
type RequestAssetsResponse struct {
	Success bool     `json:"success"`
	Assets  []*Asset `json:"assets"`
}

// SymbolsResponse lists the symbols of active assets
type SymbolsResponse struct {
	Symbols []string `json:"symbols"`
}

// SeriesRequest represents the request body for POST /data
type SeriesRequest struct {
	Symbol             string       `json:"symbol" binding:"required"`
	StartDate          FlexibleDate `json:"start_date" binding:"required"`
	EndDate            FlexibleDate `json:"end_date" binding:"required"`
	IncludePredictions *bool        `json:"include_predictions" default:"true"`
}

// SeriesQuery represents the query parameters for GET /assets/:symbol/series
type SeriesQuery struct {
	StartDate          string `form:"start_date" binding:"required"`
	EndDate            string `form:"end_date" binding:"required"`
	IncludePredictions *bool  `form:"include_predictions" default:"true"`
}

// SeriesPoint is one date of a served series. Price fields are absent for future
// dates that only carry predictions.
type SeriesPoint struct {
	Date            string                     `json:"date"`
	Open            *decimal.Decimal           `json:"open_price,omitempty"`
	Close           *decimal.Decimal           `json:"close_price,omitempty"`
	High            *decimal.Decimal           `json:"high_price,omitempty"`
	Low             *decimal.Decimal           `json:"low_price,omitempty"`
	AdjustedClose   *decimal.Decimal           `json:"adjusted_close,omitempty"`
	Volume          *int64                     `json:"volume,omitempty"`
	Source          Source                     `json:"source,omitempty"`
	PredictedValues map[Target]decimal.Decimal `json:"predicted_values,omitempty"`
}

// SeriesResponse represents the response for a getSeries query
type SeriesResponse struct {
	Symbol      string        `json:"symbol"`
	Description *string       `json:"description"`
	Status      AssetStatus   `json:"status"`
	StartDate   string        `json:"start_date"`
	EndDate     string        `json:"end_date"`
	Prices      []SeriesPoint `json:"prices"`
	Warnings    []Warning     `json:"warnings,omitempty"`
}

// ModelSummary describes a model without its artifact
type ModelSummary struct {
	ModelName      string    `json:"model_name"`
	ModelType      string    `json:"model_type"`
	TrainingCutoff string    `json:"training_cutoff"`
	SampleCount    int       `json:"sample_count"`
	LastTrained    time.Time `json:"last_trained"`
}

// AssetStatusResponse represents the response for GET /assets/:symbol
type AssetStatusResponse struct {
	Asset         *Asset        `json:"asset"`
	TrainingState TrainingState `json:"training_state"`
	CurrentModel  *ModelSummary `json:"current_model,omitempty"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
