package models

// WarningCode categorizes warnings by subsystem.
// W1xxx = asset lifecycle, W2xxx = predictions.
type WarningCode string

const (
	WarnAssetPending      WarningCode = "W1001" // asset has not reached the minimum history yet, series may be partial
	WarnNoCurrentModel    WarningCode = "W2001" // no trained model, predicted values are absent
	WarnPredictionsStale  WarningCode = "W2002" // newest prediction predates the current model
	WarnPredictionsAbsent WarningCode = "W2003" // model exists but no prediction overlaps the range
)

// Warning represents a non-fatal issue encountered during processing.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}
