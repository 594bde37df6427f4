package services

import "errors"

var (
	// ErrUnknownAsset is returned when a symbol has never been requested
	ErrUnknownAsset = errors.New("unknown asset")

	// ErrInvalidRange is returned when a series window starts after it ends
	ErrInvalidRange = errors.New("invalid date range")

	// ErrAllProvidersFailed is returned when no provider produced data for an ingestion cycle
	ErrAllProvidersFailed = errors.New("all providers failed")

	// ErrTrainingCoalesced is returned when another holder is already training the asset
	ErrTrainingCoalesced = errors.New("training already in progress")
)
