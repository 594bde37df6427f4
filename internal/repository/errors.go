package repository

import "errors"

var (
	// ErrAssetNotFound is returned when no asset matches the lookup.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrAssetGone is returned when a model is promoted for an asset that was
	// deleted while training ran. The result must be discarded.
	ErrAssetGone = errors.New("asset no longer exists")

	// ErrAssetNotActive is returned when a model is promoted for an asset that
	// is not active.
	ErrAssetNotActive = errors.New("asset is not active")

	// ErrNoCurrentModel is returned when an asset has never been trained.
	ErrNoCurrentModel = errors.New("asset has no current model")
)
