package models

import (
	"errors"
	"fmt"
)

// ErrValidation marks a malformed request. It is surfaced to the caller with no side effects.
var ErrValidation = errors.New("validation error")

// ErrInvalidAssetSymbol is returned for empty, non-string or over-long symbols.
var ErrInvalidAssetSymbol = fmt.Errorf("%w: invalid asset symbol", ErrValidation)
