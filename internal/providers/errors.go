package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/epeers/fintel/internal/models"
)

// Kind is the failure class of a provider call
type Kind string

const (
	KindRateLimited       Kind = "rate_limited"
	KindSymbolNotFound    Kind = "symbol_not_found"
	KindTransientNetwork  Kind = "transient_network_error"
	KindMalformedResponse Kind = "malformed_response"
	KindNoData            Kind = "no_data"
)

var (
	ErrRateLimited       = errors.New("provider rate limited")
	ErrSymbolNotFound    = errors.New("symbol not found at provider")
	ErrTransientNetwork  = errors.New("transient network error")
	ErrMalformedResponse = errors.New("malformed provider response")
	ErrNoData            = errors.New("provider returned no data")
)

var kindSentinels = map[Kind]error{
	KindRateLimited:       ErrRateLimited,
	KindSymbolNotFound:    ErrSymbolNotFound,
	KindTransientNetwork:  ErrTransientNetwork,
	KindMalformedResponse: ErrMalformedResponse,
	KindNoData:            ErrNoData,
}

// Error is a classified provider failure. errors.Is matches both the kind's
// sentinel and the wrapped cause.
type Error struct {
	Source models.Source
	Kind   Kind
	Err    error
}

// NewError classifies err as kind for source
func NewError(source models.Source, kind Kind, err error) *Error {
	return &Error{Source: source, Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Source, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	errs := []error{kindSentinels[e.Kind]}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Retryable reports whether the same provider may succeed if called again
func (e *Error) Retryable() bool {
	return e.Kind == KindRateLimited || e.Kind == KindTransientNetwork
}

// KindOf returns the failure class of err. Unclassified errors count as transient.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindTransientNetwork
}

// ClassifyStatus maps a non-200 HTTP status to a provider error
func ClassifyStatus(source models.Source, status int) *Error {
	err := fmt.Errorf("status %d", status)
	switch {
	case status == http.StatusTooManyRequests:
		return NewError(source, KindRateLimited, err)
	case status == http.StatusNotFound:
		return NewError(source, KindSymbolNotFound, err)
	case status >= 500:
		return NewError(source, KindTransientNetwork, err)
	case status == http.StatusRequestTimeout:
		return NewError(source, KindTransientNetwork, err)
	}
	return NewError(source, KindMalformedResponse, err)
}

// ClassifyTransport maps an http.Client error to a provider error.
// A cancelled caller context is returned unclassified so it is never retried.
func ClassifyTransport(ctx context.Context, source models.Source, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return NewError(source, KindTransientNetwork, err)
}
