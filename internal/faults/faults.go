// Package faults defines the error kinds shared across the fraud-check core.
//
// Domain packages declare their own sentinel errors and wrap one of these
// kinds, so callers at the boundary can classify a failure with errors.Is
// without importing every domain package.
package faults

import (
	"errors"
	"net/http"
)

var (
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("not found")
	ErrRateLimited    = errors.New("rate limited")
	ErrExpired        = errors.New("expired")
	ErrAuthentication = errors.New("authentication failed")
	ErrTransientStore = errors.New("store unavailable")
)

// HTTPStatus maps an error to the status code a handler should return.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrExpired):
		return http.StatusGone
	case errors.Is(err, ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, ErrTransientStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Kind returns a short machine-readable name for the error's kind.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrAuthentication):
		return "unauthorized"
	case errors.Is(err, ErrTransientStore):
		return "store_unavailable"
	default:
		return "internal_error"
	}
}
