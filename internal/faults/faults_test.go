package faults

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", fmt.Errorf("%w: bad entity", ErrValidation), http.StatusBadRequest},
		{"not found", fmt.Errorf("otc: %w", ErrNotFound), http.StatusNotFound},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests},
		{"expired", ErrExpired, http.StatusGone},
		{"auth", ErrAuthentication, http.StatusUnauthorized},
		{"store", ErrTransientStore, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestKind_Wrapped(t *testing.T) {
	err := fmt.Errorf("outer: %w", fmt.Errorf("%w: cooldown", ErrRateLimited))
	assert.Equal(t, "rate_limited", Kind(err))
	assert.Equal(t, "internal_error", Kind(errors.New("x")))
}
