// Package otc issues and verifies short-lived one-time codes that prove
// control of an identifier (phone number, email address, payment handle).
//
// Each (identifier, purpose) pair has at most one live record:
//
//	Absent -> Created -> {Verified | Expired | MaxAttempts | Invalidated} -> Absent
//
// Generate is rate limited by a cooldown window. Verify is serialized per key
// through a Locker so the check-increment-compare sequence is atomic.
package otc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/faults"
)

var (
	ErrNotFound      = fmt.Errorf("otc: no active code: %w", faults.ErrNotFound)
	ErrAlreadyUsed   = fmt.Errorf("otc: code already used: %w", faults.ErrValidation)
	ErrExpired       = fmt.Errorf("otc: code expired: %w", faults.ErrExpired)
	ErrMaxAttempts   = fmt.Errorf("otc: too many attempts: %w", faults.ErrRateLimited)
	ErrMalformedCode = fmt.Errorf("otc: code must be digits: %w", faults.ErrValidation)
	ErrPurpose       = fmt.Errorf("otc: purpose is required: %w", faults.ErrValidation)
)

// CooldownError is returned by Generate when a code was issued too recently.
type CooldownError struct {
	Wait time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("otc: cooldown active, retry in %ds", e.WaitSeconds())
}

// WaitSeconds rounds the remaining wait up to whole seconds (minimum 1).
func (e *CooldownError) WaitSeconds() int {
	s := int(math.Ceil(e.Wait.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

func (e *CooldownError) Unwrap() error { return faults.ErrRateLimited }

// InvalidCodeError is returned by Verify when the candidate code is wrong.
type InvalidCodeError struct {
	Remaining int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("otc: invalid code, %d attempts remaining", e.Remaining)
}

func (e *InvalidCodeError) Unwrap() error { return faults.ErrValidation }

// Reason maps a Generate/Verify error to the short failure code reported to
// callers ("cooldown", "not_found", "already_used", "expired", "max_attempts",
// "invalid"). Unknown errors map to "internal_error".
func Reason(err error) string {
	var cd *CooldownError
	var ic *InvalidCodeError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cd):
		return "cooldown"
	case errors.As(err, &ic):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyUsed):
		return "already_used"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrMaxAttempts):
		return "max_attempts"
	case errors.Is(err, faults.ErrValidation):
		return "validation_error"
	default:
		return faults.Kind(err)
	}
}

// Record is the stored state of one issued code.
type Record struct {
	Identifier string     `json:"identifier"`
	Purpose    string     `json:"purpose"`
	Code       string     `json:"code"`
	CreatedAt  time.Time  `json:"createdAt"`
	ExpiresAt  time.Time  `json:"expiresAt"`
	Attempts   int        `json:"attempts"`
	Verified   bool       `json:"verified"`
	VerifiedAt *time.Time `json:"verifiedAt,omitempty"`
}

// Key returns the store key for the record.
func (r *Record) Key() string {
	return Key(r.Identifier, r.Purpose)
}

// Key builds the store key for an identifier/purpose pair.
func Key(identifier, purpose string) string {
	return purpose + ":" + identifier
}

// Sweepable reports whether the periodic sweep may delete the record.
func (r *Record) Sweepable(now time.Time, verifiedGrace time.Duration) bool {
	if now.After(r.ExpiresAt) {
		return true
	}
	return r.Verified && r.VerifiedAt != nil && now.Sub(*r.VerifiedAt) >= verifiedGrace
}

// Store holds OTC records. Implementations expire a record once its TTL
// passes; Get returns ErrNotFound for absent or purged records.
type Store interface {
	Get(ctx context.Context, key string) (*Record, error)
	Put(ctx context.Context, rec *Record, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteExpired(ctx context.Context, now time.Time, verifiedGrace time.Duration) (int, error)
}

// Locker serializes work on one key. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Issued is what Generate hands back to the caller.
type Issued struct {
	Code             string    `json:"code"`
	ExpiresAt        time.Time `json:"expiresAt"`
	ExpiresInMinutes int       `json:"expiresInMinutes"`
}

// Config tunes the service.
type Config struct {
	Length        int
	TTL           time.Duration
	Cooldown      time.Duration
	MaxAttempts   int
	VerifiedGrace time.Duration
	SweepInterval time.Duration
}

// DefaultConfig returns the standard settings: 6 digits, 10 minute TTL,
// 60s cooldown, 3 attempts, 5s verified grace, 5 minute sweep.
func DefaultConfig() Config {
	return Config{
		Length:        6,
		TTL:           10 * time.Minute,
		Cooldown:      60 * time.Second,
		MaxAttempts:   3,
		VerifiedGrace: 5 * time.Second,
		SweepInterval: 5 * time.Minute,
	}
}
