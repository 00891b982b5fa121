// Package entity canonicalizes reported identifiers (phone numbers, email
// addresses, payment handles) into stable lookup keys.
//
// Keys containing '@' keep their structure and are only trimmed and
// lower-cased. Everything else is treated as a phone number: formatting
// characters are stripped so "+91 98765-43210" and "919876543210" collide.
package entity

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/faults"
)

// MaxLength bounds the raw identifier accepted by Validate.
const MaxLength = 256

var (
	ErrEmpty   = fmt.Errorf("%w: entity is required", faults.ErrValidation)
	ErrTooLong = fmt.Errorf("%w: entity exceeds %d characters", faults.ErrValidation, MaxLength)
)

// Type is the detected kind of an identifier.
type Type string

const (
	TypePhone   Type = "phone"
	TypeEmail   Type = "email"
	TypeUPI     Type = "upi"
	TypeUnknown Type = "unknown"
)

var (
	emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[a-z]{2,}$`)
	upiRegex   = regexp.MustCompile(`^[a-z0-9._\-]{2,}@[a-z][a-z0-9]+$`)
	phoneRegex = regexp.MustCompile(`^[0-9]{7,15}$`)
)

// Normalize returns the canonical lookup key for raw.
// Normalize(Normalize(x)) == Normalize(x) for every x.
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if strings.Contains(s, "@") {
		return s
	}
	return strings.Map(func(r rune) rune {
		if isPhoneFormatting(r) {
			return -1
		}
		return r
	}, s)
}

func isPhoneFormatting(r rune) bool {
	switch r {
	case '-', '(', ')', '+', '.':
		return true
	}
	return unicode.IsSpace(r)
}

// EscapeForSearch escapes every regular-expression metacharacter in key so it
// can be embedded in a case-insensitive pattern match against a report store.
func EscapeForSearch(key string) string {
	return regexp.QuoteMeta(key)
}

// Validate checks that raw is usable as an identifier.
func Validate(raw string) error {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ErrEmpty
	}
	if len(s) > MaxLength {
		return ErrTooLong
	}
	return nil
}

// DetectType classifies a normalized key.
func DetectType(key string) Type {
	switch {
	case emailRegex.MatchString(key):
		return TypeEmail
	case upiRegex.MatchString(key):
		return TypeUPI
	case phoneRegex.MatchString(key):
		return TypePhone
	default:
		return TypeUnknown
	}
}

// ParseType maps a caller-supplied type hint to a Type. Unrecognized hints
// return TypeUnknown and false.
func ParseType(hint string) (Type, bool) {
	switch Type(strings.ToLower(strings.TrimSpace(hint))) {
	case TypePhone:
		return TypePhone, true
	case TypeEmail:
		return TypeEmail, true
	case TypeUPI:
		return TypeUPI, true
	case TypeUnknown:
		return TypeUnknown, true
	default:
		return TypeUnknown, false
	}
}
