// Package auth issues and validates the session tokens that identify a user
// on HTTP routes and at websocket handshake time.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/faults"
)

const issuer = "nexora"

var (
	// ErrInvalidToken indicates the token failed validation.
	ErrInvalidToken = fmt.Errorf("invalid session token: %w", faults.ErrAuthentication)
	// ErrMissingToken indicates no credential was presented.
	ErrMissingToken = fmt.Errorf("session token required: %w", faults.ErrAuthentication)
	// ErrMissingSecret is returned when tokens are requested without a signing secret.
	ErrMissingSecret = errors.New("session secret is not configured")
)

// Claims carried by a session token.
type Claims struct {
	jwt.RegisteredClaims
}

// UserID returns the token subject.
func (c *Claims) UserID() string {
	return c.Subject
}

// Manager signs and verifies HS256 session tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewManager creates a token manager.
func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithNow overrides the clock. Used by tests.
func (m *Manager) WithNow(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Issue signs a session token for userID.
func (m *Manager) Issue(userID string) (string, time.Time, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", time.Time{}, fmt.Errorf("%w: userId is required", faults.ErrValidation)
	}
	if len(m.secret) == 0 {
		return "", time.Time{}, ErrMissingSecret
	}

	now := m.now().UTC()
	expires := now.Add(m.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Validate verifies the signature, issuer and expiry of token and returns its
// claims. An optional "Bearer " prefix is accepted.
func (m *Manager) Validate(token string) (*Claims, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return nil, ErrMissingToken
	}
	if len(m.secret) == 0 {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
