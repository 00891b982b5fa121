package otc

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/entity"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/metrics"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/traces"
)

// Service implements one-time code issuance and verification.
type Service struct {
	store  Store
	locker Locker
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
	random func(digits int) (string, error)
}

// NewService creates a new OTC service.
func NewService(store Store, locker Locker, cfg Config, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		locker: locker,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		random: randomDigits,
	}
}

// WithNow overrides the clock. Used by tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// Config returns the active settings.
func (s *Service) Config() Config {
	return s.cfg
}

// Generate issues a new code for identifier/purpose. It fails with a
// *CooldownError while a previous unexpired code is younger than the
// cooldown window. The plaintext code is returned to the caller.
func (s *Service) Generate(ctx context.Context, identifier, purpose string) (*Issued, error) {
	id, purpose, err := s.keyParts(identifier, purpose)
	if err != nil {
		return nil, err
	}
	ctx, span := traces.StartSpan(ctx, "otc.Generate", traces.Purpose(purpose))
	defer span.End()

	key := Key(id, purpose)
	unlock, err := s.locker.Lock(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("otc: lock %s: %w", purpose, err)
	}
	defer unlock()

	now := s.now()
	existing, err := s.store.Get(ctx, key)
	switch {
	case err == nil:
		if !now.After(existing.ExpiresAt) {
			if elapsed := now.Sub(existing.CreatedAt); elapsed < s.cfg.Cooldown {
				return nil, &CooldownError{Wait: s.cfg.Cooldown - elapsed}
			}
		}
	case errors.Is(err, ErrNotFound):
	default:
		return nil, fmt.Errorf("otc: load record: %w", err)
	}

	code, err := s.random(s.cfg.Length)
	if err != nil {
		return nil, fmt.Errorf("otc: generate code: %w", err)
	}

	rec := &Record{
		Identifier: id,
		Purpose:    purpose,
		Code:       code,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.cfg.TTL),
	}
	if err := s.store.Put(ctx, rec, s.cfg.TTL+s.cfg.SweepInterval); err != nil {
		return nil, fmt.Errorf("otc: store record: %w", err)
	}

	metrics.OTCGeneratedTotal.Inc()
	s.logger.Info("one-time code issued", "purpose", purpose, "expiresAt", rec.ExpiresAt)

	return &Issued{
		Code:             code,
		ExpiresAt:        rec.ExpiresAt,
		ExpiresInMinutes: int(math.Ceil(s.cfg.TTL.Minutes())),
	}, nil
}

// Verify checks candidate against the live code for identifier/purpose.
// A wrong code returns *InvalidCodeError with the attempts left; the attempt
// that exhausts the budget also deletes the record. A correct code marks the
// record verified, and it is removed after the verified grace period.
func (s *Service) Verify(ctx context.Context, identifier, purpose, candidate string) error {
	err := s.verify(ctx, identifier, purpose, candidate)
	result := "success"
	if err != nil {
		result = Reason(err)
	}
	metrics.OTCVerificationsTotal.WithLabelValues(result).Inc()
	return err
}

func (s *Service) verify(ctx context.Context, identifier, purpose, candidate string) error {
	id, purpose, err := s.keyParts(identifier, purpose)
	if err != nil {
		return err
	}
	candidate = strings.TrimSpace(candidate)
	if candidate == "" || strings.Trim(candidate, "0123456789") != "" {
		return ErrMalformedCode
	}

	ctx, span := traces.StartSpan(ctx, "otc.Verify", traces.Purpose(purpose))
	defer span.End()

	key := Key(id, purpose)
	unlock, err := s.locker.Lock(ctx, key)
	if err != nil {
		return fmt.Errorf("otc: lock %s: %w", purpose, err)
	}
	defer unlock()

	rec, err := s.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if rec.Verified {
		return ErrAlreadyUsed
	}

	now := s.now()
	if now.After(rec.ExpiresAt) {
		s.delete(ctx, key)
		return ErrExpired
	}
	if rec.Attempts >= s.cfg.MaxAttempts {
		s.delete(ctx, key)
		return ErrMaxAttempts
	}

	rec.Attempts++
	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(candidate)) != 1 {
		remaining := s.cfg.MaxAttempts - rec.Attempts
		if remaining <= 0 {
			s.delete(ctx, key)
			s.logger.Warn("one-time code exhausted", "purpose", purpose)
			return &InvalidCodeError{Remaining: 0}
		}
		if err := s.store.Put(ctx, rec, rec.ExpiresAt.Sub(now)+s.cfg.SweepInterval); err != nil {
			return fmt.Errorf("otc: store attempt: %w", err)
		}
		return &InvalidCodeError{Remaining: remaining}
	}

	rec.Verified = true
	rec.VerifiedAt = &now
	if err := s.store.Put(ctx, rec, s.cfg.VerifiedGrace); err != nil {
		return fmt.Errorf("otc: store verification: %w", err)
	}
	s.logger.Info("one-time code verified", "purpose", purpose)
	return nil
}

// Invalidate removes any live code for identifier/purpose.
func (s *Service) Invalidate(ctx context.Context, identifier, purpose string) error {
	id, purpose, err := s.keyParts(identifier, purpose)
	if err != nil {
		return err
	}
	key := Key(id, purpose)
	unlock, err := s.locker.Lock(ctx, key)
	if err != nil {
		return fmt.Errorf("otc: lock %s: %w", purpose, err)
	}
	defer unlock()

	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("otc: delete record: %w", err)
	}
	return nil
}

// Sweep deletes expired records and records verified longer than the grace
// period. It returns how many were removed.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	n, err := s.store.DeleteExpired(ctx, s.now(), s.cfg.VerifiedGrace)
	if n > 0 {
		metrics.OTCSweptTotal.Add(float64(n))
	}
	return n, err
}

func (s *Service) delete(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to delete one-time code", "error", err)
	}
}

func (s *Service) keyParts(identifier, purpose string) (string, string, error) {
	if err := entity.Validate(identifier); err != nil {
		return "", "", err
	}
	purpose = strings.ToLower(strings.TrimSpace(purpose))
	if purpose == "" {
		return "", "", ErrPurpose
	}
	return entity.Normalize(identifier), purpose, nil
}

// randomDigits returns a uniformly random numeric string of the given length.
func randomDigits(digits int) (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
