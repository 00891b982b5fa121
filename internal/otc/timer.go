package otc

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Sweeper periodically removes expired and consumed codes.
type Sweeper struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
	running  atomic.Bool
}

// NewSweeper creates a sweeper that runs at the service's sweep interval.
func NewSweeper(service *Service, logger *slog.Logger) *Sweeper {
	interval := service.Config().SweepInterval
	if interval <= 0 {
		interval = DefaultConfig().SweepInterval
	}
	return &Sweeper{
		service:  service,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Running reports whether the sweep loop is actively running.
func (s *Sweeper) Running() bool {
	return s.running.Load()
}

// Start begins the sweep loop. Call in a goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	s.running.Store(true)
	defer s.running.Store(false)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.safeSweep(ctx)
		}
	}
}

// Stop signals the sweeper to stop.
func (s *Sweeper) Stop() {
	select {
	case s.stop <- struct{}{}:
	default:
	}
}

func (s *Sweeper) safeSweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in otc sweeper", "panic", fmt.Sprint(r))
		}
	}()

	n, err := s.service.Sweep(ctx)
	if err != nil {
		s.logger.Warn("otc sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Debug("otc sweep removed records", "count", n)
	}
}
