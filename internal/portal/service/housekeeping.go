package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/tramita/portal/internal/portal/store"
	"github.com/tramita/portal/pkg/limitx"
	"github.com/tramita/portal/pkg/tokenx"
)

// HousekeepingService periodically prunes expired records so nothing
// grows without bound: dead 2FA challenges, spent reset and
// verification tokens, revocations past natural expiry, and elapsed
// limiter buckets.
type HousekeepingService struct {
	Store       store.Store
	Limiter     *limitx.Limiter
	Revocations tokenx.RevocationStore
	Logger      *slog.Logger
	Interval    time.Duration

	// Clock is overridable for tests. Nil means time.Now.
	Clock func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService wires a sweeper. An interval of 0 or less
// defaults to 15 minutes.
func NewHousekeepingService(st store.Store, limiter *limitx.Limiter, revocations tokenx.RevocationStore, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &HousekeepingService{
		Store:       st,
		Limiter:     limiter,
		Revocations: revocations,
		Logger:      logger,
		Interval:    interval,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

func (s *HousekeepingService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// Start launches the background worker. Non-blocking; call Stop to
// shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping started", "interval", s.Interval)
}

// Stop blocks until any in-progress sweep finishes.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// First sweep right away so a restart clears backlog promptly
	s.Sweep(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Sweep runs every cleanup once. Each one is independent; a failure in
// one does not stop the others.
func (s *HousekeepingService) Sweep(ctx context.Context) {
	now := s.now()

	if n, err := s.Store.Challenges().DeleteExpired(ctx, now); err != nil {
		s.Logger.Error("failed to sweep 2fa challenges", "err", err)
	} else if n > 0 {
		s.Logger.Debug("swept 2fa challenges", "deleted", n)
	}

	if n, err := s.Store.Resets().DeleteExpired(ctx, now); err != nil {
		s.Logger.Error("failed to sweep password resets", "err", err)
	} else if n > 0 {
		s.Logger.Debug("swept password resets", "deleted", n)
	}

	if n, err := s.Store.Verifications().DeleteExpired(ctx, now); err != nil {
		s.Logger.Error("failed to sweep email verifications", "err", err)
	} else if n > 0 {
		s.Logger.Debug("swept email verifications", "deleted", n)
	}

	if err := s.Revocations.Sweep(ctx); err != nil {
		s.Logger.Error("failed to sweep token revocations", "err", err)
	}

	if err := s.Limiter.Sweep(ctx); err != nil {
		s.Logger.Error("failed to sweep limiter buckets", "err", err)
	}
}
