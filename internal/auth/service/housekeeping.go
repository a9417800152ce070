package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/tabsession/sessiond/internal/auth/store"
)

// HousekeepingService periodically sweeps expired refresh-token records out
// of the key-value store. The store's native per-item expiry is best-effort
// reclamation; this sweep guarantees index entries and stragglers go too.
type HousekeepingService struct {
	Tokens   store.RefreshTokens
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates the sweeper. A non-positive interval
// defaults to 1 hour.
func NewHousekeepingService(tokens store.RefreshTokens, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Tokens:   tokens,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker. Non-blocking; call Stop to shut the
// worker down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping started", "interval", s.Interval)
}

// Stop gracefully shuts down the worker, blocking until any in-progress
// sweep finishes.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Sweep immediately on startup.
	s.sweep()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

// sweep removes expired records. Only ever deletes records that are
// already logically inactive, so running concurrently with live requests
// is safe.
func (s *HousekeepingService) sweep() {
	deleted, err := s.Tokens.SweepExpired(context.Background(), time.Now())
	if err != nil {
		s.Logger.Error("expired token sweep failed", "deleted", deleted, "err", err)
		return
	}
	if deleted > 0 {
		s.Logger.Info("swept expired refresh tokens", "deleted", deleted)
	}
}
