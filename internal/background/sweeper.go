package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/Arnold10-web/ishaazi-realtime/internal/repositories"
)

// SweeperConfig controls how often the sweeper runs and how long
// security records are retained.
type SweeperConfig struct {
	Interval                  time.Duration
	EventRetentionDays        int
	NotificationRetentionDays int
}

// DefaultSweeperConfig returns the standard retention policy: hourly sweeps,
// security events kept for 90 days, notifications for 30.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:                  1 * time.Hour,
		EventRetentionDays:        90,
		NotificationRetentionDays: 30,
	}
}

// Sweeper periodically prunes expired login attempts, revoked tokens past
// their expiry, and aged security events and notifications. It never touches
// account lock state; locks expire lazily when the guard next checks them.
type Sweeper struct {
	attemptRepo      *repositories.LoginAttemptRepository
	revokeRepo       *repositories.TokenRevocationRepository
	eventRepo        *repositories.SecurityEventRepository
	notificationRepo *repositories.NotificationRepository
	logger           *slog.Logger
	config           SweeperConfig
	stopCh           chan struct{}
}

// NewSweeper creates a new background sweeper
func NewSweeper(
	attemptRepo *repositories.LoginAttemptRepository,
	revokeRepo *repositories.TokenRevocationRepository,
	eventRepo *repositories.SecurityEventRepository,
	notificationRepo *repositories.NotificationRepository,
	logger *slog.Logger,
	config SweeperConfig,
) *Sweeper {
	return &Sweeper{
		attemptRepo:      attemptRepo,
		revokeRepo:       revokeRepo,
		eventRepo:        eventRepo,
		notificationRepo: notificationRepo,
		logger:           logger,
		config:           config,
		stopCh:           make(chan struct{}),
	}
}

// Start begins the periodic sweep task
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Run immediately on startup
	s.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.runSweep(ctx)
		case <-s.stopCh:
			s.logger.Info("sweeper stopped")
			return
		case <-ctx.Done():
			s.logger.Info("sweeper context cancelled")
			return
		}
	}
}

// runSweep prunes each table in turn. Failures are logged and skipped so one
// unavailable table does not starve the others.
func (s *Sweeper) runSweep(ctx context.Context) {
	s.logger.Info("starting retention sweep")

	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.attemptRepo.DeleteExpiredAttempts(sweepCtx); err != nil {
		s.logger.Error("failed to prune expired login attempts", slog.Any("error", err))
	}

	tokensDeleted, err := s.revokeRepo.CleanupExpiredTokens(sweepCtx)
	if err != nil {
		s.logger.Error("failed to prune expired revoked tokens", slog.Any("error", err))
	} else if tokensDeleted > 0 {
		s.logger.Info("pruned expired revoked tokens", slog.Int64("rows_deleted", tokensDeleted))
	}

	eventsDeleted, err := s.eventRepo.Cleanup(sweepCtx, s.config.EventRetentionDays)
	if err != nil {
		s.logger.Error("failed to prune aged security events", slog.Any("error", err))
	} else if eventsDeleted > 0 {
		s.logger.Info("pruned aged security events", slog.Int64("rows_deleted", eventsDeleted))
	}

	notificationsDeleted, err := s.notificationRepo.Cleanup(sweepCtx, s.config.NotificationRetentionDays)
	if err != nil {
		s.logger.Error("failed to prune aged notifications", slog.Any("error", err))
	} else if notificationsDeleted > 0 {
		s.logger.Info("pruned aged notifications", slog.Int64("rows_deleted", notificationsDeleted))
	}
}

// Stop signals the sweeper to stop
func (s *Sweeper) Stop() {
	close(s.stopCh)
}
