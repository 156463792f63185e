package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Arnold10-web/ishaazi-realtime/internal/config"
	"github.com/Arnold10-web/ishaazi-realtime/internal/models"
	pkglogger "github.com/Arnold10-web/ishaazi-realtime/pkg/logger"
)

// AttemptRepository defines the interface for login attempt persistence
type AttemptRepository interface {
	RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error
	CountRecentFailures(ctx context.Context, email string, since time.Time) (int, error)
	DeleteForEmail(ctx context.Context, email string) error
}

// AccountLockRepository defines the user lock-state persistence operations
type AccountLockRepository interface {
	SetLock(ctx context.Context, email string, until time.Time) error
	ClearLock(ctx context.Context, email string) error
}

// SecurityEventRepository defines the interface for persisted security events
type SecurityEventRepository interface {
	Create(ctx context.Context, event *models.SecurityEvent) (*models.SecurityEvent, error)
}

// SecurityService enforces the login lockout policy: repeated failures
// inside a sliding window lock the account for a fixed duration, and
// the lock clears itself on the first check after it expires.
type SecurityService struct {
	attempts    AttemptRepository
	users       AccountLockRepository
	events      SecurityEventRepository
	securityLog *pkglogger.SecurityLogger
	config      config.SecurityConfig
	logger      *slog.Logger
	now         func() time.Time
}

// NewSecurityService creates a new SecurityService
func NewSecurityService(attempts AttemptRepository, users AccountLockRepository, events SecurityEventRepository, securityLog *pkglogger.SecurityLogger, cfg config.SecurityConfig, logger *slog.Logger) *SecurityService {
	return &SecurityService{
		attempts:    attempts,
		users:       users,
		events:      events,
		securityLog: securityLog,
		config:      cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// RecordAttempt durably records one login attempt and evaluates the
// lockout threshold. A persistence failure is returned as a hard error:
// the login flow must not proceed on an attempt that was never stored,
// or the lockout guarantee silently erodes.
//
// An attempt against an account that is already locked never extends
// the lock.
func (s *SecurityService) RecordAttempt(ctx context.Context, user *models.User, success bool, ipAddress, userAgent string, failureReason *string) (*models.AttemptRecord, error) {
	now := s.now()

	attempt := &models.LoginAttempt{
		Email:         user.Email,
		IPAddress:     ipAddress,
		UserAgent:     userAgent,
		AttemptTime:   now,
		Success:       success,
		FailureReason: failureReason,
		ExpiresAt:     now.Add(s.config.AttemptRetention),
	}

	if err := s.attempts.RecordAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("failed to record login attempt: %w", err)
	}

	// Attempts outside the window are excluded here; physical deletion
	// is left to the retention cleanup job.
	windowStart := now.Add(-s.config.AttemptWindow)
	failedCount, err := s.attempts.CountRecentFailures(ctx, user.Email, windowStart)
	if err != nil {
		return nil, fmt.Errorf("failed to count login failures: %w", err)
	}

	if user.AccountLocked && user.LockedUntil != nil && now.Before(*user.LockedUntil) {
		return &models.AttemptRecord{
			Locked:         true,
			LockedUntil:    user.LockedUntil,
			FailedAttempts: failedCount,
		}, nil
	}

	if failedCount < s.config.MaxFailedLogins {
		return &models.AttemptRecord{FailedAttempts: failedCount}, nil
	}

	lockedUntil := now.Add(s.config.LockoutDuration)
	if err := s.users.SetLock(ctx, user.Email, lockedUntil); err != nil {
		return nil, fmt.Errorf("failed to persist account lock: %w", err)
	}
	user.AccountLocked = true
	user.LockedUntil = &lockedUntil

	s.securityLog.LogAccountLockout(user.Email, ipAddress, failedCount, s.config.LockoutDuration)
	s.recordEvent(ctx, &models.SecurityEvent{
		EventType: models.SecurityEventAccountLocked,
		Severity:  models.SeverityHigh,
		Email:     &user.Email,
		UserID:    &user.ID,
		IPAddress: &ipAddress,
		UserAgent: &userAgent,
		Details: models.EventDetails{
			"reason":          "too many failed login attempts",
			"failed_attempts": failedCount,
			"lockout_minutes": s.config.LockoutDuration.Minutes(),
		},
	})

	return &models.AttemptRecord{
		Locked:         true,
		LockedUntil:    &lockedUntil,
		FailedAttempts: failedCount,
	}, nil
}

// CheckLock reports whether the account is currently locked. An
// expired lock is cleared here, together with the attempt history, so
// the failure count restarts from zero; there is no background timer.
func (s *SecurityService) CheckLock(ctx context.Context, user *models.User) (*models.LockStatus, error) {
	if !user.AccountLocked || user.LockedUntil == nil {
		return &models.LockStatus{}, nil
	}

	now := s.now()
	if !now.Before(*user.LockedUntil) {
		if err := s.users.ClearLock(ctx, user.Email); err != nil {
			return nil, fmt.Errorf("failed to clear expired lock: %w", err)
		}
		if err := s.attempts.DeleteForEmail(ctx, user.Email); err != nil {
			return nil, fmt.Errorf("failed to clear attempt history: %w", err)
		}
		user.AccountLocked = false
		user.LockedUntil = nil

		s.logger.Info("account lock expired",
			slog.String("email", pkglogger.SanitizedEmail(user.Email)))
		return &models.LockStatus{}, nil
	}

	remaining := int(math.Ceil(user.LockedUntil.Sub(now).Minutes()))
	return &models.LockStatus{
		Locked:           true,
		LockedUntil:      user.LockedUntil,
		RemainingMinutes: remaining,
	}, nil
}

// DetectSuspiciousActivity evaluates login heuristics and returns the
// triggered factor names. A non-empty result is recorded best-effort;
// detection never fails the login flow.
func (s *SecurityService) DetectSuspiciousActivity(ctx context.Context, user *models.User, ipAddress, userAgent string) []string {
	factors := suspicionFactors(user, ipAddress, s.now())
	if len(factors) == 0 {
		return nil
	}

	s.securityLog.LogSuspiciousActivity(user.Email, ipAddress, factors)
	s.recordEvent(ctx, &models.SecurityEvent{
		EventType: models.SecurityEventSuspiciousLogin,
		Severity:  models.SeverityMedium,
		Email:     &user.Email,
		UserID:    &user.ID,
		IPAddress: &ipAddress,
		UserAgent: &userAgent,
		Details: models.EventDetails{
			"factors": factors,
		},
	})

	return factors
}

// Unlock lifts an account lock ahead of its expiry and wipes the
// attempt history, as an administrative action.
func (s *SecurityService) Unlock(ctx context.Context, user *models.User, unlockedBy string) error {
	if err := s.users.ClearLock(ctx, user.Email); err != nil {
		return fmt.Errorf("failed to clear lock: %w", err)
	}
	if err := s.attempts.DeleteForEmail(ctx, user.Email); err != nil {
		return fmt.Errorf("failed to clear attempt history: %w", err)
	}
	user.AccountLocked = false
	user.LockedUntil = nil

	s.securityLog.LogAccountUnlocked(user.Email, unlockedBy)
	s.recordEvent(ctx, &models.SecurityEvent{
		EventType: models.SecurityEventAccountUnlocked,
		Severity:  models.SeverityLow,
		Email:     &user.Email,
		UserID:    &user.ID,
		Details: models.EventDetails{
			"unlocked_by": unlockedBy,
		},
	})

	return nil
}

// recordEvent persists a security event best-effort. Audit storage
// being down must not abort the login flow it is attached to.
func (s *SecurityService) recordEvent(ctx context.Context, event *models.SecurityEvent) {
	if _, err := s.events.Create(ctx, event); err != nil {
		s.logger.Error("failed to persist security event",
			slog.String("event_type", event.EventType),
			slog.Any("error", err))
	}
}

// suspicionFactors evaluates the independent login heuristics: an IP
// the account has never logged in from, and logins between 00:00 and
// 05:59 local time. Geolocation-based factors (rapid geographic
// change) need a GeoIP provider and are not evaluated yet.
func suspicionFactors(user *models.User, ipAddress string, at time.Time) []string {
	var factors []string

	if ipAddress != "" && !knownIP(user, ipAddress) {
		factors = append(factors, "new IP address")
	}

	if at.Hour() < 6 {
		factors = append(factors, "unusual login time")
	}

	return factors
}

func knownIP(user *models.User, ipAddress string) bool {
	for _, known := range user.KnownIPs {
		if known == ipAddress {
			return true
		}
	}
	return false
}
