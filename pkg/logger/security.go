package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuthEvent represents an authentication attempt for security logging
type AuthEvent struct {
	EventType     string
	Email         string
	UserID        string
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
}

// SecurityLogger provides structured security event logging
type SecurityLogger struct {
	logger *slog.Logger
}

// NewSecurityLogger creates a new security logger
func NewSecurityLogger(logger *slog.Logger) *SecurityLogger {
	return &SecurityLogger{
		logger: logger,
	}
}

// LogAuthAttempt logs authentication attempts
func (sl *SecurityLogger) LogAuthAttempt(event AuthEvent) {
	attrs := []slog.Attr{
		slog.String("security_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.Email != "" {
		attrs = append(attrs, slog.String("email", SanitizedEmail(event.Email)))
	}
	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}

	if event.Success {
		sl.logger.LogAttrs(context.Background(), slog.LevelInfo, "security", attrs...)
	} else {
		sl.logger.LogAttrs(context.Background(), slog.LevelWarn, "security", attrs...)
	}
}

// LogAccountLockout logs account lockout events at high severity
func (sl *SecurityLogger) LogAccountLockout(email, ipAddress string, failedAttempts int, lockoutDuration time.Duration) {
	attrs := []slog.Attr{
		slog.String("security_type", "lockout"),
		slog.String("event_type", "account_locked"),
		slog.String("severity", "high"),
		slog.String("email", SanitizedEmail(email)),
		slog.String("reason", "too many failed login attempts"),
		slog.Int("failed_attempts", failedAttempts),
		slog.Duration("lockout_duration", lockoutDuration),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if ipAddress != "" {
		attrs = append(attrs, slog.String("ip_address", ipAddress))
	}

	sl.logger.LogAttrs(context.Background(), slog.LevelWarn, "security", attrs...)
}

// LogSuspiciousActivity logs suspicious login patterns at medium severity
func (sl *SecurityLogger) LogSuspiciousActivity(email, ipAddress string, reasons []string) {
	attrs := []slog.Attr{
		slog.String("security_type", "suspicious_activity"),
		slog.String("event_type", "suspicious_login"),
		slog.String("severity", "medium"),
		slog.String("email", SanitizedEmail(email)),
		slog.Any("reasons", reasons),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if ipAddress != "" {
		attrs = append(attrs, slog.String("ip_address", ipAddress))
	}

	sl.logger.LogAttrs(context.Background(), slog.LevelWarn, "security", attrs...)
}

// LogAccountUnlocked logs lock clearance, whether by expiry or admin action
func (sl *SecurityLogger) LogAccountUnlocked(email, unlockedBy string) {
	attrs := []slog.Attr{
		slog.String("security_type", "lockout"),
		slog.String("event_type", "account_unlocked"),
		slog.String("email", SanitizedEmail(email)),
		slog.String("unlocked_by", unlockedBy),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	sl.logger.LogAttrs(context.Background(), slog.LevelInfo, "security", attrs...)
}
