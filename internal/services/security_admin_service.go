package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/Arnold10-web/ishaazi-realtime/internal/models"
	"github.com/Arnold10-web/ishaazi-realtime/internal/repositories"
	pkglogger "github.com/Arnold10-web/ishaazi-realtime/pkg/logger"
)

// SecurityEventReader is the subset of SecurityEventRepository methods needed by SecurityAdminService.
type SecurityEventReader interface {
	ListRecent(ctx context.Context, limit, offset int) ([]*models.SecurityEvent, error)
	ListByEmail(ctx context.Context, email string, limit, offset int) ([]*models.SecurityEvent, error)
}

// AttemptHistoryReader is the subset of LoginAttemptRepository methods needed by SecurityAdminService.
type AttemptHistoryReader interface {
	ListRecent(ctx context.Context, email string, since time.Time, limit int) ([]*models.LoginAttempt, error)
}

// SecurityEventEntry is a single item in the security event feed.
type SecurityEventEntry struct {
	ID        string              `json:"id"`
	EventType string              `json:"event_type"`
	Severity  string              `json:"severity"`
	Email     *string             `json:"email,omitempty"`
	UserID    *string             `json:"user_id,omitempty"`
	IPAddress *string             `json:"ip_address,omitempty"`
	Details   models.EventDetails `json:"details,omitempty"`
	CreatedAt string              `json:"created_at"`
}

// SecurityEventFeedResponse contains a page of security events.
type SecurityEventFeedResponse struct {
	Events []SecurityEventEntry `json:"events"`
	Total  int                  `json:"total"`
}

// LoginAttemptEntry is a single login attempt in an account's history.
type LoginAttemptEntry struct {
	IPAddress     string  `json:"ip_address"`
	UserAgent     string  `json:"user_agent,omitempty"`
	Success       bool    `json:"success"`
	FailureReason *string `json:"failure_reason,omitempty"`
	AttemptTime   string  `json:"attempt_time"`
}

// LoginAttemptFeedResponse contains recent login attempts for one account.
type LoginAttemptFeedResponse struct {
	Email    string              `json:"email"`
	Attempts []LoginAttemptEntry `json:"attempts"`
	Total    int                 `json:"total"`
}

// SecurityAdminService aggregates data for the security dashboard endpoints.
type SecurityAdminService struct {
	eventRepo   SecurityEventReader
	attemptRepo AttemptHistoryReader
	logger      *slog.Logger
}

// NewSecurityAdminService creates a new SecurityAdminService.
func NewSecurityAdminService(
	eventRepo *repositories.SecurityEventRepository,
	attemptRepo *repositories.LoginAttemptRepository,
	logger *slog.Logger,
) *SecurityAdminService {
	return &SecurityAdminService{
		eventRepo:   eventRepo,
		attemptRepo: attemptRepo,
		logger:      logger,
	}
}

// RecentEvents returns the newest security events, optionally filtered to
// one account's email. limit is clamped to a maximum of 100.
func (s *SecurityAdminService) RecentEvents(ctx context.Context, email string, limit, offset int) (*SecurityEventFeedResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var (
		events []*models.SecurityEvent
		err    error
	)
	if email != "" {
		events, err = s.eventRepo.ListByEmail(ctx, email, limit, offset)
	} else {
		events, err = s.eventRepo.ListRecent(ctx, limit, offset)
	}
	if err != nil {
		s.logger.Error("security dashboard: failed to fetch events", slog.Any("error", err))
		return nil, err
	}

	entries := make([]SecurityEventEntry, 0, len(events))
	for _, e := range events {
		entries = append(entries, SecurityEventEntry{
			ID:        e.ID.String(),
			EventType: e.EventType,
			Severity:  e.Severity,
			Email:     e.Email,
			UserID:    e.UserID,
			IPAddress: e.IPAddress,
			Details:   e.Details,
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	return &SecurityEventFeedResponse{
		Events: entries,
		Total:  len(entries),
	}, nil
}

// AccountAttempts returns one account's login attempts over the past day.
// limit is clamped to a maximum of 100.
func (s *SecurityAdminService) AccountAttempts(ctx context.Context, email string, limit int) (*LoginAttemptFeedResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	since := time.Now().Add(-24 * time.Hour)
	attempts, err := s.attemptRepo.ListRecent(ctx, email, since, limit)
	if err != nil {
		s.logger.Error("security dashboard: failed to fetch login attempts",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.Any("error", err))
		return nil, err
	}

	entries := make([]LoginAttemptEntry, 0, len(attempts))
	for _, a := range attempts {
		entries = append(entries, LoginAttemptEntry{
			IPAddress:     a.IPAddress,
			UserAgent:     a.UserAgent,
			Success:       a.Success,
			FailureReason: a.FailureReason,
			AttemptTime:   a.AttemptTime.UTC().Format(time.RFC3339),
		})
	}

	return &LoginAttemptFeedResponse{
		Email:    email,
		Attempts: entries,
		Total:    len(entries),
	}, nil
}
