package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arnold10-web/ishaazi-realtime/internal/models"
)

type mockEventReader struct {
	listRecentFunc  func(ctx context.Context, limit, offset int) ([]*models.SecurityEvent, error)
	listByEmailFunc func(ctx context.Context, email string, limit, offset int) ([]*models.SecurityEvent, error)
}

func (m *mockEventReader) ListRecent(ctx context.Context, limit, offset int) ([]*models.SecurityEvent, error) {
	if m.listRecentFunc == nil {
		return []*models.SecurityEvent{}, nil
	}
	return m.listRecentFunc(ctx, limit, offset)
}

func (m *mockEventReader) ListByEmail(ctx context.Context, email string, limit, offset int) ([]*models.SecurityEvent, error) {
	if m.listByEmailFunc == nil {
		return []*models.SecurityEvent{}, nil
	}
	return m.listByEmailFunc(ctx, email, limit, offset)
}

type mockAttemptReader struct {
	listRecentFunc func(ctx context.Context, email string, since time.Time, limit int) ([]*models.LoginAttempt, error)
}

func (m *mockAttemptReader) ListRecent(ctx context.Context, email string, since time.Time, limit int) ([]*models.LoginAttempt, error) {
	if m.listRecentFunc == nil {
		return []*models.LoginAttempt{}, nil
	}
	return m.listRecentFunc(ctx, email, since, limit)
}

func newTestSecurityAdminService(events SecurityEventReader, attempts AttemptHistoryReader) *SecurityAdminService {
	return &SecurityAdminService{
		eventRepo:   events,
		attemptRepo: attempts,
		logger:      slog.Default(),
	}
}

func TestSecurityAdminService_RecentEvents_Success(t *testing.T) {
	email := "farmer@example.com"
	ip := "203.0.113.9"
	created := time.Date(2026, 2, 22, 10, 0, 0, 0, time.UTC)

	events := &mockEventReader{
		listRecentFunc: func(ctx context.Context, limit, offset int) ([]*models.SecurityEvent, error) {
			assert.Equal(t, 50, limit)
			assert.Equal(t, 0, offset)
			return []*models.SecurityEvent{
				{
					ID:        uuid.New(),
					EventType: models.SecurityEventAccountLocked,
					Severity:  models.SeverityHigh,
					Email:     &email,
					IPAddress: &ip,
					Details:   models.EventDetails{"failed_attempts": 5},
					CreatedAt: created,
				},
			}, nil
		},
	}

	svc := newTestSecurityAdminService(events, &mockAttemptReader{})
	feed, err := svc.RecentEvents(context.Background(), "", 0, 0)

	require.NoError(t, err)
	require.Len(t, feed.Events, 1)
	assert.Equal(t, 1, feed.Total)
	assert.Equal(t, "account_locked", feed.Events[0].EventType)
	assert.Equal(t, "high", feed.Events[0].Severity)
	assert.Equal(t, &email, feed.Events[0].Email)
	assert.Equal(t, "2026-02-22T10:00:00Z", feed.Events[0].CreatedAt)
}

func TestSecurityAdminService_RecentEvents_EmailFilterUsesByEmailQuery(t *testing.T) {
	recentCalled := false
	byEmailCalled := false

	events := &mockEventReader{
		listRecentFunc: func(ctx context.Context, limit, offset int) ([]*models.SecurityEvent, error) {
			recentCalled = true
			return []*models.SecurityEvent{}, nil
		},
		listByEmailFunc: func(ctx context.Context, email string, limit, offset int) ([]*models.SecurityEvent, error) {
			byEmailCalled = true
			assert.Equal(t, "farmer@example.com", email)
			assert.Equal(t, 10, limit)
			assert.Equal(t, 20, offset)
			return []*models.SecurityEvent{}, nil
		},
	}

	svc := newTestSecurityAdminService(events, &mockAttemptReader{})
	_, err := svc.RecentEvents(context.Background(), "farmer@example.com", 10, 20)

	require.NoError(t, err)
	assert.True(t, byEmailCalled)
	assert.False(t, recentCalled)
}

func TestSecurityAdminService_RecentEvents_ClampsLimit(t *testing.T) {
	var gotLimit int
	events := &mockEventReader{
		listRecentFunc: func(ctx context.Context, limit, offset int) ([]*models.SecurityEvent, error) {
			gotLimit = limit
			return []*models.SecurityEvent{}, nil
		},
	}

	svc := newTestSecurityAdminService(events, &mockAttemptReader{})
	_, err := svc.RecentEvents(context.Background(), "", 500, -3)

	require.NoError(t, err)
	assert.Equal(t, 50, gotLimit, "out-of-range limit falls back to the default")
}

func TestSecurityAdminService_RecentEvents_RepoError(t *testing.T) {
	events := &mockEventReader{
		listRecentFunc: func(ctx context.Context, limit, offset int) ([]*models.SecurityEvent, error) {
			return nil, errors.New("connection refused")
		},
	}

	svc := newTestSecurityAdminService(events, &mockAttemptReader{})
	_, err := svc.RecentEvents(context.Background(), "", 0, 0)

	assert.Error(t, err)
}

func TestSecurityAdminService_AccountAttempts_Success(t *testing.T) {
	reason := "invalid_password"
	attemptTime := time.Date(2026, 2, 22, 9, 30, 0, 0, time.UTC)

	attempts := &mockAttemptReader{
		listRecentFunc: func(ctx context.Context, email string, since time.Time, limit int) ([]*models.LoginAttempt, error) {
			assert.Equal(t, "farmer@example.com", email)
			assert.Equal(t, 50, limit)
			assert.WithinDuration(t, time.Now().Add(-24*time.Hour), since, 5*time.Second,
				"history window is the past day")
			return []*models.LoginAttempt{
				{
					Email:         email,
					IPAddress:     "203.0.113.9",
					UserAgent:     "Mozilla/5.0",
					AttemptTime:   attemptTime,
					Success:       false,
					FailureReason: &reason,
				},
			}, nil
		},
	}

	svc := newTestSecurityAdminService(&mockEventReader{}, attempts)
	feed, err := svc.AccountAttempts(context.Background(), "farmer@example.com", 0)

	require.NoError(t, err)
	assert.Equal(t, "farmer@example.com", feed.Email)
	require.Len(t, feed.Attempts, 1)
	assert.Equal(t, "203.0.113.9", feed.Attempts[0].IPAddress)
	assert.False(t, feed.Attempts[0].Success)
	assert.Equal(t, &reason, feed.Attempts[0].FailureReason)
	assert.Equal(t, "2026-02-22T09:30:00Z", feed.Attempts[0].AttemptTime)
}

func TestSecurityAdminService_AccountAttempts_RepoError(t *testing.T) {
	attempts := &mockAttemptReader{
		listRecentFunc: func(ctx context.Context, email string, since time.Time, limit int) ([]*models.LoginAttempt, error) {
			return nil, errors.New("query timeout")
		},
	}

	svc := newTestSecurityAdminService(&mockEventReader{}, attempts)
	_, err := svc.AccountAttempts(context.Background(), "farmer@example.com", 10)

	assert.Error(t, err)
}
