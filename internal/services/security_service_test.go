package services

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arnold10-web/ishaazi-realtime/internal/config"
	"github.com/Arnold10-web/ishaazi-realtime/internal/models"
	pkglogger "github.com/Arnold10-web/ishaazi-realtime/pkg/logger"
)

func testSecurityConfig() config.SecurityConfig {
	return config.SecurityConfig{
		AttemptWindow:    15 * time.Minute,
		MaxFailedLogins:  5,
		LockoutDuration:  30 * time.Minute,
		AttemptRetention: 24 * time.Hour,
	}
}

func newTestSecurityService(attempts AttemptRepository, users AccountLockRepository, events SecurityEventRepository) *SecurityService {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	return NewSecurityService(attempts, users, events, pkglogger.NewSecurityLogger(logger), testSecurityConfig(), logger)
}

// memoryAttemptStore implements AttemptRepository over a slice, with
// real window filtering, for tests that span multiple attempts.
type memoryAttemptStore struct {
	attempts []*models.LoginAttempt
}

func (m *memoryAttemptStore) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	m.attempts = append(m.attempts, attempt)
	return nil
}

func (m *memoryAttemptStore) CountRecentFailures(ctx context.Context, email string, since time.Time) (int, error) {
	count := 0
	for _, a := range m.attempts {
		if a.Email == email && !a.Success && !a.AttemptTime.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *memoryAttemptStore) DeleteForEmail(ctx context.Context, email string) error {
	kept := m.attempts[:0]
	for _, a := range m.attempts {
		if a.Email != email {
			kept = append(kept, a)
		}
	}
	m.attempts = kept
	return nil
}

func failureReason(reason string) *string {
	return &reason
}

// ============================================================================
// RecordAttempt
// ============================================================================

func TestSecurityServiceRecordAttempt_BelowThresholdStaysUnlocked(t *testing.T) {
	var stored *models.LoginAttempt
	attempts := &MockAttemptRepository{
		RecordAttemptFunc: func(ctx context.Context, attempt *models.LoginAttempt) error {
			stored = attempt
			return nil
		},
		CountRecentFailuresFunc: func(ctx context.Context, email string, since time.Time) (int, error) {
			return 2, nil
		},
	}
	users := &MockUserRepository{}
	events := &MockSecurityEventRepository{}

	service := newTestSecurityService(attempts, users, events)
	user := NewTestUser("user123", "farmer@example.com", "Farmer")

	record, err := service.RecordAttempt(context.Background(), user, false, "192.168.1.1", "Mozilla/5.0", failureReason("invalid credentials"))

	require.NoError(t, err)
	assert.False(t, record.Locked)
	assert.Nil(t, record.LockedUntil)
	assert.Equal(t, 2, record.FailedAttempts)
	assert.False(t, user.AccountLocked)

	require.NotNil(t, stored)
	assert.Equal(t, "farmer@example.com", stored.Email)
	assert.Equal(t, "192.168.1.1", stored.IPAddress)
	assert.False(t, stored.Success)
	require.NotNil(t, stored.FailureReason)
	assert.Equal(t, "invalid credentials", *stored.FailureReason)
	assert.Equal(t, 24*time.Hour, stored.ExpiresAt.Sub(stored.AttemptTime))
}

func TestSecurityServiceRecordAttempt_LocksAtThreshold(t *testing.T) {
	fixed := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

	var lockEmail string
	var lockUntil time.Time
	users := &MockUserRepository{
		SetLockFunc: func(ctx context.Context, email string, until time.Time) error {
			lockEmail = email
			lockUntil = until
			return nil
		},
	}
	attempts := &MockAttemptRepository{
		CountRecentFailuresFunc: func(ctx context.Context, email string, since time.Time) (int, error) {
			assert.Equal(t, fixed.Add(-15*time.Minute), since)
			return 5, nil
		},
	}
	var recordedEvent *models.SecurityEvent
	events := &MockSecurityEventRepository{
		CreateFunc: func(ctx context.Context, event *models.SecurityEvent) (*models.SecurityEvent, error) {
			recordedEvent = event
			return event, nil
		},
	}

	service := newTestSecurityService(attempts, users, events)
	service.now = func() time.Time { return fixed }
	user := NewTestUser("user123", "farmer@example.com", "Farmer")

	record, err := service.RecordAttempt(context.Background(), user, false, "192.168.1.1", "Mozilla/5.0", failureReason("invalid credentials"))

	require.NoError(t, err)
	assert.True(t, record.Locked)
	require.NotNil(t, record.LockedUntil)
	assert.Equal(t, fixed.Add(30*time.Minute), *record.LockedUntil)
	assert.Equal(t, 5, record.FailedAttempts)

	assert.Equal(t, "farmer@example.com", lockEmail)
	assert.Equal(t, fixed.Add(30*time.Minute), lockUntil)
	assert.True(t, user.AccountLocked)
	require.NotNil(t, user.LockedUntil)
	assert.Equal(t, fixed.Add(30*time.Minute), *user.LockedUntil)

	require.NotNil(t, recordedEvent)
	assert.Equal(t, models.SecurityEventAccountLocked, recordedEvent.EventType)
	assert.Equal(t, models.SeverityHigh, recordedEvent.Severity)
	assert.Equal(t, 5, recordedEvent.Details["failed_attempts"])
	assert.Equal(t, 30.0, recordedEvent.Details["lockout_minutes"])
}

func TestSecurityServiceRecordAttempt_AlreadyLockedDoesNotExtend(t *testing.T) {
	fixed := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	existingLock := fixed.Add(25 * time.Minute)

	setLockCalls := 0
	users := &MockUserRepository{
		SetLockFunc: func(ctx context.Context, email string, until time.Time) error {
			setLockCalls++
			return nil
		},
	}
	attempts := &MockAttemptRepository{
		CountRecentFailuresFunc: func(ctx context.Context, email string, since time.Time) (int, error) {
			return 6, nil
		},
	}
	eventCalls := 0
	events := &MockSecurityEventRepository{
		CreateFunc: func(ctx context.Context, event *models.SecurityEvent) (*models.SecurityEvent, error) {
			eventCalls++
			return event, nil
		},
	}

	service := newTestSecurityService(attempts, users, events)
	service.now = func() time.Time { return fixed }
	user := NewTestUserLocked("user123", "farmer@example.com", "Farmer", existingLock)

	record, err := service.RecordAttempt(context.Background(), user, false, "192.168.1.1", "Mozilla/5.0", failureReason("account locked"))

	require.NoError(t, err)
	assert.True(t, record.Locked)
	require.NotNil(t, record.LockedUntil)
	assert.Equal(t, existingLock, *record.LockedUntil)
	assert.Equal(t, 0, setLockCalls)
	assert.Equal(t, 0, eventCalls)
}

func TestSecurityServiceRecordAttempt_PersistFailureIsHardError(t *testing.T) {
	attempts := &MockAttemptRepository{
		RecordAttemptFunc: func(ctx context.Context, attempt *models.LoginAttempt) error {
			return models.ErrInternalServer
		},
	}

	service := newTestSecurityService(attempts, &MockUserRepository{}, &MockSecurityEventRepository{})
	user := NewTestUser("user123", "farmer@example.com", "Farmer")

	record, err := service.RecordAttempt(context.Background(), user, false, "192.168.1.1", "Mozilla/5.0", nil)

	assert.Error(t, err)
	assert.Nil(t, record)
}

func TestSecurityServiceRecordAttempt_CountFailureIsHardError(t *testing.T) {
	attempts := &MockAttemptRepository{
		CountRecentFailuresFunc: func(ctx context.Context, email string, since time.Time) (int, error) {
			return 0, models.ErrInternalServer
		},
	}

	service := newTestSecurityService(attempts, &MockUserRepository{}, &MockSecurityEventRepository{})
	user := NewTestUser("user123", "farmer@example.com", "Farmer")

	record, err := service.RecordAttempt(context.Background(), user, false, "192.168.1.1", "Mozilla/5.0", nil)

	assert.Error(t, err)
	assert.Nil(t, record)
}

func TestSecurityServiceRecordAttempt_LockPersistFailureIsHardError(t *testing.T) {
	attempts := &MockAttemptRepository{
		CountRecentFailuresFunc: func(ctx context.Context, email string, since time.Time) (int, error) {
			return 5, nil
		},
	}
	users := &MockUserRepository{
		SetLockFunc: func(ctx context.Context, email string, until time.Time) error {
			return models.ErrInternalServer
		},
	}

	service := newTestSecurityService(attempts, users, &MockSecurityEventRepository{})
	user := NewTestUser("user123", "farmer@example.com", "Farmer")

	record, err := service.RecordAttempt(context.Background(), user, false, "192.168.1.1", "Mozilla/5.0", nil)

	assert.Error(t, err)
	assert.Nil(t, record)
	assert.False(t, user.AccountLocked)
}

func TestSecurityServiceRecordAttempt_EventFailureDoesNotBlockLock(t *testing.T) {
	attempts := &MockAttemptRepository{
		CountRecentFailuresFunc: func(ctx context.Context, email string, since time.Time) (int, error) {
			return 5, nil
		},
	}
	events := &MockSecurityEventRepository{
		CreateFunc: func(ctx context.Context, event *models.SecurityEvent) (*models.SecurityEvent, error) {
			return nil, models.ErrInternalServer
		},
	}

	service := newTestSecurityService(attempts, &MockUserRepository{}, events)
	user := NewTestUser("user123", "farmer@example.com", "Farmer")

	record, err := service.RecordAttempt(context.Background(), user, false, "192.168.1.1", "Mozilla/5.0", nil)

	require.NoError(t, err)
	assert.True(t, record.Locked)
	assert.True(t, user.AccountLocked)
}

func TestSecurityServiceRecordAttempt_SuccessfulAttemptRecorded(t *testing.T) {
	var stored *models.LoginAttempt
	attempts := &MockAttemptRepository{
		RecordAttemptFunc: func(ctx context.Context, attempt *models.LoginAttempt) error {
			stored = attempt
			return nil
		},
	}

	service := newTestSecurityService(attempts, &MockUserRepository{}, &MockSecurityEventRepository{})
	user := NewTestUser("user123", "farmer@example.com", "Farmer")

	record, err := service.RecordAttempt(context.Background(), user, true, "192.168.1.1", "Mozilla/5.0", nil)

	require.NoError(t, err)
	assert.False(t, record.Locked)
	require.NotNil(t, stored)
	assert.True(t, stored.Success)
	assert.Nil(t, stored.FailureReason)
}

func TestSecurityServiceRecordAttempt_StaleAttemptsExcluded(t *testing.T) {
	fixed := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	store := &memoryAttemptStore{}

	// Four failures that fell out of the sliding window.
	for i := 0; i < 4; i++ {
		store.attempts = append(store.attempts, &models.LoginAttempt{
			Email:       "farmer@example.com",
			AttemptTime: fixed.Add(-16 * time.Minute),
			Success:     false,
		})
	}

	service := newTestSecurityService(store, &MockUserRepository{}, &MockSecurityEventRepository{})
	service.now = func() time.Time { return fixed }
	user := NewTestUser("user123", "farmer@example.com", "Farmer")

	record, err := service.RecordAttempt(context.Background(), user, false, "192.168.1.1", "Mozilla/5.0", failureReason("invalid credentials"))

	require.NoError(t, err)
	assert.False(t, record.Locked)
	assert.Equal(t, 1, record.FailedAttempts)
}

// ============================================================================
// CheckLock
// ============================================================================

func TestSecurityServiceCheckLock_UnlockedAccount(t *testing.T) {
	service := newTestSecurityService(&MockAttemptRepository{}, &MockUserRepository{}, &MockSecurityEventRepository{})
	user := NewTestUser("user123", "farmer@example.com", "Farmer")

	status, err := service.CheckLock(context.Background(), user)

	require.NoError(t, err)
	assert.False(t, status.Locked)
	assert.Equal(t, 0, status.RemainingMinutes)
}

func TestSecurityServiceCheckLock_ActiveLockRemainingMinutes(t *testing.T) {
	fixed := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		remaining time.Duration
		want      int
	}{
		{"full lockout", 30 * time.Minute, 30},
		{"partial minute rounds up", 29*time.Minute + time.Second, 30},
		{"just over a minute", 61 * time.Second, 2},
		{"exactly one minute", time.Minute, 1},
		{"final second", time.Second, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := newTestSecurityService(&MockAttemptRepository{}, &MockUserRepository{}, &MockSecurityEventRepository{})
			service.now = func() time.Time { return fixed }
			user := NewTestUserLocked("user123", "farmer@example.com", "Farmer", fixed.Add(tt.remaining))

			status, err := service.CheckLock(context.Background(), user)

			require.NoError(t, err)
			assert.True(t, status.Locked)
			assert.Equal(t, tt.want, status.RemainingMinutes)
		})
	}
}

func TestSecurityServiceCheckLock_ExpiredLockClearsStateAndHistory(t *testing.T) {
	fixed := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

	clearedEmail := ""
	users := &MockUserRepository{
		ClearLockFunc: func(ctx context.Context, email string) error {
			clearedEmail = email
			return nil
		},
	}
	deletedEmail := ""
	attempts := &MockAttemptRepository{
		DeleteForEmailFunc: func(ctx context.Context, email string) error {
			deletedEmail = email
			return nil
		},
	}

	service := newTestSecurityService(attempts, users, &MockSecurityEventRepository{})
	service.now = func() time.Time { return fixed }
	user := NewTestUserLocked("user123", "farmer@example.com", "Farmer", fixed.Add(-time.Second))

	status, err := service.CheckLock(context.Background(), user)

	require.NoError(t, err)
	assert.False(t, status.Locked)
	assert.Equal(t, "farmer@example.com", clearedEmail)
	assert.Equal(t, "farmer@example.com", deletedEmail)
	assert.False(t, user.AccountLocked)
	assert.Nil(t, user.LockedUntil)
}

func TestSecurityServiceCheckLock_ExpiryBoundaryUnlocks(t *testing.T) {
	fixed := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

	service := newTestSecurityService(&MockAttemptRepository{}, &MockUserRepository{}, &MockSecurityEventRepository{})
	service.now = func() time.Time { return fixed }
	user := NewTestUserLocked("user123", "farmer@example.com", "Farmer", fixed)

	status, err := service.CheckLock(context.Background(), user)

	require.NoError(t, err)
	assert.False(t, status.Locked)
}

func TestSecurityServiceCheckLock_ClearFailureIsHardError(t *testing.T) {
	fixed := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

	users := &MockUserRepository{
		ClearLockFunc: func(ctx context.Context, email string) error {
			return models.ErrInternalServer
		},
	}

	service := newTestSecurityService(&MockAttemptRepository{}, users, &MockSecurityEventRepository{})
	service.now = func() time.Time { return fixed }
	user := NewTestUserLocked("user123", "farmer@example.com", "Farmer", fixed.Add(-time.Minute))

	status, err := service.CheckLock(context.Background(), user)

	assert.Error(t, err)
	assert.Nil(t, status)
	assert.True(t, user.AccountLocked)
}

func TestSecurityServiceCheckLock_HistoryResetFailureIsHardError(t *testing.T) {
	fixed := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

	attempts := &MockAttemptRepository{
		DeleteForEmailFunc: func(ctx context.Context, email string) error {
			return models.ErrInternalServer
		},
	}

	service := newTestSecurityService(attempts, &MockUserRepository{}, &MockSecurityEventRepository{})
	service.now = func() time.Time { return fixed }
	user := NewTestUserLocked("user123", "farmer@example.com", "Farmer", fixed.Add(-time.Minute))

	status, err := service.CheckLock(context.Background(), user)

	assert.Error(t, err)
	assert.Nil(t, status)
}

// ============================================================================
// DetectSuspiciousActivity
// ============================================================================

func TestSecurityServiceDetectSuspicious_NewIPAddress(t *testing.T) {
	var recordedEvent *models.SecurityEvent
	events := &MockSecurityEventRepository{
		CreateFunc: func(ctx context.Context, event *models.SecurityEvent) (*models.SecurityEvent, error) {
			recordedEvent = event
			return event, nil
		},
	}

	service := newTestSecurityService(&MockAttemptRepository{}, &MockUserRepository{}, events)
	service.now = func() time.Time { return time.Date(2025, 6, 10, 14, 0, 0, 0, time.Local) }
	user := NewTestUserWithKnownIPs("user123", "farmer@example.com", "Farmer", "10.0.0.1")

	factors := service.DetectSuspiciousActivity(context.Background(), user, "203.0.113.9", "Mozilla/5.0")

	assert.Equal(t, []string{"new IP address"}, factors)
	require.NotNil(t, recordedEvent)
	assert.Equal(t, models.SecurityEventSuspiciousLogin, recordedEvent.EventType)
	assert.Equal(t, models.SeverityMedium, recordedEvent.Severity)
}

func TestSecurityServiceDetectSuspicious_UnusualLoginTime(t *testing.T) {
	service := newTestSecurityService(&MockAttemptRepository{}, &MockUserRepository{}, &MockSecurityEventRepository{})
	service.now = func() time.Time { return time.Date(2025, 6, 10, 3, 0, 0, 0, time.Local) }
	user := NewTestUserWithKnownIPs("user123", "farmer@example.com", "Farmer", "10.0.0.1")

	factors := service.DetectSuspiciousActivity(context.Background(), user, "10.0.0.1", "Mozilla/5.0")

	assert.Equal(t, []string{"unusual login time"}, factors)
}

func TestSecurityServiceDetectSuspicious_AfternoonKnownIPClean(t *testing.T) {
	eventCalls := 0
	events := &MockSecurityEventRepository{
		CreateFunc: func(ctx context.Context, event *models.SecurityEvent) (*models.SecurityEvent, error) {
			eventCalls++
			return event, nil
		},
	}

	service := newTestSecurityService(&MockAttemptRepository{}, &MockUserRepository{}, events)
	service.now = func() time.Time { return time.Date(2025, 6, 10, 14, 0, 0, 0, time.Local) }
	user := NewTestUserWithKnownIPs("user123", "farmer@example.com", "Farmer", "10.0.0.1")

	factors := service.DetectSuspiciousActivity(context.Background(), user, "10.0.0.1", "Mozilla/5.0")

	assert.Nil(t, factors)
	assert.Equal(t, 0, eventCalls)
}

func TestSecurityServiceDetectSuspicious_BothFactors(t *testing.T) {
	service := newTestSecurityService(&MockAttemptRepository{}, &MockUserRepository{}, &MockSecurityEventRepository{})
	service.now = func() time.Time { return time.Date(2025, 6, 10, 2, 30, 0, 0, time.Local) }
	user := NewTestUserWithKnownIPs("user123", "farmer@example.com", "Farmer", "10.0.0.1")

	factors := service.DetectSuspiciousActivity(context.Background(), user, "203.0.113.9", "Mozilla/5.0")

	assert.Equal(t, []string{"new IP address", "unusual login time"}, factors)
}

func TestSecurityServiceDetectSuspicious_MissingIPSkipsIPFactor(t *testing.T) {
	service := newTestSecurityService(&MockAttemptRepository{}, &MockUserRepository{}, &MockSecurityEventRepository{})
	service.now = func() time.Time { return time.Date(2025, 6, 10, 14, 0, 0, 0, time.Local) }
	user := NewTestUser("user123", "farmer@example.com", "Farmer")

	factors := service.DetectSuspiciousActivity(context.Background(), user, "", "Mozilla/5.0")

	assert.Nil(t, factors)
}

// ============================================================================
// Unlock
// ============================================================================

func TestSecurityServiceUnlock_ClearsLockAndHistory(t *testing.T) {
	clearedEmail := ""
	users := &MockUserRepository{
		ClearLockFunc: func(ctx context.Context, email string) error {
			clearedEmail = email
			return nil
		},
	}
	deletedEmail := ""
	attempts := &MockAttemptRepository{
		DeleteForEmailFunc: func(ctx context.Context, email string) error {
			deletedEmail = email
			return nil
		},
	}
	var recordedEvent *models.SecurityEvent
	events := &MockSecurityEventRepository{
		CreateFunc: func(ctx context.Context, event *models.SecurityEvent) (*models.SecurityEvent, error) {
			recordedEvent = event
			return event, nil
		},
	}

	service := newTestSecurityService(attempts, users, events)
	user := NewTestUserLocked("user123", "farmer@example.com", "Farmer", time.Now().Add(20*time.Minute))

	err := service.Unlock(context.Background(), user, "admin@example.com")

	require.NoError(t, err)
	assert.Equal(t, "farmer@example.com", clearedEmail)
	assert.Equal(t, "farmer@example.com", deletedEmail)
	assert.False(t, user.AccountLocked)
	assert.Nil(t, user.LockedUntil)

	require.NotNil(t, recordedEvent)
	assert.Equal(t, models.SecurityEventAccountUnlocked, recordedEvent.EventType)
	assert.Equal(t, models.SeverityLow, recordedEvent.Severity)
	assert.Equal(t, "admin@example.com", recordedEvent.Details["unlocked_by"])
}

// ============================================================================
// Full lockout lifecycle
// ============================================================================

func TestSecurityServiceLockoutLifecycle(t *testing.T) {
	start := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	current := start

	store := &memoryAttemptStore{}
	users := &MockUserRepository{}
	service := newTestSecurityService(store, users, &MockSecurityEventRepository{})
	service.now = func() time.Time { return current }

	user := NewTestUser("user123", "farmer@example.com", "Farmer")
	ctx := context.Background()

	// Failures at t=0..3 minutes stay below the threshold.
	for i := 0; i < 4; i++ {
		current = start.Add(time.Duration(i) * time.Minute)
		record, err := service.RecordAttempt(ctx, user, false, "192.168.1.1", "Mozilla/5.0", failureReason("invalid credentials"))
		require.NoError(t, err)
		assert.False(t, record.Locked, "attempt %d should not lock", i+1)
		assert.Equal(t, i+1, record.FailedAttempts)
	}

	// The fifth failure at t=4 minutes trips the lock.
	current = start.Add(4 * time.Minute)
	record, err := service.RecordAttempt(ctx, user, false, "192.168.1.1", "Mozilla/5.0", failureReason("invalid credentials"))
	require.NoError(t, err)
	assert.True(t, record.Locked)
	require.NotNil(t, record.LockedUntil)
	lockedUntil := *record.LockedUntil
	assert.Equal(t, current.Add(30*time.Minute), lockedUntil)

	status, err := service.CheckLock(ctx, user)
	require.NoError(t, err)
	assert.True(t, status.Locked)
	assert.Equal(t, 30, status.RemainingMinutes)

	// One minute later the account is still locked, and another failure
	// does not push the expiry out.
	current = start.Add(5 * time.Minute)
	status, err = service.CheckLock(ctx, user)
	require.NoError(t, err)
	assert.True(t, status.Locked)
	assert.Equal(t, 29, status.RemainingMinutes)

	record, err = service.RecordAttempt(ctx, user, false, "192.168.1.1", "Mozilla/5.0", failureReason("account locked"))
	require.NoError(t, err)
	assert.True(t, record.Locked)
	assert.Equal(t, lockedUntil, *record.LockedUntil)

	// One second past expiry the lock clears itself and the history
	// resets, so the next failure counts from one again.
	current = lockedUntil.Add(time.Second)
	status, err = service.CheckLock(ctx, user)
	require.NoError(t, err)
	assert.False(t, status.Locked)
	assert.False(t, user.AccountLocked)
	assert.Empty(t, store.attempts)

	record, err = service.RecordAttempt(ctx, user, false, "192.168.1.1", "Mozilla/5.0", failureReason("invalid credentials"))
	require.NoError(t, err)
	assert.False(t, record.Locked)
	assert.Equal(t, 1, record.FailedAttempts)
}
