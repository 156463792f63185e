package services

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Arnold10-web/ishaazi-realtime/internal/models"
)

// MockUserRepository implements UserRepository and AccountLockRepository
// for testing
type MockUserRepository struct {
	GetByIDFunc            func(ctx context.Context, id string) (*models.User, error)
	ListFunc               func(ctx context.Context, limit, offset int) ([]*models.User, error)
	CreateFunc             func(ctx context.Context, user *models.User) (*models.User, error)
	UpdateFunc             func(ctx context.Context, id string, user *models.User) (*models.User, error)
	DeleteFunc             func(ctx context.Context, id string) error
	GetByEmailFunc         func(ctx context.Context, email string) (*models.User, error)
	RecordLoginSuccessFunc func(ctx context.Context, id, ipAddress string) error
	SetLockFunc            func(ctx context.Context, email string, until time.Time) error
	ClearLockFunc          func(ctx context.Context, email string) error
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) Update(ctx context.Context, id string, user *models.User) (*models.User, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) RecordLoginSuccess(ctx context.Context, id, ipAddress string) error {
	if m.RecordLoginSuccessFunc != nil {
		return m.RecordLoginSuccessFunc(ctx, id, ipAddress)
	}
	return nil
}

func (m *MockUserRepository) SetLock(ctx context.Context, email string, until time.Time) error {
	if m.SetLockFunc != nil {
		return m.SetLockFunc(ctx, email, until)
	}
	return nil
}

func (m *MockUserRepository) ClearLock(ctx context.Context, email string) error {
	if m.ClearLockFunc != nil {
		return m.ClearLockFunc(ctx, email)
	}
	return nil
}

// MockAttemptRepository implements AttemptRepository for testing
type MockAttemptRepository struct {
	RecordAttemptFunc       func(ctx context.Context, attempt *models.LoginAttempt) error
	CountRecentFailuresFunc func(ctx context.Context, email string, since time.Time) (int, error)
	DeleteForEmailFunc      func(ctx context.Context, email string) error
}

func (m *MockAttemptRepository) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	if m.RecordAttemptFunc != nil {
		return m.RecordAttemptFunc(ctx, attempt)
	}
	return nil
}

func (m *MockAttemptRepository) CountRecentFailures(ctx context.Context, email string, since time.Time) (int, error) {
	if m.CountRecentFailuresFunc != nil {
		return m.CountRecentFailuresFunc(ctx, email, since)
	}
	return 0, nil
}

func (m *MockAttemptRepository) DeleteForEmail(ctx context.Context, email string) error {
	if m.DeleteForEmailFunc != nil {
		return m.DeleteForEmailFunc(ctx, email)
	}
	return nil
}

// MockSecurityEventRepository implements SecurityEventRepository for testing
type MockSecurityEventRepository struct {
	CreateFunc func(ctx context.Context, event *models.SecurityEvent) (*models.SecurityEvent, error)
}

func (m *MockSecurityEventRepository) Create(ctx context.Context, event *models.SecurityEvent) (*models.SecurityEvent, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, event)
	}
	return event, nil
}

// MockTokenRevocationRepository implements TokenRevocationRepository for testing
type MockTokenRevocationRepository struct {
	RevokeTokenFunc    func(ctx context.Context, jti, userID, tokenType string, expiresAt time.Time, reason string) error
	IsTokenRevokedFunc func(ctx context.Context, jti string) (bool, error)
}

func (m *MockTokenRevocationRepository) RevokeToken(ctx context.Context, jti, userID, tokenType string, expiresAt time.Time, reason string) error {
	if m.RevokeTokenFunc != nil {
		return m.RevokeTokenFunc(ctx, jti, userID, tokenType, expiresAt, reason)
	}
	return nil
}

func (m *MockTokenRevocationRepository) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if m.IsTokenRevokedFunc != nil {
		return m.IsTokenRevokedFunc(ctx, jti)
	}
	return false, nil
}

// MockLoginGuard implements LoginGuard for testing
type MockLoginGuard struct {
	RecordAttemptFunc            func(ctx context.Context, user *models.User, success bool, ipAddress, userAgent string, failureReason *string) (*models.AttemptRecord, error)
	CheckLockFunc                func(ctx context.Context, user *models.User) (*models.LockStatus, error)
	DetectSuspiciousActivityFunc func(ctx context.Context, user *models.User, ipAddress, userAgent string) []string
}

func (m *MockLoginGuard) RecordAttempt(ctx context.Context, user *models.User, success bool, ipAddress, userAgent string, failureReason *string) (*models.AttemptRecord, error) {
	if m.RecordAttemptFunc != nil {
		return m.RecordAttemptFunc(ctx, user, success, ipAddress, userAgent, failureReason)
	}
	return &models.AttemptRecord{}, nil
}

func (m *MockLoginGuard) CheckLock(ctx context.Context, user *models.User) (*models.LockStatus, error) {
	if m.CheckLockFunc != nil {
		return m.CheckLockFunc(ctx, user)
	}
	return &models.LockStatus{}, nil
}

func (m *MockLoginGuard) DetectSuspiciousActivity(ctx context.Context, user *models.User, ipAddress, userAgent string) []string {
	if m.DetectSuspiciousActivityFunc != nil {
		return m.DetectSuspiciousActivityFunc(ctx, user, ipAddress, userAgent)
	}
	return nil
}

// MockLoginTimer implements LoginTimer for testing
type MockLoginTimer struct {
	WaitFromFunc func(startTime time.Time, success bool)
}

func (m *MockLoginTimer) WaitFrom(startTime time.Time, success bool) {
	if m.WaitFromFunc != nil {
		m.WaitFromFunc(startTime, success)
	}
}

// MockAlertSender implements AlertSender for testing
type MockAlertSender struct {
	SendLockoutAlertFunc            func(ctx context.Context, email string, failedAttempts int, lockedUntil time.Time) error
	SendSuspiciousActivityAlertFunc func(ctx context.Context, email, ipAddress string, factors []string) error
}

func (m *MockAlertSender) SendLockoutAlert(ctx context.Context, email string, failedAttempts int, lockedUntil time.Time) error {
	if m.SendLockoutAlertFunc != nil {
		return m.SendLockoutAlertFunc(ctx, email, failedAttempts, lockedUntil)
	}
	return nil
}

func (m *MockAlertSender) SendSuspiciousActivityAlert(ctx context.Context, email, ipAddress string, factors []string) error {
	if m.SendSuspiciousActivityAlertFunc != nil {
		return m.SendSuspiciousActivityAlertFunc(ctx, email, ipAddress, factors)
	}
	return nil
}

// MockNotificationRepository implements NotificationRepository for testing
type MockNotificationRepository struct {
	CreateFunc      func(ctx context.Context, n *models.Notification) (*models.Notification, error)
	ListForUserFunc func(ctx context.Context, userID string, limit, offset int) ([]*models.Notification, error)
	CountUnreadFunc func(ctx context.Context, userID string) (int64, error)
	MarkReadFunc    func(ctx context.Context, id, userID string) error
	MarkAllReadFunc func(ctx context.Context, userID string) (int64, error)
}

func (m *MockNotificationRepository) Create(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, n)
	}
	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	return n, nil
}

func (m *MockNotificationRepository) ListForUser(ctx context.Context, userID string, limit, offset int) ([]*models.Notification, error) {
	if m.ListForUserFunc != nil {
		return m.ListForUserFunc(ctx, userID, limit, offset)
	}
	return []*models.Notification{}, nil
}

func (m *MockNotificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	if m.CountUnreadFunc != nil {
		return m.CountUnreadFunc(ctx, userID)
	}
	return 0, nil
}

func (m *MockNotificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	if m.MarkReadFunc != nil {
		return m.MarkReadFunc(ctx, id, userID)
	}
	return nil
}

func (m *MockNotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	if m.MarkAllReadFunc != nil {
		return m.MarkAllReadFunc(ctx, userID)
	}
	return 0, nil
}

// MockDeliverer implements Deliverer for testing
type MockDeliverer struct {
	SendToUserFunc   func(userID string, payload interface{}) int
	SendToAdminsFunc func(payload interface{}) int
	BroadcastFunc    func(payload interface{}, excludeUserID string) int
}

func (m *MockDeliverer) SendToUser(userID string, payload interface{}) int {
	if m.SendToUserFunc != nil {
		return m.SendToUserFunc(userID, payload)
	}
	return 0
}

func (m *MockDeliverer) SendToAdmins(payload interface{}) int {
	if m.SendToAdminsFunc != nil {
		return m.SendToAdminsFunc(payload)
	}
	return 0
}

func (m *MockDeliverer) Broadcast(payload interface{}, excludeUserID string) int {
	if m.BroadcastFunc != nil {
		return m.BroadcastFunc(payload, excludeUserID)
	}
	return 0
}

// MockUnreadCache implements UnreadCountCache for testing
type MockUnreadCache struct {
	GetUnreadCountFunc        func(ctx context.Context, userID string) (int64, bool)
	SetUnreadCountFunc        func(ctx context.Context, userID string, count int64)
	InvalidateUnreadCountFunc func(ctx context.Context, userID string)
}

func (m *MockUnreadCache) GetUnreadCount(ctx context.Context, userID string) (int64, bool) {
	if m.GetUnreadCountFunc != nil {
		return m.GetUnreadCountFunc(ctx, userID)
	}
	return 0, false
}

func (m *MockUnreadCache) SetUnreadCount(ctx context.Context, userID string, count int64) {
	if m.SetUnreadCountFunc != nil {
		m.SetUnreadCountFunc(ctx, userID, count)
	}
}

func (m *MockUnreadCache) InvalidateUnreadCount(ctx context.Context, userID string) {
	if m.InvalidateUnreadCountFunc != nil {
		m.InvalidateUnreadCountFunc(ctx, userID)
	}
}

// ============================================================================
// Test data builders
// ============================================================================

func NewTestUser(id, email, name string) *models.User {
	now := time.Now()
	return &models.User{
		ID:        id,
		Email:     email,
		Name:      name,
		Status:    models.StatusActive,
		Role:      models.RoleUser,
		KnownIPs:  []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func NewTestUserWithPassword(id, email, name, passwordHash string) *models.User {
	user := NewTestUser(id, email, name)
	user.PasswordHash = passwordHash
	return user
}

func NewTestAdmin(id, email, name string) *models.User {
	user := NewTestUser(id, email, name)
	user.Role = models.RoleAdmin
	return user
}

func NewTestUserWithStatus(id, email, name, status string) *models.User {
	user := NewTestUser(id, email, name)
	user.Status = status
	return user
}

func NewTestUserLocked(id, email, name string, lockedUntil time.Time) *models.User {
	user := NewTestUser(id, email, name)
	user.AccountLocked = true
	user.LockedUntil = &lockedUntil
	return user
}

func NewTestUserWithKnownIPs(id, email, name string, ips ...string) *models.User {
	user := NewTestUser(id, email, name)
	user.KnownIPs = ips
	return user
}

func NewTestNotification(userID, notificationType, title string) *models.Notification {
	return &models.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      notificationType,
		Title:     title,
		CreatedAt: time.Now(),
	}
}

// Helper to create valid token claims
func NewTokenClaims(userID, email, role, tokenType string) *models.TokenClaims {
	now := time.Now()
	expiresAt := now.Add(15 * time.Minute)
	return &models.TokenClaims{
		Type:   tokenType,
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        fmt.Sprintf("jti_%s_%d", userID, now.Unix()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
}
