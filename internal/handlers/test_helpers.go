package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/Arnold10-web/ishaazi-realtime/internal/auth"
	"github.com/Arnold10-web/ishaazi-realtime/internal/models"
	"github.com/Arnold10-web/ishaazi-realtime/internal/realtime"
	"github.com/Arnold10-web/ishaazi-realtime/internal/services"
	pkghttp "github.com/Arnold10-web/ishaazi-realtime/pkg/http"
)

// NewTestRequest builds a request with a JSON-encoded body and the matching
// Content-Type header
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withClaims(req *http.Request, userID, email, role string) *http.Request {
	claims := &models.TokenClaims{
		UserID: userID,
		Email:  email,
		Role:   role,
		Type:   "access",
	}
	return req.WithContext(context.WithValue(req.Context(), auth.UserContextKey, claims))
}

// WithAuthContext attaches regular-user claims, as AuthMiddleware would after
// validating a token
func WithAuthContext(req *http.Request, userID, email string) *http.Request {
	return withClaims(req, userID, email, models.RoleUser)
}

// WithAdminContext attaches admin claims
func WithAdminContext(req *http.Request, userID, email string) *http.Request {
	return withClaims(req, userID, email, models.RoleAdmin)
}

// WithTokenContext adds the raw bearer token to the request context, the way
// AuthMiddleware does, so logout handlers can revoke it
func WithTokenContext(req *http.Request, token string) *http.Request {
	ctx := context.WithValue(req.Context(), auth.TokenContextKey, token)
	return req.WithContext(ctx)
}

// AssertJSONResponse checks status and content type, then decodes the body
// into target when one is given
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "unexpected status")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "unexpected content type")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "body should decode into %T", target)
	}
}

// AssertErrorResponse checks that the body follows the error envelope with the
// expected machine-readable code and a non-empty message
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "unexpected status")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "body should decode as an error envelope")
	assert.Equal(t, expectedError, resp.Error, "unexpected error code")
	assert.NotEmpty(t, resp.Message, "error message should not be empty")
}

// MockAuthService is a func-field fake for AuthServiceInterface. Unset
// fields fall back to benign defaults.
type MockAuthService struct {
	LoginFunc        func(ctx context.Context, email, password, ipAddress, userAgent string) (*services.AuthResponse, error)
	RegisterFunc     func(ctx context.Context, email, password, name string) (*services.AuthResponse, error)
	RefreshTokenFunc func(ctx context.Context, refreshToken string) (*services.AuthResponse, error)
	LogoutFunc       func(ctx context.Context, accessToken, refreshToken string) error
}

func (m *MockAuthService) Login(ctx context.Context, email, password, ipAddress, userAgent string) (*services.AuthResponse, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, email, password, ipAddress, userAgent)
}

func (m *MockAuthService) Register(ctx context.Context, email, password, name string) (*services.AuthResponse, error) {
	if m.RegisterFunc == nil {
		return nil, models.ErrConflict
	}
	return m.RegisterFunc(ctx, email, password, name)
}

func (m *MockAuthService) RefreshToken(ctx context.Context, refreshToken string) (*services.AuthResponse, error) {
	if m.RefreshTokenFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.RefreshTokenFunc(ctx, refreshToken)
}

func (m *MockAuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if m.LogoutFunc == nil {
		return nil
	}
	return m.LogoutFunc(ctx, accessToken, refreshToken)
}

// MockUserService implements UserService for testing
type MockUserService struct {
	GetUserByIDFunc func(ctx context.Context, id string) (*models.User, error)
	ListUsersFunc   func(ctx context.Context, limit, offset int) ([]*models.User, error)
	CreateUserFunc  func(ctx context.Context, user *models.User, password string) (*models.User, error)
	UpdateUserFunc  func(ctx context.Context, id string, user *models.User) (*models.User, error)
	DeleteUserFunc  func(ctx context.Context, id string) error
}

func (m *MockUserService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetUserByIDFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetUserByIDFunc(ctx, id)
}

func (m *MockUserService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListUsersFunc == nil {
		return []*models.User{}, nil
	}
	return m.ListUsersFunc(ctx, limit, offset)
}

func (m *MockUserService) CreateUser(ctx context.Context, user *models.User, password string) (*models.User, error) {
	if m.CreateUserFunc == nil {
		return nil, models.ErrConflict
	}
	return m.CreateUserFunc(ctx, user, password)
}

func (m *MockUserService) UpdateUser(ctx context.Context, id string, user *models.User) (*models.User, error) {
	if m.UpdateUserFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateUserFunc(ctx, id, user)
}

func (m *MockUserService) DeleteUser(ctx context.Context, id string) error {
	if m.DeleteUserFunc == nil {
		return nil
	}
	return m.DeleteUserFunc(ctx, id)
}

// MockAccountUnlocker implements AccountUnlocker for testing
type MockAccountUnlocker struct {
	UnlockFunc func(ctx context.Context, user *models.User, unlockedBy string) error
}

func (m *MockAccountUnlocker) Unlock(ctx context.Context, user *models.User, unlockedBy string) error {
	if m.UnlockFunc == nil {
		return nil
	}
	return m.UnlockFunc(ctx, user, unlockedBy)
}

// MockNotificationService implements NotificationServiceInterface for testing
type MockNotificationService struct {
	NotifyFunc                func(ctx context.Context, userID, notificationType, title, message string, data models.NotificationData) (*models.Notification, error)
	NotifyAdminsFunc          func(ctx context.Context, title, message string, data models.NotificationData) int
	BroadcastAnnouncementFunc func(ctx context.Context, title, message string, data models.NotificationData, excludeUserID string) int
	ListForUserFunc           func(ctx context.Context, userID string, limit, offset int) ([]*models.Notification, error)
	UnreadCountFunc           func(ctx context.Context, userID string) (int64, error)
	MarkReadFunc              func(ctx context.Context, notificationID, userID string) error
	MarkAllReadFunc           func(ctx context.Context, userID string) (int64, error)
}

func (m *MockNotificationService) Notify(ctx context.Context, userID, notificationType, title, message string, data models.NotificationData) (*models.Notification, error) {
	if m.NotifyFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.NotifyFunc(ctx, userID, notificationType, title, message, data)
}

func (m *MockNotificationService) NotifyAdmins(ctx context.Context, title, message string, data models.NotificationData) int {
	if m.NotifyAdminsFunc == nil {
		return 0
	}
	return m.NotifyAdminsFunc(ctx, title, message, data)
}

func (m *MockNotificationService) BroadcastAnnouncement(ctx context.Context, title, message string, data models.NotificationData, excludeUserID string) int {
	if m.BroadcastAnnouncementFunc == nil {
		return 0
	}
	return m.BroadcastAnnouncementFunc(ctx, title, message, data, excludeUserID)
}

func (m *MockNotificationService) ListForUser(ctx context.Context, userID string, limit, offset int) ([]*models.Notification, error) {
	if m.ListForUserFunc == nil {
		return []*models.Notification{}, nil
	}
	return m.ListForUserFunc(ctx, userID, limit, offset)
}

func (m *MockNotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	if m.UnreadCountFunc == nil {
		return 0, nil
	}
	return m.UnreadCountFunc(ctx, userID)
}

func (m *MockNotificationService) MarkRead(ctx context.Context, notificationID, userID string) error {
	if m.MarkReadFunc == nil {
		return nil
	}
	return m.MarkReadFunc(ctx, notificationID, userID)
}

func (m *MockNotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	if m.MarkAllReadFunc == nil {
		return 0, nil
	}
	return m.MarkAllReadFunc(ctx, userID)
}

// MockStatsProvider implements StatsProvider for testing
type MockStatsProvider struct {
	StatsFunc func() realtime.Stats
}

func (m *MockStatsProvider) Stats() realtime.Stats {
	if m.StatsFunc == nil {
		return realtime.Stats{}
	}
	return m.StatsFunc()
}

// WithChiRouteContext seeds chi URL parameters on the request context, since
// handlers under test are invoked directly rather than through the router
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// WithChiIDFromURL sets the last path segment as the "id" route parameter,
// matching routes of the /users/{id} shape
func WithChiIDFromURL(r *http.Request) *http.Request {
	id := path.Base(r.URL.Path)
	if id == "." || id == "/" {
		return r
	}
	return WithChiRouteContext(r, map[string]string{"id": id})
}
