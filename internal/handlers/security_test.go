package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arnold10-web/ishaazi-realtime/internal/handlers"
	"github.com/Arnold10-web/ishaazi-realtime/internal/services"
)

// mockSecurityAdminService implements handlers.SecurityAdminServiceInterface for testing
type mockSecurityAdminService struct {
	RecentEventsFunc    func(ctx context.Context, email string, limit, offset int) (*services.SecurityEventFeedResponse, error)
	AccountAttemptsFunc func(ctx context.Context, email string, limit int) (*services.LoginAttemptFeedResponse, error)
}

func (m *mockSecurityAdminService) RecentEvents(ctx context.Context, email string, limit, offset int) (*services.SecurityEventFeedResponse, error) {
	if m.RecentEventsFunc == nil {
		return &services.SecurityEventFeedResponse{Events: []services.SecurityEventEntry{}}, nil
	}
	return m.RecentEventsFunc(ctx, email, limit, offset)
}

func (m *mockSecurityAdminService) AccountAttempts(ctx context.Context, email string, limit int) (*services.LoginAttemptFeedResponse, error) {
	if m.AccountAttemptsFunc == nil {
		return &services.LoginAttemptFeedResponse{Email: email, Attempts: []services.LoginAttemptEntry{}}, nil
	}
	return m.AccountAttemptsFunc(ctx, email, limit)
}

// ── GetSecurityEvents ─────────────────────────────────────────────────────────

func TestGetSecurityEvents_Success_Returns200(t *testing.T) {
	email := "locked@example.com"
	mock := &mockSecurityAdminService{
		RecentEventsFunc: func(ctx context.Context, gotEmail string, limit, offset int) (*services.SecurityEventFeedResponse, error) {
			assert.Equal(t, "", gotEmail)
			assert.Equal(t, 50, limit) // default
			assert.Equal(t, 0, offset)
			return &services.SecurityEventFeedResponse{
				Events: []services.SecurityEventEntry{
					{
						ID:        "5f1c0a4e-0000-0000-0000-000000000001",
						EventType: "account_locked",
						Severity:  "high",
						Email:     &email,
						CreatedAt: "2026-02-22T10:00:00Z",
					},
				},
				Total: 1,
			}, nil
		},
	}
	h := handlers.NewSecurityHandler(mock)

	req := httptest.NewRequest("GET", "/admin/security/events", nil)
	w := httptest.NewRecorder()
	h.GetSecurityEvents(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp services.SecurityEventFeedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "account_locked", resp.Events[0].EventType)
	assert.Equal(t, "high", resp.Events[0].Severity)
}

func TestGetSecurityEvents_EmailFilter_Returns200(t *testing.T) {
	mock := &mockSecurityAdminService{
		RecentEventsFunc: func(ctx context.Context, email string, limit, offset int) (*services.SecurityEventFeedResponse, error) {
			assert.Equal(t, "farmer@example.com", email)
			assert.Equal(t, 10, limit)
			assert.Equal(t, 20, offset)
			return &services.SecurityEventFeedResponse{Events: []services.SecurityEventEntry{}}, nil
		},
	}
	h := handlers.NewSecurityHandler(mock)

	req := httptest.NewRequest("GET", "/admin/security/events?email=Farmer@Example.com&limit=10&offset=20", nil)
	w := httptest.NewRecorder()
	h.GetSecurityEvents(w, req)

	assert.Equal(t, 200, w.Code)
}

func TestGetSecurityEvents_ServiceError_Returns500(t *testing.T) {
	mock := &mockSecurityAdminService{
		RecentEventsFunc: func(ctx context.Context, email string, limit, offset int) (*services.SecurityEventFeedResponse, error) {
			return nil, errors.New("database connection lost")
		},
	}
	h := handlers.NewSecurityHandler(mock)

	req := httptest.NewRequest("GET", "/admin/security/events", nil)
	w := httptest.NewRecorder()
	h.GetSecurityEvents(w, req)

	handlers.AssertErrorResponse(t, w, 500, "internal_error")
}

// ── GetLoginAttempts ──────────────────────────────────────────────────────────

func TestGetLoginAttempts_Success_Returns200(t *testing.T) {
	reason := "invalid_password"
	mock := &mockSecurityAdminService{
		AccountAttemptsFunc: func(ctx context.Context, email string, limit int) (*services.LoginAttemptFeedResponse, error) {
			assert.Equal(t, "farmer@example.com", email)
			assert.Equal(t, 50, limit) // default
			return &services.LoginAttemptFeedResponse{
				Email: email,
				Attempts: []services.LoginAttemptEntry{
					{IPAddress: "203.0.113.9", Success: false, FailureReason: &reason, AttemptTime: "2026-02-22T10:00:00Z"},
					{IPAddress: "203.0.113.9", Success: true, AttemptTime: "2026-02-22T10:05:00Z"},
				},
				Total: 2,
			}, nil
		},
	}
	h := handlers.NewSecurityHandler(mock)

	req := httptest.NewRequest("GET", "/admin/security/attempts?email=farmer@example.com", nil)
	w := httptest.NewRecorder()
	h.GetLoginAttempts(w, req)

	assert.Equal(t, 200, w.Code)
	var resp services.LoginAttemptFeedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Attempts, 2)
	assert.False(t, resp.Attempts[0].Success)
	assert.Equal(t, "invalid_password", *resp.Attempts[0].FailureReason)
}

func TestGetLoginAttempts_MissingEmail_Returns400(t *testing.T) {
	h := handlers.NewSecurityHandler(&mockSecurityAdminService{})

	req := httptest.NewRequest("GET", "/admin/security/attempts", nil)
	w := httptest.NewRecorder()
	h.GetLoginAttempts(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestGetLoginAttempts_ServiceError_Returns500(t *testing.T) {
	mock := &mockSecurityAdminService{
		AccountAttemptsFunc: func(ctx context.Context, email string, limit int) (*services.LoginAttemptFeedResponse, error) {
			return nil, errors.New("query timeout")
		},
	}
	h := handlers.NewSecurityHandler(mock)

	req := httptest.NewRequest("GET", "/admin/security/attempts?email=farmer@example.com", nil)
	w := httptest.NewRecorder()
	h.GetLoginAttempts(w, req)

	handlers.AssertErrorResponse(t, w, 500, "internal_error")
}
