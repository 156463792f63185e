package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/Arnold10-web/ishaazi-realtime/internal/services"
	pkghttp "github.com/Arnold10-web/ishaazi-realtime/pkg/http"
)

// SecurityAdminServiceInterface defines the security dashboard service contract.
type SecurityAdminServiceInterface interface {
	RecentEvents(ctx context.Context, email string, limit, offset int) (*services.SecurityEventFeedResponse, error)
	AccountAttempts(ctx context.Context, email string, limit int) (*services.LoginAttemptFeedResponse, error)
}

// SecurityHandler handles admin security dashboard HTTP requests.
type SecurityHandler struct {
	service SecurityAdminServiceInterface
}

// NewSecurityHandler creates a new SecurityHandler.
func NewSecurityHandler(service SecurityAdminServiceInterface) *SecurityHandler {
	return &SecurityHandler{service: service}
}

// GetSecurityEvents handles GET /admin/security/events
// Accepts optional query params ?email=, ?limit=N (1–100, default 50), ?offset=N.
func (h *SecurityHandler) GetSecurityEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	offset := 0
	if o := r.URL.Query().Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			offset = n
		}
	}

	email := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("email")))

	feed, err := h.service.RecentEvents(r.Context(), email, limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to retrieve security events")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(feed)
}

// GetLoginAttempts handles GET /admin/security/attempts
// Requires ?email=; accepts optional ?limit=N (1–100, default 50).
func (h *SecurityHandler) GetLoginAttempts(w http.ResponseWriter, r *http.Request) {
	email := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("email")))
	if email == "" {
		pkghttp.WriteBadRequest(w, "email query parameter is required")
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	feed, err := h.service.AccountAttempts(r.Context(), email, limit)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to retrieve login attempts")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(feed)
}
