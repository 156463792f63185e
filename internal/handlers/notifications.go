package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Arnold10-web/ishaazi-realtime/internal/auth"
	"github.com/Arnold10-web/ishaazi-realtime/internal/models"
	"github.com/Arnold10-web/ishaazi-realtime/internal/realtime"
	pkghttp "github.com/Arnold10-web/ishaazi-realtime/pkg/http"
)

// NotificationServiceInterface defines the interface for notification business logic
type NotificationServiceInterface interface {
	Notify(ctx context.Context, userID, notificationType, title, message string, data models.NotificationData) (*models.Notification, error)
	NotifyAdmins(ctx context.Context, title, message string, data models.NotificationData) int
	BroadcastAnnouncement(ctx context.Context, title, message string, data models.NotificationData, excludeUserID string) int
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]*models.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, notificationID, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

// StatsProvider reports live connection-registry statistics.
type StatsProvider interface {
	Stats() realtime.Stats
}

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	service NotificationServiceInterface
	stats   StatsProvider
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(service NotificationServiceInterface, stats StatsProvider) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		stats:   stats,
	}
}

// Request/Response DTOs

// SendNotificationRequest represents the admin request to notify a single user
type SendNotificationRequest struct {
	UserID  string                  `json:"user_id" validate:"required"`
	Type    string                  `json:"type" validate:"required,oneof=content subscription system security"`
	Title   string                  `json:"title" validate:"required,min=1,max=200"`
	Message string                  `json:"message" validate:"omitempty,max=2000"`
	Data    models.NotificationData `json:"data"`
}

// BroadcastRequest represents the admin request to notify all connected users
type BroadcastRequest struct {
	Title   string                  `json:"title" validate:"required,min=1,max=200"`
	Message string                  `json:"message" validate:"omitempty,max=2000"`
	Data    models.NotificationData `json:"data"`
}

// NotificationResponse represents a notification in the HTTP response
type NotificationResponse struct {
	ID        string                  `json:"id"`
	Type      string                  `json:"type"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message,omitempty"`
	Data      models.NotificationData `json:"data,omitempty"`
	Read      bool                    `json:"read"`
	ReadAt    *string                 `json:"read_at,omitempty"`
	CreatedAt string                  `json:"created_at"`
}

// ListNotificationsResponse represents a page of notifications
type ListNotificationsResponse struct {
	Notifications []*NotificationResponse `json:"notifications"`
	Total         int                     `json:"total"`
}

// UnreadCountResponse carries the unread notification counter
type UnreadCountResponse struct {
	UnreadCount int64 `json:"unread_count"`
}

// MarkAllReadResponse reports how many notifications were updated
type MarkAllReadResponse struct {
	Marked int64 `json:"marked"`
}

// DeliveryResponse reports how many live connections received a frame
type DeliveryResponse struct {
	Delivered int `json:"delivered"`
}

// notificationModelToResponse converts a notification model to a response DTO
func notificationModelToResponse(n *models.Notification) *NotificationResponse {
	resp := &NotificationResponse{
		ID:        n.ID.String(),
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Data:      n.Data,
		Read:      n.Read,
		CreatedAt: n.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if n.ReadAt != nil {
		readAt := n.ReadAt.Format("2006-01-02T15:04:05Z07:00")
		resp.ReadAt = &readAt
	}
	return resp
}

// ListNotifications retrieves the authenticated user's notifications
//
// @Summary List my notifications
// @Param limit query int false "Limit (default 20)" default(20)
// @Param offset query int false "Offset (default 0)" default(0)
// @Produce json
// @Success 200 {object} ListNotificationsResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /notifications [get]
func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	limit := 20
	offset := 0

	if l := r.URL.Query().Get("limit"); l != "" {
		if _, err := parseIntParam(l, &limit, 1, 100); err != nil {
			pkghttp.WriteBadRequest(w, "Invalid limit parameter")
			return
		}
	}

	if o := r.URL.Query().Get("offset"); o != "" {
		if _, err := parseIntParam(o, &offset, 0, 10000); err != nil {
			pkghttp.WriteBadRequest(w, "Invalid offset parameter")
			return
		}
	}

	notifications, err := h.service.ListForUser(r.Context(), claims.UserID, limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	response := &ListNotificationsResponse{
		Notifications: make([]*NotificationResponse, len(notifications)),
		Total:         len(notifications),
	}
	for i, n := range notifications {
		response.Notifications[i] = notificationModelToResponse(n)
	}

	pkghttp.WriteJSON(w, http.StatusOK, response)
}

// GetUnreadCount returns the authenticated user's unread notification count
//
// @Summary Get my unread notification count
// @Produce json
// @Success 200 {object} UnreadCountResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /notifications/unread-count [get]
func (h *NotificationHandler) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	count, err := h.service.UnreadCount(r.Context(), claims.UserID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, &UnreadCountResponse{UnreadCount: count})
}

// MarkNotificationRead marks one of the user's notifications as read
//
// @Summary Mark a notification as read
// @Param id path string true "Notification ID"
// @Success 204
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /notifications/{id}/read [post]
func (h *NotificationHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	notificationID := chi.URLParam(r, "id")
	if notificationID == "" {
		pkghttp.WriteBadRequest(w, "Notification ID is required")
		return
	}

	if err := h.service.MarkRead(r.Context(), notificationID, claims.UserID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Notification not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MarkAllNotificationsRead marks every unread notification of the user as read
//
// @Summary Mark all my notifications as read
// @Produce json
// @Success 200 {object} MarkAllReadResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /notifications/read-all [post]
func (h *NotificationHandler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	marked, err := h.service.MarkAllRead(r.Context(), claims.UserID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, &MarkAllReadResponse{Marked: marked})
}

// SendNotification persists and delivers a notification to a single user
//
// @Summary Send a notification to a user
// @Accept json
// @Param request body SendNotificationRequest true "Send notification request"
// @Produce json
// @Success 201 {object} NotificationResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /admin/notifications/send [post]
func (h *NotificationHandler) SendNotification(w http.ResponseWriter, r *http.Request) {
	var req SendNotificationRequest
	if !DecodeValid(w, r, &req) {
		return
	}

	notification, err := h.service.Notify(r.Context(), req.UserID, req.Type,
		strings.TrimSpace(req.Title), req.Message, req.Data)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, notificationModelToResponse(notification))
}

// Broadcast delivers an announcement to every connected user except the sender
//
// @Summary Broadcast an announcement
// @Accept json
// @Param request body BroadcastRequest true "Broadcast request"
// @Produce json
// @Success 200 {object} DeliveryResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /admin/notifications/broadcast [post]
func (h *NotificationHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req BroadcastRequest
	if !DecodeValid(w, r, &req) {
		return
	}

	// The announcing admin already knows; skip their own connections.
	delivered := h.service.BroadcastAnnouncement(r.Context(),
		strings.TrimSpace(req.Title), req.Message, req.Data, claims.UserID)

	pkghttp.WriteJSON(w, http.StatusOK, &DeliveryResponse{Delivered: delivered})
}

// NotifyAdmins delivers a system notice to the connected admin feed
//
// @Summary Notify connected admins
// @Accept json
// @Param request body BroadcastRequest true "Admin notice request"
// @Produce json
// @Success 200 {object} DeliveryResponse
// @Failure 400 {object} ErrorResponse
// @Router /admin/notifications/admins [post]
func (h *NotificationHandler) NotifyAdmins(w http.ResponseWriter, r *http.Request) {
	var req BroadcastRequest
	if !DecodeValid(w, r, &req) {
		return
	}

	delivered := h.service.NotifyAdmins(r.Context(),
		strings.TrimSpace(req.Title), req.Message, req.Data)

	pkghttp.WriteJSON(w, http.StatusOK, &DeliveryResponse{Delivered: delivered})
}

// GetRealtimeStats returns a snapshot of the connection registry
//
// @Summary Get realtime connection stats
// @Produce json
// @Success 200 {object} realtime.Stats
// @Router /admin/realtime/stats [get]
func (h *NotificationHandler) GetRealtimeStats(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteJSON(w, http.StatusOK, h.stats.Stats())
}
