package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Arnold10-web/ishaazi-realtime/internal/models"
	"github.com/Arnold10-web/ishaazi-realtime/internal/realtime"
)

// NotificationRepository defines the interface for notification persistence
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) (*models.Notification, error)
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]*models.Notification, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

// Deliverer pushes payloads to live realtime connections
type Deliverer interface {
	SendToUser(userID string, payload interface{}) int
	SendToAdmins(payload interface{}) int
	Broadcast(payload interface{}, excludeUserID string) int
}

// UnreadCountCache caches per-user unread totals
type UnreadCountCache interface {
	GetUnreadCount(ctx context.Context, userID string) (int64, bool)
	SetUnreadCount(ctx context.Context, userID string, count int64)
	InvalidateUnreadCount(ctx context.Context, userID string)
}

// NotificationPayload is the JSON shape delivered over the socket
type NotificationPayload struct {
	ID        string                  `json:"id"`
	Type      string                  `json:"type"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message,omitempty"`
	Data      models.NotificationData `json:"data,omitempty"`
	CreatedAt string                  `json:"createdAt"`
}

// NotificationService persists notifications and fans them out to live
// connections. It also consumes the realtime registry's event stream,
// which is how socket-initiated read receipts reach storage.
type NotificationService struct {
	repo   NotificationRepository
	hub    Deliverer
	cache  UnreadCountCache
	logger *slog.Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(repo NotificationRepository, hub Deliverer, cache UnreadCountCache, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		repo:   repo,
		hub:    hub,
		cache:  cache,
		logger: logger,
	}
}

// Notify stores a notification and delivers it to the user's live
// connections. Zero live connections is not an error; the notification
// waits in the inbox.
func (s *NotificationService) Notify(ctx context.Context, userID, notificationType, title, message string, data models.NotificationData) (*models.Notification, error) {
	notification := &models.Notification{
		UserID:  userID,
		Type:    notificationType,
		Title:   title,
		Message: message,
		Data:    data,
	}

	created, err := s.repo.Create(ctx, notification)
	if err != nil {
		s.logger.Error("failed to persist notification",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return nil, err
	}

	s.cache.InvalidateUnreadCount(ctx, userID)

	delivered := s.hub.SendToUser(userID, payloadFromModel(created))
	s.logger.Info("notification sent",
		slog.String("user_id", userID),
		slog.String("notification_id", created.ID.String()),
		slog.Int("delivered", delivered))

	return created, nil
}

// NotifyAdmins pushes an alert to the subscribed admin feed. Admin
// alerts are live-only; they are not stored in anyone's inbox.
func (s *NotificationService) NotifyAdmins(ctx context.Context, title, message string, data models.NotificationData) int {
	payload := NotificationPayload{
		Type:      models.NotificationTypeSystem,
		Title:     title,
		Message:   message,
		Data:      data,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	delivered := s.hub.SendToAdmins(payload)
	s.logger.Info("admin notification sent", slog.Int("delivered", delivered))
	return delivered
}

// BroadcastAnnouncement pushes a site-wide announcement to every live
// connection, optionally skipping the author's own connections.
func (s *NotificationService) BroadcastAnnouncement(ctx context.Context, title, message string, data models.NotificationData, excludeUserID string) int {
	payload := NotificationPayload{
		Type:      models.NotificationTypeContent,
		Title:     title,
		Message:   message,
		Data:      data,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	delivered := s.hub.Broadcast(payload, excludeUserID)
	s.logger.Info("broadcast sent",
		slog.Int("delivered", delivered),
		slog.String("excluded_user", excludeUserID))
	return delivered
}

// ListForUser returns a page of the user's notifications
func (s *NotificationService) ListForUser(ctx context.Context, userID string, limit, offset int) ([]*models.Notification, error) {
	notifications, err := s.repo.ListForUser(ctx, userID, limit, offset)
	if err != nil {
		s.logger.Error("failed to list notifications",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return notifications, nil
}

// UnreadCount returns the user's unread total, cache-first
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	if count, ok := s.cache.GetUnreadCount(ctx, userID); ok {
		return count, nil
	}

	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		s.logger.Error("failed to count unread notifications",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return 0, models.ErrInternalServer
	}

	s.cache.SetUnreadCount(ctx, userID, count)
	return count, nil
}

// MarkRead marks one of the user's notifications read
func (s *NotificationService) MarkRead(ctx context.Context, notificationID, userID string) error {
	if err := s.repo.MarkRead(ctx, notificationID, userID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to mark notification read",
			slog.String("notification_id", notificationID),
			slog.String("user_id", userID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.cache.InvalidateUnreadCount(ctx, userID)
	return nil
}

// MarkAllRead marks all of the user's notifications read
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	updated, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		s.logger.Error("failed to mark all notifications read",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return 0, models.ErrInternalServer
	}

	s.cache.InvalidateUnreadCount(ctx, userID)
	return updated, nil
}

// ConsumeEvents drains the registry's event stream until ctx is
// cancelled. Read receipts arriving over the socket are persisted
// here; presence changes are logged for audit.
func (s *NotificationService) ConsumeEvents(ctx context.Context, events <-chan realtime.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			s.handleEvent(ctx, event)
		}
	}
}

func (s *NotificationService) handleEvent(ctx context.Context, event realtime.Event) {
	switch event.Type {
	case realtime.EventNotificationRead:
		if err := s.MarkRead(ctx, event.NotificationID, event.UserID); err != nil {
			// Already read, or an id we never issued. Nothing to repair.
			if errors.Is(err, models.ErrNotFound) {
				return
			}
			s.logger.Error("failed to apply read receipt",
				slog.String("notification_id", event.NotificationID),
				slog.String("user_id", event.UserID),
				slog.Any("error", err))
		}

	case realtime.EventAllNotificationsRead:
		if _, err := s.MarkAllRead(ctx, event.UserID); err != nil {
			s.logger.Error("failed to apply mark-all receipt",
				slog.String("user_id", event.UserID),
				slog.Any("error", err))
		}

	case realtime.EventUserConnected, realtime.EventUserDisconnected:
		s.logger.Debug("presence change",
			slog.String("event_type", event.Type),
			slog.String("user_id", event.UserID),
			slog.Int("total_connections", event.TotalConnections))
	}
}

func payloadFromModel(n *models.Notification) NotificationPayload {
	return NotificationPayload{
		ID:        n.ID.String(),
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Data:      n.Data,
		CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
	}
}
