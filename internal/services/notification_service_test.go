package services

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arnold10-web/ishaazi-realtime/internal/models"
	"github.com/Arnold10-web/ishaazi-realtime/internal/realtime"
)

func newTestNotificationService(repo NotificationRepository, hub Deliverer, cache UnreadCountCache) *NotificationService {
	if repo == nil {
		repo = &MockNotificationRepository{}
	}
	if hub == nil {
		hub = &MockDeliverer{}
	}
	if cache == nil {
		cache = &MockUnreadCache{}
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	return NewNotificationService(repo, hub, cache, logger)
}

func TestNotificationService_Notify_PersistsAndDelivers(t *testing.T) {
	var persisted *models.Notification
	repo := &MockNotificationRepository{
		CreateFunc: func(ctx context.Context, n *models.Notification) (*models.Notification, error) {
			n.ID = uuid.New()
			n.CreatedAt = time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
			persisted = n
			return n, nil
		},
	}

	var delivered interface{}
	deliveredTo := ""
	hub := &MockDeliverer{
		SendToUserFunc: func(userID string, payload interface{}) int {
			deliveredTo = userID
			delivered = payload
			return 2
		},
	}

	invalidated := ""
	cache := &MockUnreadCache{
		InvalidateUnreadCountFunc: func(ctx context.Context, userID string) {
			invalidated = userID
		},
	}

	svc := newTestNotificationService(repo, hub, cache)

	created, err := svc.Notify(context.Background(), "user123", models.NotificationTypeContent, "New issue published", "The July issue is out", models.NotificationData{"articleId": "a1"})

	require.NoError(t, err)
	require.NotNil(t, created)
	require.NotNil(t, persisted)
	assert.Equal(t, "user123", persisted.UserID)
	assert.Equal(t, models.NotificationTypeContent, persisted.Type)

	assert.Equal(t, "user123", deliveredTo)
	assert.Equal(t, "user123", invalidated)

	payload, ok := delivered.(NotificationPayload)
	require.True(t, ok)
	assert.Equal(t, created.ID.String(), payload.ID)
	assert.Equal(t, "New issue published", payload.Title)
	assert.Equal(t, "2025-06-10T14:00:00Z", payload.CreatedAt)
}

func TestNotificationService_Notify_PersistFailureIsHardError(t *testing.T) {
	repo := &MockNotificationRepository{
		CreateFunc: func(ctx context.Context, n *models.Notification) (*models.Notification, error) {
			return nil, models.ErrInternalServer
		},
	}

	sendCalls := 0
	hub := &MockDeliverer{
		SendToUserFunc: func(userID string, payload interface{}) int {
			sendCalls++
			return 0
		},
	}

	svc := newTestNotificationService(repo, hub, nil)

	created, err := svc.Notify(context.Background(), "user123", models.NotificationTypeSystem, "Title", "", nil)

	assert.Error(t, err)
	assert.Nil(t, created)
	assert.Equal(t, 0, sendCalls)
}

func TestNotificationService_Notify_ZeroConnectionsStillSucceeds(t *testing.T) {
	svc := newTestNotificationService(nil, nil, nil)

	created, err := svc.Notify(context.Background(), "offline-user", models.NotificationTypeSystem, "Title", "", nil)

	require.NoError(t, err)
	assert.NotNil(t, created)
}

func TestNotificationService_NotifyAdmins_LiveOnly(t *testing.T) {
	createCalls := 0
	repo := &MockNotificationRepository{
		CreateFunc: func(ctx context.Context, n *models.Notification) (*models.Notification, error) {
			createCalls++
			return n, nil
		},
	}

	var payload interface{}
	hub := &MockDeliverer{
		SendToAdminsFunc: func(p interface{}) int {
			payload = p
			return 3
		},
	}

	svc := newTestNotificationService(repo, hub, nil)

	delivered := svc.NotifyAdmins(context.Background(), "New subscriber", "A subscriber joined", nil)

	assert.Equal(t, 3, delivered)
	assert.Equal(t, 0, createCalls)

	adminPayload, ok := payload.(NotificationPayload)
	require.True(t, ok)
	assert.Equal(t, "New subscriber", adminPayload.Title)
	assert.Empty(t, adminPayload.ID)
}

func TestNotificationService_BroadcastAnnouncement_ExcludesAuthor(t *testing.T) {
	excluded := ""
	hub := &MockDeliverer{
		BroadcastFunc: func(payload interface{}, excludeUserID string) int {
			excluded = excludeUserID
			return 9
		},
	}

	svc := newTestNotificationService(nil, hub, nil)

	delivered := svc.BroadcastAnnouncement(context.Background(), "Maintenance", "Down at midnight", nil, "author123")

	assert.Equal(t, 9, delivered)
	assert.Equal(t, "author123", excluded)
}

func TestNotificationService_UnreadCount_CacheHit(t *testing.T) {
	repoCalls := 0
	repo := &MockNotificationRepository{
		CountUnreadFunc: func(ctx context.Context, userID string) (int64, error) {
			repoCalls++
			return 0, nil
		},
	}
	cache := &MockUnreadCache{
		GetUnreadCountFunc: func(ctx context.Context, userID string) (int64, bool) {
			return 7, true
		},
	}

	svc := newTestNotificationService(repo, nil, cache)

	count, err := svc.UnreadCount(context.Background(), "user123")

	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
	assert.Equal(t, 0, repoCalls)
}

func TestNotificationService_UnreadCount_CacheMissFallsThrough(t *testing.T) {
	repo := &MockNotificationRepository{
		CountUnreadFunc: func(ctx context.Context, userID string) (int64, error) {
			return 4, nil
		},
	}

	cachedCount := int64(-1)
	cache := &MockUnreadCache{
		SetUnreadCountFunc: func(ctx context.Context, userID string, count int64) {
			cachedCount = count
		},
	}

	svc := newTestNotificationService(repo, nil, cache)

	count, err := svc.UnreadCount(context.Background(), "user123")

	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
	assert.Equal(t, int64(4), cachedCount)
}

func TestNotificationService_UnreadCount_RepoError(t *testing.T) {
	repo := &MockNotificationRepository{
		CountUnreadFunc: func(ctx context.Context, userID string) (int64, error) {
			return 0, models.ErrInternalServer
		},
	}

	svc := newTestNotificationService(repo, nil, nil)

	_, err := svc.UnreadCount(context.Background(), "user123")

	assert.ErrorIs(t, err, models.ErrInternalServer)
}

func TestNotificationService_MarkRead_Success(t *testing.T) {
	markedID := ""
	markedUser := ""
	repo := &MockNotificationRepository{
		MarkReadFunc: func(ctx context.Context, id, userID string) error {
			markedID = id
			markedUser = userID
			return nil
		},
	}

	invalidated := ""
	cache := &MockUnreadCache{
		InvalidateUnreadCountFunc: func(ctx context.Context, userID string) {
			invalidated = userID
		},
	}

	svc := newTestNotificationService(repo, nil, cache)

	err := svc.MarkRead(context.Background(), "notif1", "user123")

	require.NoError(t, err)
	assert.Equal(t, "notif1", markedID)
	assert.Equal(t, "user123", markedUser)
	assert.Equal(t, "user123", invalidated)
}

func TestNotificationService_MarkRead_NotFound(t *testing.T) {
	repo := &MockNotificationRepository{
		MarkReadFunc: func(ctx context.Context, id, userID string) error {
			return models.ErrNotFound
		},
	}

	invalidateCalls := 0
	cache := &MockUnreadCache{
		InvalidateUnreadCountFunc: func(ctx context.Context, userID string) {
			invalidateCalls++
		},
	}

	svc := newTestNotificationService(repo, nil, cache)

	err := svc.MarkRead(context.Background(), "missing", "user123")

	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, 0, invalidateCalls)
}

func TestNotificationService_MarkAllRead(t *testing.T) {
	repo := &MockNotificationRepository{
		MarkAllReadFunc: func(ctx context.Context, userID string) (int64, error) {
			return 6, nil
		},
	}

	invalidated := ""
	cache := &MockUnreadCache{
		InvalidateUnreadCountFunc: func(ctx context.Context, userID string) {
			invalidated = userID
		},
	}

	svc := newTestNotificationService(repo, nil, cache)

	updated, err := svc.MarkAllRead(context.Background(), "user123")

	require.NoError(t, err)
	assert.Equal(t, int64(6), updated)
	assert.Equal(t, "user123", invalidated)
}

func TestNotificationService_ListForUser(t *testing.T) {
	repo := &MockNotificationRepository{
		ListForUserFunc: func(ctx context.Context, userID string, limit, offset int) ([]*models.Notification, error) {
			assert.Equal(t, 20, limit)
			assert.Equal(t, 40, offset)
			return []*models.Notification{NewTestNotification(userID, models.NotificationTypeContent, "Title")}, nil
		},
	}

	svc := newTestNotificationService(repo, nil, nil)

	notifications, err := svc.ListForUser(context.Background(), "user123", 20, 40)

	require.NoError(t, err)
	assert.Len(t, notifications, 1)
}

func TestNotificationService_ConsumeEvents_AppliesReadReceipts(t *testing.T) {
	marked := make(chan string, 1)
	markedAll := make(chan string, 1)
	repo := &MockNotificationRepository{
		MarkReadFunc: func(ctx context.Context, id, userID string) error {
			marked <- id
			return nil
		},
		MarkAllReadFunc: func(ctx context.Context, userID string) (int64, error) {
			markedAll <- userID
			return 1, nil
		},
	}

	svc := newTestNotificationService(repo, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan realtime.Event)
	go svc.ConsumeEvents(ctx, events)

	events <- realtime.Event{Type: realtime.EventNotificationRead, UserID: "user123", NotificationID: "notif1"}
	select {
	case id := <-marked:
		assert.Equal(t, "notif1", id)
	case <-time.After(time.Second):
		t.Fatal("read receipt was not applied")
	}

	events <- realtime.Event{Type: realtime.EventAllNotificationsRead, UserID: "user123"}
	select {
	case userID := <-markedAll:
		assert.Equal(t, "user123", userID)
	case <-time.After(time.Second):
		t.Fatal("mark-all receipt was not applied")
	}
}

func TestNotificationService_ConsumeEvents_UnknownReceiptTolerated(t *testing.T) {
	handled := make(chan struct{}, 1)
	repo := &MockNotificationRepository{
		MarkReadFunc: func(ctx context.Context, id, userID string) error {
			handled <- struct{}{}
			return models.ErrNotFound
		},
	}

	svc := newTestNotificationService(repo, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan realtime.Event)
	go svc.ConsumeEvents(ctx, events)

	events <- realtime.Event{Type: realtime.EventNotificationRead, UserID: "user123", NotificationID: "bogus"}
	select {
	case <-handled:
	case <-time.After(time.Second):
		t.Fatal("receipt was not processed")
	}

	// The consumer keeps running after a receipt it could not apply.
	events <- realtime.Event{Type: realtime.EventUserConnected, UserID: "user123", TotalConnections: 1}
}

func TestNotificationService_ConsumeEvents_StopsOnCancel(t *testing.T) {
	svc := newTestNotificationService(nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan realtime.Event)

	done := make(chan struct{})
	go func() {
		svc.ConsumeEvents(ctx, events)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop on cancel")
	}
}

