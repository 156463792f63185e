package realtime

import "time"

// Event types emitted by the hub
const (
	EventUserConnected        = "user_connected"
	EventUserDisconnected     = "user_disconnected"
	EventNotificationRead     = "notification_read"
	EventAllNotificationsRead = "all_notifications_read"
)

// Event is the hub's outbound record of something a collaborator needs
// to act on: presence changes for audit, read receipts for persistence.
// The hub never touches storage itself; consumers drain Events().
type Event struct {
	Type             string
	UserID           string
	NotificationID   string // Set for notification_read only
	TotalConnections int    // Registry-wide connection total after the change
	Timestamp        time.Time
}
