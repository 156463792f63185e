package realtime

import "time"

// Inbound message types
const (
	msgPing           = "ping"
	msgMarkRead       = "mark_read"
	msgMarkAllRead    = "mark_all_read"
	msgSubscribeAdmin = "subscribe_admin"
)

// Outbound message types
const (
	msgConnectionConfirmed = "connection_confirmed"
	msgPong                = "pong"
	msgNotification        = "notification"
	msgAdminNotification   = "admin_notification"
	msgBroadcast           = "broadcast"
	msgAdminSubConfirmed   = "admin_subscription_confirmed"
)

// inboundMessage is the JSON shape clients send over the socket.
type inboundMessage struct {
	Type           string `json:"type"`
	NotificationID string `json:"notificationId,omitempty"`
}

// Frame is the JSON shape the server writes. Every frame carries its
// type and a server-set ISO-8601 timestamp.
type Frame struct {
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

func newFrame(frameType string) Frame {
	return Frame{
		Type:      frameType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func newMessageFrame(frameType, message string) Frame {
	f := newFrame(frameType)
	f.Message = message
	return f
}

func newDataFrame(frameType string, data interface{}) Frame {
	f := newFrame(frameType)
	f.Data = data
	return f
}
