package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/Arnold10-web/ishaazi-realtime/internal/config"
	"github.com/Arnold10-web/ishaazi-realtime/internal/models"
)

// Hub tracks live realtime sessions keyed by user and routes
// notifications to them. All map access goes through h.mu; connection
// writes are serialized per client, so delivery methods can run from
// any goroutine.
type Hub struct {
	logger *slog.Logger

	mu          sync.RWMutex
	connections map[string]map[*Client]struct{}
	connCount   int // Always equals the sum of set sizes

	events chan Event

	livenessInterval time.Duration
	writeTimeout     time.Duration

	started      time.Time
	done         chan struct{}
	shutdownOnce sync.Once
}

// Stats is a point-in-time snapshot of the registry.
type Stats struct {
	TotalConnections int   `json:"totalConnections"`
	UniqueUsers      int   `json:"uniqueUsers"`
	AdminConnections int   `json:"adminConnections"`
	UptimeSeconds    int64 `json:"uptimeSeconds"`
}

func NewHub(cfg config.RealtimeConfig, logger *slog.Logger) *Hub {
	return &Hub{
		logger:           logger,
		connections:      make(map[string]map[*Client]struct{}),
		events:           make(chan Event, cfg.EventBufferSize),
		livenessInterval: cfg.LivenessInterval,
		writeTimeout:     cfg.WriteTimeout,
		started:          time.Now(),
		done:             make(chan struct{}),
	}
}

// Start launches the liveness sweeper. Call once at startup.
func (h *Hub) Start() {
	go h.sweepLoop()
}

// Events exposes the hub's outbound event stream. The channel is never
// closed; consumers should select on their own context.
func (h *Hub) Events() <-chan Event {
	return h.events
}

func (h *Hub) emit(event Event) {
	select {
	case <-h.done:
		return
	default:
	}

	select {
	case h.events <- event:
	default:
		// A stalled consumer must not block connection handling.
		h.logger.Warn("event channel full, dropping event",
			slog.String("event_type", event.Type),
			slog.String("user_id", event.UserID))
	}
}

// Register adds a connection to its user's set and acknowledges it.
// The acknowledgement goes to the new connection only.
func (h *Hub) Register(client *Client) {
	select {
	case <-h.done:
		client.closeNormal("server shutting down")
		return
	default:
	}

	h.mu.Lock()
	set, ok := h.connections[client.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.connections[client.userID] = set
	}
	set[client] = struct{}{}
	h.connCount++
	total := h.connCount
	h.mu.Unlock()

	h.logger.Info("realtime connection registered",
		slog.String("user_id", client.userID),
		slog.String("role", client.role),
		slog.Int("total_connections", total))

	if err := client.send(newMessageFrame(msgConnectionConfirmed, "realtime connection established")); err != nil {
		h.logger.Warn("failed to send connection ack",
			slog.String("user_id", client.userID),
			slog.Any("error", err))
	}

	h.emit(Event{
		Type:             EventUserConnected,
		UserID:           client.userID,
		TotalConnections: total,
		Timestamp:        time.Now().UTC(),
	})
}

// Unregister removes a connection. It is idempotent: unregistering a
// connection that is already gone has no effect, so close, transport
// error, and liveness-sweep paths can all call it safely.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	set, ok := h.connections[client.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := set[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.connections, client.userID)
	}
	h.connCount--
	total := h.connCount
	h.mu.Unlock()

	h.logger.Info("realtime connection unregistered",
		slog.String("user_id", client.userID),
		slog.Int("total_connections", total))

	h.emit(Event{
		Type:             EventUserDisconnected,
		UserID:           client.userID,
		TotalConnections: total,
		Timestamp:        time.Now().UTC(),
	})
}

// HandleMessage dispatches one inbound frame. Malformed JSON and
// unknown types are logged and swallowed; they never close the
// connection or surface an error to the sender.
func (h *Hub) HandleMessage(client *Client, raw []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.logger.Warn("malformed realtime message",
			slog.String("user_id", client.userID),
			slog.Any("error", err))
		return
	}

	switch msg.Type {
	case msgPing:
		if err := client.send(newFrame(msgPong)); err != nil {
			h.logger.Warn("failed to send pong",
				slog.String("user_id", client.userID),
				slog.Any("error", err))
		}

	case msgMarkRead:
		if msg.NotificationID == "" {
			h.logger.Warn("mark_read without notificationId",
				slog.String("user_id", client.userID))
			return
		}
		h.emit(Event{
			Type:           EventNotificationRead,
			UserID:         client.userID,
			NotificationID: msg.NotificationID,
			Timestamp:      time.Now().UTC(),
		})

	case msgMarkAllRead:
		h.emit(Event{
			Type:      EventAllNotificationsRead,
			UserID:    client.userID,
			Timestamp: time.Now().UTC(),
		})

	case msgSubscribeAdmin:
		if client.role != models.RoleAdmin {
			h.logger.Warn("admin feed subscription denied",
				slog.String("user_id", client.userID),
				slog.String("role", client.role))
			return
		}
		client.subscribeAdmin()
		if err := client.send(newMessageFrame(msgAdminSubConfirmed, "subscribed to admin notifications")); err != nil {
			h.logger.Warn("failed to confirm admin subscription",
				slog.String("user_id", client.userID),
				slog.Any("error", err))
		}

	default:
		h.logger.Warn("unknown realtime message type",
			slog.String("type", msg.Type),
			slog.String("user_id", client.userID))
	}
}

// snapshot collects matching clients under the read lock so delivery
// can happen without holding it.
func (h *Hub) snapshot(filter func(*Client) bool) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var targets []*Client
	for _, set := range h.connections {
		for c := range set {
			if filter == nil || filter(c) {
				targets = append(targets, c)
			}
		}
	}
	return targets
}

// deliver writes one frame to each target, dropping connections whose
// transport has failed. Returns the number of successful writes.
func (h *Hub) deliver(targets []*Client, frame Frame) int {
	delivered := 0
	for _, c := range targets {
		if err := c.send(frame); err != nil {
			h.logger.Warn("frame delivery failed",
				slog.String("user_id", c.userID),
				slog.String("frame_type", frame.Type),
				slog.Any("error", err))
			c.terminate()
			h.Unregister(c)
			continue
		}
		delivered++
	}
	return delivered
}

// SendToUser delivers a notification to every open connection of one
// user. A user with no live connections yields 0, which is success.
func (h *Hub) SendToUser(userID string, payload interface{}) int {
	h.mu.RLock()
	set := h.connections[userID]
	targets := make([]*Client, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return 0
	}

	return h.deliver(targets, newDataFrame(msgNotification, payload))
}

// SendToAdmins delivers to connections that authenticated as admin and
// explicitly subscribed to the admin feed. Role alone is not enough.
func (h *Hub) SendToAdmins(payload interface{}) int {
	targets := h.snapshot(func(c *Client) bool {
		return c.role == models.RoleAdmin && c.isAdminSubscribed()
	})

	if len(targets) == 0 {
		return 0
	}

	return h.deliver(targets, newDataFrame(msgAdminNotification, payload))
}

// Broadcast delivers to every open connection, optionally skipping all
// connections of excludeUserID.
func (h *Hub) Broadcast(payload interface{}, excludeUserID string) int {
	targets := h.snapshot(func(c *Client) bool {
		return excludeUserID == "" || c.userID != excludeUserID
	})

	if len(targets) == 0 {
		return 0
	}

	return h.deliver(targets, newDataFrame(msgBroadcast, payload))
}

// Stats reports registry totals for the admin dashboard.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	admins := 0
	for _, set := range h.connections {
		for c := range set {
			if c.role == models.RoleAdmin {
				admins++
			}
		}
	}

	return Stats{
		TotalConnections: h.connCount,
		UniqueUsers:      len(h.connections),
		AdminConnections: admins,
		UptimeSeconds:    int64(time.Since(h.started).Seconds()),
	}
}

func (h *Hub) sweepLoop() {
	ticker := time.NewTicker(h.livenessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.sweepLiveness()
		}
	}
}

// sweepLiveness terminates connections that missed the previous probe
// and probes the rest. A connection that never acknowledges survives
// exactly one sweep: probed on the first, dropped on the second.
func (h *Hub) sweepLiveness() {
	for _, c := range h.snapshot(nil) {
		if !c.swapAlive(false) {
			h.logger.Info("terminating unresponsive connection",
				slog.String("user_id", c.userID))
			c.terminate()
			h.Unregister(c)
			continue
		}

		if err := c.ping(); err != nil {
			h.logger.Warn("liveness probe failed",
				slog.String("user_id", c.userID),
				slog.Any("error", err))
			c.terminate()
			h.Unregister(c)
		}
	}
}

// Shutdown closes every tracked connection with a normal closure and
// stops the sweeper. Safe to call more than once; only the first call
// does anything.
func (h *Hub) Shutdown() {
	h.shutdownOnce.Do(func() {
		close(h.done)

		h.mu.Lock()
		var clients []*Client
		for _, set := range h.connections {
			for c := range set {
				clients = append(clients, c)
			}
		}
		h.connections = make(map[string]map[*Client]struct{})
		h.connCount = 0
		h.mu.Unlock()

		for _, c := range clients {
			c.closeNormal("server shutting down")
		}

		h.logger.Info("realtime hub shut down",
			slog.Int("closed_connections", len(clients)))
	})
}
