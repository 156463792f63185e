package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn is the subset of *websocket.Conn the registry uses. Narrowing
// the dependency keeps the hub testable without a live socket.
type wsConn interface {
	WriteJSON(v interface{}) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client is one live realtime session. A user may hold several at once
// (multiple tabs, multiple devices); each gets its own Client.
type Client struct {
	conn   wsConn
	userID string
	role   string

	// mu serializes writes (gorilla's WriteJSON is not safe for
	// concurrent use) and guards the session flags below.
	mu              sync.Mutex
	alive           bool
	adminSubscribed bool

	writeTimeout time.Duration
}

func newClient(conn wsConn, userID, role string, writeTimeout time.Duration) *Client {
	return &Client{
		conn:         conn,
		userID:       userID,
		role:         role,
		alive:        true,
		writeTimeout: writeTimeout,
	}
}

// UserID returns the authenticated owner of this connection.
func (c *Client) UserID() string {
	return c.userID
}

// Role returns the role claim the connection authenticated with.
func (c *Client) Role() string {
	return c.role
}

// send writes a single JSON frame with a write deadline. Frames for one
// connection go out in the order send is called.
func (c *Client) send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteJSON(v)
}

// setAlive records a liveness probe acknowledgement.
func (c *Client) setAlive(alive bool) {
	c.mu.Lock()
	c.alive = alive
	c.mu.Unlock()
}

// swapAlive sets the liveness flag and returns its previous value. The
// sweeper uses this to distinguish "answered since last sweep" from
// "missed a beat".
func (c *Client) swapAlive(alive bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.alive
	c.alive = alive
	return prev
}

// subscribeAdmin opts this connection into the admin feed.
func (c *Client) subscribeAdmin() {
	c.mu.Lock()
	c.adminSubscribed = true
	c.mu.Unlock()
}

func (c *Client) isAdminSubscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.adminSubscribed
}

// ping sends a protocol-level liveness probe. WriteControl is safe to
// call concurrently with other writes, so no lock is taken.
func (c *Client) ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

// closeNormal sends a normal-closure frame with a reason, then closes
// the underlying connection. Safe to call on an already closed client.
func (c *Client) closeNormal(reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout))
	_ = c.conn.Close()
}

// terminate drops the connection without a closing handshake. Used when
// the peer has stopped answering liveness probes.
func (c *Client) terminate() {
	_ = c.conn.Close()
}
