package realtime

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Arnold10-web/ishaazi-realtime/internal/auth"
	"github.com/Arnold10-web/ishaazi-realtime/internal/config"
)

// Handler upgrades HTTP requests to realtime sessions. Authentication
// happens before the upgrade: a missing or invalid credential means no
// connection is ever established.
type Handler struct {
	hub      *Hub
	tokens   *auth.TokenManager
	cfg      config.RealtimeConfig
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewHandler(hub *Hub, tokens *auth.TokenManager, cfg config.RealtimeConfig, allowedOrigins []string, logger *slog.Logger) *Handler {
	return &Handler{
		hub:    hub,
		tokens: tokens,
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// originChecker allows same-origin and allow-listed browser clients.
// Requests without an Origin header (native apps, curl) pass; browsers
// always send one.
func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}

// ServeHTTP authenticates the `token` query parameter, upgrades the
// connection, registers it, and runs the read loop until the peer goes
// away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		h.logger.Warn("realtime connection rejected: missing token",
			slog.String("remote_addr", r.RemoteAddr))
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.tokens.ValidateToken(tokenString)
	if err != nil {
		h.logger.Warn("realtime connection rejected: invalid token",
			slog.String("remote_addr", r.RemoteAddr),
			slog.Any("error", err))
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	// Refresh tokens are for the token endpoint only.
	if claims.Type != "access" {
		h.logger.Warn("realtime connection rejected: wrong token type",
			slog.String("token_type", claims.Type))
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		h.logger.Warn("websocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.Any("error", err))
		return
	}

	client := newClient(conn, claims.UserID, claims.Role, h.cfg.WriteTimeout)

	// Probe acknowledgements feed the liveness sweep.
	conn.SetPongHandler(func(string) error {
		client.setAlive(true)
		return nil
	})

	h.hub.Register(client)
	h.readLoop(client, conn)
}

func (h *Handler) readLoop(client *Client, conn *websocket.Conn) {
	defer func() {
		h.hub.Unregister(client)
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Info("realtime connection closed unexpectedly",
					slog.String("user_id", client.UserID()),
					slog.Any("error", err))
			}
			return
		}

		h.hub.HandleMessage(client, raw)
	}
}
