package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Arnold10-web/ishaazi-realtime/internal/auth"
	"github.com/Arnold10-web/ishaazi-realtime/internal/cache"
	"github.com/Arnold10-web/ishaazi-realtime/internal/config"
	"github.com/Arnold10-web/ishaazi-realtime/internal/database"
	"github.com/Arnold10-web/ishaazi-realtime/internal/handlers"
	middlewareCustom "github.com/Arnold10-web/ishaazi-realtime/internal/middleware"
	"github.com/Arnold10-web/ishaazi-realtime/internal/realtime"
	"github.com/Arnold10-web/ishaazi-realtime/internal/routes"
	"github.com/Arnold10-web/ishaazi-realtime/internal/services"
	pkghttp "github.com/Arnold10-web/ishaazi-realtime/pkg/http"
	pkglogger "github.com/Arnold10-web/ishaazi-realtime/pkg/logger"
)

// TestServer runs the full HTTP stack on a random port: real router,
// real services, real database. Only the outbound alert channel is a
// no-op.
type TestServer struct {
	Server *httptest.Server
	DB     *database.DB
	Hub    *realtime.Hub
	Config *config.Config

	consumerCancel context.CancelFunc
	logger         *slog.Logger
}

// NewTestServer wires the application the way cmd/api does, against the
// shared container database.
func NewTestServer(db *database.DB) *TestServer {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           "0",
			Env:            "test",
			AllowedOrigins: []string{},
			TrustedProxies: []string{},
		},
		Auth: config.AuthConfig{
			JWTSecret:          "test-secret-32-characters-long-for-testing",
			AccessTokenExpiry:  15 * time.Minute,
			RefreshTokenExpiry: 7 * 24 * time.Hour,
			CleanupInterval:    1 * time.Hour,
			// Keep the anti-enumeration delay short so failed-login
			// loops do not dominate test time
			TimingDelayBaseMs:    5,
			TimingDelayRandomMs:  5,
			TimingDelayOnSuccess: false,
		},
		Security: config.SecurityConfig{
			AttemptWindow:    15 * time.Minute,
			MaxFailedLogins:  5,
			LockoutDuration:  30 * time.Minute,
			AttemptRetention: 24 * time.Hour,
		},
		Realtime: config.RealtimeConfig{
			LivenessInterval: 5 * time.Second,
			WriteTimeout:     5 * time.Second,
			EventBufferSize:  64,
		},
		// Empty Addr disables the cache; unread counts fall through to
		// Postgres, which is the behavior under test
		Redis: config.RedisConfig{
			Addr: "",
		},
		Email: config.EmailConfig{
			Enabled: false,
		},
	}

	userRepo, revokeRepo, attemptRepo, eventRepo, notificationRepo := InitializeRepositories(db)

	securityLog := pkglogger.NewSecurityLogger(logger)
	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:    cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs:  cfg.Auth.TimingDelayRandomMs,
		DelayOnSuccess: cfg.Auth.TimingDelayOnSuccess,
	})

	securityService := services.NewSecurityService(attemptRepo, userRepo, eventRepo, securityLog, cfg.Security, logger)
	alerts := services.NewNoopAlertService(logger)
	authService := services.NewAuthService(userRepo, tokenManager, revokeRepo, securityService, timingDelay, alerts, securityLog, logger)
	userService := services.NewUserService(userRepo, logger)
	securityAdminService := services.NewSecurityAdminService(eventRepo, attemptRepo, logger)

	// Realtime registry plus the event consumer that persists
	// socket-initiated read receipts
	unreadCache := cache.New(cfg.Redis, logger)
	hub := realtime.NewHub(cfg.Realtime, logger)
	hub.Start()
	notificationService := services.NewNotificationService(notificationRepo, hub, unreadCache, logger)
	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	go notificationService.ConsumeEvents(consumerCtx, hub.Events())

	ipConfig := &pkghttp.IPConfig{
		TrustedProxies: cfg.Server.TrustedProxies,
	}
	authHandler := handlers.NewAuthHandler(authService, ipConfig)
	userHandler := handlers.NewUserHandler(userService, securityService)
	notificationHandler := handlers.NewNotificationHandler(notificationService, hub)
	securityHandler := handlers.NewSecurityHandler(securityAdminService)
	realtimeHandler := realtime.NewHandler(hub, tokenManager, cfg.Realtime, cfg.Server.AllowedOrigins, logger)

	// The production middleware chain minus request logging, which
	// would bury the test output
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	r.Use(chiMiddleware.Recoverer)

	routes.RegisterRoutes(r, authHandler, userHandler, notificationHandler, securityHandler, realtimeHandler, tokenManager, userRepo, revokeRepo)

	server := httptest.NewServer(r)

	return &TestServer{
		Server:         server,
		DB:             db,
		Hub:            hub,
		Config:         cfg,
		consumerCancel: consumerCancel,
		logger:         logger,
	}
}

// Close shuts down the test server. The registry goes first so open
// websocket handlers return before the listener closes.
func (ts *TestServer) Close() {
	if ts.Hub != nil {
		ts.Hub.Shutdown()
	}
	if ts.consumerCancel != nil {
		ts.consumerCancel()
	}
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// WebSocketURL returns the ws:// endpoint with the access token attached
func (ts *TestServer) WebSocketURL(accessToken string) string {
	return "ws" + strings.TrimPrefix(ts.Server.URL, "http") + "/ws?token=" + accessToken
}

// Request sends a JSON request to the test server. Extra headers are
// applied after the Content-Type default, so a test can override it.
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return ts.Server.Client().Do(req)
}

// RequestWithAuth is Request with a bearer token attached.
func (ts *TestServer) RequestWithAuth(method, path, accessToken string, body interface{}) (*http.Response, error) {
	return ts.Request(method, path, body, map[string]string{
		"Authorization": "Bearer " + accessToken,
	})
}

// ParseJSONResponse decodes the response body into target and closes it.
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// ExtractTokensFromResponse pulls the token pair out of a register,
// login, or refresh response.
func ExtractTokensFromResponse(resp *http.Response) (accessToken, refreshToken string, err error) {
	defer resp.Body.Close()

	var body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", "", fmt.Errorf("failed to parse auth response: %w", err)
	}
	return body.AccessToken, body.RefreshToken, nil
}

// GetErrorMessage reads the human-readable message out of an error
// envelope.
func GetErrorMessage(resp *http.Response) (string, error) {
	defer resp.Body.Close()

	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", err
	}
	return envelope.Message, nil
}
