package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Arnold10-web/ishaazi-realtime/internal/auth"
	"github.com/Arnold10-web/ishaazi-realtime/internal/background"
	"github.com/Arnold10-web/ishaazi-realtime/internal/cache"
	"github.com/Arnold10-web/ishaazi-realtime/internal/config"
	"github.com/Arnold10-web/ishaazi-realtime/internal/database"
	"github.com/Arnold10-web/ishaazi-realtime/internal/handlers"
	middlewareCustom "github.com/Arnold10-web/ishaazi-realtime/internal/middleware"
	"github.com/Arnold10-web/ishaazi-realtime/internal/models"
	"github.com/Arnold10-web/ishaazi-realtime/internal/realtime"
	"github.com/Arnold10-web/ishaazi-realtime/internal/repositories"
	"github.com/Arnold10-web/ishaazi-realtime/internal/routes"
	"github.com/Arnold10-web/ishaazi-realtime/internal/services"
	pkgauth "github.com/Arnold10-web/ishaazi-realtime/pkg/auth"
	pkghttp "github.com/Arnold10-web/ishaazi-realtime/pkg/http"
	pkglogger "github.com/Arnold10-web/ishaazi-realtime/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Rebuild the logger at the configured level
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = db.Migrate(migrateCtx)
	migrateCancel()
	if err != nil {
		logger.Error("failed to apply migrations", slog.Any("error", err))
		os.Exit(1)
	}

	// Unread-count cache; runs disabled when Redis is unreachable
	unreadCache := cache.New(cfg.Redis, logger)
	defer unreadCache.Close()

	userRepo := repositories.NewUserRepository(db)
	revokeRepo := repositories.NewTokenRevocationRepository(db)
	attemptRepo := repositories.NewLoginAttemptRepository(db)
	eventRepo := repositories.NewSecurityEventRepository(db)
	notificationRepo := repositories.NewNotificationRepository(db)

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

	// Login security guard
	securityService := services.NewSecurityService(attemptRepo, userRepo, eventRepo, securityLog, cfg.Security, logger)

	// Security alert mailer (SES when enabled, log-only otherwise)
	var alerts services.AlertSender
	if cfg.Email.Enabled {
		sesAlerts, err := services.NewAWSSESAlertService(cfg.Email.Region, cfg.Email.FromAddress, cfg.Email.SecurityAlerts, logger)
		if err != nil {
			logger.Error("failed to initialize alert service", slog.Any("error", err))
			os.Exit(1)
		}
		alerts = sesAlerts
	} else {
		alerts = services.NewNoopAlertService(logger)
	}

	authService := services.NewAuthService(userRepo, tokenManager, revokeRepo, securityService, timingDelay, alerts, securityLog, logger)
	userService := services.NewUserService(userRepo, logger)

	// Connection registry
	hub := realtime.NewHub(cfg.Realtime, logger)
	hub.Start()

	notificationService := services.NewNotificationService(notificationRepo, hub, unreadCache, logger)

	// Persist registry lifecycle events (connects, disconnects, socket-initiated
	// read receipts) off the hub's event channel
	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	defer consumerCancel()
	go notificationService.ConsumeEvents(consumerCtx, hub.Events())

	securityAdminService := services.NewSecurityAdminService(eventRepo, attemptRepo, logger)

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(authService, ipConfig)
	userHandler := handlers.NewUserHandler(userService, securityService)
	notificationHandler := handlers.NewNotificationHandler(notificationService, hub)
	securityHandler := handlers.NewSecurityHandler(securityAdminService)
	realtimeHandler := realtime.NewHandler(hub, tokenManager, cfg.Realtime, cfg.Server.AllowedOrigins, logger)

	bootstrapCtx, bootstrapCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(bootstrapCtx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	bootstrapCancel()

	// No global request timeout: /ws connections are long-lived, and API
	// requests are already bounded by the server read/write timeouts.
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)

	routes.RegisterRoutes(router, authHandler, userHandler, notificationHandler, securityHandler, realtimeHandler, tokenManager, userRepo, revokeRepo)
	router.Get("/health", healthHandler(db))

	// The socket endpoint hijacks its connection during the upgrade, so
	// these timeouts only bound plain API requests.
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Retention sweeper for attempts, revoked tokens, events, notifications
	sweeperConfig := background.DefaultSweeperConfig()
	sweeperConfig.Interval = cfg.Auth.CleanupInterval
	sweeper := background.NewSweeper(attemptRepo, revokeRepo, eventRepo, notificationRepo, logger, sweeperConfig)

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	go sweeper.Start(sweepCtx)

	go func() {
		logger.Info("http server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	sweepCancel()
	sweeper.Stop()

	// Close every live WebSocket before stopping the listener, then let the
	// event consumer drain the final disconnect events
	hub.Shutdown()
	consumerCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

// healthHandler reports liveness plus whether the database answers a
// ping within two seconds.
func healthHandler(db *database.DB) http.HandlerFunc {
	type health struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable, health{Status: "unhealthy", Database: "down"})
			return
		}
		pkghttp.WriteJSON(w, http.StatusOK, health{Status: "healthy", Database: "up"})
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ensureAdminUser seeds the first admin account from ADMIN_EMAIL and
// ADMIN_PASSWORD. Without them the instance starts with no admin and
// one has to be promoted by hand.
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		logger.Info("admin bootstrap skipped, ADMIN_EMAIL or ADMIN_PASSWORD not set")
		return nil
	}

	switch _, err := userRepo.GetByEmail(ctx, email); {
	case err == nil:
		logger.Info("admin account already present")
		return nil
	case !errors.Is(err, models.ErrNotFound):
		return fmt.Errorf("failed to look up admin account: %w", err)
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	if _, err := userRepo.Create(ctx, &models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         "Administrator",
		Role:         models.RoleAdmin,
		Status:       models.StatusActive,
	}); err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}

	logger.Info("admin account bootstrapped", slog.String("email", pkglogger.SanitizedEmail(email)))
	return nil
}
