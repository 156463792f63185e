package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/Arnold10-web/ishaazi-realtime/internal/auth"
	"github.com/Arnold10-web/ishaazi-realtime/internal/handlers"
	"github.com/Arnold10-web/ishaazi-realtime/internal/middleware"
	"github.com/Arnold10-web/ishaazi-realtime/internal/realtime"
	"github.com/Arnold10-web/ishaazi-realtime/internal/repositories"
)

// RegisterRoutes mounts the whole API surface on the router: public
// session endpoints, the socket upgrade, authenticated reader routes
// and the admin group.
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	notificationHandler *handlers.NotificationHandler,
	securityHandler *handlers.SecurityHandler,
	realtimeHandler *realtime.Handler,
	tokenManager *auth.TokenManager,
	userRepo *repositories.UserRepository,
	revokeRepo *repositories.TokenRevocationRepository,
) {
	authRateLimit := middleware.DefaultAuthRateLimit()
	apiRateLimit := middleware.DefaultAuthenticatedRateLimit()

	// Revocation check failures fail open: a compromised token still dies at
	// access-token expiry, and the brief window is preferable to locking every
	// reader out whenever the database hiccups.
	revocationConfig := auth.RevocationConfig{FailClosed: false}

	// Credential endpoints sit behind the tight per-IP limit.
	router.With(middleware.RateLimitByIP(authRateLimit)).Post("/auth/login", authHandler.Login)
	router.With(middleware.RateLimitByIP(authRateLimit)).Post("/auth/register", authHandler.Register)
	router.With(middleware.RateLimitByIP(authRateLimit)).Post("/auth/refresh", authHandler.RefreshToken)

	// WebSocket endpoint. Browsers cannot set an Authorization header on the
	// upgrade request, so the handler validates the token itself.
	router.Get("/ws", realtimeHandler.ServeHTTP)

	// Everything below requires a valid, unrevoked access token.
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddlewareWithRevocation(tokenManager, revokeRepo, revocationConfig))

		// Read operations
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByUserID(apiRateLimit, "read"))
			r.Get("/users/{id}", userHandler.GetUser)
			r.Get("/notifications", notificationHandler.ListNotifications)
			r.Get("/notifications/unread-count", notificationHandler.GetUnreadCount)
		})

		// Write operations
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByUserID(apiRateLimit, "write"))
			r.Post("/auth/logout", authHandler.Logout)
			r.Put("/users/{id}", userHandler.UpdateUser)
			r.Post("/notifications/{id}/read", notificationHandler.MarkNotificationRead)
			r.Post("/notifications/read-all", notificationHandler.MarkAllNotificationsRead)
		})

		// Staff surface: account administration, outbound notifications
		// and the security feeds.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(userRepo, "admin"))
			r.Use(middleware.RateLimitByUserID(apiRateLimit, "admin"))

			r.Get("/users", userHandler.ListUsers)
			r.Post("/users", userHandler.CreateUser)
			r.Delete("/users/{id}", userHandler.DeleteUser)
			r.Post("/users/{id}/unlock", userHandler.UnlockUser)

			r.Post("/admin/notifications/send", notificationHandler.SendNotification)
			r.Post("/admin/notifications/broadcast", notificationHandler.Broadcast)
			r.Post("/admin/notifications/admins", notificationHandler.NotifyAdmins)
			r.Get("/admin/realtime/stats", notificationHandler.GetRealtimeStats)

			r.Get("/admin/security/events", securityHandler.GetSecurityEvents)
			r.Get("/admin/security/attempts", securityHandler.GetLoginAttempts)
		})
	})
}
