package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/Arnold10-web/ishaazi-realtime/internal/auth"
)

// rateLimitBody is the response for every 429, regardless of which limiter fired.
const rateLimitBody = `{"error":"rate_limit_exceeded","message":"Too many requests"}`

func writeRateLimited(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(rateLimitBody))
}

// RateLimitConfig holds rate limiting configuration for unauthenticated endpoints
type RateLimitConfig struct {
	RequestsPerMinute int
}

// DefaultAuthRateLimit is the per-IP budget for credential endpoints.
// Deliberately tight: five tries a minute is plenty for a human and
// useless for a password sprayer.
func DefaultAuthRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 5,
	}
}

// RateLimitByIP throttles unauthenticated traffic by client IP.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(writeRateLimited),
	)
}

// AuthenticatedRateLimitConfig holds per-user rate limits, split by operation class.
type AuthenticatedRateLimitConfig struct {
	ReadOperationsPerMinute  int
	WriteOperationsPerMinute int
	AdminOperationsPerMinute int
}

// DefaultAuthenticatedRateLimit returns per-user limits for the authenticated API:
// 100 reads, 30 writes and 60 admin operations per minute.
func DefaultAuthenticatedRateLimit() AuthenticatedRateLimitConfig {
	return AuthenticatedRateLimitConfig{
		ReadOperationsPerMinute:  100,
		WriteOperationsPerMinute: 30,
		AdminOperationsPerMinute: 60,
	}
}

func (c AuthenticatedRateLimitConfig) limitFor(operation string) int {
	switch operation {
	case "write":
		return c.WriteOperationsPerMinute
	case "admin":
		return c.AdminOperationsPerMinute
	default:
		return c.ReadOperationsPerMinute
	}
}

// RateLimitByUserID creates a middleware that rate limits authenticated requests
// per user ID so one noisy client cannot exhaust another's quota behind a shared
// NAT. Requests without user claims on the context fall back to the client IP.
// operation selects which limit applies: "read", "write" or "admin".
func RateLimitByUserID(config AuthenticatedRateLimitConfig, operation string) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.limitFor(operation),
		1*time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if claims := auth.GetUserFromContext(r); claims != nil && claims.UserID != "" {
				return claims.UserID, nil
			}
			return httprate.KeyByRealIP(r)
		}),
		httprate.WithLimitHandler(writeRateLimited),
	)
}
