package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Arnold10-web/ishaazi-realtime/internal/models"
)

type contextKey string

const (
	// UserContextKey holds the validated token claims for the request.
	UserContextKey contextKey = "user"
	// TokenContextKey holds the raw bearer token, so logout can revoke
	// the exact token it was called with.
	TokenContextKey contextKey = "token"
)

// TokenRevocationChecker answers whether a token id has been revoked.
type TokenRevocationChecker interface {
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// RevocationConfig controls what happens when the revocation store cannot
// be reached: fail closed denies the request, fail open lets it through.
type RevocationConfig struct {
	FailClosed bool
}

// AuthMiddleware authenticates requests without consulting a revocation
// store. Tokens stay valid until they expire.
func AuthMiddleware(tm *TokenManager) func(next http.Handler) http.Handler {
	return AuthMiddlewareWithRevocation(tm, nil, RevocationConfig{FailClosed: false})
}

// AuthMiddlewareWithRevocation authenticates the bearer token, refuses
// refresh tokens and revoked tokens, and stores the claims plus the raw
// token on the request context for downstream handlers.
func AuthMiddlewareWithRevocation(tm *TokenManager, checker TokenRevocationChecker, cfg RevocationConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			claims, err := tm.ValidateToken(tokenString)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			// Refresh tokens are for /auth/refresh only.
			if claims.Type == "refresh" {
				http.Error(w, "wrong token type", http.StatusUnauthorized)
				return
			}

			if checker != nil && claims.ID != "" {
				revoked, err := checker.IsTokenRevoked(r.Context(), claims.ID)
				switch {
				case err != nil && cfg.FailClosed:
					http.Error(w, "token status check unavailable", http.StatusServiceUnavailable)
					return
				case err == nil && revoked:
					http.Error(w, "token revoked", http.StatusUnauthorized)
					return
				}
				// A failed check with fail-open falls through; the token
				// still dies at its expiry.
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			ctx = context.WithValue(ctx, TokenContextKey, tokenString)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken pulls the token out of the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || scheme != "Bearer" || token == "" {
		return "", false
	}
	return token, true
}

// RequireRole gates a route group on the caller's stored role. The role
// comes from the database, not the token, so demotions take effect
// without waiting for token expiry.
func RequireRole(userRepo UserRepository, role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetUserFromContext(r)
			if claims == nil {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}

			user, err := userRepo.GetByID(r.Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					http.Error(w, "account not found", http.StatusUnauthorized)
					return
				}
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			if user.Role != role {
				http.Error(w, "insufficient role", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetUserFromContext returns the claims stored by the auth middleware,
// or nil on an unauthenticated request.
func GetUserFromContext(r *http.Request) *models.TokenClaims {
	claims, ok := r.Context().Value(UserContextKey).(*models.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}

// GetTokenFromContext returns the raw bearer token for the request, or
// an empty string on an unauthenticated request.
func GetTokenFromContext(r *http.Request) string {
	token, ok := r.Context().Value(TokenContextKey).(string)
	if !ok {
		return ""
	}
	return token
}

// UserRepository is the slice of the user store the role check needs.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}
