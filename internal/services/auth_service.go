package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Arnold10-web/ishaazi-realtime/internal/auth"
	"github.com/Arnold10-web/ishaazi-realtime/internal/models"
	pkgauth "github.com/Arnold10-web/ishaazi-realtime/pkg/auth"
	pkglogger "github.com/Arnold10-web/ishaazi-realtime/pkg/logger"
)

// TokenRevocationRepository is the denylist as the session services
// consume it.
type TokenRevocationRepository interface {
	RevokeToken(ctx context.Context, jti, userID, tokenType string, expiresAt time.Time, reason string) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// LoginGuard enforces the failed-login lockout policy
type LoginGuard interface {
	RecordAttempt(ctx context.Context, user *models.User, success bool, ipAddress, userAgent string, failureReason *string) (*models.AttemptRecord, error)
	CheckLock(ctx context.Context, user *models.User) (*models.LockStatus, error)
	DetectSuspiciousActivity(ctx context.Context, user *models.User, ipAddress, userAgent string) []string
}

// LoginTimer normalizes login processing time so response latency does
// not reveal which check failed
type LoginTimer interface {
	WaitFrom(startTime time.Time, success bool)
}

// AlertSender notifies operations about security incidents
type AlertSender interface {
	SendLockoutAlert(ctx context.Context, email string, failedAttempts int, lockedUntil time.Time) error
	SendSuspiciousActivityAlert(ctx context.Context, email, ipAddress string, factors []string) error
}

// AuthService owns the session lifecycle: login, registration, token
// rotation and logout, with the lockout guard and timing normalization
// threaded through the login path.
type AuthService struct {
	repo        UserRepository
	revokeRepo  TokenRevocationRepository
	guard       LoginGuard
	tm          *auth.TokenManager
	timing      LoginTimer
	alerts      AlertSender
	securityLog *pkglogger.SecurityLogger
	logger      *slog.Logger
}

func NewAuthService(repo UserRepository, tm *auth.TokenManager, revokeRepo TokenRevocationRepository, guard LoginGuard, timing LoginTimer, alerts AlertSender, securityLog *pkglogger.SecurityLogger, logger *slog.Logger) *AuthService {
	return &AuthService{
		repo:        repo,
		revokeRepo:  revokeRepo,
		guard:       guard,
		tm:          tm,
		timing:      timing,
		alerts:      alerts,
		securityLog: securityLog,
		logger:      logger,
	}
}

// UserResponse is the public shape of an account inside an AuthResponse.
type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// AuthResponse carries a token pair plus the account it belongs to.
type AuthResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	User         *UserResponse `json:"user"`
}

// Login authenticates a user and returns tokens. Every attempt is
// durably recorded before the outcome is reported; locked accounts are
// rejected before the password is even checked.
func (s *AuthService) Login(ctx context.Context, email, password, ipAddress, userAgent string) (*AuthResponse, error) {
	start := time.Now()

	if email = strings.ToLower(strings.TrimSpace(email)); email == "" {
		s.logger.Warn("login attempt with empty email")
		s.timing.WaitFrom(start, false)
		return nil, models.ErrUnauthorized
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		s.timing.WaitFrom(start, false)
		if errors.Is(err, models.ErrNotFound) {
			// Same log line as a wrong password, so neither the logs
			// nor the response reveal whether the account exists.
			s.logger.Info("login failed: invalid credentials")
			s.logLoginFailure("", email, ipAddress, userAgent, "invalid_credentials")
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// Lock gate runs before password verification. An expired lock is
	// cleared here, so a locked-out user regains access lazily.
	lock, err := s.guard.CheckLock(ctx, user)
	if err != nil {
		s.logger.Error("failed to check account lock", slog.String("user_id", user.ID), slog.Any("error", err))
		s.timing.WaitFrom(start, false)
		return nil, models.ErrInternalServer
	}
	if lock.Locked {
		s.logLoginFailure(user.ID, "", ipAddress, userAgent, "account_locked")
		s.timing.WaitFrom(start, false)
		return nil, &models.AccountLockedError{
			LockedUntil:      *lock.LockedUntil,
			RemainingMinutes: lock.RemainingMinutes,
		}
	}

	if err := validateAccountState(user); err != nil {
		s.logger.Info("login blocked due to account state",
			slog.String("user_id", user.ID),
			slog.String("status", user.Status))
		s.logLoginFailure(user.ID, "", ipAddress, userAgent, "account_blocked")
		s.timing.WaitFrom(start, false)
		return nil, err
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		reason := "invalid_password"
		record, recordErr := s.guard.RecordAttempt(ctx, user, false, ipAddress, userAgent, &reason)
		if recordErr != nil {
			// An unrecorded attempt would undermine the lockout
			// guarantee, so this is a hard failure.
			s.logger.Error("failed to record login attempt", slog.String("user_id", user.ID), slog.Any("error", recordErr))
			s.timing.WaitFrom(start, false)
			return nil, models.ErrInternalServer
		}

		s.logger.Info("login failed: invalid credentials")
		s.logLoginFailure(user.ID, "", ipAddress, userAgent, "invalid_credentials")

		s.timing.WaitFrom(start, false)
		if record.Locked {
			s.notifyLockout(ctx, user.Email, record)
			return nil, &models.AccountLockedError{
				LockedUntil:      *record.LockedUntil,
				RemainingMinutes: remainingMinutes(*record.LockedUntil),
			}
		}
		return nil, models.ErrUnauthorized
	}

	if _, err := s.guard.RecordAttempt(ctx, user, true, ipAddress, userAgent, nil); err != nil {
		s.logger.Error("failed to record login attempt", slog.String("user_id", user.ID), slog.Any("error", err))
		s.timing.WaitFrom(start, false)
		return nil, models.ErrInternalServer
	}

	// Heuristics run before the IP is added to the known set, or a
	// first-time IP would never register as new.
	if factors := s.guard.DetectSuspiciousActivity(ctx, user, ipAddress, userAgent); len(factors) > 0 {
		if err := s.alerts.SendSuspiciousActivityAlert(ctx, user.Email, ipAddress, factors); err != nil {
			s.logger.Error("failed to send suspicious activity alert", slog.Any("error", err))
		}
	}

	if err := s.repo.RecordLoginSuccess(ctx, user.ID, ipAddress); err != nil {
		s.logger.Error("failed to record login success", slog.String("user_id", user.ID), slog.Any("error", err))
	}

	accessToken, refreshToken, err := s.tokenPair(user)
	if err != nil {
		s.timing.WaitFrom(start, false)
		return nil, err
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	s.securityLog.LogAuthAttempt(pkglogger.AuthEvent{
		EventType: "login_success",
		UserID:    user.ID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Success:   true,
	})

	s.timing.WaitFrom(start, true)
	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         userModelToResponse(user),
	}, nil
}

// RefreshToken rotates a refresh token into a new token pair. The used
// refresh token is revoked so it cannot be replayed.
func (s *AuthService) RefreshToken(ctx context.Context, refreshTokenString string) (*AuthResponse, error) {
	if refreshTokenString = strings.TrimSpace(refreshTokenString); refreshTokenString == "" {
		return nil, models.ErrUnauthorized
	}

	claims, err := s.tm.ValidateToken(refreshTokenString)
	if err != nil {
		s.logger.Info("refresh token validation failed", slog.Any("error", err))
		return nil, models.ErrUnauthorized
	}

	if claims.Type != "refresh" {
		s.logger.Warn("refresh attempt with non-refresh token", slog.String("user_id", claims.UserID))
		return nil, models.ErrUnauthorized
	}

	revoked, err := s.revokeRepo.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		s.logger.Error("failed to check token revocation", slog.String("jti", claims.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if revoked {
		s.logger.Warn("refresh attempt with revoked token", slog.String("user_id", claims.UserID))
		return nil, models.ErrUnauthorized
	}

	// The account is re-checked on every rotation, so a lock, a status
	// change or a deletion cuts the session short at the next refresh.
	user, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("user not found for token refresh", slog.String("user_id", claims.UserID))
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user for token refresh", slog.String("user_id", claims.UserID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	lock, err := s.guard.CheckLock(ctx, user)
	if err != nil {
		s.logger.Error("failed to check account lock", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if lock.Locked {
		return nil, &models.AccountLockedError{
			LockedUntil:      *lock.LockedUntil,
			RemainingMinutes: lock.RemainingMinutes,
		}
	}

	if err := validateAccountState(user); err != nil {
		s.logger.Info("token refresh blocked due to account state",
			slog.String("user_id", user.ID),
			slog.String("status", user.Status))
		return nil, models.ErrUnauthorized
	}

	accessToken, newRefreshToken, err := s.tokenPair(user)
	if err != nil {
		return nil, err
	}

	// Retire the used refresh token only after the new pair exists, so
	// a generation failure cannot strand the user with no valid token.
	if err := s.revokeRepo.RevokeToken(ctx, claims.ID, claims.UserID, claims.Type, claims.ExpiresAt.Time, "rotation"); err != nil {
		s.logger.Error("failed to revoke rotated refresh token", slog.String("jti", claims.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("token refreshed", slog.String("user_id", user.ID))

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		User:         userModelToResponse(user),
	}, nil
}

// Register opens a reader account and signs it in. The new account
// always gets the default role; elevated roles go through the admin
// endpoint.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*AuthResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, err
	}

	_, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		s.logger.Info("registration failed: user already exists")
		return nil, models.ErrConflict
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check if user exists", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	hashedPassword, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	createdUser, err := s.repo.Create(ctx, &models.User{
		Email:        email,
		PasswordHash: hashedPassword,
		Name:         name,
		Role:         models.RoleUser,
	})
	if err != nil {
		s.logger.Error("failed to create user", slog.Any("error", err))
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		return nil, models.ErrInternalServer
	}

	accessToken, refreshToken, err := s.tokenPair(createdUser)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", slog.String("user_id", createdUser.ID))

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         userModelToResponse(createdUser),
	}, nil
}

// Logout revokes the presented tokens
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	claims, err := s.tm.ValidateToken(accessToken)
	if err != nil {
		return models.ErrUnauthorized
	}

	if err := s.revokeRepo.RevokeToken(ctx, claims.ID, claims.UserID, claims.Type, claims.ExpiresAt.Time, "logout"); err != nil {
		s.logger.Error("failed to revoke access token", slog.String("jti", claims.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	// Retire the refresh token too when the client hands it over
	if refreshToken != "" {
		refreshClaims, err := s.tm.ValidateToken(refreshToken)
		if err == nil && refreshClaims.UserID == claims.UserID {
			if err := s.revokeRepo.RevokeToken(ctx, refreshClaims.ID, refreshClaims.UserID, refreshClaims.Type, refreshClaims.ExpiresAt.Time, "logout"); err != nil {
				s.logger.Error("failed to revoke refresh token", slog.String("jti", refreshClaims.ID), slog.Any("error", err))
			}
		}
	}

	s.logger.Info("user logged out", slog.String("user_id", claims.UserID))
	return nil
}

// tokenPair issues an access and refresh token for the user.
func (s *AuthService) tokenPair(user *models.User) (access, refresh string, err error) {
	access, err = s.tm.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return "", "", models.ErrInternalServer
	}
	refresh, err = s.tm.GenerateRefreshToken(user.ID, user.Email, user.Role)
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.String("user_id", user.ID), slog.Any("error", err))
		return "", "", models.ErrInternalServer
	}
	return access, refresh, nil
}

// logLoginFailure writes a failed attempt to the security audit log.
// Email is only set when the account could not be resolved to an id.
func (s *AuthService) logLoginFailure(userID, email, ipAddress, userAgent, reason string) {
	s.securityLog.LogAuthAttempt(pkglogger.AuthEvent{
		EventType:     "login_failed",
		UserID:        userID,
		Email:         email,
		IPAddress:     ipAddress,
		UserAgent:     userAgent,
		FailureReason: reason,
		Success:       false,
	})
}

// notifyLockout emails operations about a fresh lockout, best-effort.
func (s *AuthService) notifyLockout(ctx context.Context, email string, record *models.AttemptRecord) {
	if err := s.alerts.SendLockoutAlert(ctx, email, record.FailedAttempts, *record.LockedUntil); err != nil {
		s.logger.Error("failed to send lockout alert", slog.Any("error", err))
	}
}

// validateAccountState maps a non-active account status to its sentinel.
func validateAccountState(user *models.User) error {
	switch user.Status {
	case models.StatusDisabled:
		return models.ErrAccountDisabled
	case models.StatusSuspended:
		return models.ErrAccountSuspended
	case models.StatusActive:
		return nil
	default:
		return fmt.Errorf("unknown account status: %s", user.Status)
	}
}

// remainingMinutes converts a lock deadline to the whole minutes a
// client should wait, rounded up.
func remainingMinutes(lockedUntil time.Time) int {
	remaining := time.Until(lockedUntil)
	if remaining <= 0 {
		return 0
	}
	return int((remaining + time.Minute - 1) / time.Minute)
}

// userModelToResponse converts a stored user to its wire shape.
func userModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		Status:    user.Status,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
		UpdatedAt: user.UpdatedAt.Format(time.RFC3339),
	}
}
