package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Arnold10-web/ishaazi-realtime/internal/models"
	"github.com/Arnold10-web/ishaazi-realtime/pkg/auth"
)

// UserRepository is the user store as the account services consume it.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Update(ctx context.Context, id string, user *models.User) (*models.User, error)
	Delete(ctx context.Context, id string) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	RecordLoginSuccess(ctx context.Context, id, ipAddress string) error
}

// UserService handles account management for subscribers and staff.
type UserService struct {
	repo   UserRepository
	logger *slog.Logger
}

func NewUserService(repo UserRepository, logger *slog.Logger) *UserService {
	return &UserService{repo: repo, logger: logger}
}

// fetch loads a user by id, collapsing repository failures into the
// sentinels the handlers map to status codes.
func (s *UserService) fetch(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("user not found", slog.String("user_id", id))
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to load user", slog.String("user_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return user, nil
}

// GetUserByID returns one account by id.
func (s *UserService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.fetch(ctx, id)
}

// ListUsers retrieves a page of users for the admin roster.
func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	users, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		s.logger.Error("failed to query user page", slog.Int("limit", limit), slog.Int("offset", offset), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return users, nil
}

// CreateUser provisions an account with the given password. Role defaults
// to subscriber when unset; unknown roles are rejected rather than stored.
func (s *UserService) CreateUser(ctx context.Context, user *models.User, password string) (*models.User, error) {
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if !models.ValidRole(user.Role) {
		return nil, models.ErrBadRequest
	}

	existing, err := s.repo.GetByEmail(ctx, user.Email)
	if err == nil && existing != nil {
		s.logger.Info("create rejected, email already registered")
		return nil, models.ErrConflict
	}

	if password != "" {
		// The typed error surfaces as ErrWeakPassword to the handler.
		if err := auth.ValidatePassword(password); err != nil {
			return nil, err
		}

		hash, err := auth.HashPassword(password)
		if err != nil {
			s.logger.Error("failed to hash password", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		user.PasswordHash = hash
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user created", slog.String("user_id", created.ID))
	return created, nil
}

// UpdateUser merges the non-empty fields of patch into the stored record.
// Email is immutable here; it is the login identifier.
func (s *UserService) UpdateUser(ctx context.Context, id string, patch *models.User) (*models.User, error) {
	existing, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != "" {
		existing.Name = patch.Name
	}
	if patch.Role != "" {
		if !models.ValidRole(patch.Role) {
			return nil, models.ErrBadRequest
		}
		existing.Role = patch.Role
	}
	if patch.Status != "" {
		if !models.ValidStatus(patch.Status) {
			return nil, models.ErrBadRequest
		}
		existing.Status = patch.Status
	}

	updated, err := s.repo.Update(ctx, id, existing)
	if err != nil {
		s.logger.Error("failed to update user", slog.String("user_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user updated", slog.String("user_id", id))
	return updated, nil
}

// DeleteUser removes an account.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	if _, err := s.fetch(ctx, id); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error("failed to delete user", slog.String("user_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("user deleted", slog.String("user_id", id))
	return nil
}
