package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Arnold10-web/ishaazi-realtime/internal/auth"
	"github.com/Arnold10-web/ishaazi-realtime/internal/models"
	pkgauth "github.com/Arnold10-web/ishaazi-realtime/pkg/auth"
	pkghttp "github.com/Arnold10-web/ishaazi-realtime/pkg/http"
)

// UserService is the account-management surface the profile and admin
// endpoints consume.
type UserService interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	CreateUser(ctx context.Context, user *models.User, password string) (*models.User, error)
	UpdateUser(ctx context.Context, id string, user *models.User) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// AccountUnlocker lifts a temporary login lockout from an account.
type AccountUnlocker interface {
	Unlock(ctx context.Context, user *models.User, unlockedBy string) error
}

// UserHandler serves account CRUD plus the admin unlock action.
type UserHandler struct {
	service UserService
	guard   AccountUnlocker
}

// NewUserHandler builds the handler; guard carries out admin unlocks.
func NewUserHandler(service UserService, guard AccountUnlocker) *UserHandler {
	return &UserHandler{
		service: service,
		guard:   guard,
	}
}

// Endpoint DTOs

// CreateUserRequest is the admin account-creation body. Unlike the
// public signup it may set a role.
type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,min=1"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"omitempty,oneof=user editor admin"`
}

// UpdateUserRequest carries the mutable account fields; empty ones are
// left untouched.
type UpdateUserRequest struct {
	Name   string `json:"name" validate:"omitempty,min=1"`
	Role   string `json:"role" validate:"omitempty,oneof=user editor admin"`
	Status string `json:"status" validate:"omitempty,oneof=active suspended disabled"`
}

// UserResponse is the public shape of an account.
type UserResponse struct {
	ID            string  `json:"id"`
	Email         string  `json:"email"`
	Name          string  `json:"name"`
	Role          string  `json:"role"`
	Status        string  `json:"status"`
	AccountLocked bool    `json:"account_locked"`
	LockedUntil   *string `json:"locked_until,omitempty"`
	LastLoginAt   *string `json:"last_login_at,omitempty"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

// ListUsersResponse wraps one page of accounts.
type ListUsersResponse struct {
	Users []*UserResponse `json:"users"`
	Total int             `json:"total"`
}

// userModelToResponse strips an account down to its public shape.
func userModelToResponse(user *models.User) *UserResponse {
	resp := &UserResponse{
		ID:            user.ID,
		Email:         user.Email,
		Name:          user.Name,
		Role:          user.Role,
		Status:        user.Status,
		AccountLocked: user.AccountLocked,
		CreatedAt:     user.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     user.UpdatedAt.Format(time.RFC3339),
	}
	if user.LockedUntil != nil {
		lockedUntil := user.LockedUntil.Format(time.RFC3339)
		resp.LockedUntil = &lockedUntil
	}
	if user.LastLoginAt != nil {
		lastLogin := user.LastLoginAt.Format(time.RFC3339)
		resp.LastLoginAt = &lastLogin
	}
	return resp
}

// GetUser returns one account, to its owner or an admin
//
// @Summary Fetch an account
// @Param id path string true "User ID"
// @Produce json
// @Success 200 {object} UserResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		pkghttp.WriteBadRequest(w, "User ID is required")
		return
	}

	if allowed, _ := h.authorize(r, userID); !allowed {
		pkghttp.WriteForbidden(w, "You cannot access this resource")
		return
	}

	user, err := h.service.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, userModelToResponse(user))
}

// ListUsers pages through accounts, newest first
//
// @Summary List accounts
// @Param limit query int false "Page size" default(10)
// @Param offset query int false "Rows to skip" default(0)
// @Produce json
// @Success 200 {object} ListUsersResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /users [get]
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, err := pageParam(r, "limit", 10, 1, 100)
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid limit parameter")
		return
	}

	offset, err := pageParam(r, "offset", 0, 0, 10000)
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid offset parameter")
		return
	}

	users, err := h.service.ListUsers(r.Context(), limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	response := &ListUsersResponse{
		Users: make([]*UserResponse, len(users)),
		Total: len(users),
	}

	for i, user := range users {
		response.Users[i] = userModelToResponse(user)
	}

	pkghttp.WriteJSON(w, http.StatusOK, response)
}

// CreateUser provisions an account with an explicit role
//
// @Summary Create an account with a chosen role
// @Accept json
// @Param request body CreateUserRequest true "New account"
// @Produce json
// @Success 201 {object} UserResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /users [post]
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !DecodeValid(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	user := &models.User{
		Email: req.Email,
		Name:  strings.TrimSpace(req.Name),
		Role:  req.Role,
	}

	if user.Role == "" {
		user.Role = models.RoleUser
	}

	createdUser, err := h.service.CreateUser(r.Context(), user, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "User already exists")
		case errors.Is(err, pkgauth.ErrWeakPassword), errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, err.Error())
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, userModelToResponse(createdUser))
}

// UpdateUser applies a partial account update
//
// @Summary Update an account
// @Param id path string true "User ID"
// @Accept json
// @Param request body UpdateUserRequest true "Fields to change"
// @Produce json
// @Success 200 {object} UserResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /users/{id} [put]
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		pkghttp.WriteBadRequest(w, "User ID is required")
		return
	}

	allowed, isAdmin := h.authorize(r, userID)
	if !allowed {
		pkghttp.WriteForbidden(w, "You cannot access this resource")
		return
	}

	var req UpdateUserRequest
	if !DecodeValid(w, r, &req) {
		return
	}

	// Role and status are moderation controls; self-service updates are
	// limited to the display name.
	if (req.Role != "" || req.Status != "") && !isAdmin {
		pkghttp.WriteForbidden(w, "Only administrators may change role or status")
		return
	}

	patch := &models.User{
		ID:     userID,
		Name:   strings.TrimSpace(req.Name),
		Role:   req.Role,
		Status: req.Status,
	}

	updatedUser, err := h.service.UpdateUser(r.Context(), userID, patch)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, userModelToResponse(updatedUser))
}

// DeleteUser removes an account permanently
//
// @Summary Delete an account
// @Param id path string true "User ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /users/{id} [delete]
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		pkghttp.WriteBadRequest(w, "User ID is required")
		return
	}

	err := h.service.DeleteUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UnlockUser lifts a login lockout from a user account
//
// @Summary Unlock a locked-out user account
// @Param id path string true "User ID"
// @Success 204
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /users/{id}/unlock [post]
func (h *UserHandler) UnlockUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		pkghttp.WriteBadRequest(w, "User ID is required")
		return
	}

	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	user, err := h.service.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	// Record who performed the unlock in the security log
	if err := h.guard.Unlock(r.Context(), user, claims.Email); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Helper functions

// authorize reports whether the caller may touch the target user record
// (self or admin), and whether the caller holds the admin role. The role
// comes from the stored record rather than the token, so a demotion takes
// effect without waiting for old tokens to expire.
func (h *UserHandler) authorize(r *http.Request, targetUserID string) (allowed, isAdmin bool) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		return false, false
	}

	if caller, err := h.service.GetUserByID(r.Context(), claims.UserID); err == nil {
		isAdmin = caller.Role == models.RoleAdmin
	}
	return claims.UserID == targetUserID || isAdmin, isAdmin
}

// pageParam reads an integer query parameter, applying a default when the
// parameter is absent and rejecting values outside [min, max].
func pageParam(r *http.Request, name string, def, min, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < min || n > max {
		return 0, errors.New("parameter out of range")
	}
	return n, nil
}
