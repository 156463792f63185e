package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinels the services return and the handlers map to status codes.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Account state rejections, all answered as plain 401 so callers
	// cannot probe why an account stopped working.
	ErrAccountDisabled  = errors.New("account is disabled")
	ErrAccountSuspended = errors.New("account is suspended")
	ErrAccountLocked    = errors.New("account is temporarily locked")
)

// AccountLockedError carries the lockout details the login endpoint
// reports back (remaining minutes, Retry-After). It matches
// ErrAccountLocked under errors.Is.
type AccountLockedError struct {
	LockedUntil      time.Time
	RemainingMinutes int
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account is temporarily locked, try again in %d minutes", e.RemainingMinutes)
}

func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}
