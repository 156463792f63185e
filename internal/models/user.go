package models

import (
	"time"
)

const (
	RoleUser   = "user"
	RoleEditor = "editor"
	RoleAdmin  = "admin"
)

const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusDisabled  = "disabled"
)

type User struct {
	ID            string
	Email         string
	PasswordHash  string
	Name          string
	Role          string
	Status        string
	AccountLocked bool
	LockedUntil   *time.Time // Temporary account lock expiration
	KnownIPs      []string   // IP addresses seen on prior successful logins
	LastLoginAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsAdmin reports whether the user may subscribe to the admin
// notification feed.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ValidRole reports whether role is one the platform knows.
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleEditor, RoleAdmin:
		return true
	}
	return false
}

// ValidStatus reports whether status is a recognized account state.
func ValidStatus(status string) bool {
	switch status {
	case StatusActive, StatusSuspended, StatusDisabled:
		return true
	}
	return false
}
