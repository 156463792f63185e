package models

import "time"

// LoginAttempt represents a single login attempt against an account.
type LoginAttempt struct {
	ID            string    `db:"id"`
	Email         string    `db:"email"`
	IPAddress     string    `db:"ip_address"`
	UserAgent     string    `db:"user_agent"`
	AttemptTime   time.Time `db:"attempt_time"`
	Success       bool      `db:"success"`
	FailureReason *string   `db:"failure_reason"`
	ExpiresAt     time.Time `db:"expires_at"`
}

// LockStatus is the result of checking whether an account is
// currently locked out of authentication.
type LockStatus struct {
	Locked           bool
	LockedUntil      *time.Time
	RemainingMinutes int // Whole minutes until the lock expires, rounded up
}

// AttemptRecord is the outcome of recording a login attempt: whether
// the account tipped over the failure threshold and is now locked.
type AttemptRecord struct {
	Locked         bool
	LockedUntil    *time.Time
	FailedAttempts int // Failed attempts inside the sliding window
}
