package auth

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost     = 14 // OWASP 2026 recommendation - stronger than cost 12 (Feb 2026)
	MinPasswordLen = 8
	MaxPasswordLen = 128
)

// ErrWeakPassword is the sentinel every password rejection matches under
// errors.Is, so callers can map it to a 400 without parsing messages.
var ErrWeakPassword = errors.New("password does not meet requirements")

// PasswordValidationError lists which requirements failed. The reasons
// stay internal; Error() is deliberately generic so responses cannot be
// used to probe the policy.
type PasswordValidationError struct {
	Reasons []string
}

func (e *PasswordValidationError) Error() string {
	return "invalid password"
}

func (e *PasswordValidationError) Is(target error) bool {
	return target == ErrWeakPassword
}

// Frequently guessed passwords, plus the platform's own name. Matched
// case-insensitively.
var blockedPasswords = map[string]bool{
	"password":     true,
	"12345678":     true,
	"qwerty":       true,
	"abc123":       true,
	"password123":  true,
	"password123!": true,
	"123456":       true,
	"admin":        true,
	"letmein":      true,
	"welcome":      true,
	"monkey":       true,
	"dragon":       true,
	"master":       true,
	"123123":       true,
	"passw0rd":     true,
	"shadow":       true,
	"sunshine":     true,
	"princess":     true,
	"starwars":     true,
	"football":     true,
	"trustno1":     true,
	"ishaazi":      true,
	"livestock":    true,
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// ValidatePassword enforces the account password policy: length bounds,
// all four character classes, and the blocklist.
func ValidatePassword(password string) error {
	var reasons []string

	if len(password) < MinPasswordLen {
		reasons = append(reasons, fmt.Sprintf("shorter than %d characters", MinPasswordLen))
	}
	if len(password) > MaxPasswordLen {
		reasons = append(reasons, fmt.Sprintf("longer than %d characters", MaxPasswordLen))
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}
	if !hasUpper {
		reasons = append(reasons, "no uppercase letter")
	}
	if !hasLower {
		reasons = append(reasons, "no lowercase letter")
	}
	if !hasDigit {
		reasons = append(reasons, "no digit")
	}
	if !hasSpecial {
		reasons = append(reasons, "no special character")
	}

	if blockedPasswords[strings.ToLower(password)] {
		reasons = append(reasons, "on the blocklist")
	}

	if len(reasons) > 0 {
		return &PasswordValidationError{Reasons: reasons}
	}
	return nil
}
