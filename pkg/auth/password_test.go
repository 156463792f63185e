package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name       string
		password   string
		shouldFail bool
	}{
		{
			name:       "valid strong password",
			password:   "SecureP@ss123",
			shouldFail: false,
		},
		{
			name:       "too short",
			password:   "Pass@1",
			shouldFail: true,
		},
		{
			name:       "too long",
			password:   "Aa1@" + strings.Repeat("x", 130),
			shouldFail: true,
		},
		{
			name:       "missing uppercase",
			password:   "securepass@123",
			shouldFail: true,
		},
		{
			name:       "missing lowercase",
			password:   "SECUREPASS@123",
			shouldFail: true,
		},
		{
			name:       "missing digit",
			password:   "SecurePass@xyz",
			shouldFail: true,
		},
		{
			name:       "missing special character",
			password:   "SecurePass123",
			shouldFail: true,
		},
		{
			name:       "common password rejected",
			password:   "password123!",
			shouldFail: true,
		},
		{
			name:       "platform name rejected",
			password:   "ishaazi",
			shouldFail: true,
		},
		{
			name:       "valid with multiple special chars",
			password:   "Secure#P@ssw0rd",
			shouldFail: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)

			if tt.shouldFail && err == nil {
				t.Errorf("expected error, got nil")
			}
			if !tt.shouldFail && err != nil {
				t.Errorf("expected no error, got: %v", err)
			}
		})
	}
}

func TestValidatePassword_GenericErrorMessage(t *testing.T) {
	// Validation failures must not leak which requirement was missed
	err := ValidatePassword("short")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if err.Error() != "invalid password" {
		t.Errorf("error message should be generic, got: %q", err.Error())
	}
}

func TestValidatePassword_MatchesSentinel(t *testing.T) {
	err := ValidatePassword("short")
	if !errors.Is(err, ErrWeakPassword) {
		t.Errorf("rejection should match ErrWeakPassword, got: %v", err)
	}
}

func TestHashAndComparePassword(t *testing.T) {
	password := "SecureP@ss123"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	if hash == "" {
		t.Error("hash should not be empty")
	}

	if hash == password {
		t.Error("hash should not equal plaintext password")
	}

	if err := ComparePassword(hash, password); err != nil {
		t.Errorf("ComparePassword with correct password failed: %v", err)
	}

	if err := ComparePassword(hash, "WrongPassword123!"); err == nil {
		t.Error("ComparePassword with wrong password should fail")
	}
}

func TestHashPassword_Empty(t *testing.T) {
	if _, err := HashPassword(""); err == nil {
		t.Error("HashPassword with empty input should fail")
	}
}
