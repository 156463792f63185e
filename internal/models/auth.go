package models

import (
	"github.com/golang-jwt/jwt/v5"
)

type TokenClaims struct {
	Type        string `json:"type"`
	UserID      string `json:"user_id"`
	Email       string `json:"email,omitempty"`
	Role        string `json:"role,omitempty"`
	Refreshable bool   `json:"refreshable,omitempty"`
	jwt.RegisteredClaims
}
