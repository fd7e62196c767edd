package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenRequest exchanges an operator key for an access token.
type TokenRequest struct {
	OperatorID string `json:"operator_id" validate:"required"`
	Key        string `json:"key" validate:"required"`
	IP         string `json:"-"`
	UserAgent  string `json:"-"`
}

// TokenResponse returns the issued access token.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	OperatorID string `json:"operator_id"`
	Staff      bool   `json:"staff"`
	jwt.RegisteredClaims
}
