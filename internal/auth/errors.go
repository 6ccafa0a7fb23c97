package auth

import "errors"

// Every failure of the refresh pipeline maps to exactly one of these values.
// Handlers match with errors.Is and translate to a 400 AuthResult; none of
// them is a server fault.
var (
	ErrInvalidToken            = errors.New("invalid jwt")
	ErrTokenNotYetExpired      = errors.New("jwt not expired")
	ErrRefreshTokenNotFound    = errors.New("refresh token does not exist")
	ErrRefreshTokenExpired     = errors.New("refresh token has expired, login required")
	ErrRefreshTokenAlreadyUsed = errors.New("refresh token already used")
	ErrRefreshTokenRevoked     = errors.New("refresh token has been revoked")
	ErrTokenMismatch           = errors.New("refresh token does not match jwt")
	ErrUserNotFound            = errors.New("user not found")
	ErrInvalidCredentials      = errors.New("invalid authentication request")
	ErrEmailTaken              = errors.New("email already exists")
)
