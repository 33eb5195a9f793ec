package auth

import "errors"

// Authentication errors.
var (
	// ErrInvalidToken indicates the token is malformed, has a bad signature,
	// or carries invalid claims.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken indicates the token's expiry is in the past.
	ErrExpiredToken = errors.New("token expired")

	// ErrTokenNotYetValid indicates the token's not-before claim is in the future.
	ErrTokenNotYetValid = errors.New("token not yet valid")

	// ErrInvalidCredentials indicates the supplied password does not match the
	// operator's configured hash.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
