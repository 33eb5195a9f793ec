package auth

import (
	"context"
	"time"
)

// operatorSubject is the JWT subject for the single operator. This is a
// personal service: there is no user table, just one credential in config.
const operatorSubject = "operator"

// Claims holds the validated claims extracted from a token.
type Claims struct {
	// Subject identifies the token holder.
	Subject string

	// IssuedAt is when the token was created.
	IssuedAt time.Time

	// ExpiresAt is when the token stops being accepted.
	ExpiresAt time.Time

	// ID is the unique token identifier.
	ID string
}

// JWTService generates and validates the operator's access tokens.
type JWTService interface {
	// GenerateToken creates a signed access token for the operator.
	GenerateToken(ctx context.Context) (string, error)

	// ValidateToken parses and validates a token, returning its claims.
	// Returns ErrExpiredToken, ErrTokenNotYetValid or ErrInvalidToken on
	// failure.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}
