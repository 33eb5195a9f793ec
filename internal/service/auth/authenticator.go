package auth

import (
	"context"
	"log/slog"

	"github.com/phrazzld/keepsake-api/internal/config"
)

// Authenticator handles the operator login: verify the password against the
// configured bcrypt hash, then mint an access token.
type Authenticator struct {
	operatorHash string
	verifier     PasswordVerifier
	jwtService   JWTService
	logger       *slog.Logger
}

// NewAuthenticator creates an Authenticator from the auth configuration.
func NewAuthenticator(
	cfg config.AuthConfig,
	verifier PasswordVerifier,
	jwtService JWTService,
	logger *slog.Logger,
) *Authenticator {
	return &Authenticator{
		operatorHash: cfg.OperatorPasswordHash,
		verifier:     verifier,
		jwtService:   jwtService,
		logger:       logger.With("component", "authenticator"),
	}
}

// Login verifies the operator password and returns a signed access token.
// Returns ErrInvalidCredentials on mismatch; the cause is logged, never
// returned, so callers cannot leak it to clients.
func (a *Authenticator) Login(ctx context.Context, password string) (string, error) {
	if err := a.verifier.Compare(a.operatorHash, password); err != nil {
		a.logger.Warn("operator login rejected", "error", err)
		return "", ErrInvalidCredentials
	}

	token, err := a.jwtService.GenerateToken(ctx)
	if err != nil {
		a.logger.Error("failed to generate token after successful login", "error", err)
		return "", err
	}

	a.logger.Info("operator logged in")
	return token, nil
}
