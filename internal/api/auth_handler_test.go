package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/phrazzld/keepsake-api/internal/api"
	"github.com/phrazzld/keepsake-api/internal/config"
	"github.com/phrazzld/keepsake-api/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const operatorPassword = "correct horse battery staple"

func newAuthHandler(t *testing.T) (*api.AuthHandler, auth.JWTService) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(operatorPassword), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := config.AuthConfig{
		JWTSecret:            "0123456789abcdef0123456789abcdef",
		TokenLifetimeMinutes: 5,
		OperatorPasswordHash: string(hash),
	}

	jwtService, err := auth.NewJWTService(cfg)
	require.NoError(t, err)

	authenticator := auth.NewAuthenticator(
		cfg, auth.NewBcryptVerifier(), jwtService, discardLogger())
	return api.NewAuthHandler(authenticator), jwtService
}

func TestLoginSuccess(t *testing.T) {
	t.Parallel()

	handler, jwtService := newAuthHandler(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"password":"`+operatorPassword+`"}`))
	handler.Login(w, r)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp api.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)

	claims, err := jwtService.ValidateToken(r.Context(), resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "operator", claims.Subject)
}

func TestLoginWrongPassword(t *testing.T) {
	t.Parallel()

	handler, _ := newAuthHandler(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"password":"guessing"}`))
	handler.Login(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid credentials")
}

func TestLoginMalformedRequests(t *testing.T) {
	t.Parallel()

	handler, _ := newAuthHandler(t)

	for name, body := range map[string]string{
		"invalid json":     `{nope`,
		"missing password": `{}`,
	} {
		body := body
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
			handler.Login(w, r)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}
