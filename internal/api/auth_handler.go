package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/keepsake-api/internal/api/shared"
	"github.com/phrazzld/keepsake-api/internal/service/auth"
)

// AuthHandler handles the operator login endpoint.
type AuthHandler struct {
	authenticator *auth.Authenticator
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(authenticator *auth.Authenticator) *AuthHandler {
	return &AuthHandler{authenticator: authenticator}
}

// Login handles POST /auth/login: verify the operator password and return
// an access token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	token, err := h.authenticator.Login(r.Context(), req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			// Rejected logins are worth WARN visibility on a single-operator
			// service; every one of them is either a typo or an intruder.
			shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized,
				GetSafeErrorMessage(err), err, shared.WithElevatedLogLevel())
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to authenticate", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, AuthResponse{Token: token})
}
