package shared

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loginPayload struct {
	Password string `json:"password" validate:"required"`
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"password":"hunter22hunter22"}`))

	var req loginPayload
	require.NoError(t, DecodeJSON(r, &req))
	assert.Equal(t, "hunter22hunter22", req.Password)

	r = httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("{nope"))
	assert.Error(t, DecodeJSON(r, &req))
}

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateRequest(loginPayload{Password: "x"}))
	assert.Error(t, ValidateRequest(loginPayload{}))
}
