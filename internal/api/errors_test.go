package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/phrazzld/keepsake-api/internal/service"
	"github.com/phrazzld/keepsake-api/internal/service/auth"
	"github.com/phrazzld/keepsake-api/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid token", auth.ErrInvalidToken, http.StatusUnauthorized},
		{"expired token", auth.ErrExpiredToken, http.StatusUnauthorized},
		{"bad credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{"task not found", store.ErrTaskNotFound, http.StatusNotFound},
		{"asset not found", store.ErrAssetNotFound, http.StatusNotFound},
		{"invalid transition", store.ErrInvalidTransition, http.StatusConflict},
		{"duplicate asset", store.ErrAssetExists, http.StatusConflict},
		{"unsupported media", service.ErrUnsupportedMedia, http.StatusUnsupportedMediaType},
		{"empty upload", service.ErrEmptyUpload, http.StatusBadRequest},
		{"empty query", service.ErrEmptyQuery, http.StatusBadRequest},
		{"unknown task type", service.ErrUnknownTaskType, http.StatusBadRequest},
		{"invalid entity", store.ErrInvalidEntity, http.StatusBadRequest},
		{"unknown error", errors.New("disk on fire"), http.StatusInternalServerError},
		{
			"wrapped error keeps its mapping",
			fmt.Errorf("requeue: %w", store.ErrInvalidTransition),
			http.StatusConflict,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, MapErrorToStatusCode(tc.err))
		})
	}
}

func TestGetSafeErrorMessageNeverEchoesInternals(t *testing.T) {
	t.Parallel()

	internal := errors.New("pq: connection to postgres://op:secret@db failed")
	msg := GetSafeErrorMessage(internal)
	assert.Equal(t, "An unexpected error occurred", msg)

	assert.Equal(t, "Task not found",
		GetSafeErrorMessage(fmt.Errorf("get: %w", store.ErrTaskNotFound)))
	assert.Equal(t, "Invalid credentials", GetSafeErrorMessage(auth.ErrInvalidCredentials))
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
}

func TestSanitizeValidationError(t *testing.T) {
	t.Parallel()

	err := errors.New(
		"Key: 'LoginRequest.Password' Error:Field validation for 'Password' failed on the 'required' tag")
	assert.Equal(t, "Invalid Password: required field", SanitizeValidationError(err))

	assert.Equal(t, "Validation error",
		SanitizeValidationError(errors.New("something else entirely")))
}
