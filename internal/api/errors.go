package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/phrazzld/keepsake-api/internal/service"
	"github.com/phrazzld/keepsake-api/internal/service/auth"
	"github.com/phrazzld/keepsake-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes. Unknown
// errors default to 500 so nothing internal leaks through a misclassified
// status.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized

	// Not found errors
	case errors.Is(err, store.ErrTaskNotFound),
		errors.Is(err, store.ErrAssetNotFound):
		return http.StatusNotFound

	// Lifecycle conflicts, such as requeueing a task that is not dead
	case errors.Is(err, store.ErrInvalidTransition),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	// Unsupported upload formats
	case errors.Is(err, service.ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType

	// Bad request errors
	case errors.Is(err, service.ErrEmptyUpload),
		errors.Is(err, service.ErrEmptyQuery),
		errors.Is(err, service.ErrUnknownTaskType),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-facing message for an error.
// Raw error strings are never returned to clients.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"

	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid):
		return "Invalid token"

	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Invalid credentials"

	case errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"

	case errors.Is(err, store.ErrAssetNotFound):
		return "Asset not found"

	case errors.Is(err, store.ErrInvalidTransition):
		return "Task is not in a state that allows this operation"

	case errors.Is(err, store.ErrDuplicate):
		return "Resource already exists"

	case errors.Is(err, service.ErrUnsupportedMedia):
		return "Unsupported media type"

	case errors.Is(err, service.ErrEmptyUpload):
		return "Upload body is empty"

	case errors.Is(err, service.ErrEmptyQuery):
		return "Search query is empty"

	case errors.Is(err, service.ErrUnknownTaskType):
		return "Unknown task type"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError converts validator error strings into short
// user-facing messages without echoing submitted values back.
func SanitizeValidationError(err error) string {
	errMsg := err.Error()

	if strings.Contains(errMsg, "Field validation") {
		// Format: "Key: 'LoginRequest.Password' Error:Field validation for
		// 'Password' failed on the 'required' tag"
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				var tag string
				if len(fieldParts) >= 5 {
					tag = fieldParts[3]
				}
				if tag != "" {
					return fmt.Sprintf("Invalid %s: %s", field, validationTagMessage(tag))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}

	return "Validation error"
}

// validationTagMessage maps validator tags to user-facing descriptions.
func validationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "gt", "gte", "lt", "lte":
		return "out of range"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
