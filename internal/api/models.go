package api

import (
	"encoding/json"

	"github.com/phrazzld/keepsake-api/internal/domain"
	"github.com/phrazzld/keepsake-api/internal/service"
)

// Request/response structures shared by the handlers.

// LoginRequest is the payload for the operator login endpoint.
type LoginRequest struct {
	Password string `json:"password" validate:"required"`
}

// AuthResponse is the successful login response.
type AuthResponse struct {
	// Token is the JWT access token for subsequent requests.
	Token string `json:"token"`
}

// IngestResponse describes the outcome of a media upload.
type IngestResponse struct {
	Asset *domain.Asset `json:"asset"`

	// Duplicate is true when identical bytes were already in the library;
	// no new tasks are enqueued in that case.
	Duplicate bool `json:"duplicate"`

	// EnqueuedTypes lists the derived-data task types scheduled for the asset.
	EnqueuedTypes []string `json:"enqueued_types"`
}

// AssetListResponse wraps an asset listing.
type AssetListResponse struct {
	Assets []*domain.Asset `json:"assets"`
}

// EnqueueTaskRequest is the payload for manually enqueueing a task.
type EnqueueTaskRequest struct {
	Type     string          `json:"type" validate:"required"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Priority int             `json:"priority"`
}

// TaskListResponse wraps a task listing.
type TaskListResponse struct {
	Tasks []*domain.Task `json:"tasks"`
}

// MetricsResponse reports per-state task counts.
type MetricsResponse struct {
	States map[domain.TaskState]int64 `json:"states"`

	// Dead is duplicated out of States as the headline dead-letter gauge.
	Dead int64 `json:"dead"`
}

// SearchResponse wraps the ranked results for a query.
type SearchResponse struct {
	Query   string                 `json:"query"`
	Results []service.SearchResult `json:"results"`
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status string `json:"status"`
}
