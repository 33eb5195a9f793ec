package api

import (
	"context"
	"net/http"

	"github.com/phrazzld/keepsake-api/internal/api/shared"
)

// Pinger reports whether a backing dependency is reachable. *sql.DB
// satisfies it directly.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler handles the liveness endpoint.
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates a HealthHandler. A nil pinger skips the database
// check, which is what the in-memory configuration uses.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// Check handles GET /healthz.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			shared.RespondWithErrorAndLog(w, r,
				http.StatusServiceUnavailable, "Database unreachable", err)
			return
		}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{Status: "ok"})
}
