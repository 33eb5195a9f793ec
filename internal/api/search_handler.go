package api

import (
	"net/http"
	"strconv"

	"github.com/phrazzld/keepsake-api/internal/api/shared"
	"github.com/phrazzld/keepsake-api/internal/service"
)

// defaultSearchLimit is the result cap when the client does not provide one.
const defaultSearchLimit = 20

// SearchHandler handles the free-text asset search endpoint.
type SearchHandler struct {
	search *service.SearchService
}

// NewSearchHandler creates a SearchHandler.
func NewSearchHandler(search *service.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

// Search handles GET /search?q=...&limit=N: rank assets by similarity to
// the query text.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	results, err := h.search.Search(r.Context(), query, limit)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, SearchResponse{
		Query:   query,
		Results: results,
	})
}
