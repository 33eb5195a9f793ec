package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/keepsake-api/internal/api/shared"
	"github.com/phrazzld/keepsake-api/internal/service"
	"github.com/phrazzld/keepsake-api/internal/store"
)

// defaultAssetListLimit caps asset listings when the client does not ask for
// a specific page size.
const defaultAssetListLimit = 100

// AssetHandler handles media upload and asset retrieval endpoints.
type AssetHandler struct {
	ingest *service.IngestService
	assets store.AssetStore
}

// NewAssetHandler creates an AssetHandler.
func NewAssetHandler(ingest *service.IngestService, assets store.AssetStore) *AssetHandler {
	return &AssetHandler{ingest: ingest, assets: assets}
}

// Upload handles POST /assets?filename=...: the raw media bytes are the
// request body. New content gets 201 and its derived-data tasks; identical
// re-uploads get 200 with the existing asset and no new tasks.
func (h *AssetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "filename query parameter required")
		return
	}

	result, err := h.ingest.Ingest(r.Context(), filename, r.Body)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	shared.RespondWithJSON(w, r, status, IngestResponse{
		Asset:         result.Asset,
		Duplicate:     result.Duplicate,
		EnqueuedTypes: result.EnqueuedTypes,
	})
}

// Get handles GET /assets/{id}.
func (h *AssetHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid asset ID")
		return
	}

	asset, err := h.assets.Get(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, asset)
}

// List handles GET /assets?limit=N, newest first.
func (h *AssetHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultAssetListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	assets, err := h.assets.List(r.Context(), limit)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, AssetListResponse{Assets: assets})
}
