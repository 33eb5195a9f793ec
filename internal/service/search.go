package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/keepsake-api/internal/index"
)

// assetKeyPrefix namespaces whole-media embeddings in the vector index.
const assetKeyPrefix = "asset:"

// TextEmbedder maps query text into the same embedding space as the asset
// vectors.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// SearchResult is one hit in a search response.
type SearchResult struct {
	AssetID uuid.UUID `json:"asset_id"`
	Score   float64   `json:"score"`
	Caption string    `json:"caption,omitempty"`
}

// SearchService answers free-text queries by embedding the query and ranking
// assets by cosine similarity in the shared index.
type SearchService struct {
	embedder TextEmbedder
	ix       *index.VectorIndex
	logger   *slog.Logger
}

// NewSearchService creates a SearchService over the given index.
func NewSearchService(embedder TextEmbedder, ix *index.VectorIndex, logger *slog.Logger) (*SearchService, error) {
	if embedder == nil {
		return nil, NewServiceError("create_service", "embedder cannot be nil", nil)
	}
	if ix == nil {
		return nil, NewServiceError("create_service", "index cannot be nil", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SearchService{
		embedder: embedder,
		ix:       ix,
		logger:   logger.With("component", "search_service"),
	}, nil
}

// Search returns up to limit assets ranked by similarity to the query text,
// each annotated with its caption when one has been generated.
func (s *SearchService) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	vec, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, NewServiceError("search", "failed to embed query", err)
	}

	matches := s.ix.Search(vec, limit, assetKeyPrefix)

	results := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		assetID, err := uuid.Parse(strings.TrimPrefix(m.Key, assetKeyPrefix))
		if err != nil {
			// A malformed key would be an indexing bug; skip it rather than
			// failing the whole query.
			s.logger.Warn("skipping malformed index key", "key", m.Key)
			continue
		}

		result := SearchResult{AssetID: assetID, Score: m.Score}
		if caption, ok := s.ix.Caption(m.Key); ok {
			result.Caption = caption
		}
		results = append(results, result)
	}

	s.logger.Debug("search completed",
		"query_length", len(query),
		"result_count", len(results))
	return results, nil
}
