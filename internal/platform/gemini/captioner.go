package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/keepsake-api/internal/config"
	"github.com/phrazzld/keepsake-api/internal/domain"
	"github.com/phrazzld/keepsake-api/internal/store"
	"google.golang.org/genai"
)

// captionPrompt asks for a single dense sentence; captions feed text search,
// not a gallery UI.
const captionPrompt = "Describe this media in one short sentence. " +
	"Mention the main subjects, the setting and any notable activity. " +
	"Respond with the sentence only."

// Captioner generates natural-language captions for assets using the Gemini
// API. It resolves the asset's storage path through the asset store and sends
// the raw bytes inline with the prompt.
type Captioner struct {
	logger *slog.Logger
	client *genai.Client
	assets store.AssetStore
	model  string
}

// NewCaptioner creates a Gemini-backed captioner. The API key and model name
// must both be set; callers that have neither should use NewFallback instead.
func NewCaptioner(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.GeminiConfig,
	assets store.AssetStore,
) (*Captioner, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key cannot be empty", ErrInvalidConfig)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", ErrInvalidConfig, err)
	}

	return &Captioner{
		logger: logger,
		client: client,
		assets: assets,
		model:  cfg.Model,
	}, nil
}

// Caption implements task.Captioner. Transient API failures are returned
// as-is so the task layer can retry them; a safety block or empty response is
// wrapped in a sentinel the caller can treat as permanent.
func (c *Captioner) Caption(ctx context.Context, assetID uuid.UUID) (string, error) {
	asset, err := c.assets.Get(ctx, assetID)
	if err != nil {
		return "", fmt.Errorf("failed to load asset %s: %w", assetID, err)
	}

	data, err := os.ReadFile(asset.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read asset file %s: %w", asset.Path, err)
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(data, mediaMIMEType(asset)),
		genai.NewPartFromText(captionPrompt),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	c.logger.DebugContext(ctx, "requesting caption",
		"asset_id", assetID,
		"model", c.model,
		"size_bytes", len(data))

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini caption request failed: %w", err)
	}

	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: asset %s", ErrContentBlocked, assetID)
	}

	caption := strings.TrimSpace(resp.Text())
	if caption == "" {
		return "", fmt.Errorf("%w: asset %s", ErrEmptyCaption, assetID)
	}

	c.logger.InfoContext(ctx, "caption generated",
		"asset_id", assetID,
		"caption_length", len(caption))
	return caption, nil
}

// mediaMIMEType guesses the MIME type from the file extension, falling back
// to a generic type for the asset's media kind.
func mediaMIMEType(asset *domain.Asset) string {
	if mt := mime.TypeByExtension(filepath.Ext(asset.Path)); mt != "" {
		return mt
	}
	if asset.MediaType == domain.MediaTypeVideo {
		return "video/mp4"
	}
	return "image/jpeg"
}

// Fallback is the captioner used when no Gemini API key is configured. It
// derives a caption from what it can see without a model: the filename and
// media kind. The pipeline stays functional offline; captions are just poor.
type Fallback struct {
	assets store.AssetStore
}

// NewFallback creates the offline fallback captioner.
func NewFallback(assets store.AssetStore) *Fallback {
	return &Fallback{assets: assets}
}

// Caption implements task.Captioner.
func (f *Fallback) Caption(ctx context.Context, assetID uuid.UUID) (string, error) {
	asset, err := f.assets.Get(ctx, assetID)
	if err != nil {
		return "", fmt.Errorf("failed to load asset %s: %w", assetID, err)
	}

	name := strings.TrimSuffix(filepath.Base(asset.Path), filepath.Ext(asset.Path))
	return fmt.Sprintf("%s named %s", string(asset.MediaType), name), nil
}
