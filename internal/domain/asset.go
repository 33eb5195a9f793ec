package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// MediaType distinguishes still images from videos. Video assets get
// additional derived-data tasks (keyframes, segments) at ingestion.
type MediaType string

// Possible media type values
const (
	MediaTypePhoto MediaType = "photo"
	MediaTypeVideo MediaType = "video"
)

// Common validation errors for Asset
var (
	ErrEmptyAssetID       = errors.New("asset ID cannot be empty")
	ErrEmptyAssetHash     = errors.New("asset content hash cannot be empty")
	ErrEmptyAssetPath     = errors.New("asset path cannot be empty")
	ErrInvalidMediaType   = errors.New("invalid media type")
	ErrInvalidAssetLength = errors.New("asset size must be positive")
)

// Asset represents a single ingested photo or video. Assets are
// content-addressed: the SHA-256 of the bytes is unique across the library,
// which is what makes re-ingesting identical content a no-op.
type Asset struct {
	ID        uuid.UUID `json:"id"`
	SHA256    string    `json:"sha256"`
	Path      string    `json:"path"`
	MediaType MediaType `json:"media_type"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAsset creates a new Asset with the given content hash, storage path,
// media type and size. It generates a new UUID and sets timestamps.
// Returns an error if validation fails.
func NewAsset(sha256Hex, path string, mediaType MediaType, sizeBytes int64) (*Asset, error) {
	now := time.Now().UTC()
	asset := &Asset{
		ID:        uuid.New(),
		SHA256:    sha256Hex,
		Path:      path,
		MediaType: mediaType,
		SizeBytes: sizeBytes,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := asset.Validate(); err != nil {
		return nil, err
	}

	return asset, nil
}

// Validate checks if the Asset has valid data.
func (a *Asset) Validate() error {
	if a.ID == uuid.Nil {
		return ErrEmptyAssetID
	}

	if a.SHA256 == "" {
		return ErrEmptyAssetHash
	}

	if a.Path == "" {
		return ErrEmptyAssetPath
	}

	if !isValidMediaType(a.MediaType) {
		return ErrInvalidMediaType
	}

	if a.SizeBytes <= 0 {
		return ErrInvalidAssetLength
	}

	return nil
}

// isValidMediaType checks if the given media type is valid.
func isValidMediaType(mt MediaType) bool {
	switch mt {
	case MediaTypePhoto, MediaTypeVideo:
		return true
	default:
		return false
	}
}
