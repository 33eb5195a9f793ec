package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/keepsake-api/internal/domain"
)

// AssetStore defines the persistence interface for ingested media assets.
type AssetStore interface {
	// Insert persists a new asset. Returns ErrAssetExists if an asset with
	// the same content hash is already stored.
	Insert(ctx context.Context, asset *domain.Asset) error

	// Get retrieves an asset by ID. Returns ErrAssetNotFound if it does not exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.Asset, error)

	// GetBySHA256 retrieves an asset by its content hash. Returns
	// ErrAssetNotFound if no asset with that hash has been ingested.
	GetBySHA256(ctx context.Context, sha256Hex string) (*domain.Asset, error)

	// List retrieves assets, newest first, capped at limit (zero means no cap).
	List(ctx context.Context, limit int) ([]*domain.Asset, error)

	// WithTx returns a new AssetStore instance bound to the given transaction,
	// so asset creation and task fan-out can share one unit of work.
	WithTx(tx DBTX) AssetStore
}
