package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/keepsake-api/internal/domain"
)

// MemoryAssetStore is an in-memory implementation of AssetStore used by tests
// and ephemeral setups. Content-hash uniqueness is enforced the same way the
// SQL implementation enforces it with its unique index.
type MemoryAssetStore struct {
	mutex  sync.Mutex
	byID   map[uuid.UUID]*domain.Asset
	byHash map[string]uuid.UUID
}

// Compile-time interface check.
var _ AssetStore = (*MemoryAssetStore)(nil)

// NewMemoryAssetStore creates an empty MemoryAssetStore.
func NewMemoryAssetStore() *MemoryAssetStore {
	return &MemoryAssetStore{
		byID:   make(map[uuid.UUID]*domain.Asset),
		byHash: make(map[string]uuid.UUID),
	}
}

// Insert persists a new asset, rejecting duplicate content hashes.
func (s *MemoryAssetStore) Insert(ctx context.Context, asset *domain.Asset) error {
	if err := asset.Validate(); err != nil {
		return NewStoreError("asset", "insert", "validation failed", err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.byHash[asset.SHA256]; exists {
		return ErrAssetExists
	}

	cp := *asset
	s.byID[asset.ID] = &cp
	s.byHash[asset.SHA256] = asset.ID
	return nil
}

// Get retrieves an asset by ID.
func (s *MemoryAssetStore) Get(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return nil, ErrAssetNotFound
	}
	cp := *a
	return &cp, nil
}

// GetBySHA256 retrieves an asset by its content hash.
func (s *MemoryAssetStore) GetBySHA256(ctx context.Context, sha256Hex string) (*domain.Asset, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	id, ok := s.byHash[sha256Hex]
	if !ok {
		return nil, ErrAssetNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

// List retrieves assets, newest first.
func (s *MemoryAssetStore) List(ctx context.Context, limit int) ([]*domain.Asset, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	out := make([]*domain.Asset, 0, len(s.byID))
	for _, a := range s.byID {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// WithTx implements AssetStore.WithTx. The memory store has no transactions;
// it returns itself.
func (s *MemoryAssetStore) WithTx(tx DBTX) AssetStore {
	return s
}
