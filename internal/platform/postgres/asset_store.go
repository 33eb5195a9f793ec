package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/keepsake-api/internal/domain"
	"github.com/phrazzld/keepsake-api/internal/platform/logger"
	"github.com/phrazzld/keepsake-api/internal/store"
)

// PostgresAssetStore implements the store.AssetStore interface using PostgreSQL.
type PostgresAssetStore struct {
	db store.DBTX
}

// Ensure PostgresAssetStore implements store.AssetStore interface
var _ store.AssetStore = (*PostgresAssetStore)(nil)

// NewPostgresAssetStore creates a new PostgresAssetStore.
func NewPostgresAssetStore(db store.DBTX) *PostgresAssetStore {
	return &PostgresAssetStore{
		db: db,
	}
}

// WithTx implements store.AssetStore.WithTx.
func (s *PostgresAssetStore) WithTx(tx store.DBTX) store.AssetStore {
	return &PostgresAssetStore{db: tx}
}

// Insert persists a new asset. The unique index on sha256 is the dedup
// mechanism; a violation surfaces as store.ErrAssetExists.
func (s *PostgresAssetStore) Insert(ctx context.Context, asset *domain.Asset) error {
	log := logger.FromContext(ctx)

	if err := asset.Validate(); err != nil {
		return store.NewStoreError("asset", "insert", "validation failed", err)
	}

	query := `
		INSERT INTO assets (id, sha256, path, media_type, size_bytes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.ExecContext(ctx, query,
		asset.ID,
		asset.SHA256,
		asset.Path,
		asset.MediaType,
		asset.SizeBytes,
		asset.CreatedAt,
		asset.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: sha256 %s", store.ErrAssetExists, asset.SHA256)
		}
		log.Error("failed to insert asset", "asset_id", asset.ID, "error", err)
		return fmt.Errorf("failed to insert asset: %w", MapError(err))
	}
	return nil
}

// Get retrieves an asset by ID.
func (s *PostgresAssetStore) Get(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	query := `
		SELECT id, sha256, path, media_type, size_bytes, created_at, updated_at
		FROM assets
		WHERE id = $1
	`
	return s.getOne(ctx, query, id)
}

// GetBySHA256 retrieves an asset by its content hash.
func (s *PostgresAssetStore) GetBySHA256(ctx context.Context, sha256Hex string) (*domain.Asset, error) {
	query := `
		SELECT id, sha256, path, media_type, size_bytes, created_at, updated_at
		FROM assets
		WHERE sha256 = $1
	`
	return s.getOne(ctx, query, sha256Hex)
}

// List retrieves assets, newest first.
func (s *PostgresAssetStore) List(ctx context.Context, limit int) ([]*domain.Asset, error) {
	query := `
		SELECT id, sha256, path, media_type, size_bytes, created_at, updated_at
		FROM assets
		ORDER BY created_at DESC, id DESC
	`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var assets []*domain.Asset
	for rows.Next() {
		var a domain.Asset
		if err := rows.Scan(
			&a.ID, &a.SHA256, &a.Path, &a.MediaType, &a.SizeBytes,
			&a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan asset row: %w", err)
		}
		assets = append(assets, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating asset rows: %w", err)
	}
	return assets, nil
}

// getOne runs a single-row asset query.
func (s *PostgresAssetStore) getOne(ctx context.Context, query string, arg any) (*domain.Asset, error) {
	var a domain.Asset
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&a.ID, &a.SHA256, &a.Path, &a.MediaType, &a.SizeBytes,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrAssetNotFound
		}
		return nil, fmt.Errorf("failed to get asset: %w", MapError(err))
	}
	return &a, nil
}
