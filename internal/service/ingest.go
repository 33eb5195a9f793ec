package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/keepsake-api/internal/domain"
	"github.com/phrazzld/keepsake-api/internal/events"
	"github.com/phrazzld/keepsake-api/internal/store"
)

// photoExtensions and videoExtensions map lowercase file extensions to a
// media type. Anything else is rejected.
var (
	photoExtensions = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
		".webp": true, ".heic": true, ".tiff": true, ".bmp": true,
	}
	videoExtensions = map[string]bool{
		".mp4": true, ".mov": true, ".mkv": true, ".avi": true,
		".webm": true, ".m4v": true,
	}
)

// Derived-task priorities. Lower runs first: embeddings unlock search, so
// they lead; the video tasks are the heaviest and go last.
var derivedTaskPriorities = map[string]int{
	domain.TaskTypeEmbed:          10,
	domain.TaskTypeFace:           20,
	domain.TaskTypeCaption:        30,
	domain.TaskTypeVideoKeyframes: 40,
	domain.TaskTypeVideoSegments:  40,
}

// IngestResult is what an upload returns: the asset (existing or new),
// whether this was a dedup hit, and which derived tasks were requested.
type IngestResult struct {
	Asset         *domain.Asset
	Duplicate     bool
	EnqueuedTypes []string
}

// IngestService handles media uploads: hash, dedup, store the bytes in the
// library, persist the asset, and fan out the derived-data tasks.
type IngestService struct {
	assets      store.AssetStore
	emitter     events.EventEmitter
	txRunner    TxRunner
	libraryRoot string
	logger      *slog.Logger
}

// NewIngestService creates an IngestService storing files under libraryRoot.
func NewIngestService(
	assets store.AssetStore,
	emitter events.EventEmitter,
	txRunner TxRunner,
	libraryRoot string,
	logger *slog.Logger,
) (*IngestService, error) {
	if assets == nil {
		return nil, NewServiceError("create_service", "assets store cannot be nil", nil)
	}
	if emitter == nil {
		return nil, NewServiceError("create_service", "event emitter cannot be nil", nil)
	}
	if txRunner == nil {
		return nil, NewServiceError("create_service", "tx runner cannot be nil", nil)
	}
	if libraryRoot == "" {
		return nil, NewServiceError("create_service", "library root cannot be empty", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &IngestService{
		assets:      assets,
		emitter:     emitter,
		txRunner:    txRunner,
		libraryRoot: libraryRoot,
		logger:      logger.With("component", "ingest_service"),
	}, nil
}

// Ingest processes one uploaded file. Identical bytes are detected by SHA-256
// before anything is written: a known hash returns the existing asset and
// enqueues nothing. A new asset is written to the content-addressed library
// path, persisted, and followed by one task request event per derived job
// (embed, face, caption; videos additionally get keyframes and segments).
func (s *IngestService) Ingest(ctx context.Context, filename string, r io.Reader) (*IngestResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, NewServiceError("ingest", "failed to read upload", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyUpload
	}

	mediaType, err := mediaTypeForFilename(filename)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	shaHex := hex.EncodeToString(sum[:])

	if existing, err := s.assets.GetBySHA256(ctx, shaHex); err == nil {
		s.logger.Info("duplicate upload ignored",
			"sha256", shaHex,
			"asset_id", existing.ID)
		return &IngestResult{Asset: existing, Duplicate: true}, nil
	} else if !errors.Is(err, store.ErrAssetNotFound) {
		return nil, NewServiceError("ingest", "failed to check for existing asset", err)
	}

	path, err := s.writeToLibrary(shaHex, filename, data)
	if err != nil {
		return nil, NewServiceError("ingest", "failed to write file to library", err)
	}

	asset, err := domain.NewAsset(shaHex, path, mediaType, int64(len(data)))
	if err != nil {
		return nil, NewServiceError("ingest", "failed to create asset", err)
	}

	err = s.txRunner.Run(ctx, func(ctx context.Context, tx store.DBTX) error {
		return s.assets.WithTx(tx).Insert(ctx, asset)
	})
	if err != nil {
		if errors.Is(err, store.ErrAssetExists) {
			// Lost a race with a concurrent identical upload. The winner's
			// asset is the canonical one; the library file is shared by
			// construction of the content-addressed path.
			existing, getErr := s.assets.GetBySHA256(ctx, shaHex)
			if getErr != nil {
				return nil, NewServiceError("ingest", "failed to load winning duplicate", getErr)
			}
			return &IngestResult{Asset: existing, Duplicate: true}, nil
		}
		return nil, NewServiceError("ingest", "failed to persist asset", err)
	}

	enqueued, err := s.fanOut(ctx, asset)
	if err != nil {
		return nil, err
	}

	s.logger.Info("asset ingested",
		"asset_id", asset.ID,
		"sha256", shaHex,
		"media_type", mediaType,
		"size_bytes", asset.SizeBytes,
		"task_types", enqueued)

	return &IngestResult{Asset: asset, EnqueuedTypes: enqueued}, nil
}

// fanOut emits one task request event per derived job for the asset.
func (s *IngestService) fanOut(ctx context.Context, asset *domain.Asset) ([]string, error) {
	types := []string{domain.TaskTypeEmbed, domain.TaskTypeFace, domain.TaskTypeCaption}
	if asset.MediaType == domain.MediaTypeVideo {
		types = append(types, domain.TaskTypeVideoKeyframes, domain.TaskTypeVideoSegments)
	}

	payload := struct {
		AssetID uuid.UUID `json:"asset_id"`
	}{AssetID: asset.ID}

	for _, taskType := range types {
		event, err := events.NewTaskRequestEvent(taskType, payload, derivedTaskPriorities[taskType])
		if err != nil {
			return nil, NewServiceError("ingest",
				fmt.Sprintf("failed to create %s task event", taskType), err)
		}
		if err := s.emitter.EmitEvent(ctx, event); err != nil {
			return nil, NewServiceError("ingest",
				fmt.Sprintf("failed to emit %s task event", taskType), err)
		}
	}
	return types, nil
}

// writeToLibrary stores the bytes at a content-addressed path under the
// library root: <root>/<first two hash bytes>/<hash><ext>. Identical content
// always lands on the same path, so a racing duplicate write is harmless.
func (s *IngestService) writeToLibrary(shaHex, filename string, data []byte) (string, error) {
	dir := filepath.Join(s.libraryRoot, shaHex[:2])
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create library directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, shaHex+strings.ToLower(filepath.Ext(filename)))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// mediaTypeForFilename decides photo vs video from the file extension.
func mediaTypeForFilename(filename string) (domain.MediaType, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case photoExtensions[ext]:
		return domain.MediaTypePhoto, nil
	case videoExtensions[ext]:
		return domain.MediaTypeVideo, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMedia, ext)
	}
}
