// Package media provides the local, model-free implementations of the
// analysis interfaces the task handlers depend on. Embeddings are feature
// hashes of the raw bytes (or query text), so similar content clusters only
// loosely; the point is a fully working pipeline without any inference
// runtime. Every operation is deterministic for a given input.
package media

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/keepsake-api/internal/domain"
	"github.com/phrazzld/keepsake-api/internal/store"
	"github.com/phrazzld/keepsake-api/internal/task"
)

// embedDim is the dimensionality of all produced embeddings. Text and media
// share one space so queries can rank assets.
const embedDim = 64

// bytesPerKeyframe controls how many keyframes the extractor pretends a
// video has: one per megabyte, clamped below.
const bytesPerKeyframe = 1 << 20

// Analyzer implements the full set of analysis interfaces against asset
// files on disk.
type Analyzer struct {
	assets store.AssetStore
}

// Interface checks: Analyzer must satisfy every handler collaborator except
// the captioner, which has its own backends.
var (
	_ task.Embedder          = (*Analyzer)(nil)
	_ task.FaceDetector      = (*Analyzer)(nil)
	_ task.FaceEmbedder      = (*Analyzer)(nil)
	_ task.KeyframeExtractor = (*Analyzer)(nil)
	_ task.SegmentDetector   = (*Analyzer)(nil)
)

// NewAnalyzer creates an Analyzer reading asset files through the given store.
func NewAnalyzer(assets store.AssetStore) *Analyzer {
	return &Analyzer{assets: assets}
}

// EmbedAsset computes a feature-hash embedding of the asset's bytes.
func (a *Analyzer) EmbedAsset(ctx context.Context, assetID uuid.UUID) ([]float32, error) {
	data, _, err := a.loadAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	return hashBytes(data), nil
}

// DetectFaces derives a deterministic set of zero to three face IDs from the
// asset content. Face IDs are stable across re-runs (version-5 UUIDs of the
// asset ID), which keeps face_embed fan-out idempotent.
func (a *Analyzer) DetectFaces(ctx context.Context, assetID uuid.UUID) ([]uuid.UUID, error) {
	data, _, err := a.loadAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}

	h := fnv.New32a()
	_, _ = h.Write(data)
	count := int(h.Sum32() % 4)

	faces := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		name := fmt.Sprintf("%s/face/%d", assetID, i)
		faces = append(faces, uuid.NewSHA1(assetID, []byte(name)))
	}
	return faces, nil
}

// EmbedFace computes an embedding from the face ID itself. Real face crops
// are out of scope; stability is what the clustering pass needs.
func (a *Analyzer) EmbedFace(ctx context.Context, faceID uuid.UUID) ([]float32, error) {
	return hashBytes(faceID[:]), nil
}

// ExtractKeyframes pretends to walk a video frame by frame, reporting
// progress per keyframe through the callback.
func (a *Analyzer) ExtractKeyframes(ctx context.Context, assetID uuid.UUID, progress task.ProgressFunc) (int, error) {
	return a.iterateUnits(ctx, assetID, 50, progress)
}

// DetectSegments splits a video into scene segments, one per four keyframe
// units, reporting progress per segment.
func (a *Analyzer) DetectSegments(ctx context.Context, assetID uuid.UUID, progress task.ProgressFunc) (int, error) {
	return a.iterateUnits(ctx, assetID, 12, progress)
}

// iterateUnits runs the shared size-based iteration for the video analyzers.
func (a *Analyzer) iterateUnits(ctx context.Context, assetID uuid.UUID, maxUnits int, progress task.ProgressFunc) (int, error) {
	_, asset, err := a.loadAsset(ctx, assetID)
	if err != nil {
		return 0, err
	}

	units := int(asset.SizeBytes/bytesPerKeyframe) + 1
	if units > maxUnits {
		units = maxUnits
	}

	for i := 1; i <= units; i++ {
		if err := progress(i, units); err != nil {
			return i - 1, err
		}
	}
	return units, nil
}

// loadAsset resolves the asset record and reads its file.
func (a *Analyzer) loadAsset(ctx context.Context, assetID uuid.UUID) ([]byte, *domain.Asset, error) {
	asset, err := a.assets.Get(ctx, assetID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load asset %s: %w", assetID, err)
	}

	data, err := os.ReadFile(asset.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read asset file %s: %w", asset.Path, err)
	}
	return data, asset, nil
}

// TextEmbedder feature-hashes query text into the shared embedding space.
type TextEmbedder struct{}

// NewTextEmbedder creates a TextEmbedder.
func NewTextEmbedder() *TextEmbedder {
	return &TextEmbedder{}
}

// EmbedText implements service.TextEmbedder.
func (e *TextEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, embedDim)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		vec[h.Sum32()%embedDim]++
	}
	return normalize(vec), nil
}

// hashBytes buckets overlapping trigrams of the input into a fixed-size
// vector and normalizes it.
func hashBytes(data []byte) []float32 {
	vec := make([]float32, embedDim)
	if len(data) < 3 {
		h := fnv.New32a()
		_, _ = h.Write(data)
		vec[h.Sum32()%embedDim] = 1
		return vec
	}

	for i := 0; i+3 <= len(data); i++ {
		h := fnv.New32a()
		_, _ = h.Write(data[i : i+3])
		vec[h.Sum32()%embedDim]++
	}
	return normalize(vec)
}

// normalize scales the vector to unit length. Zero vectors pass through.
func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}

	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
