package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/keepsake-api/internal/domain"
	"github.com/phrazzld/keepsake-api/internal/index"
)

// errCancelRequested is returned by progress callbacks to unwind a
// collaborator call after the handler observed a cancellation request.
var errCancelRequested = errors.New("cancellation requested")

// ProgressFunc is invoked by iterative collaborators (keyframe extraction,
// segment detection) once per processed unit. Returning a non-nil error
// aborts the iteration.
type ProgressFunc func(current, total int) error

// Embedder computes a whole-media embedding vector for an asset.
type Embedder interface {
	EmbedAsset(ctx context.Context, assetID uuid.UUID) ([]float32, error)
}

// FaceDetector finds faces in an asset and returns their identifiers.
type FaceDetector interface {
	DetectFaces(ctx context.Context, assetID uuid.UUID) ([]uuid.UUID, error)
}

// FaceEmbedder computes an embedding vector for a detected face.
type FaceEmbedder interface {
	EmbedFace(ctx context.Context, faceID uuid.UUID) ([]float32, error)
}

// Captioner produces a natural-language caption for an asset.
type Captioner interface {
	Caption(ctx context.Context, assetID uuid.UUID) (string, error)
}

// KeyframeExtractor extracts representative still frames from a video,
// reporting progress per frame through the callback.
type KeyframeExtractor interface {
	ExtractKeyframes(ctx context.Context, assetID uuid.UUID, progress ProgressFunc) (int, error)
}

// SegmentDetector splits a video into scene segments, reporting progress per
// segment through the callback.
type SegmentDetector interface {
	DetectSegments(ctx context.Context, assetID uuid.UUID, progress ProgressFunc) (int, error)
}

// assetPayload is the payload shape shared by per-asset task types.
type assetPayload struct {
	AssetID uuid.UUID `json:"asset_id"`
}

// facePayload is the payload shape for face_embed tasks.
type facePayload struct {
	FaceID uuid.UUID `json:"face_id"`
}

// decodeAssetPayload parses and validates an asset payload. Malformed
// payloads are a fatal condition: retrying cannot fix them.
func decodeAssetPayload(t *domain.Task) (assetPayload, error) {
	var p assetPayload
	if err := json.Unmarshal(t.Payload, &p); err != nil {
		return p, fmt.Errorf("malformed payload: %w", err)
	}
	if p.AssetID == uuid.Nil {
		return p, fmt.Errorf("payload missing asset_id")
	}
	return p, nil
}

// NewEmbedHandler returns the handler for embed tasks: compute an asset
// embedding and upsert it into the shared index. Upsert semantics keep
// re-processing idempotent.
func NewEmbedHandler(embedder Embedder, ix *index.VectorIndex) Handler {
	return func(ctx context.Context, hc *HandlerContext, t *domain.Task) Outcome {
		p, err := decodeAssetPayload(t)
		if err != nil {
			return Fatal(err)
		}

		vec, err := embedder.EmbedAsset(ctx, p.AssetID)
		if err != nil {
			return Retryf("embedding failed for asset %s: %w", p.AssetID, err)
		}

		ix.UpsertVector("asset:"+p.AssetID.String(), vec)
		return Success()
	}
}

// NewFaceHandler returns the handler for face tasks: detect faces and spawn
// one face_embed follow-on task per detected face. Re-running after a
// partial failure can enqueue duplicate face_embed tasks; those are benign
// because face embedding upserts by face ID.
func NewFaceHandler(detector FaceDetector) Handler {
	return func(ctx context.Context, hc *HandlerContext, t *domain.Task) Outcome {
		p, err := decodeAssetPayload(t)
		if err != nil {
			return Fatal(err)
		}

		faceIDs, err := detector.DetectFaces(ctx, p.AssetID)
		if err != nil {
			return Retryf("face detection failed for asset %s: %w", p.AssetID, err)
		}

		for _, faceID := range faceIDs {
			if _, err := hc.Enqueue(ctx, domain.TaskTypeFaceEmbed, facePayload{FaceID: faceID}, t.Priority); err != nil {
				return Retryf("failed to enqueue face_embed for face %s: %w", faceID, err)
			}
		}

		hc.Logger().Info("face detection finished", "face_count", len(faceIDs))
		return Success()
	}
}

// NewFaceEmbedHandler returns the handler for face_embed tasks.
func NewFaceEmbedHandler(embedder FaceEmbedder, ix *index.VectorIndex) Handler {
	return func(ctx context.Context, hc *HandlerContext, t *domain.Task) Outcome {
		var p facePayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			return Fatalf("malformed payload: %w", err)
		}
		if p.FaceID == uuid.Nil {
			return Fatalf("payload missing face_id")
		}

		vec, err := embedder.EmbedFace(ctx, p.FaceID)
		if err != nil {
			return Retryf("face embedding failed for face %s: %w", p.FaceID, err)
		}

		ix.UpsertVector("face:"+p.FaceID.String(), vec)
		return Success()
	}
}

// NewCaptionHandler returns the handler for caption tasks.
func NewCaptionHandler(captioner Captioner, ix *index.VectorIndex) Handler {
	return func(ctx context.Context, hc *HandlerContext, t *domain.Task) Outcome {
		p, err := decodeAssetPayload(t)
		if err != nil {
			return Fatal(err)
		}

		caption, err := captioner.Caption(ctx, p.AssetID)
		if err != nil {
			return Retryf("captioning failed for asset %s: %w", p.AssetID, err)
		}

		ix.UpsertCaption("asset:"+p.AssetID.String(), caption)
		return Success()
	}
}

// NewPersonReclusterHandler returns the handler for person_recluster tasks:
// a long-running greedy pass over every face embedding, assigning each face
// to the first cluster whose centroid is within the similarity threshold.
// The cancellation flag is re-read once per checkEvery faces, and progress
// is reported at the same cadence.
func NewPersonReclusterHandler(ix *index.VectorIndex, threshold float64, checkEvery int) Handler {
	if checkEvery <= 0 {
		checkEvery = 1
	}

	return func(ctx context.Context, hc *HandlerContext, t *domain.Task) Outcome {
		faceKeys := ix.Keys("face:")
		total := len(faceKeys)

		if err := hc.ReportProgress(ctx, 0, total); err != nil {
			return Retryf("failed to report progress: %w", err)
		}

		var centroids [][]float32
		for i, key := range faceKeys {
			if i%checkEvery == 0 {
				canceled, err := hc.Canceled(ctx)
				if err != nil {
					return Retryf("failed to check cancellation: %w", err)
				}
				if canceled {
					hc.Logger().Info("recluster canceled", "processed", i, "total", total)
					return Canceled()
				}
				if err := hc.ReportProgress(ctx, i, total); err != nil {
					return Retryf("failed to report progress: %w", err)
				}
			}

			vec, ok := ix.Vector(key)
			if !ok {
				continue
			}

			assigned := -1
			for ci, centroid := range centroids {
				if index.Cosine(vec, centroid) >= threshold {
					assigned = ci
					break
				}
			}
			if assigned < 0 {
				centroids = append(centroids, vec)
				assigned = len(centroids) - 1
			}
			ix.AssignPerson(key, fmt.Sprintf("person:%d", assigned))
		}

		if err := hc.ReportProgress(ctx, total, total); err != nil {
			return Retryf("failed to report progress: %w", err)
		}

		hc.Logger().Info("recluster finished", "faces", total, "persons", len(centroids))
		return Success()
	}
}

// NewVideoKeyframesHandler returns the handler for video_keyframes tasks.
// Progress and cancellation are threaded into the extractor through its
// per-frame callback.
func NewVideoKeyframesHandler(extractor KeyframeExtractor) Handler {
	return func(ctx context.Context, hc *HandlerContext, t *domain.Task) Outcome {
		p, err := decodeAssetPayload(t)
		if err != nil {
			return Fatal(err)
		}

		count, err := extractor.ExtractKeyframes(ctx, p.AssetID, trackProgress(ctx, hc))
		switch {
		case errors.Is(err, errCancelRequested):
			return Canceled()
		case err != nil:
			return Retryf("keyframe extraction failed for asset %s: %w", p.AssetID, err)
		}

		hc.Logger().Info("keyframe extraction finished", "keyframes", count)
		return Success()
	}
}

// NewVideoSegmentsHandler returns the handler for video_segments tasks.
func NewVideoSegmentsHandler(detector SegmentDetector) Handler {
	return func(ctx context.Context, hc *HandlerContext, t *domain.Task) Outcome {
		p, err := decodeAssetPayload(t)
		if err != nil {
			return Fatal(err)
		}

		count, err := detector.DetectSegments(ctx, p.AssetID, trackProgress(ctx, hc))
		switch {
		case errors.Is(err, errCancelRequested):
			return Canceled()
		case err != nil:
			return Retryf("segment detection failed for asset %s: %w", p.AssetID, err)
		}

		hc.Logger().Info("segment detection finished", "segments", count)
		return Success()
	}
}

// NewFailTransientHandler returns a handler that always fails with a
// retriable error, exercising the retry/backoff/dead-letter path end to end.
func NewFailTransientHandler() Handler {
	return func(ctx context.Context, hc *HandlerContext, t *domain.Task) Outcome {
		return Retryf("injected transient failure (attempt %d)", t.RetryCount+1)
	}
}

// trackProgress builds the ProgressFunc handed to iterative collaborators:
// it persists progress and aborts with errCancelRequested once the
// cancellation flag is observed.
func trackProgress(ctx context.Context, hc *HandlerContext) ProgressFunc {
	return func(current, total int) error {
		canceled, err := hc.Canceled(ctx)
		if err != nil {
			return err
		}
		if canceled {
			return errCancelRequested
		}
		return hc.ReportProgress(ctx, current, total)
	}
}
