package task

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/keepsake-api/internal/domain"
	"github.com/phrazzld/keepsake-api/internal/index"
	"github.com/phrazzld/keepsake-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) EmbedAsset(ctx context.Context, assetID uuid.UUID) ([]float32, error) {
	return f.vec, f.err
}

func (f *fakeEmbedder) EmbedFace(ctx context.Context, faceID uuid.UUID) ([]float32, error) {
	return f.vec, f.err
}

type fakeDetector struct {
	faces []uuid.UUID
	err   error
}

func (f *fakeDetector) DetectFaces(ctx context.Context, assetID uuid.UUID) ([]uuid.UUID, error) {
	return f.faces, f.err
}

type fakeCaptioner struct {
	caption string
	err     error
}

func (f *fakeCaptioner) Caption(ctx context.Context, assetID uuid.UUID) (string, error) {
	return f.caption, f.err
}

// fakeExtractor drives the progress callback once per frame, like a real
// keyframe extractor would.
type fakeExtractor struct {
	frames int
}

func (f *fakeExtractor) ExtractKeyframes(ctx context.Context, assetID uuid.UUID, progress ProgressFunc) (int, error) {
	for i := 1; i <= f.frames; i++ {
		if err := progress(i, f.frames); err != nil {
			return i - 1, err
		}
	}
	return f.frames, nil
}

// newHandlerContext builds the plumbing for invoking a handler directly,
// bypassing the executor.
func newHandlerContext(t *testing.T, s store.TaskStore, taskID int64) *HandlerContext {
	t.Helper()
	return &HandlerContext{tasks: s, logger: testLogger(), taskID: taskID}
}

func assetTask(t *testing.T, taskType string, assetID uuid.UUID, priority int) *domain.Task {
	t.Helper()

	raw, err := json.Marshal(assetPayload{AssetID: assetID})
	require.NoError(t, err)
	tk, err := domain.NewTask(taskType, raw, priority)
	require.NoError(t, err)
	return tk
}

func TestEmbedHandler(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("stores vector under asset key", func(t *testing.T) {
		t.Parallel()

		ix := index.New()
		assetID := uuid.New()
		h := NewEmbedHandler(&fakeEmbedder{vec: []float32{0.1, 0.2}}, ix)

		tk := assetTask(t, domain.TaskTypeEmbed, assetID, 0)
		out := h(ctx, newHandlerContext(t, NewMemoryTaskStore(), 1), tk)

		assert.Equal(t, outcomeSuccess, out.kind)
		vec, ok := ix.Vector("asset:" + assetID.String())
		require.True(t, ok)
		assert.Equal(t, []float32{0.1, 0.2}, vec)
	})

	t.Run("malformed payload is fatal", func(t *testing.T) {
		t.Parallel()

		h := NewEmbedHandler(&fakeEmbedder{}, index.New())
		tk, err := domain.NewTask(domain.TaskTypeEmbed, json.RawMessage(`{not json`), 0)
		require.NoError(t, err)

		out := h(ctx, newHandlerContext(t, NewMemoryTaskStore(), 1), tk)
		assert.Equal(t, outcomeFatal, out.kind)
	})

	t.Run("missing asset_id is fatal", func(t *testing.T) {
		t.Parallel()

		h := NewEmbedHandler(&fakeEmbedder{}, index.New())
		tk, err := domain.NewTask(domain.TaskTypeEmbed, json.RawMessage(`{}`), 0)
		require.NoError(t, err)

		out := h(ctx, newHandlerContext(t, NewMemoryTaskStore(), 1), tk)
		assert.Equal(t, outcomeFatal, out.kind)
		assert.Contains(t, out.Err().Error(), "asset_id")
	})

	t.Run("collaborator error is retriable", func(t *testing.T) {
		t.Parallel()

		h := NewEmbedHandler(&fakeEmbedder{err: errors.New("model unavailable")}, index.New())
		tk := assetTask(t, domain.TaskTypeEmbed, uuid.New(), 0)

		out := h(ctx, newHandlerContext(t, NewMemoryTaskStore(), 1), tk)
		assert.Equal(t, outcomeRetry, out.kind)
		assert.Contains(t, out.Err().Error(), "model unavailable")
	})
}

func TestFaceHandlerFansOut(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := NewMemoryTaskStore()
	faces := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	h := NewFaceHandler(&fakeDetector{faces: faces})

	tk := assetTask(t, domain.TaskTypeFace, uuid.New(), 7)
	out := h(ctx, newHandlerContext(t, s, 1), tk)
	require.Equal(t, outcomeSuccess, out.kind)

	followOns, err := s.List(ctx, store.TaskListFilter{Type: domain.TaskTypeFaceEmbed})
	require.NoError(t, err)
	require.Len(t, followOns, len(faces))

	seen := make(map[uuid.UUID]bool)
	for _, fo := range followOns {
		// Follow-on tasks inherit the parent's priority.
		assert.Equal(t, 7, fo.Priority)

		var p facePayload
		require.NoError(t, json.Unmarshal(fo.Payload, &p))
		seen[p.FaceID] = true
	}
	for _, faceID := range faces {
		assert.True(t, seen[faceID], "no face_embed task for face %s", faceID)
	}
}

func TestFaceEmbedHandler(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ix := index.New()
	faceID := uuid.New()
	h := NewFaceEmbedHandler(&fakeEmbedder{vec: []float32{1, 0}}, ix)

	raw, err := json.Marshal(facePayload{FaceID: faceID})
	require.NoError(t, err)
	tk, err := domain.NewTask(domain.TaskTypeFaceEmbed, raw, 0)
	require.NoError(t, err)

	out := h(ctx, newHandlerContext(t, NewMemoryTaskStore(), 1), tk)
	require.Equal(t, outcomeSuccess, out.kind)

	_, ok := ix.Vector("face:" + faceID.String())
	assert.True(t, ok)
}

func TestCaptionHandler(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ix := index.New()
	assetID := uuid.New()
	h := NewCaptionHandler(&fakeCaptioner{caption: "two dogs on a beach"}, ix)

	tk := assetTask(t, domain.TaskTypeCaption, assetID, 0)
	out := h(ctx, newHandlerContext(t, NewMemoryTaskStore(), 1), tk)
	require.Equal(t, outcomeSuccess, out.kind)

	caption, ok := ix.Caption("asset:" + assetID.String())
	require.True(t, ok)
	assert.Equal(t, "two dogs on a beach", caption)
}

func TestPersonReclusterHandler(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("groups similar faces under one person", func(t *testing.T) {
		t.Parallel()

		ix := index.New()
		// Two near-identical vectors and one orthogonal outlier.
		a, b, c := uuid.New(), uuid.New(), uuid.New()
		ix.UpsertVector("face:"+a.String(), []float32{1, 0, 0})
		ix.UpsertVector("face:"+b.String(), []float32{0.99, 0.01, 0})
		ix.UpsertVector("face:"+c.String(), []float32{0, 1, 0})

		s := NewMemoryTaskStore()
		tk := insertTask(t, s, domain.TaskTypePersonRecluster, 0)

		h := NewPersonReclusterHandler(ix, 0.9, 1)
		out := h(ctx, newHandlerContext(t, s, tk.ID), tk)
		require.Equal(t, outcomeSuccess, out.kind)

		personA, _ := ix.Person("face:" + a.String())
		personB, _ := ix.Person("face:" + b.String())
		personC, _ := ix.Person("face:" + c.String())
		assert.Equal(t, personA, personB)
		assert.NotEqual(t, personA, personC)

		// Final progress covers every face.
		got, err := s.Get(ctx, tk.ID)
		require.NoError(t, err)
		require.NotNil(t, got.ProgressCurrent)
		assert.Equal(t, 3, *got.ProgressCurrent)
		assert.Equal(t, 3, *got.ProgressTotal)
	})

	t.Run("stops when cancel is requested", func(t *testing.T) {
		t.Parallel()

		ix := index.New()
		for i := 0; i < 10; i++ {
			ix.UpsertVector("face:"+uuid.NewString(), []float32{float32(i), 1})
		}

		s := NewMemoryTaskStore()
		tk := insertTask(t, s, domain.TaskTypePersonRecluster, 0)
		require.NoError(t, s.RequestCancel(ctx, tk.ID))

		h := NewPersonReclusterHandler(ix, 0.9, 1)
		out := h(ctx, newHandlerContext(t, s, tk.ID), tk)
		assert.Equal(t, outcomeCanceled, out.kind)
	})
}

func TestVideoKeyframesHandler(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("reports per-frame progress", func(t *testing.T) {
		t.Parallel()

		s := NewMemoryTaskStore()
		tk := insertTask(t, s, domain.TaskTypeVideoKeyframes, 0)
		// Rewrite the payload to carry a real asset id.
		raw, err := json.Marshal(assetPayload{AssetID: uuid.New()})
		require.NoError(t, err)
		tk.Payload = raw

		h := NewVideoKeyframesHandler(&fakeExtractor{frames: 5})
		out := h(ctx, newHandlerContext(t, s, tk.ID), tk)
		require.Equal(t, outcomeSuccess, out.kind)

		got, err := s.Get(ctx, tk.ID)
		require.NoError(t, err)
		require.NotNil(t, got.ProgressCurrent)
		assert.Equal(t, 5, *got.ProgressCurrent)
		assert.Equal(t, 5, *got.ProgressTotal)
	})

	t.Run("cancel mid-extraction ends canceled", func(t *testing.T) {
		t.Parallel()

		s := NewMemoryTaskStore()
		tk := insertTask(t, s, domain.TaskTypeVideoKeyframes, 0)
		raw, err := json.Marshal(assetPayload{AssetID: uuid.New()})
		require.NoError(t, err)
		tk.Payload = raw

		require.NoError(t, s.RequestCancel(ctx, tk.ID))

		h := NewVideoKeyframesHandler(&fakeExtractor{frames: 100})
		out := h(ctx, newHandlerContext(t, s, tk.ID), tk)
		assert.Equal(t, outcomeCanceled, out.kind)
	})
}

func TestFailTransientHandlerAlwaysRetries(t *testing.T) {
	t.Parallel()

	h := NewFailTransientHandler()
	tk, err := domain.NewTask(domain.TaskTypeFailTransient, nil, 0)
	require.NoError(t, err)

	out := h(context.Background(), newHandlerContext(t, NewMemoryTaskStore(), 1), tk)
	assert.Equal(t, outcomeRetry, out.kind)
	assert.Contains(t, out.Err().Error(), "injected transient failure")
}
