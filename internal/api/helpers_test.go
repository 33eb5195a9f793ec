package api_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/keepsake-api/internal/api"
	"github.com/phrazzld/keepsake-api/internal/domain"
	"github.com/phrazzld/keepsake-api/internal/events"
	"github.com/phrazzld/keepsake-api/internal/index"
	"github.com/phrazzld/keepsake-api/internal/platform/media"
	"github.com/phrazzld/keepsake-api/internal/service"
	"github.com/phrazzld/keepsake-api/internal/store"
	"github.com/phrazzld/keepsake-api/internal/task"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// apiFixture wires the handlers against in-memory stores, mirroring the
// production route layout minus auth.
type apiFixture struct {
	router *chi.Mux
	tasks  *task.MemoryTaskStore
	assets *store.MemoryAssetStore
	index  *index.VectorIndex
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	assets := store.NewMemoryAssetStore()
	tasks := task.NewMemoryTaskStore()
	ix := index.New()
	logger := discardLogger()

	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(events.NewTaskEnqueueHandler(tasks, logger))

	ingestSvc, err := service.NewIngestService(
		assets, emitter, service.NewNoTxRunner(), t.TempDir(), logger)
	require.NoError(t, err)

	registry := task.NewRegistry()
	noop := func(ctx context.Context, hc *task.HandlerContext, tk *domain.Task) task.Outcome {
		return task.Success()
	}
	for _, taskType := range []string{
		domain.TaskTypeEmbed, domain.TaskTypeFace, domain.TaskTypeCaption,
		domain.TaskTypePersonRecluster,
	} {
		require.NoError(t, registry.Register(taskType, noop))
	}

	taskSvc, err := service.NewTaskService(tasks, registry, logger)
	require.NoError(t, err)
	searchSvc, err := service.NewSearchService(media.NewTextEmbedder(), ix, logger)
	require.NoError(t, err)

	assetHandler := api.NewAssetHandler(ingestSvc, assets)
	taskHandler := api.NewTaskHandler(taskSvc)
	searchHandler := api.NewSearchHandler(searchSvc)
	healthHandler := api.NewHealthHandler(nil)

	r := chi.NewRouter()
	r.Get("/healthz", healthHandler.Check)
	r.Post("/assets", assetHandler.Upload)
	r.Get("/assets", assetHandler.List)
	r.Get("/assets/{id}", assetHandler.Get)
	r.Post("/tasks", taskHandler.Enqueue)
	r.Get("/tasks", taskHandler.List)
	r.Get("/tasks/metrics", taskHandler.Metrics)
	r.Get("/tasks/{id}", taskHandler.Get)
	r.Post("/tasks/{id}/cancel", taskHandler.Cancel)
	r.Post("/tasks/{id}/requeue", taskHandler.Requeue)
	r.Get("/search", searchHandler.Search)

	return &apiFixture{router: r, tasks: tasks, assets: assets, index: ix}
}
