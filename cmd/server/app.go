package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/keepsake-api/internal/config"
	"github.com/phrazzld/keepsake-api/internal/domain"
	"github.com/phrazzld/keepsake-api/internal/events"
	"github.com/phrazzld/keepsake-api/internal/index"
	"github.com/phrazzld/keepsake-api/internal/platform/gemini"
	"github.com/phrazzld/keepsake-api/internal/platform/media"
	"github.com/phrazzld/keepsake-api/internal/platform/postgres"
	"github.com/phrazzld/keepsake-api/internal/service"
	"github.com/phrazzld/keepsake-api/internal/service/auth"
	"github.com/phrazzld/keepsake-api/internal/store"
	"github.com/phrazzld/keepsake-api/internal/task"
)

// Person clustering knobs. The threshold is the minimum cosine similarity
// for joining an existing cluster; the cancellation flag is re-read once per
// checkEvery faces.
const (
	personClusterThreshold  = 0.9
	personClusterCheckEvery = 25
)

// application holds the shared dependencies so startup wiring and shutdown
// cleanup live in one place.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	taskStore  store.TaskStore
	assetStore store.AssetStore
	index      *index.VectorIndex

	jwtService    auth.JWTService
	authenticator *auth.Authenticator

	eventEmitter events.EventEmitter
	executor     *task.Executor

	ingestService *service.IngestService
	taskService   *service.TaskService
	searchService *service.SearchService
}

// newApplication wires every component: stores, the analysis backends, the
// task registry and executor, the event system and the services the HTTP
// handlers depend on.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
		index:  index.New(),
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	app.authenticator = auth.NewAuthenticator(
		cfg.Auth, auth.NewBcryptVerifier(), app.jwtService, logger)

	app.taskStore = postgres.NewPostgresTaskStore(db)
	app.assetStore = postgres.NewPostgresAssetStore(db)

	// Analysis backends. The analyzer covers embeddings, faces and video
	// structure; captioning goes through Gemini when a key is configured and
	// the offline fallback otherwise.
	analyzer := media.NewAnalyzer(app.assetStore)

	var captioner task.Captioner
	if cfg.Gemini.APIKey != "" {
		captioner, err = gemini.NewCaptioner(
			ctx, logger.With("component", "captioner"), cfg.Gemini, app.assetStore)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini captioner: %w", err)
		}
		logger.Info("Gemini captioner initialized", "model", cfg.Gemini.Model)
	} else {
		captioner = gemini.NewFallback(app.assetStore)
		logger.Info("no Gemini API key configured, using fallback captioner")
	}

	registry := task.NewRegistry()
	handlers := map[string]task.Handler{
		domain.TaskTypeEmbed:           task.NewEmbedHandler(analyzer, app.index),
		domain.TaskTypeFace:            task.NewFaceHandler(analyzer),
		domain.TaskTypeFaceEmbed:       task.NewFaceEmbedHandler(analyzer, app.index),
		domain.TaskTypeCaption:         task.NewCaptionHandler(captioner, app.index),
		domain.TaskTypePersonRecluster: task.NewPersonReclusterHandler(app.index, personClusterThreshold, personClusterCheckEvery),
		domain.TaskTypeVideoKeyframes:  task.NewVideoKeyframesHandler(analyzer),
		domain.TaskTypeVideoSegments:   task.NewVideoSegmentsHandler(analyzer),
		domain.TaskTypeFailTransient:   task.NewFailTransientHandler(),
	}
	for taskType, handler := range handlers {
		if err := registry.Register(taskType, handler); err != nil {
			return nil, fmt.Errorf("failed to register %s handler: %w", taskType, err)
		}
	}

	backoff := task.NewBackoffPolicy(
		cfg.Worker.BackoffBase, cfg.Worker.BackoffCap, cfg.Worker.BackoffJitter)
	app.executor = task.NewExecutor(app.taskStore, registry, backoff, task.ExecutorConfig{
		WorkerCount:  cfg.Worker.Count,
		PollInterval: cfg.Worker.PollInterval,
		MaxRetries:   cfg.Worker.MaxRetries,
	}, logger.With("component", "executor"))

	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(events.NewTaskEnqueueHandler(app.taskStore, logger))
	app.eventEmitter = emitter

	app.ingestService, err = service.NewIngestService(
		app.assetStore,
		app.eventEmitter,
		service.NewSQLTxRunner(db),
		cfg.Library.Root,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest service: %w", err)
	}

	app.taskService, err = service.NewTaskService(app.taskStore, registry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	app.searchService, err = service.NewSearchService(
		media.NewTextEmbedder(), app.index, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create search service: %w", err)
	}

	logger.Info("application initialized")
	return app, nil
}

// Run starts the task workers and the HTTP server, then blocks until
// shutdown completes.
func (app *application) Run(ctx context.Context) error {
	app.executor.Start()

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup stops the workers and closes the database. In-flight handlers run
// to completion before Stop returns.
func (app *application) cleanup() {
	if app.executor != nil {
		app.executor.Stop()
	}
	if app.db != nil {
		closeDatabase(app.db, app.logger)
	}
	app.logger.Info("application shutdown completed")
}
