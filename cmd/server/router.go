package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/keepsake-api/internal/api"
	apiMiddleware "github.com/phrazzld/keepsake-api/internal/api/middleware"
)

// setupRouter builds the route tree. Login and the health check are public;
// everything else sits behind the operator's access token.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	authHandler := api.NewAuthHandler(app.authenticator)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)
	assetHandler := api.NewAssetHandler(app.ingestService, app.assetStore)
	taskHandler := api.NewTaskHandler(app.taskService)
	searchHandler := api.NewSearchHandler(app.searchService)
	// A typed nil *sql.DB must not reach the Pinger interface.
	var pinger api.Pinger
	if app.db != nil {
		pinger = app.db
	}
	healthHandler := api.NewHealthHandler(pinger)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

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
		})
	})

	r.Get("/healthz", healthHandler.Check)

	return r
}
