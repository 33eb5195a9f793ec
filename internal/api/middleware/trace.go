package middleware

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/keepsake-api/internal/api/shared"
)

// TraceMiddleware attaches a trace ID to every request context. Apply early
// in the chain so all downstream handlers and error responses carry it.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.SetTraceID(r.Context())

		slog.Debug("request started",
			slog.String("trace_id", shared.GetTraceID(ctx)),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
