package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/keepsake-api/internal/api/shared"
	"github.com/stretchr/testify/assert"
)

func TestTraceMiddlewareSetsTraceID(t *testing.T) {
	t.Parallel()

	var seen string
	h := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.GetTraceID(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Len(t, seen, shared.TraceIDLength*2)
}
