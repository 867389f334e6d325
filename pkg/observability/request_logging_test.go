package observability

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/platinummonkey/sims/pkg/contextkeys"
)

func TestRequestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	var seenID string
	handler := RequestLoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = contextkeys.GetRequestID(r.Context())
		assert.NotNil(t, GetLogger(r.Context()))
		w.WriteHeader(http.StatusTeapot)
	}))

	t.Run("generates request id", func(t *testing.T) {
		buf.Reset()
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/records", nil))

		assert.NotEmpty(t, seenID)
		assert.Equal(t, seenID, w.Header().Get(RequestIDHeader))

		entry := decodeLine(t, &buf)
		assert.Equal(t, "request completed", entry["msg"])
		assert.Equal(t, seenID, entry["request_id"])
		assert.Equal(t, float64(http.StatusTeapot), entry["status"])
		assert.Equal(t, "/api/v1/records", entry["path"])
	})

	t.Run("keeps incoming request id", func(t *testing.T) {
		buf.Reset()
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(RequestIDHeader, "req-123")
		handler.ServeHTTP(w, r)

		assert.Equal(t, "req-123", seenID)
		assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
	})
}
