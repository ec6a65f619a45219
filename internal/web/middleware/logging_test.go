package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	webcontext "github.com/kwai-club/kwai/internal/web/context"
)

func TestLogging(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
		wantBytes  int
	}{
		{
			name: "explicit status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
				w.Write([]byte("created"))
			},
			wantStatus: http.StatusCreated,
			wantBytes:  7,
		},
		{
			name: "implicit ok",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("ok"))
			},
			wantStatus: http.StatusOK,
			wantBytes:  2,
		},
		{
			name: "first status wins",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				w.WriteHeader(http.StatusOK)
			},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var entries []LogEntry
			handler := Logging(func(e LogEntry) { entries = append(entries, e) })(tt.handler)

			req := httptest.NewRequest(http.MethodGet, "/teams?include=members", nil)
			req.Header.Set("User-Agent", "kwai-test")
			req = req.WithContext(webcontext.SetRequestID(req.Context(), "req-1"))
			handler.ServeHTTP(httptest.NewRecorder(), req)

			require.Len(t, entries, 1)
			entry := entries[0]
			assert.Equal(t, "req-1", entry.RequestID)
			assert.Equal(t, http.MethodGet, entry.Method)
			assert.Equal(t, "/teams", entry.Path)
			assert.Equal(t, tt.wantStatus, entry.StatusCode)
			assert.Equal(t, tt.wantBytes, entry.BytesWritten)
			assert.Equal(t, "kwai-test", entry.UserAgent)
			assert.GreaterOrEqual(t, int64(entry.Duration), int64(0))
		})
	}
}

func TestLoggingSkipPaths(t *testing.T) {
	var entries []LogEntry
	handler := LoggingWithConfig(LoggingConfig{
		Logger:    func(e LogEntry) { entries = append(entries, e) },
		SkipPaths: []string{"/health"},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/teams", nil))

	require.Len(t, entries, 1)
	assert.Equal(t, "/teams", entries[0].Path)
}

func TestLoggingWithoutLogger(t *testing.T) {
	called := false
	handler := Logging(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}

func TestResponseWriterUnwrap(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec}
	assert.Same(t, rec, rw.Unwrap())
}
