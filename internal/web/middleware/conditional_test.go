package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConditional(t *testing.T) {
	marker := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Applied", "yes")
			next.ServeHTTP(w, r)
		})
	}
	handler := Conditional(Not(PathPrefix("/api/v1/auth")), marker)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	tests := []struct {
		method string
		path   string
		want   bool
	}{
		{method: http.MethodGet, path: "/api/v1/teams", want: true},
		{method: http.MethodPost, path: "/api/v1/teams/1/members", want: true},
		{method: http.MethodGet, path: "/health", want: true},
		{method: http.MethodPost, path: "/api/v1/auth/login", want: false},
		{method: http.MethodGet, path: "/api/v1/auth/me", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, rec.Header().Get("X-Applied") == "yes")
		})
	}
}
