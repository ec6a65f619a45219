package cache

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyGeneratorScope(t *testing.T) {
	kg := DefaultKeyGenerator("/api/v1")

	tests := map[string]string{
		"/api/v1/teams":             "teams",
		"/api/v1/teams/1/members":   "teams",
		"/api/v1/club/members/abc":  "club",
		"/api/v1/trainings/coaches": "trainings",
		"/api/v1":                   "_",
	}
	for path, want := range tests {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		assert.Equal(t, want, kg.Scope(req), path)
	}
}

func TestKeyGeneratorGenerateKey(t *testing.T) {
	kg := DefaultKeyGenerator("/api/v1")
	key := func(target string, accept string) string {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		if accept != "" {
			req.Header.Set("Accept", accept)
		}
		return kg.GenerateKey(req)
	}

	base := key("/api/v1/teams?include=members&fields[teams]=name", "")
	assert.True(t, strings.HasPrefix(base, "doc:teams:"))
	assert.Equal(t, base, key("/api/v1/teams?fields[teams]=name&include=members", ""), "query order does not matter")
	assert.NotEqual(t, base, key("/api/v1/teams?include=members", ""))
	assert.NotEqual(t, base, key("/api/v1/teams?include=members&fields[teams]=name", "application/vnd.api+json"))
	assert.Equal(t, kg.ScopePrefix("teams"), "doc:teams:")
}
