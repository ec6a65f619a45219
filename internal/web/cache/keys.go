package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sort"
	"strings"
)

// documentKeyPrefix starts every key written by the cache middleware
const documentKeyPrefix = "doc:"

// KeyGenerator generates cache keys from HTTP requests. Keys have the form
// doc:<scope>:<hash>, where the scope is the first path segment after
// StripPrefix ("teams" for /api/v1/teams/1/members). All documents of a scope
// can be dropped at once with ScopePrefix.
type KeyGenerator struct {
	// StripPrefix is removed from the path before the scope is taken
	StripPrefix string
	// IncludeHeaders includes specified headers in the cache key
	IncludeHeaders []string
}

// DefaultKeyGenerator returns a key generator for routes below prefix
func DefaultKeyGenerator(prefix string) *KeyGenerator {
	return &KeyGenerator{
		StripPrefix:    prefix,
		IncludeHeaders: []string{"Accept"},
	}
}

// Scope returns the scope of the request path
func (kg *KeyGenerator) Scope(r *http.Request) string {
	path := strings.TrimPrefix(r.URL.Path, kg.StripPrefix)
	path = strings.TrimPrefix(path, "/")
	scope, _, _ := strings.Cut(path, "/")
	if scope == "" {
		return "_"
	}
	return scope
}

// ScopePrefix returns the key prefix shared by all documents of scope
func (kg *KeyGenerator) ScopePrefix(scope string) string {
	return documentKeyPrefix + scope + ":"
}

// GenerateKey generates a cache key for the given request. Query parameters
// are sorted, so ?include=a&fields[b]=c and ?fields[b]=c&include=a share a key.
func (kg *KeyGenerator) GenerateKey(r *http.Request) string {
	parts := []string{r.Method, r.URL.Path}

	if r.URL.RawQuery != "" {
		// Encode sorts by key
		parts = append(parts, r.URL.Query().Encode())
	}

	if len(kg.IncludeHeaders) > 0 {
		headerParts := make([]string, 0, len(kg.IncludeHeaders))
		for _, header := range kg.IncludeHeaders {
			if value := r.Header.Get(header); value != "" {
				headerParts = append(headerParts, header+"="+value)
			}
		}
		sort.Strings(headerParts)
		parts = append(parts, strings.Join(headerParts, "|"))
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, "\n")))
	return kg.ScopePrefix(kg.Scope(r)) + hex.EncodeToString(hash[:16])
}
