package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"
)

// GenerateETag generates a strong ETag for the given content
func GenerateETag(content []byte) string {
	hash := sha256.Sum256(content)
	return `"` + hex.EncodeToString(hash[:16]) + `"`
}

// ParseIfNoneMatch parses the If-None-Match header value
func ParseIfNoneMatch(header string) []string {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}
	if header == "*" {
		return []string{"*"}
	}

	var etags []string
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		opaque := strings.TrimPrefix(part, "W/")
		if len(opaque) < 2 || opaque[0] != '"' || opaque[len(opaque)-1] != '"' {
			continue
		}
		etags = append(etags, part)
	}
	return etags
}

// MatchesETag reports whether etag matches one of etags using the weak
// comparison If-None-Match requires
func MatchesETag(etag string, etags []string) bool {
	if len(etags) == 1 && etags[0] == "*" {
		return true
	}

	want := strings.TrimPrefix(etag, "W/")
	for _, e := range etags {
		if strings.TrimPrefix(e, "W/") == want {
			return true
		}
	}
	return false
}

// CheckConditionalRequest writes 304 Not Modified and returns true when the
// client already has the current representation
func CheckConditionalRequest(w http.ResponseWriter, r *http.Request, etag string, lastModified time.Time) bool {
	// If-None-Match takes precedence over If-Modified-Since
	if ifNoneMatch := r.Header.Get("If-None-Match"); ifNoneMatch != "" {
		if MatchesETag(etag, ParseIfNoneMatch(ifNoneMatch)) {
			writeNotModified(w, etag, lastModified)
			return true
		}
		return false
	}

	if ifModifiedSince := r.Header.Get("If-Modified-Since"); ifModifiedSince != "" && !lastModified.IsZero() {
		since, err := http.ParseTime(ifModifiedSince)
		if err == nil && !lastModified.Truncate(time.Second).After(since) {
			writeNotModified(w, etag, lastModified)
			return true
		}
	}

	return false
}

func writeNotModified(w http.ResponseWriter, etag string, lastModified time.Time) {
	SetCacheHeaders(w, etag, lastModified, "")
	w.WriteHeader(http.StatusNotModified)
}

// SetCacheHeaders sets appropriate cache headers on the response
func SetCacheHeaders(w http.ResponseWriter, etag string, lastModified time.Time, cacheControl string) {
	if etag != "" {
		w.Header().Set("ETag", etag)
	}
	if !lastModified.IsZero() {
		w.Header().Set("Last-Modified", lastModified.UTC().Format(http.TimeFormat))
	}
	if cacheControl != "" {
		w.Header().Set("Cache-Control", cacheControl)
	}
}
