package response

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kwai-club/kwai/pkg/jsonapi"
)

const (
	// JSONAPIMediaType is the official JSON:API media type
	JSONAPIMediaType = "application/vnd.api+json"

	// SchemaMediaType is used for JSON Schema documents
	SchemaMediaType = "application/schema+json"
)

// CheckContentType validates the Content-Type of a request carrying a JSON:API
// document. The media type must not have parameters.
func CheckContentType(r *http.Request) error {
	contentType := r.Header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != JSONAPIMediaType || len(params) > 0 {
		return UnsupportedMediaType()
	}
	return nil
}

// RenderDocument writes a JSON:API document.
func RenderDocument(w http.ResponseWriter, status int, doc *jsonapi.Document) error {
	return writeDocument(w, status, doc)
}

// RenderJSON writes any JSON value with the given content type.
func RenderJSON(w http.ResponseWriter, status int, contentType string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, err = w.Write(data)
	return err
}

func writeDocument(w http.ResponseWriter, status int, doc *jsonapi.Document) error {
	// Marshal FIRST, before touching the response
	// This avoids partial writes if marshaling fails
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", JSONAPIMediaType)
	w.WriteHeader(status)
	_, err = w.Write(data)
	return err
}

// Paginate adds the count/offset/limit meta and the pagination links of one
// page to doc. baseURL is the request URL; its other query parameters are kept.
func Paginate(doc *jsonapi.Document, baseURL string, offset, limit, total int) {
	doc.SetMeta("count", total)
	doc.SetMeta("offset", offset)
	doc.SetMeta("limit", limit)
	doc.Links = BuildPaginationLinks(baseURL, offset, limit, total)
}

// BuildPaginationLinks creates pagination links for JSON:API responses
func BuildPaginationLinks(baseURL string, offset, limit, total int) *jsonapi.Links {
	if limit < 1 {
		return &jsonapi.Links{Self: baseURL}
	}

	lastOffset := 0
	if total > 0 {
		lastOffset = ((total - 1) / limit) * limit
	}

	links := &jsonapi.Links{
		Self:  buildPageURL(baseURL, offset, limit),
		First: buildPageURL(baseURL, 0, limit),
		Last:  buildPageURL(baseURL, lastOffset, limit),
	}

	if offset > 0 {
		prev := offset - limit
		if prev < 0 {
			prev = 0
		}
		links.Prev = buildPageURL(baseURL, prev, limit)
	}

	if offset+limit < total {
		links.Next = buildPageURL(baseURL, offset+limit, limit)
	}

	return links
}

func buildPageURL(baseURL string, offset, limit int) string {
	// Parse the base URL to handle existing query parameters
	u, err := url.Parse(baseURL)
	if err != nil {
		// Fallback to simple concatenation if parse fails
		return fmt.Sprintf("%s?page[limit]=%d&page[offset]=%d", baseURL, limit, offset)
	}

	q := u.Query()
	q.Set("page[limit]", strconv.Itoa(limit))
	q.Set("page[offset]", strconv.Itoa(offset))
	u.RawQuery = q.Encode()

	return u.String()
}
