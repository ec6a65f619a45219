// Package request reads inbound request bodies: JSON:API documents checked
// against the registered resource shapes, and url-encoded forms.
package request

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"

	"github.com/kwai-club/kwai/internal/web/response"
	"github.com/kwai-club/kwai/pkg/jsonapi"
)

// DefaultMaxBodySize limits request bodies to 1MB.
const DefaultMaxBodySize = 1 << 20

// Parser handles parsing of HTTP request bodies
type Parser struct {
	maxBodySize int64 // Maximum size for request bodies (in bytes)
	shapes      *jsonapi.Shapes
	decoder     *schema.Decoder
	validate    *validator.Validate
}

// NewParser creates a new request parser with default settings
func NewParser(shapes *jsonapi.Shapes) *Parser {
	return NewParserWithMaxSize(shapes, DefaultMaxBodySize)
}

// NewParserWithMaxSize creates a parser with a custom max body size
func NewParserWithMaxSize(shapes *jsonapi.Shapes, maxBytes int64) *Parser {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	return &Parser{
		maxBodySize: maxBytes,
		shapes:      shapes,
		decoder:     decoder,
		validate:    validator.New(),
	}
}

// ParseResource reads a JSON:API document with a single resource of typeName
// as primary data. The body must be sent with the JSON:API media type.
func (p *Parser) ParseResource(w http.ResponseWriter, r *http.Request, typeName string) (*jsonapi.DecodedResource, error) {
	if err := response.CheckContentType(r); err != nil {
		return nil, err
	}
	body, err := p.readBody(w, r)
	if err != nil {
		return nil, err
	}
	return p.shapes.Decode(typeName, body)
}

// ParseForm parses URL-encoded form data into target and validates it. Form
// fields are mapped with the schema struct tag.
func (p *Parser) ParseForm(w http.ResponseWriter, r *http.Request, target any) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/x-www-form-urlencoded" {
		return response.UnsupportedMediaType()
	}

	// Limit body size
	r.Body = http.MaxBytesReader(w, r.Body, p.maxBodySize)
	defer r.Body.Close()

	if err := r.ParseForm(); err != nil {
		return tooLarge(err, response.BadRequest("invalid form data").Wrap(err))
	}
	if err := p.decoder.Decode(target, r.PostForm); err != nil {
		return response.BadRequest("invalid form data").Wrap(err)
	}
	return p.validate.Struct(target)
}

func (p *Parser) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, p.maxBodySize)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, tooLarge(err, response.BadRequest("failed to read request body").Wrap(err))
	}
	if len(body) == 0 {
		return nil, &jsonapi.DocumentError{Detail: "request body is empty"}
	}
	return body, nil
}

func tooLarge(err error, fallback error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return response.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit)).Wrap(err)
	}
	return fallback
}
