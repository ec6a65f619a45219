package response

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kwai-club/kwai/pkg/jsonapi"
)

// HTTPError is an error with the HTTP status it should be rendered with. It is
// rendered as a single JSON:API error object.
type HTTPError struct {
	StatusCode int
	Code       string
	Detail     string
	Source     *jsonapi.ErrorSource
	Err        error
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.Err)
	}
	return e.Detail
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// NewHTTPError creates a new HTTP error
func NewHTTPError(statusCode int, detail string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Code:       errorCodeFromStatus(statusCode),
		Detail:     detail,
	}
}

// WithCode sets a custom error code
func (e *HTTPError) WithCode(code string) *HTTPError {
	e.Code = code
	return e
}

// WithPointer points the error at a member of the request document.
func (e *HTTPError) WithPointer(pointer string) *HTTPError {
	e.Source = &jsonapi.ErrorSource{Pointer: pointer}
	return e
}

// WithParameter points the error at a query parameter.
func (e *HTTPError) WithParameter(name string) *HTTPError {
	e.Source = &jsonapi.ErrorSource{Parameter: name}
	return e
}

// Wrap records the underlying cause. It is logged, never rendered.
func (e *HTTPError) Wrap(err error) *HTTPError {
	e.Err = err
	return e
}

// Object converts the error to a JSON:API error object.
func (e *HTTPError) Object() *jsonapi.ErrorObject {
	return &jsonapi.ErrorObject{
		Status: strconv.Itoa(e.StatusCode),
		Code:   e.Code,
		Title:  http.StatusText(e.StatusCode),
		Detail: e.Detail,
		Source: e.Source,
	}
}

// BadRequest creates a 400 error
func BadRequest(detail string) *HTTPError {
	return NewHTTPError(http.StatusBadRequest, detail)
}

// Unauthorized creates a 401 error
func Unauthorized(detail string) *HTTPError {
	if detail == "" {
		detail = "Authentication required"
	}
	return NewHTTPError(http.StatusUnauthorized, detail)
}

// Forbidden creates a 403 error
func Forbidden(detail string) *HTTPError {
	if detail == "" {
		detail = "Access denied"
	}
	return NewHTTPError(http.StatusForbidden, detail)
}

// NotFound creates a 404 error
func NotFound(detail string) *HTTPError {
	if detail == "" {
		detail = "Resource not found"
	}
	return NewHTTPError(http.StatusNotFound, detail)
}

// Conflict creates a 409 error
func Conflict(detail string) *HTTPError {
	return NewHTTPError(http.StatusConflict, detail)
}

// UnsupportedMediaType creates a 415 error
func UnsupportedMediaType() *HTTPError {
	return NewHTTPError(http.StatusUnsupportedMediaType,
		"Content-Type must be "+JSONAPIMediaType+" without media type parameters")
}

// Internal creates a 500 error. The cause is kept for logging only.
func Internal(err error) *HTTPError {
	return NewHTTPError(http.StatusInternalServerError, "Internal server error").Wrap(err)
}

// FromError converts any error into the HTTP errors it is rendered as.
//
// Invalid inbound documents become 400 (or 422 for a well formed document with
// invalid values), validation failures become 422 with one error per field,
// and everything else, including serialization errors, is an internal error.
func FromError(err error) []*HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return []*HTTPError{httpErr}
	}

	var docErr *jsonapi.DocumentError
	if errors.As(err, &docErr) {
		e := NewHTTPError(http.StatusBadRequest, docErr.Detail).WithCode("invalid_document")
		switch {
		case strings.HasPrefix(docErr.Pointer, "/"):
			e = e.WithPointer(docErr.Pointer)
		case docErr.Pointer != "":
			// Query parameters (include, page[limit], ...) are not JSON pointers.
			e = e.WithParameter(docErr.Pointer)
		}
		return []*HTTPError{e}
	}

	var valErrs validator.ValidationErrors
	if errors.As(err, &valErrs) {
		out := make([]*HTTPError, 0, len(valErrs))
		for _, ve := range valErrs {
			out = append(out, NewHTTPError(http.StatusUnprocessableEntity, formatValidationError(ve)).
				WithCode("validation_error").
				WithPointer("/data/attributes/"+ve.Field()))
		}
		return out
	}

	return []*HTTPError{Internal(err)}
}

// RenderError renders err as a JSON:API error document and returns the status
// that was written.
func RenderError(w http.ResponseWriter, err error) int {
	errs := FromError(err)
	status := errs[0].StatusCode
	objects := make([]*jsonapi.ErrorObject, 0, len(errs))
	for _, e := range errs {
		objects = append(objects, e.Object())
	}
	if err := writeDocument(w, status, jsonapi.NewErrorDocument(objects...)); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
	return status
}

// formatValidationError converts a validator.FieldError to a human-readable message.
func formatValidationError(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required":
		return ve.Field() + " is required"
	case "email":
		return ve.Field() + " must be a valid email address"
	case "uuid", "uuid4":
		return ve.Field() + " must be a valid UUID"
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", ve.Field(), ve.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", ve.Field(), ve.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", ve.Field(), ve.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", ve.Field(), ve.Tag())
	}
}

// errorCodeFromStatus maps HTTP status codes to error codes
func errorCodeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusNotAcceptable:
		return "not_acceptable"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnsupportedMediaType:
		return "unsupported_media_type"
	case http.StatusUnprocessableEntity:
		return "unprocessable_entity"
	case http.StatusTooManyRequests:
		return "too_many_requests"
	case http.StatusInternalServerError:
		return "internal_error"
	case http.StatusServiceUnavailable:
		return "service_unavailable"
	default:
		return "error"
	}
}
