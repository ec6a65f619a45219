package router

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kwai-club/kwai/internal/web/response"
)

// GetPathParam extracts a path parameter by name
func GetPathParam(req *http.Request, name string) string {
	return chi.URLParam(req, name)
}

// GetPathParamUUID extracts a UUID path parameter. Failures are 400 errors
// naming the parameter.
func GetPathParamUUID(req *http.Request, name string) (uuid.UUID, error) {
	value := chi.URLParam(req, name)
	if value == "" {
		return uuid.Nil, missingParam(name)
	}

	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, response.BadRequest(name+" must be a valid UUID").
			WithCode("invalid_parameter").
			WithParameter(name).
			Wrap(err)
	}
	return id, nil
}

// GetPathParamInt extracts a positive integer path parameter. Failures are
// 400 errors naming the parameter.
func GetPathParamInt(req *http.Request, name string) (int, error) {
	value := chi.URLParam(req, name)
	if value == "" {
		return 0, missingParam(name)
	}

	i, err := strconv.Atoi(value)
	if err != nil || i < 1 {
		return 0, response.BadRequest(name+" must be a positive integer").
			WithCode("invalid_parameter").
			WithParameter(name).
			Wrap(err)
	}
	return i, nil
}

func missingParam(name string) error {
	return response.BadRequest("missing path parameter " + name).
		WithCode("invalid_parameter").
		WithParameter(name)
}
