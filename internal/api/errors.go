package api

import (
	"errors"
	"net/http"

	"github.com/samcharles93/modelgate/pkg/modelloader"
)

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrModelNotFound  = errors.New("model not found")
	ErrModelExists    = errors.New("model already registered")
)

type invalidRequestError struct {
	msg string
}

func (e invalidRequestError) Error() string {
	return e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(msg string) error {
	return invalidRequestError{msg: msg}
}

// classify maps an error to an HTTP status, an error type and a short code.
func classify(err error) (status int, errType, code string) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request_error", ""
	case errors.Is(err, ErrModelNotFound):
		return http.StatusNotFound, "not_found_error", "model_not_found"
	case errors.Is(err, ErrModelExists):
		return http.StatusConflict, "conflict_error", "model_exists"
	case errors.Is(err, modelloader.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_request_error", "invalid_argument"
	case errors.Is(err, modelloader.ErrUnsupported):
		return http.StatusBadRequest, "invalid_request_error", "unsupported"
	case errors.Is(err, modelloader.ErrUnavailable):
		return http.StatusConflict, "conflict_error", "unavailable"
	default:
		return http.StatusInternalServerError, "server_error", "internal"
	}
}
