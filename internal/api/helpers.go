package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/modelgate/pkg/modelloader"
)

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg, "", "")
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, "not_found_error", msg, "", "")
}

func writeError(c *echo.Context, status int, errType, msg, param, code string) error {
	return c.JSON(status, ErrorResponse{
		Error: ResponseError{
			Message: msg,
			Type:    errType,
			Code:    code,
			Param:   param,
		},
	})
}

// writeLoaderError reports err with the status its kind maps to.
func writeLoaderError(c *echo.Context, err error) error {
	status, errType, code := classify(err)
	body := ResponseError{
		Message: err.Error(),
		Type:    errType,
		Code:    code,
	}
	var le *modelloader.Error
	if errors.As(err, &le) {
		body.RuntimeStatus = le.Status
	}
	return c.JSON(status, ErrorResponse{Error: body})
}
