package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"prism-board/domain"
)

const errorStageKey = "error_stage"

// writeError maps engine errors onto status codes: validation 400, not found
// 404, anything else 500.
func writeError(c echo.Context, err error) error {
	var vErr *domain.ValidationError
	var nfErr *domain.NotFoundError
	switch {
	case errors.As(err, &vErr):
		c.Set(errorStageKey, "validation")
		return c.JSON(http.StatusBadRequest, errorResponse{Error: vErr.Error(), Field: vErr.Field})
	case errors.As(err, &nfErr):
		c.Set(errorStageKey, "not_found")
		return c.JSON(http.StatusNotFound, errorResponse{Error: nfErr.Error()})
	default:
		c.Set(errorStageKey, "internal")
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func badRequest(c echo.Context, stage, msg string) error {
	c.Set(errorStageKey, stage)
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}
