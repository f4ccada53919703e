package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/helioswap/dca-engine/internal/engine"
)

type errorResponse struct {
	Error string `json:"error"`
}

// respondError translates engine errors into HTTP responses carrying the
// error's canonical name, so executors can branch on it programmatically.
func (s *Server) respondError(c echo.Context, err error) error {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return err
	}

	kind := engine.Kind(err)
	switch {
	case errors.Is(err, engine.ErrUnauthorized):
		return c.JSON(http.StatusForbidden, errorResponse{Error: kind})
	case errors.Is(err, engine.ErrOrderNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: kind})
	case errors.Is(err, engine.ErrDuplicateOrder):
		return c.JSON(http.StatusConflict, errorResponse{Error: kind})
	case kind != "":
		return c.JSON(http.StatusBadRequest, errorResponse{Error: kind})
	default:
		s.logger.WithError(err).Error("request failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal"})
	}
}

// callerID reads the authenticated caller identity set by the fronting
// gateway. Requests without one are refused before reaching the engine.
func callerID(c echo.Context) (string, error) {
	caller := c.Request().Header.Get("x-caller")
	if caller == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing x-caller header")
	}
	return caller, nil
}
