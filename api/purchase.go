package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/helioswap/dca-engine/internal/types"
)

// PerformPurchase accepts an executor's swap proposal for a due order. The
// caller is the executor; the order owner comes from the request body.
func (s *Server) PerformPurchase(c echo.Context) error {
	executor, err := callerID(c)
	if err != nil {
		return err
	}

	var req types.PerformPurchaseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "fail to parse request")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	receipt, err := s.dca.PerformPurchase(c.Request().Context(), executor, req)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, receipt)
}

func (s *Server) GetExecutions(c echo.Context) error {
	user := c.Param("user")
	if user == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user is required")
	}

	sort := c.QueryParam("sort")
	take, err := strconv.Atoi(c.QueryParam("take"))
	if err != nil || take <= 0 || take > 100 {
		take = 20
	}
	skip, err := strconv.Atoi(c.QueryParam("skip"))
	if err != nil || skip < 0 {
		skip = 0
	}

	records, err := s.dca.GetExecutions(c.Request().Context(), user, sort, take, skip)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, records)
}
