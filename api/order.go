package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/helioswap/dca-engine/internal/engine"
	"github.com/helioswap/dca-engine/internal/types"
)

func (s *Server) CreateOrder(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}

	var req types.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "fail to parse request")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	order, err := s.dca.CreateOrder(c.Request().Context(), caller, engine.CreateOrderRequest{
		InitialAsset: req.InitialAsset.Info,
		Amount:       req.InitialAsset.Amount,
		TargetAsset:  req.TargetAsset,
		DCAAmount:    req.DCAAmount,
		Interval:     time.Duration(req.Interval) * time.Second,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusCreated, types.NewOrderResponse(order))
}

func (s *Server) ModifyOrder(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}

	var req types.ModifyOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "fail to parse request")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	upd := engine.ModifyOrderRequest{
		OldInitialAsset: req.OldInitialAsset,
		NewTargetAsset:  req.NewTargetAsset,
		NewDCAAmount:    req.NewDCAAmount,
		ResetLast:       req.ShouldResetPurchaseTime,
	}
	if req.NewInitialAsset != nil {
		info := req.NewInitialAsset.Info
		amount := req.NewInitialAsset.Amount
		upd.NewInitialAsset = &info
		upd.NewAmount = &amount
	}
	if req.NewInterval != nil {
		interval := time.Duration(*req.NewInterval) * time.Second
		upd.NewInterval = &interval
	}

	order, err := s.dca.ModifyOrder(c.Request().Context(), caller, upd)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, types.NewOrderResponse(order))
}

func (s *Server) CancelOrder(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}

	var req types.CancelOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "fail to parse request")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := s.dca.CancelOrder(c.Request().Context(), caller, req.InitialAsset); err != nil {
		return s.respondError(c, err)
	}
	return c.NoContent(http.StatusOK)
}

// GetUserOrders returns every active order of a user, enriched with computed
// due times. Executor bots poll this to find candidates.
func (s *Server) GetUserOrders(c echo.Context) error {
	user := c.Param("user")
	if user == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user is required")
	}

	orders := s.dca.GetOrders(c.Request().Context(), user)
	resp := make([]types.OrderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, types.NewOrderResponse(o))
	}
	return c.JSON(http.StatusOK, resp)
}
