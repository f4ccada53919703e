package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/helioswap/dca-engine/internal/engine"
	"github.com/helioswap/dca-engine/internal/types"
)

func (s *Server) GetConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, s.dca.Config(c.Request().Context()))
}

// UpdateConfig applies a partial configuration update. Only the configured
// administrator may call it; everyone else gets Unauthorized.
func (s *Server) UpdateConfig(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}

	var req types.UpdateConfigRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "fail to parse request")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	upd := engine.GlobalConfigUpdate{
		MaxHops:   req.MaxHops,
		MaxSpread: req.MaxSpread,
		PerHopFee: req.PerHopFee,
		Whitelist: req.WhitelistedAssets,
	}
	cfg, err := s.dca.UpdateConfig(c.Request().Context(), caller, upd)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, cfg)
}

func (s *Server) GetUserConfig(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}

	cfg := s.dca.UserConfig(c.Request().Context(), caller)
	return c.JSON(http.StatusOK, types.UserConfigResponse{
		MaxHops:    cfg.MaxHops,
		MaxSpread:  cfg.MaxSpread,
		TipBalance: cfg.TipBalance,
	})
}

// UpdateUserConfig replaces the caller's overrides. A field absent from the
// request resets that override to the global default.
func (s *Server) UpdateUserConfig(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}

	var req types.UpdateUserConfigRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "fail to parse request")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	cfg, err := s.dca.UpdateUserConfig(c.Request().Context(), caller, engine.UserConfigUpdate{
		MaxHops:   req.MaxHops,
		MaxSpread: req.MaxSpread,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, types.UserConfigResponse{
		MaxHops:    cfg.MaxHops,
		MaxSpread:  cfg.MaxSpread,
		TipBalance: cfg.TipBalance,
	})
}

func (s *Server) DepositTip(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}

	var req types.DepositTipRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "fail to parse request")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	cfg, err := s.dca.DepositTip(c.Request().Context(), caller, req.Payment.Info, req.Payment.Amount)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, types.UserConfigResponse{
		MaxHops:    cfg.MaxHops,
		MaxSpread:  cfg.MaxSpread,
		TipBalance: cfg.TipBalance,
	})
}

func (s *Server) WithdrawTip(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}

	var req types.WithdrawTipRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "fail to parse request")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	cfg, err := s.dca.WithdrawTip(c.Request().Context(), caller, req.Amount)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, types.UserConfigResponse{
		MaxHops:    cfg.MaxHops,
		MaxSpread:  cfg.MaxSpread,
		TipBalance: cfg.TipBalance,
	})
}
