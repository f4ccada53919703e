package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/helioswap/dca-engine/internal/engine"
)

func TestRespondError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"unauthorized", engine.ErrUnauthorized, http.StatusForbidden, "Unauthorized"},
		{"not found", engine.ErrOrderNotFound, http.StatusNotFound, "OrderNotFound"},
		{"duplicate", engine.ErrDuplicateOrder, http.StatusConflict, "DuplicateOrder"},
		{"not due", engine.ErrOrderNotDue, http.StatusBadRequest, "OrderNotDue"},
		{"wrapped rejection", fmt.Errorf("prepare: %w", engine.ErrExceedsMaxSpread), http.StatusBadRequest, "ExceedsMaxSpread"},
		{"invalid config value", fmt.Errorf("%w: max_hops must be at least 1, got 0", engine.ErrInvalidConfig), http.StatusBadRequest, "InvalidConfig"},
		{"infrastructure", fmt.Errorf("connection refused"), http.StatusInternalServerError, "Internal"},
	}

	s := &Server{logger: logrus.New()}
	e := echo.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			require.NoError(t, s.respondError(c, tt.err))
			require.Equal(t, tt.wantStatus, rec.Code)

			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, tt.wantError, body.Error)
		})
	}
}

func TestCallerIDRequired(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, rec)
	_, err := callerID(c)
	require.Error(t, err)

	req.Header.Set("x-caller", "alice")
	caller, err := callerID(e.NewContext(req, rec))
	require.NoError(t, err)
	require.Equal(t, "alice", caller)
}
