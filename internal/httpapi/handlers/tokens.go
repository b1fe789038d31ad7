package handlers

import (
	"net/http"
	"strings"

	"streamgate/internal/auth"

	"github.com/labstack/echo/v4"
)

func (h *Handler) CreateToken(c echo.Context) error {
	claims, ok := auth.GetClaims(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if !claims.IsAdmin {
		return echo.NewHTTPError(http.StatusForbidden, "admin only")
	}

	var req struct {
		Subject string `json:"subject"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	req.Subject = strings.TrimSpace(req.Subject)
	if req.Subject == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "subject is required")
	}

	tok, err := h.auth.MintToken(c.Request().Context(), req.Subject)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"subject": req.Subject,
		"token":   tok,
	})
}
