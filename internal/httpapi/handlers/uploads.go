package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type uploadItem struct {
	Token     string `json:"token"`
	Filename  string `json:"filename,omitempty"`
	SizeBytes int64  `json:"size_bytes"`
	MimeType  string `json:"mime_type,omitempty"`
	Video     bool   `json:"video"`
	CreatedAt int64  `json:"created_at"`
}

// ListUploads returns the most recent registry entries.
func (h *Handler) ListUploads(c echo.Context) error {
	limit := clampInt(queryInt(c, "limit", 50), 1, 200)

	uploads, err := h.uploads.ListRecentUploads(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	items := make([]uploadItem, 0, len(uploads))
	for _, u := range uploads {
		items = append(items, uploadItem{
			Token:     u.PublicToken,
			Filename:  u.Filename,
			SizeBytes: u.SizeBytes,
			MimeType:  u.MimeType,
			Video:     u.Video,
			CreatedAt: u.CreatedAt.UTC().UnixMilli(),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"uploads": items,
	})
}
