package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"streamgate/internal/metrics"
	"streamgate/internal/remote"

	"github.com/labstack/echo/v4"
)

// webhookUpdate is the subset of the bot-update payload the relay needs:
// enough to locate the source message and tell whether it carries a file.
type webhookUpdate struct {
	Message struct {
		MessageID int64 `json:"message_id"`
		Chat      struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Document *struct {
			FileName string `json:"file_name"`
		} `json:"document"`
		Video *struct {
			FileName string `json:"file_name"`
		} `json:"video"`
		Audio *struct {
			FileName string `json:"file_name"`
		} `json:"audio"`
	} `json:"message"`
}

func (u *webhookUpdate) hasFile() bool {
	return u.Message.Document != nil || u.Message.Video != nil || u.Message.Audio != nil
}

// Webhook accepts a bot update, relays any attached file into the storage
// channel, and returns the public links. Updates without a file are
// acknowledged so the sender does not retry them.
func (h *Handler) Webhook(c echo.Context) error {
	if h.cfg.WebhookSecret != "" {
		got := c.Request().Header.Get("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.cfg.WebhookSecret)) != 1 {
			return echo.NewHTTPError(http.StatusUnauthorized, "bad webhook secret")
		}
	}

	var update webhookUpdate
	if err := json.NewDecoder(c.Request().Body).Decode(&update); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid update payload")
	}
	if update.Message.MessageID == 0 || update.Message.Chat.ID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "update has no message reference")
	}
	if !update.hasFile() {
		return c.JSON(http.StatusOK, map[string]any{
			"ok":      true,
			"skipped": "message carries no file",
		})
	}

	result, err := h.ingest.RelayInboundObject(c.Request().Context(), remote.InboundRef{
		ChatID:    update.Message.Chat.ID,
		MessageID: update.Message.MessageID,
	})
	if err != nil {
		return mapRelayError(c, err)
	}
	metrics.UploadsRelayedTotal.Inc()

	return c.JSON(http.StatusOK, map[string]any{
		"ok":     true,
		"result": result,
	})
}
