package routes

import (
	"encoding/json"
	"io"
	"net/http"

	"chatgraph/internal/queue"
	"chatgraph/internal/server/middleware"
	"chatgraph/internal/storage"
	"chatgraph/pkg/logger"

	"github.com/labstack/echo/v4"
)

// WebhookHandler accepts a raw message-event payload, archives it and
// hands it to the ingest queue. Ingestion itself happens in the
// worker, so delivery latency stays flat.
func WebhookHandler(c echo.Context) error {
	cc := c.(*middleware.AppContext)

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "failed to read body"})
	}
	if !json.Valid(body) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "body must be JSON"})
	}

	archiveKey := ""
	if cc.App.S3 != nil {
		key, err := storage.ArchivePayload(c.Request().Context(), cc.App.S3, body)
		if err != nil {
			logger.Warn("[Server] Failed to archive webhook payload", "err", err)
		} else {
			archiveKey = key
		}
	}

	if err := queue.PublishFIFO(cc.App.Queue, queue.IngestQueue, body); err != nil {
		logger.Error("[Server] Failed to publish webhook payload", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to queue payload"})
	}

	return c.JSON(http.StatusAccepted, map[string]string{
		"status":  "queued",
		"archive": archiveKey,
	})
}
