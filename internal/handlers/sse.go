package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mentorhub/backend/internal/middleware"
	"github.com/mentorhub/backend/internal/services"
	"github.com/mentorhub/backend/pkg/logger"
	"github.com/mentorhub/backend/pkg/response"
)

// RealtimeHandler streams feedback events over SSE and websockets.
type RealtimeHandler struct {
	hub  *services.RealtimeHub
	ws   *services.WSHub
	docs *services.DocumentService
}

func NewRealtimeHandler(hub *services.RealtimeHub, ws *services.WSHub, docs *services.DocumentService) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, ws: ws, docs: docs}
}

// StreamFeedbackEvents handles SSE connections for one document version.
// GET /api/events/feedbacks?document_version_id=
func (h *RealtimeHandler) StreamFeedbackEvents(c *gin.Context) {
	versionID, err := strconv.ParseUint(c.Query("document_version_id"), 10, 32)
	if err != nil || versionID == 0 {
		response.BadRequest(c, "document_version_id is required")
		return
	}
	if _, _, err := h.docs.GetVersion(c.Request.Context(), uint(versionID), middleware.CurrentUser(c)); err != nil {
		fail(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	clientID := uuid.New().String()
	events := h.hub.Subscribe(clientID, services.FormatVersionID(uint(versionID)))
	defer h.hub.Unsubscribe(clientID)

	logger.Info().Str("client_id", clientID).Uint64("document_version_id", versionID).
		Int("total", h.hub.ClientCount()).Msg("SSE client connected")

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			data, err := json.Marshal(event)
			if err != nil {
				logger.Error().Err(err).Msg("SSE marshal error")
				return true
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Kind, data)
			c.Writer.Flush()
			return true
		case <-c.Request.Context().Done():
			logger.Info().Str("client_id", clientID).Msg("SSE client disconnected")
			return false
		}
	})
}

// ServeWebsocket upgrades to a websocket; channels are joined by messages.
// GET /api/ws?token=
func (h *RealtimeHandler) ServeWebsocket(c *gin.Context) {
	if err := h.ws.Serve(c.Writer, c.Request, middleware.GetUserID(c)); err != nil {
		logger.Warnf("[Realtime] Websocket upgrade failed: %v", err)
	}
}
