package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/mentorhub/backend/internal/models"
	"github.com/mentorhub/backend/internal/services"
	"gorm.io/gorm"
)

// HealthHandler provides enhanced health check endpoints.
type HealthHandler struct {
	db       *gorm.DB
	queue    services.TaskQueue
	hub      *services.RealtimeHub
	ws       *services.WSHub
	sessions *services.SessionManager
}

func NewHealthHandler(db *gorm.DB, queue services.TaskQueue, hub *services.RealtimeHub, ws *services.WSHub, sessions *services.SessionManager) *HealthHandler {
	return &HealthHandler{db: db, queue: queue, hub: hub, ws: ws, sessions: sessions}
}

// CheckHealth returns the health status of all subsystems.
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"
	status := 200

	dbStatus := "ok"
	sqlDB, err := h.db.DB()
	if err != nil {
		dbStatus = "error: " + err.Error()
	} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		dbStatus = "error: " + err.Error()
	}
	if dbStatus != "ok" {
		overall = "unhealthy"
		status = 503
	}

	queueMode := "sync"
	if h.queue != nil && h.queue.IsAsync() {
		queueMode = "async (Redis)"
	}

	var pendingRuns int64
	h.db.Model(&models.AIReviewRun{}).
		Where("status IN ?", []string{models.RunStatusPending, models.RunStatusRunning}).
		Count(&pendingRuns)

	c.JSON(status, gin.H{
		"status":  overall,
		"service": "mentorhub",
		"components": gin.H{
			"database":        dbStatus,
			"queue_mode":      queueMode,
			"sse_clients":     h.hub.ClientCount(),
			"ws_clients":      h.ws.ClientCount(),
			"review_sessions": h.sessions.Count(),
			"pending_ai_runs": pendingRuns,
		},
	})
}
