package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/mentorhub/backend/internal/middleware"
	"github.com/mentorhub/backend/internal/services"
	"github.com/mentorhub/backend/pkg/response"
)

type AIReviewHandler struct {
	reviews *services.AIReviewService
	usage   *services.AIUsageService
}

func NewAIReviewHandler(reviews *services.AIReviewService, usage *services.AIUsageService) *AIReviewHandler {
	return &AIReviewHandler{reviews: reviews, usage: usage}
}

// Request queues automated feedback for a version
// POST /api/document-versions/:id/ai-review
func (h *AIReviewHandler) Request(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	run, err := h.reviews.Request(c.Request.Context(), id, middleware.CurrentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Accepted(c, run)
}

// GET /api/document-versions/:id/ai-review-runs
func (h *AIReviewHandler) ListRuns(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	runs, err := h.reviews.ListRuns(c.Request.Context(), id, middleware.CurrentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, runs)
}

// GetRun returns a run with the token usage recorded for it
// GET /api/ai-review-runs/:id
func (h *AIReviewHandler) GetRun(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	run, err := h.reviews.GetRun(c.Request.Context(), id, middleware.CurrentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	stats, err := h.usage.RunStats(run.ID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"run": run, "usage": stats})
}
