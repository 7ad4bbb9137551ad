package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mentorhub/backend/internal/services"
	"github.com/mentorhub/backend/pkg/response"
)

// AIUsageHandler reports what automated reviews cost.
type AIUsageHandler struct {
	usageService *services.AIUsageService
}

func NewAIUsageHandler(usageService *services.AIUsageService) *AIUsageHandler {
	return &AIUsageHandler{usageService: usageService}
}

func usageFilter(c *gin.Context) services.UsageFilter {
	f := services.UsageFilter{StartDate: c.Query("start_date"), EndDate: c.Query("end_date")}
	if id, err := strconv.ParseUint(c.Query("document_version_id"), 10, 32); err == nil {
		f.VersionID = uint(id)
	}
	return f
}

// GetStats GET /api/admin/ai-usage/stats
func (h *AIUsageHandler) GetStats(c *gin.Context) {
	stats, err := h.usageService.GetStats(usageFilter(c))
	if err != nil {
		response.ServerError(c, "failed to get AI usage stats: "+err.Error())
		return
	}
	response.Success(c, stats)
}

// GetDailyTrend GET /api/admin/ai-usage/trend
func (h *AIUsageHandler) GetDailyTrend(c *gin.Context) {
	trend, err := h.usageService.GetDailyTrend(usageFilter(c))
	if err != nil {
		response.ServerError(c, "failed to get AI usage trend: "+err.Error())
		return
	}
	response.Success(c, trend)
}

// GetRunBreakdown GET /api/admin/ai-usage/runs?limit=20
func (h *AIUsageHandler) GetRunBreakdown(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	runs, err := h.usageService.GetRunBreakdown(usageFilter(c), limit)
	if err != nil {
		response.ServerError(c, "failed to get run breakdown: "+err.Error())
		return
	}
	response.Success(c, runs)
}

// GetOutcomeBreakdown GET /api/admin/ai-usage/outcomes
func (h *AIUsageHandler) GetOutcomeBreakdown(c *gin.Context) {
	outcomes, err := h.usageService.GetOutcomeBreakdown(usageFilter(c))
	if err != nil {
		response.ServerError(c, "failed to get outcome breakdown: "+err.Error())
		return
	}
	response.Success(c, outcomes)
}
