package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/mentorhub/backend/internal/services"
	"github.com/mentorhub/backend/pkg/response"
)

type SystemLogHandler struct {
	systemLogService *services.SystemLogService
}

func NewSystemLogHandler(systemLogService *services.SystemLogService) *SystemLogHandler {
	return &SystemLogHandler{systemLogService: systemLogService}
}

func (h *SystemLogHandler) List(c *gin.Context) {
	var req services.SystemLogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	logs, total, err := h.systemLogService.List(&req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Paged(c, logs, total, req.Page, req.PageSize)
}

func (h *SystemLogHandler) GetModules(c *gin.Context) {
	modules, err := h.systemLogService.GetModules()
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"modules": modules})
}
