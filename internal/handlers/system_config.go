package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/mentorhub/backend/internal/services"
	"github.com/mentorhub/backend/pkg/response"
)

var configGroups = map[string]bool{
	"ldap":   true,
	"email":  true,
	"digest": true,
	"ai":     true,
	"system": true,
}

type SystemConfigHandler struct {
	configService *services.SystemConfigService
	onUpdate      func(group string)
}

// NewSystemConfigHandler; onUpdate, when set, runs after a group was saved.
func NewSystemConfigHandler(configService *services.SystemConfigService, onUpdate func(group string)) *SystemConfigHandler {
	return &SystemConfigHandler{configService: configService, onUpdate: onUpdate}
}

func (h *SystemConfigHandler) group(c *gin.Context) (string, bool) {
	group := c.Param("group")
	if !configGroups[group] {
		response.NotFound(c, "unknown config group "+group)
		return "", false
	}
	return group, true
}

// GET /api/admin/system-config/:group
func (h *SystemConfigHandler) GetGroup(c *gin.Context) {
	group, ok := h.group(c)
	if !ok {
		return
	}
	configs, err := h.configService.GetByGroup(group)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, configs)
}

// PUT /api/admin/system-config/:group
func (h *SystemConfigHandler) UpdateGroup(c *gin.Context) {
	group, ok := h.group(c)
	if !ok {
		return
	}
	var req services.UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.configService.UpdateGroup(group, &req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if h.onUpdate != nil {
		h.onUpdate(group)
	}

	configs, err := h.configService.GetByGroup(group)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, configs)
}
