package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/mentorhub/backend/internal/services"
	"github.com/mentorhub/backend/pkg/response"
)

type LLMConfigHandler struct {
	llmConfigService *services.LLMConfigService
	aiService        *services.AIService
}

func NewLLMConfigHandler(llmConfigService *services.LLMConfigService, aiService *services.AIService) *LLMConfigHandler {
	return &LLMConfigHandler{
		llmConfigService: llmConfigService,
		aiService:        aiService,
	}
}

func (h *LLMConfigHandler) List(c *gin.Context) {
	var req services.LLMConfigListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.llmConfigService.List(&req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, resp)
}

func (h *LLMConfigHandler) GetByID(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	config, err := h.llmConfigService.GetByID(id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, config)
}

func (h *LLMConfigHandler) Create(c *gin.Context) {
	var req services.CreateLLMConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	config, err := h.llmConfigService.Create(&req)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Created(c, config)
}

func (h *LLMConfigHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateLLMConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	config, err := h.llmConfigService.Update(id, &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, config)
}

func (h *LLMConfigHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.llmConfigService.Delete(id); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"message": "config deleted successfully"})
}

func (h *LLMConfigHandler) GetActive(c *gin.Context) {
	configs, err := h.llmConfigService.GetActive()
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, configs)
}

// TestConnection sends a one-word prompt through a stored config.
func (h *LLMConfigHandler) TestConnection(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	config, err := h.llmConfigService.GetByID(id)
	if err != nil {
		fail(c, err)
		return
	}
	reply, err := h.aiService.TestConnection(c.Request.Context(), config)
	if err != nil {
		response.Error(c, response.NewBadGateway("connection test failed: "+err.Error()).WithNotice("error"))
		return
	}
	response.Success(c, gin.H{"reply": reply})
}
