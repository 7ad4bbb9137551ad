package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/mentorhub/backend/internal/middleware"
	"github.com/mentorhub/backend/internal/services"
	"github.com/mentorhub/backend/pkg/response"
)

type DocumentHandler struct {
	docs *services.DocumentService
}

func NewDocumentHandler(docs *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{docs: docs}
}

// List returns the documents the caller owns or mentors
// GET /api/documents
func (h *DocumentHandler) List(c *gin.Context) {
	var req services.DocumentListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.docs.List(c.Request.Context(), &req, middleware.CurrentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, resp)
}

// GET /api/documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	doc, err := h.docs.Get(c.Request.Context(), id, middleware.CurrentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, doc)
}

// Create stores a document together with its first version
// POST /api/documents
func (h *DocumentHandler) Create(c *gin.Context) {
	var req services.CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	doc, version, err := h.docs.Create(c.Request.Context(), &req, middleware.CurrentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, gin.H{"document": doc, "version": version})
}

// PUT /api/documents/:id
func (h *DocumentHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	doc, err := h.docs.Update(c.Request.Context(), id, &req, middleware.CurrentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, doc)
}

// DELETE /api/documents/:id
func (h *DocumentHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.docs.Delete(c.Request.Context(), id, middleware.CurrentUser(c)); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"message": "document deleted"})
}

// GET /api/documents/:id/versions
func (h *DocumentHandler) ListVersions(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	versions, err := h.docs.ListVersions(c.Request.Context(), id, middleware.CurrentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, versions)
}

// POST /api/documents/:id/versions
func (h *DocumentHandler) AddVersion(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.AddVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	version, err := h.docs.AddVersion(c.Request.Context(), id, req.Content, middleware.CurrentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, version)
}

// GET /api/documents/:id/versions/latest
func (h *DocumentHandler) LatestVersion(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	version, err := h.docs.LatestVersion(c.Request.Context(), id, middleware.CurrentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, version)
}

// GET /api/document-versions/:id
func (h *DocumentHandler) GetVersion(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	version, doc, err := h.docs.GetVersion(c.Request.Context(), id, middleware.CurrentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"document": doc, "version": version})
}
