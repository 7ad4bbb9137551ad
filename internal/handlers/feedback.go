package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/mentorhub/backend/internal/feedback"
	"github.com/mentorhub/backend/internal/middleware"
	"github.com/mentorhub/backend/internal/services"
	"github.com/mentorhub/backend/pkg/response"
)

// FeedbackHandler serves the stored feedback of a version outside any session.
type FeedbackHandler struct {
	docs  *services.DocumentService
	store *services.FeedbackStore
}

func NewFeedbackHandler(docs *services.DocumentService, store *services.FeedbackStore) *FeedbackHandler {
	return &FeedbackHandler{docs: docs, store: store}
}

// items loads the feedback of the version named by :id. Owners who are not
// reviewers see human feedback only.
func (h *FeedbackHandler) items(c *gin.Context) ([]feedback.Item, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	user := middleware.CurrentUser(c)
	_, doc, err := h.docs.GetVersion(c.Request.Context(), id, user)
	if err != nil {
		fail(c, err)
		return nil, false
	}

	items, err := h.store.List(c.Request.Context(), feedback.Filter{DocumentVersionID: services.FormatVersionID(id)})
	if err != nil {
		fail(c, err)
		return nil, false
	}
	if doc.OwnerID == user.ID && !user.CanReview() {
		human := items[:0]
		for _, item := range items {
			if !item.Author.IsAutomated() {
				human = append(human, item)
			}
		}
		items = human
	}
	if c.Query("status") != "" {
		status := feedback.Status(c.Query("status"))
		kept := items[:0]
		for _, item := range items {
			if item.Status == status {
				kept = append(kept, item)
			}
		}
		items = kept
	}
	return feedback.NewestFirst(items), true
}

// GET /api/document-versions/:id/feedbacks
func (h *FeedbackHandler) List(c *gin.Context) {
	items, ok := h.items(c)
	if !ok {
		return
	}
	response.Success(c, items)
}

// Highlights projects the active feedback of a version for read-only viewers.
// GET /api/document-versions/:id/highlights
func (h *FeedbackHandler) Highlights(c *gin.Context) {
	items, ok := h.items(c)
	if !ok {
		return
	}
	active := items[:0]
	for _, item := range items {
		if item.Status == feedback.StatusActive {
			active = append(active, item)
		}
	}
	response.Success(c, feedback.Project(active, nil, ""))
}
