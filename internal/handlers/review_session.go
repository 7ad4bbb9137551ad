package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mentorhub/backend/internal/feedback"
	"github.com/mentorhub/backend/internal/middleware"
	"github.com/mentorhub/backend/internal/services"
	"github.com/mentorhub/backend/pkg/response"
)

// ReviewSessionHandler exposes the in-memory review sessions. Every mutating
// call answers with the session view so the client can redraw in one round trip.
type ReviewSessionHandler struct {
	sessions *services.SessionManager
}

func NewReviewSessionHandler(sessions *services.SessionManager) *ReviewSessionHandler {
	return &ReviewSessionHandler{sessions: sessions}
}

type contentRequest struct {
	Content string `json:"content"`
}

type selectionRequest struct {
	Text string `json:"text"`
}

type selectRequest struct {
	FeedbackID string `json:"feedback_id" binding:"required"`
}

type submitRequest struct {
	Text string        `json:"text"`
	Type feedback.Type `json:"type" binding:"required,oneof=comment suggestion"`
}

type interactRequest struct {
	Interacting bool `json:"interacting"`
}

func (h *ReviewSessionHandler) session(c *gin.Context) (*services.ReviewSession, bool) {
	rs, err := h.sessions.Get(c.Param("id"), middleware.CurrentUser(c))
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return rs, true
}

// reply sends the view; a failed action still returns the view alongside the error
// status so notices raised by the panel are not lost.
func reply(c *gin.Context, rs *services.ReviewSession, err error) {
	if err == nil {
		response.Success(c, rs.View())
		return
	}
	appErr := toAppError(err)
	c.JSON(appErr.HTTPStatus, response.Response{
		Code:    appErr.Code,
		Message: appErr.Message,
		Notice:  appErr.Notice,
		Data:    rs.View(),
	})
}

// Open
// POST /api/review-sessions
func (h *ReviewSessionHandler) Open(c *gin.Context) {
	var req services.OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	rs, err := h.sessions.Open(c.Request.Context(), &req, middleware.CurrentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, rs.View())
}

// GET /api/review-sessions/:id
func (h *ReviewSessionHandler) Get(c *gin.Context) {
	if rs, ok := h.session(c); ok {
		response.Success(c, rs.View())
	}
}

// DELETE /api/review-sessions/:id
func (h *ReviewSessionHandler) Close(c *gin.Context) {
	if err := h.sessions.Close(c.Param("id"), middleware.CurrentUser(c)); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"message": "session closed"})
}

// Reload refetches the feedback from the store
// POST /api/review-sessions/:id/reload
func (h *ReviewSessionHandler) Reload(c *gin.Context) {
	if rs, ok := h.session(c); ok {
		reply(c, rs, rs.Reload(c.Request.Context()))
	}
}

// PUT /api/review-sessions/:id/content
func (h *ReviewSessionHandler) SetContent(c *gin.Context) {
	var req contentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if rs, ok := h.session(c); ok {
		rs.SetContent(req.Content)
		reply(c, rs, nil)
	}
}

// POST /api/review-sessions/:id/save
func (h *ReviewSessionHandler) Save(c *gin.Context) {
	if rs, ok := h.session(c); ok {
		reply(c, rs, rs.Save(c.Request.Context()))
	}
}

// POST /api/review-sessions/:id/selection
func (h *ReviewSessionHandler) SetSelection(c *gin.Context) {
	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if rs, ok := h.session(c); ok {
		rs.SetSelection(req.Text)
		reply(c, rs, nil)
	}
}

// POST /api/review-sessions/:id/select
func (h *ReviewSessionHandler) Select(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if rs, ok := h.session(c); ok {
		reply(c, rs, rs.Select(feedback.ID(req.FeedbackID)))
	}
}

// Submit attaches feedback to the current selection
// POST /api/review-sessions/:id/feedbacks
func (h *ReviewSessionHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	rs, ok := h.session(c)
	if !ok {
		return
	}
	if _, err := rs.Submit(c.Request.Context(), req.Text, req.Type); err != nil {
		reply(c, rs, err)
		return
	}
	c.JSON(http.StatusCreated, response.Response{Code: 0, Message: "created", Data: rs.View()})
}

// Act runs one of accept, reject, remove, apply, thank or dismiss.
// POST /api/review-sessions/:id/feedbacks/:fid/:action
func (h *ReviewSessionHandler) Act(c *gin.Context) {
	action := services.ItemAction(c.Param("action"))
	switch action {
	case services.ActionAccept, services.ActionReject, services.ActionRemove,
		services.ActionApply, services.ActionThank, services.ActionDismiss:
	default:
		response.NotFound(c, "unknown action "+string(action))
		return
	}
	if rs, ok := h.session(c); ok {
		reply(c, rs, rs.Act(c.Request.Context(), action, feedback.ID(c.Param("fid"))))
	}
}

// Island drives the review island
// POST /api/review-sessions/:id/island/:op
func (h *ReviewSessionHandler) Island(c *gin.Context) {
	rs, ok := h.session(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var err error
	switch c.Param("op") {
	case "next":
		err = rs.IslandNext()
	case "prev":
		err = rs.IslandPrev()
	case "apply":
		err = rs.IslandApply(ctx)
	case "reject":
		err = rs.IslandReject(ctx)
	case "save":
		err = rs.IslandSave(ctx)
	case "interact":
		var req interactRequest
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			response.BadRequest(c, bindErr.Error())
			return
		}
		err = rs.IslandInteract(req.Interacting)
	default:
		response.NotFound(c, "unknown island operation")
		return
	}
	reply(c, rs, err)
}
