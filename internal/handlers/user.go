package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/mentorhub/backend/internal/middleware"
	"github.com/mentorhub/backend/internal/services"
	"github.com/mentorhub/backend/pkg/response"
)

type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

func (h *UserHandler) List(c *gin.Context) {
	var req services.UserListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	req.Page, req.PageSize = pageParams(c)

	users, total, err := h.users.List(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Paged(c, users, total, req.Page, req.PageSize)
}

func (h *UserHandler) Create(c *gin.Context) {
	var req services.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	user, err := h.users.Create(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, user)
}

func (h *UserHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	user, err := h.users.Update(c.Request.Context(), id, &req, middleware.CurrentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, user)
}

func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.users.Delete(c.Request.Context(), id, middleware.CurrentUser(c)); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"message": "user deleted"})
}
