package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/mentorhub/backend/internal/middleware"
	"github.com/mentorhub/backend/internal/services"
	"github.com/mentorhub/backend/pkg/response"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login handles user login
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	pair, err := h.authService.Login(&req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Refresh trades a refresh token for a new token pair
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	pair, err := h.authService.Refresh(req.RefreshToken, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, pair)
}

// Logout revokes the refresh token; the access token simply expires.
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err == nil {
		if err := h.authService.Logout(req.RefreshToken); err != nil {
			fail(c, err)
			return
		}
	}
	response.Success(c, gin.H{"message": "logged out successfully"})
}

// Me returns the current logged-in user
// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.authService.GetUserByID(middleware.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, user)
}

// ChangePassword
// PUT /api/auth/password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req services.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	err := h.authService.ChangePassword(middleware.GetUserID(c), &req)
	if errors.Is(err, services.ErrInvalidCredentials) {
		// a 401 here would sign the caller out
		response.BadRequest(c, "old password is incorrect")
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"message": "password changed"})
}

// GetAuthConfig returns authentication configuration
// GET /api/auth/config
func (h *AuthHandler) GetAuthConfig(c *gin.Context) {
	response.Success(c, gin.H{"ldap_enabled": h.authService.IsLDAPEnabled()})
}
