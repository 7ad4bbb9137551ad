package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mentorhub/backend/internal/models"
	"github.com/mentorhub/backend/internal/utils"
	"github.com/mentorhub/backend/pkg/response"
)

const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
	ContextRole     = "role"
)

// tokenFromRequest reads "Bearer <token>", or the token query parameter for
// clients that cannot set headers (EventSource, browser websockets).
func tokenFromRequest(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		token := c.Query("token")
		return token, token != ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// AuthRequired checks the JWT and stores the caller in the context.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := tokenFromRequest(c)
		if !ok {
			response.Unauthorized(c, "authorization required")
			c.Abort()
			return
		}
		claims, err := utils.ParseToken(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUsername, claims.Username)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

func requireRole(msg string, allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := GetRole(c)
		for _, r := range allowed {
			if role == r {
				c.Next()
				return
			}
		}
		response.Forbidden(c, msg)
		c.Abort()
	}
}

// AdminRequired lets only administrators through.
func AdminRequired() gin.HandlerFunc {
	return requireRole("admin access required", models.RoleAdmin)
}

// MentorRequired lets mentors and administrators through.
func MentorRequired() gin.HandlerFunc {
	return requireRole("mentor access required", models.RoleMentor, models.RoleAdmin)
}

func GetUserID(c *gin.Context) uint {
	return c.GetUint(ContextUserID)
}

func GetUsername(c *gin.Context) string {
	return c.GetString(ContextUsername)
}

func GetRole(c *gin.Context) string {
	return c.GetString(ContextRole)
}

// CurrentUser is the caller as carried by the token. It holds id, username
// and role only.
func CurrentUser(c *gin.Context) *models.User {
	return &models.User{ID: GetUserID(c), Username: GetUsername(c), Role: GetRole(c)}
}
