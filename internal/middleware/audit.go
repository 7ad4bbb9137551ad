package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mentorhub/backend/internal/services"
)

const maxAuditBody = 2000

var sensitiveKeys = []string{"password", "api_key", "secret", "token", "refresh_token", "access_token"}

// AuditLog records write requests (POST/PUT/DELETE) to system_logs.
func AuditLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method != http.MethodPost && method != http.MethodPut && method != http.MethodDelete {
			c.Next()
			return
		}

		var body string
		if c.Request.Body != nil {
			raw, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(raw))
			body = maskBody(raw)
		}

		c.Next()

		status := c.Writer.Status()
		module, action := routeInfo(c.FullPath(), method)

		var uid *uint
		if id := GetUserID(c); id > 0 {
			uid = &id
		}
		lc := services.LogContext{
			UserID:    uid,
			RequestID: c.GetString("request_id"),
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}
		extra := map[string]interface{}{
			"method": method,
			"path":   c.Request.URL.Path,
			"status": status,
			"body":   body,
			"audit":  true,
		}
		message := auditMessage(GetUsername(c), method, c.Request.URL.Path, status)
		if status >= 400 {
			services.LogWarning(module, action, message, lc, extra)
			return
		}
		services.LogInfo(module, action, message, lc, extra)
	}
}

// routeInfo turns "/api/review-sessions/:id/island/next" + POST into
// ("review-sessions", "island/next").
func routeInfo(fullPath, method string) (module, action string) {
	path := strings.TrimPrefix(fullPath, "/api/")
	path = strings.TrimPrefix(path, "admin/")
	segments := strings.Split(path, "/")
	module = segments[0]
	if module == "" {
		module = "unknown"
	}

	var rest []string
	for _, seg := range segments[1:] {
		if seg != "" && !strings.HasPrefix(seg, ":") {
			rest = append(rest, seg)
		}
	}
	if len(rest) > 0 {
		return module, strings.Join(rest, "/")
	}
	switch method {
	case http.MethodPost:
		action = "create"
	case http.MethodPut:
		action = "update"
	case http.MethodDelete:
		action = "delete"
	default:
		action = strings.ToLower(method)
	}
	return module, action
}

func auditMessage(username, method, path string, status int) string {
	result := "ok"
	if status >= 400 {
		result = "failed"
	}
	if username == "" {
		username = "anonymous"
	}
	return "[Audit] " + username + " " + method + " " + path + " " + result
}

// maskBody blanks secrets in a JSON body and truncates it. Bodies that are not
// JSON objects are dropped.
func maskBody(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ""
	}
	maskMap(fields)
	out, err := json.Marshal(fields)
	if err != nil {
		return ""
	}
	s := string(out)
	if len(s) > maxAuditBody {
		s = s[:maxAuditBody] + "...[truncated]"
	}
	return s
}

func maskMap(m map[string]interface{}) {
	for k, v := range m {
		if isSensitive(k) {
			m[k] = "***"
			continue
		}
		if nested, ok := v.(map[string]interface{}); ok {
			maskMap(nested)
		}
	}
}

func isSensitive(key string) bool {
	key = strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}
