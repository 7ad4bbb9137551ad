package middleware

import (
	"strings"
	"testing"
)

func TestRouteInfo(t *testing.T) {
	tests := []struct {
		path, method   string
		module, action string
	}{
		{"/api/documents", "POST", "documents", "create"},
		{"/api/documents/:id", "PUT", "documents", "update"},
		{"/api/documents/:id", "DELETE", "documents", "delete"},
		{"/api/review-sessions/:id/island/next", "POST", "review-sessions", "island/next"},
		{"/api/admin/llm-configs/:id", "PUT", "llm-configs", "update"},
		{"", "POST", "unknown", "create"},
	}
	for _, tt := range tests {
		module, action := routeInfo(tt.path, tt.method)
		if module != tt.module || action != tt.action {
			t.Errorf("routeInfo(%q, %s) = %s/%s, want %s/%s", tt.path, tt.method, module, action, tt.module, tt.action)
		}
	}
}

func TestMaskBody(t *testing.T) {
	got := maskBody([]byte(`{"username":"stu","password":"hunter2","values":{"email_password":"x","email_from":"a@b.c"}}`))
	if strings.Contains(got, "hunter2") || strings.Contains(got, `"x"`) {
		t.Errorf("expected secrets masked, got %s", got)
	}
	if !strings.Contains(got, `"username":"stu"`) || !strings.Contains(got, "a@b.c") {
		t.Errorf("expected other fields kept, got %s", got)
	}

	if maskBody([]byte("not json")) != "" {
		t.Error("expected non-JSON body dropped")
	}
	long := `{"text":"` + strings.Repeat("a", 3000) + `"}`
	if got := maskBody([]byte(long)); !strings.HasSuffix(got, "[truncated]") {
		t.Error("expected long body truncated")
	}
}
