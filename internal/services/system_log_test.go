package services

import (
	"testing"
	"time"

	"github.com/mentorhub/backend/internal/models"
)

func TestWriteLog_PersistsEntry(t *testing.T) {
	db := newTestDB(t)
	InitSystemLogger(db)
	defer InitSystemLogger(nil)

	uid := uint(7)
	LogInfo("Feedback", "submit", "feedback created", LogContext{UserID: &uid, RequestID: "req-9"}, map[string]int{"version": 3})
	LogError("AIReview", "run", "provider failed", LogContext{}, nil)

	svc := NewSystemLogService(db)
	logs, total, err := svc.List(&SystemLogListRequest{Module: "Feedback"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(logs) != 1 {
		t.Fatalf("expected 1 feedback log, got %d", total)
	}
	got := logs[0]
	if got.Level != "info" || got.RequestID != "req-9" || got.UserID == nil || *got.UserID != 7 {
		t.Errorf("unexpected entry %+v", got)
	}
	if got.Extra != `{"version":3}` {
		t.Errorf("unexpected extra %q", got.Extra)
	}
}

func TestWriteLog_NoDatabase(t *testing.T) {
	InitSystemLogger(nil)
	// must not panic
	LogWarning("Auth", "login", "ignored", LogContext{}, nil)
}

func TestSystemLogService_ListFilters(t *testing.T) {
	db := newTestDB(t)
	svc := NewSystemLogService(db)

	now := time.Now()
	rows := []models.SystemLog{
		{Level: "info", Module: "Document", Action: "create", Message: "essay draft", CreatedAt: now},
		{Level: "error", Module: "Document", Action: "delete", Message: "cascade failed", CreatedAt: now},
		{Level: "info", Module: "Auth", Action: "login", Message: "student signed in", CreatedAt: now},
	}
	for i := range rows {
		if err := db.Create(&rows[i]).Error; err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name string
		req  SystemLogListRequest
		want int64
	}{
		{"all", SystemLogListRequest{}, 3},
		{"level", SystemLogListRequest{Level: "error"}, 1},
		{"module", SystemLogListRequest{Module: "Document"}, 2},
		{"action like", SystemLogListRequest{Action: "log"}, 1},
		{"search", SystemLogListRequest{Search: "essay"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, total, err := svc.List(&req)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if total != tt.want {
				t.Errorf("expected %d, got %d", tt.want, total)
			}
		})
	}

	modules, err := svc.GetModules()
	if err != nil {
		t.Fatal(err)
	}
	if len(modules) != 2 {
		t.Errorf("expected 2 modules, got %v", modules)
	}
}

func TestSystemLogService_Cleanup(t *testing.T) {
	db := newTestDB(t)
	svc := NewSystemLogService(db)

	old := models.SystemLog{Level: "info", Module: "Digest", Action: "send", CreatedAt: time.Now().AddDate(0, 0, -45)}
	fresh := models.SystemLog{Level: "info", Module: "Digest", Action: "send", CreatedAt: time.Now()}
	db.Create(&old)
	db.Create(&fresh)

	if n, _ := svc.CleanupOldLogs(0); n != 0 {
		t.Errorf("zero retention must keep everything, removed %d", n)
	}

	if days := svc.GetRetentionDays(); days != 30 {
		t.Fatalf("expected default retention 30, got %d", days)
	}
	svc.RunCleanup()

	var count int64
	db.Model(&models.SystemLog{}).Count(&count)
	if count != 1 {
		t.Errorf("expected only the fresh log to remain, got %d", count)
	}
}
