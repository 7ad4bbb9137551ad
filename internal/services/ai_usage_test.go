package services

import (
	"testing"
	"time"

	"github.com/mentorhub/backend/internal/models"
	"gorm.io/gorm"
)

// seedUsage stores two review runs on version 1 and one on version 2.
// Run 1 delivered 4 items, run 2 failed after a retry, run 3 delivered 2.
func seedUsage(t *testing.T, db *gorm.DB) []models.AIReviewRun {
	t.Helper()
	day1 := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	runs := []models.AIReviewRun{
		{DocumentVersionID: 1, Status: models.RunStatusCompleted, Model: "gpt-4o", ItemCount: 4, DroppedCount: 1},
		{DocumentVersionID: 1, Status: models.RunStatusFailed, Model: "gpt-4o"},
		{DocumentVersionID: 2, Status: models.RunStatusCompleted, Model: "claude", ItemCount: 2},
	}
	for i := range runs {
		if err := db.Create(&runs[i]).Error; err != nil {
			t.Fatal(err)
		}
	}

	call := func(run int, tokens int, ok bool, at time.Time) models.AIUsageLog {
		runID, versionID := runs[run].ID, runs[run].DocumentVersionID
		return models.AIUsageLog{
			AIReviewRunID:     &runID,
			DocumentVersionID: &versionID,
			PromptTokens:      tokens / 2,
			CompletionTokens:  tokens - tokens/2,
			TotalTokens:       tokens,
			LatencyMs:         100,
			Success:           ok,
			CreatedAt:         at,
		}
	}
	logs := []models.AIUsageLog{
		call(0, 800, true, day1),
		call(1, 300, false, day1),
		call(1, 300, false, day1),
		call(2, 400, true, day2),
	}
	for i := range logs {
		if err := db.Create(&logs[i]).Error; err != nil {
			t.Fatal(err)
		}
	}
	return runs
}

func TestAIUsageService_GetStats(t *testing.T) {
	db := newTestDB(t)
	svc := NewAIUsageService(db)
	seedUsage(t, db)

	tests := []struct {
		name    string
		filter  UsageFilter
		calls   int64
		failed  int64
		tokens  int64
		runs    int64
		items   int64
		perItem float64
	}{
		{"everything", UsageFilter{}, 4, 2, 1800, 3, 6, 300},
		{"one version", UsageFilter{VersionID: 1}, 3, 2, 1400, 2, 4, 350},
		{"first day", UsageFilter{StartDate: "2026-05-04", EndDate: "2026-05-04"}, 3, 2, 1400, 2, 4, 350},
		{"second day", UsageFilter{StartDate: "2026-05-05"}, 1, 0, 400, 1, 2, 200},
		{"no calls", UsageFilter{StartDate: "2026-06-01"}, 0, 0, 0, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats, err := svc.GetStats(tt.filter)
			if err != nil {
				t.Fatalf("GetStats: %v", err)
			}
			if stats.Calls != tt.calls || stats.FailedCalls != tt.failed || stats.TotalTokens != tt.tokens {
				t.Errorf("calls/failed/tokens = %d/%d/%d, want %d/%d/%d",
					stats.Calls, stats.FailedCalls, stats.TotalTokens, tt.calls, tt.failed, tt.tokens)
			}
			if stats.Runs != tt.runs || stats.ItemsDelivered != tt.items {
				t.Errorf("runs/items = %d/%d, want %d/%d", stats.Runs, stats.ItemsDelivered, tt.runs, tt.items)
			}
			if stats.TokensPerItem != tt.perItem {
				t.Errorf("tokens per item = %v, want %v", stats.TokensPerItem, tt.perItem)
			}
		})
	}
}

func TestAIUsageService_RunStats(t *testing.T) {
	db := newTestDB(t)
	svc := NewAIUsageService(db)
	runs := seedUsage(t, db)

	tests := []struct {
		name    string
		run     models.AIReviewRun
		calls   int64
		tokens  int64
		dropped int64
	}{
		{"completed", runs[0], 1, 800, 1},
		{"failed with retry", runs[1], 2, 600, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats, err := svc.RunStats(tt.run.ID)
			if err != nil {
				t.Fatal(err)
			}
			if stats.Calls != tt.calls || stats.TotalTokens != tt.tokens || stats.Runs != 1 {
				t.Errorf("unexpected stats %+v", stats)
			}
			if stats.ItemsDelivered != int64(tt.run.ItemCount) || stats.ItemsDropped != tt.dropped {
				t.Errorf("items = %d dropped = %d", stats.ItemsDelivered, stats.ItemsDropped)
			}
		})
	}
}

func TestAIUsageService_RunBreakdown(t *testing.T) {
	db := newTestDB(t)
	svc := NewAIUsageService(db)
	runs := seedUsage(t, db)

	got, err := svc.GetRunBreakdown(UsageFilter{}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected limit of 2 runs, got %d", len(got))
	}
	if got[0].RunID != runs[0].ID || got[0].TotalTokens != 800 || got[0].TokensPerItem != 200 {
		t.Errorf("expected the completed run first, got %+v", got[0])
	}
	if got[1].RunID != runs[1].ID || got[1].Calls != 2 || got[1].TokensPerItem != 0 {
		t.Errorf("expected the failed run second, got %+v", got[1])
	}
}

func TestAIUsageService_OutcomeBreakdown(t *testing.T) {
	db := newTestDB(t)
	svc := NewAIUsageService(db)
	seedUsage(t, db)

	got, err := svc.GetOutcomeBreakdown(UsageFilter{})
	if err != nil {
		t.Fatal(err)
	}
	want := []OutcomeUsage{
		{Status: models.RunStatusCompleted, Runs: 2, Calls: 2, TotalTokens: 1200},
		{Status: models.RunStatusFailed, Runs: 1, Calls: 2, TotalTokens: 600},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d outcomes, got %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("outcome %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestAIUsageService_DailyTrend(t *testing.T) {
	db := newTestDB(t)
	svc := NewAIUsageService(db)
	seedUsage(t, db)

	got, err := svc.GetDailyTrend(UsageFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 days, got %+v", got)
	}
	if got[0].Date != "2026-05-04" || got[0].Calls != 3 || got[0].FailedCalls != 2 {
		t.Errorf("unexpected first day %+v", got[0])
	}
	if got[1].Date != "2026-05-05" || got[1].TotalTokens != 400 {
		t.Errorf("unexpected second day %+v", got[1])
	}
}

func TestAIUsageService_CleanupBefore(t *testing.T) {
	db := newTestDB(t)
	svc := NewAIUsageService(db)
	seedUsage(t, db)

	n, err := svc.CleanupBefore(time.Date(2026, 5, 5, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("expected 3 first-day logs removed, got %d", n)
	}
}
