package services

import (
	"time"

	"github.com/mentorhub/backend/internal/models"
	"github.com/mentorhub/backend/pkg/logger"
	"gorm.io/gorm"
)

// AIUsageService accounts for the tokens spent producing automated feedback.
type AIUsageService struct {
	db *gorm.DB
}

func NewAIUsageService(db *gorm.DB) *AIUsageService {
	return &AIUsageService{db: db}
}

// Record saves a usage log entry asynchronously.
func (s *AIUsageService) Record(log *models.AIUsageLog) {
	go func() {
		if err := s.db.Create(log).Error; err != nil {
			logger.Infof("[AIUsage] Failed to record usage: %v", err)
		}
	}()
}

// UsageFilter narrows usage queries. Zero fields match everything.
// Dates are inclusive and formatted as 2006-01-02.
type UsageFilter struct {
	StartDate string
	EndDate   string
	VersionID uint
	RunID     uint
}

const tokenColumns = "COUNT(*) AS calls, " +
	"COALESCE(SUM(u.total_tokens), 0) AS total_tokens, " +
	"COALESCE(SUM(u.prompt_tokens), 0) AS prompt_tokens, " +
	"COALESCE(SUM(u.completion_tokens), 0) AS completion_tokens, " +
	"COALESCE(AVG(u.latency_ms), 0) AS avg_latency_ms, " +
	"COALESCE(SUM(CASE WHEN u.success THEN 0 ELSE 1 END), 0) AS failed_calls"

// scope is the shared base for every usage query; logs are aliased as u.
func (s *AIUsageService) scope(f UsageFilter) *gorm.DB {
	q := s.db.Table("ai_usage_logs AS u")
	if f.StartDate != "" {
		q = q.Where("u.created_at >= ?", f.StartDate)
	}
	if f.EndDate != "" {
		q = q.Where("u.created_at <= ?", f.EndDate+" 23:59:59")
	}
	if f.VersionID > 0 {
		q = q.Where("u.document_version_id = ?", f.VersionID)
	}
	if f.RunID > 0 {
		q = q.Where("u.ai_review_run_id = ?", f.RunID)
	}
	return q
}

// UsageStats relates LLM spend to the automated feedback it produced.
type UsageStats struct {
	Calls            int64   `json:"calls"`
	FailedCalls      int64   `json:"failed_calls"`
	TotalTokens      int64   `json:"total_tokens"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	AvgLatencyMs     float64 `json:"avg_latency_ms"`
	Runs             int64   `json:"runs"`
	ItemsDelivered   int64   `json:"items_delivered"`
	ItemsDropped     int64   `json:"items_dropped"`
	TokensPerItem    float64 `json:"tokens_per_item"`
}

type runTotals struct {
	Runs    int64
	Items   int64
	Dropped int64
}

// GetStats totals the calls in f and the review runs they belong to.
func (s *AIUsageService) GetStats(f UsageFilter) (*UsageStats, error) {
	var stats UsageStats
	if err := s.scope(f).Select(tokenColumns).Scan(&stats).Error; err != nil {
		return nil, err
	}

	runIDs := s.scope(f).Where("u.ai_review_run_id IS NOT NULL").Select("DISTINCT u.ai_review_run_id")
	var runs runTotals
	err := s.db.Model(&models.AIReviewRun{}).Where("id IN (?)", runIDs).Select(
		"COUNT(*) AS runs, " +
			"COALESCE(SUM(item_count), 0) AS items, " +
			"COALESCE(SUM(dropped_count), 0) AS dropped",
	).Scan(&runs).Error
	if err != nil {
		return nil, err
	}
	stats.Runs, stats.ItemsDelivered, stats.ItemsDropped = runs.Runs, runs.Items, runs.Dropped
	if stats.ItemsDelivered > 0 {
		stats.TokensPerItem = float64(stats.TotalTokens) / float64(stats.ItemsDelivered)
	}
	return &stats, nil
}

// RunStats summarises the LLM calls made for one automated review run.
func (s *AIUsageService) RunStats(runID uint) (*UsageStats, error) {
	return s.GetStats(UsageFilter{RunID: runID})
}

// DailyUsage holds usage data for a single day.
type DailyUsage struct {
	Date         string  `json:"date"`
	Calls        int64   `json:"calls"`
	FailedCalls  int64   `json:"failed_calls"`
	TotalTokens  int64   `json:"total_tokens"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// GetDailyTrend returns daily aggregated usage for charting.
func (s *AIUsageService) GetDailyTrend(f UsageFilter) ([]DailyUsage, error) {
	results := []DailyUsage{}
	err := s.scope(f).Select(
		"DATE(u.created_at) AS date, " +
			"COUNT(*) AS calls, " +
			"COALESCE(SUM(CASE WHEN u.success THEN 0 ELSE 1 END), 0) AS failed_calls, " +
			"COALESCE(SUM(u.total_tokens), 0) AS total_tokens, " +
			"COALESCE(AVG(u.latency_ms), 0) AS avg_latency_ms",
	).Group("DATE(u.created_at)").Order("date ASC").Scan(&results).Error
	return results, err
}

// RunUsage is the spend of one review run next to what it delivered.
type RunUsage struct {
	RunID             uint    `json:"run_id"`
	DocumentVersionID uint    `json:"document_version_id"`
	Status            string  `json:"status"`
	Model             string  `json:"model"`
	ItemCount         int     `json:"item_count"`
	DroppedCount      int     `json:"dropped_count"`
	Calls             int64   `json:"calls"`
	TotalTokens       int64   `json:"total_tokens"`
	TokensPerItem     float64 `json:"tokens_per_item"`
}

// GetRunBreakdown lists the most expensive runs in f, at most limit of them.
func (s *AIUsageService) GetRunBreakdown(f UsageFilter, limit int) ([]RunUsage, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	results := []RunUsage{}
	err := s.scope(f).
		Joins("JOIN ai_review_runs AS r ON r.id = u.ai_review_run_id").
		Select("r.id AS run_id, r.document_version_id, r.status, r.model, r.item_count, r.dropped_count, " +
			"COUNT(*) AS calls, COALESCE(SUM(u.total_tokens), 0) AS total_tokens").
		Group("r.id, r.document_version_id, r.status, r.model, r.item_count, r.dropped_count").
		Order("total_tokens DESC, r.id ASC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	for i := range results {
		if results[i].ItemCount > 0 {
			results[i].TokensPerItem = float64(results[i].TotalTokens) / float64(results[i].ItemCount)
		}
	}
	return results, nil
}

// OutcomeUsage groups spend by how the review runs ended.
type OutcomeUsage struct {
	Status      string `json:"status"`
	Runs        int64  `json:"runs"`
	Calls       int64  `json:"calls"`
	TotalTokens int64  `json:"total_tokens"`
}

// GetOutcomeBreakdown splits spend between completed and failed runs.
func (s *AIUsageService) GetOutcomeBreakdown(f UsageFilter) ([]OutcomeUsage, error) {
	results := []OutcomeUsage{}
	err := s.scope(f).
		Joins("JOIN ai_review_runs AS r ON r.id = u.ai_review_run_id").
		Select("r.status AS status, COUNT(DISTINCT r.id) AS runs, " +
			"COUNT(*) AS calls, COALESCE(SUM(u.total_tokens), 0) AS total_tokens").
		Group("r.status").
		Order("r.status ASC").
		Scan(&results).Error
	return results, err
}

// CleanupBefore deletes usage logs older than the given time.
func (s *AIUsageService) CleanupBefore(before time.Time) (int64, error) {
	result := s.db.Where("created_at < ?", before).Delete(&models.AIUsageLog{})
	return result.RowsAffected, result.Error
}
