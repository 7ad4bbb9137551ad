package models

import "time"

const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// AIReviewRun records one request for automated feedback on a document version.
type AIReviewRun struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	DocumentVersionID uint       `gorm:"index;not null" json:"document_version_id"`
	RequestedBy       uint       `gorm:"index" json:"requested_by"`
	LLMConfigID       *uint      `json:"llm_config_id"`
	Provider          string     `gorm:"size:50" json:"provider"`
	Model             string     `gorm:"size:100" json:"model"`
	Status            string     `gorm:"size:20;default:pending;index" json:"status"`
	ItemCount         int        `json:"item_count"`
	DroppedCount      int        `json:"dropped_count"` // suggestions whose anchor was not found in the text
	ErrorMessage      string     `gorm:"type:text" json:"error_message,omitempty"`
	StartedAt         *time.Time `json:"started_at"`
	FinishedAt        *time.Time `json:"finished_at"`
	CreatedAt         time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (AIReviewRun) TableName() string { return "ai_review_runs" }
