package models

import "time"

// Feedback is the stored form of a feedback item. AuthorID holds a user id or
// the "ai" sentinel for automated feedback.
type Feedback struct {
	ID                string    `gorm:"primaryKey;size:36" json:"id"`
	DocumentVersionID uint      `gorm:"index;not null" json:"document_version_id"`
	AuthorID          string    `gorm:"size:64;index;not null" json:"author_id"`
	Type              string    `gorm:"size:20;not null" json:"type"`               // comment, suggestion
	Status            string    `gorm:"size:20;default:active;index" json:"status"` // active, accepted, thanked
	SelectedText      string    `gorm:"type:text;not null" json:"selected_text"`
	Text              string    `gorm:"type:text;not null" json:"text"`
	Timestamp         time.Time `gorm:"index" json:"timestamp"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (Feedback) TableName() string { return "feedbacks" }
