package models

import "time"

// Digest is one day's summary of feedback activity sent to a user.
type Digest struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	DigestDate  time.Time  `gorm:"uniqueIndex:idx_digest_user_date;not null" json:"digest_date"`
	UserID      uint       `gorm:"uniqueIndex:idx_digest_user_date;not null" json:"user_id"`
	NewFeedback int        `json:"new_feedback"`
	Suggestions int        `json:"suggestions"`
	Comments    int        `json:"comments"`
	Resolved    int        `json:"resolved"`
	AIGenerated int        `json:"ai_generated"`
	Body        string     `gorm:"type:text" json:"body"`
	NotifiedAt  *time.Time `json:"notified_at"`
	NotifyError string     `gorm:"type:text" json:"notify_error"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (Digest) TableName() string { return "digests" }
