package models

import (
	"time"

	"gorm.io/gorm"
)

// Document is a student's piece of writing. Its text lives in versions.
type Document struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Title     string         `gorm:"size:300;not null" json:"title"`
	Kind      string         `gorm:"size:50;default:essay" json:"kind"` // essay, resume, cover_letter, other
	OwnerID   uint           `gorm:"index;not null" json:"owner_id"`
	Owner     *User          `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	MentorID  *uint          `gorm:"index" json:"mentor_id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `gorm:"index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Document) TableName() string { return "documents" }

// DocumentVersion is one snapshot of a document's text. Feedback attaches to a version.
type DocumentVersion struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	DocumentID uint      `gorm:"uniqueIndex:idx_document_version;not null" json:"document_id"`
	Version    int       `gorm:"uniqueIndex:idx_document_version;not null" json:"version"`
	Content    string    `gorm:"type:text" json:"content"`
	CreatedBy  uint      `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (DocumentVersion) TableName() string { return "document_versions" }
