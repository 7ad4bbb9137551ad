package feedback

import (
	"strings"
	"time"
)

// Type is the kind of a feedback item. It is fixed when the item is created.
type Type string

const (
	TypeComment    Type = "comment"
	TypeSuggestion Type = "suggestion"
)

// Valid reports whether t is a known feedback type
func (t Type) Valid() bool {
	return t == TypeComment || t == TypeSuggestion
}

// Status is the lifecycle state of a feedback item
type Status string

const (
	StatusActive   Status = "active"
	StatusAccepted Status = "accepted" // recipient applied a suggestion
	StatusThanked  Status = "thanked"  // recipient acknowledged a comment
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusAccepted, StatusThanked:
		return true
	}
	return false
}

// ID is a durable identifier assigned by the Gateway.
type ID string

// TempID identifies an item whose creation has not been confirmed yet.
// It is deliberately a different type from ID so it cannot reach a Gateway call.
type TempID string

// Item is one confirmed piece of reviewer input attached to a span of document text.
type Item struct {
	ID                ID        `json:"id"`
	Text              string    `json:"text"`
	SelectedText      string    `json:"selected_text"`
	Type              Type      `json:"type"`
	Timestamp         time.Time `json:"timestamp"`
	Author            Author    `json:"author"`
	DocumentVersionID string    `json:"document_version_id"`
	Status            Status    `json:"status"`
}

// IsSuggestion reports whether the item carries replacement text
func (i Item) IsSuggestion() bool { return i.Type == TypeSuggestion }

// Draft is an item that has not been persisted. New items always start active.
type Draft struct {
	Text              string
	SelectedText      string
	Type              Type
	Timestamp         time.Time
	Author            Author
	DocumentVersionID string
}

// Validate rejects drafts that must never reach the Gateway.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Text) == "" {
		return &ValidationError{Reason: "feedback text is empty"}
	}
	if d.SelectedText == "" {
		return &ValidationError{Reason: "no text selected"}
	}
	if !d.Type.Valid() {
		return &ValidationError{Reason: "unknown feedback type " + string(d.Type)}
	}
	if d.DocumentVersionID == "" {
		return &ValidationError{Reason: "document version is required"}
	}
	return nil
}

// Pending wraps a draft between submission and Gateway confirmation.
type Pending struct {
	TempID TempID `json:"temp_id"`
	Draft  Draft  `json:"-"`
}

// Confirm turns the pending draft into an Item carrying the durable id.
func (p Pending) Confirm(id ID) Item {
	return Item{
		ID:                id,
		Text:              p.Draft.Text,
		SelectedText:      p.Draft.SelectedText,
		Type:              p.Draft.Type,
		Timestamp:         p.Draft.Timestamp,
		Author:            p.Draft.Author,
		DocumentVersionID: p.Draft.DocumentVersionID,
		Status:            StatusActive,
	}
}

// Entry is a row of a panel list: either a pending draft or a confirmed item.
type Entry struct {
	Pending *Pending `json:"pending,omitempty"`
	Item    *Item    `json:"item,omitempty"`
}

// Confirmed reports whether the entry holds a durable item.
func (e Entry) Confirmed() bool { return e.Item != nil }
