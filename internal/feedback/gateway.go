package feedback

import (
	"context"
	"sort"
)

// Filter narrows a Gateway listing. A nil Author lists every author.
type Filter struct {
	DocumentVersionID string
	Author            *Author
}

// Gateway is the durable store of feedback records.
// Any call may fail; callers must not assume partial success.
type Gateway interface {
	List(ctx context.Context, filter Filter) ([]Item, error)
	Create(ctx context.Context, draft Draft) (ID, error)
	UpdateStatus(ctx context.Context, id ID, status Status) error
	Delete(ctx context.Context, id ID) error
}

// Editor is the host document view.
type Editor interface {
	// ApplyTextSubstitution replaces find with replace in the document buffer.
	ApplyTextSubstitution(find, replace string)
}

// NoticeLevel is the severity of a user-visible notice
type NoticeLevel string

const (
	NoticeError NoticeLevel = "error"
	NoticeInfo  NoticeLevel = "info"
)

// Notice is a transient user-visible notification.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// Notifier receives notices raised by failed actions.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

type discardNotifier struct{}

func (discardNotifier) Notify(Notice) {}

// report raises the notice matching err's class. Validation errors stay silent.
func report(n Notifier, err error) {
	switch {
	case IsPersistence(err):
		n.Notify(Notice{Level: NoticeError, Message: err.Error()})
	case IsStaleReference(err):
		n.Notify(Notice{Level: NoticeInfo, Message: err.Error()})
	}
}

// NewestFirst returns a copy of items sorted by descending timestamp.
func NewestFirst(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}
