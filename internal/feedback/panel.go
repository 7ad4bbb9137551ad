package feedback

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Option configures a panel.
type Option func(*options)

type options struct {
	notifier  Notifier
	now       func() time.Time
	newTempID func() TempID
}

func defaultOptions() options {
	return options{
		notifier:  discardNotifier{},
		now:       time.Now,
		newTempID: func() TempID { return TempID(uuid.NewString()) },
	}
}

// WithNotifier routes failure notices to n.
func WithNotifier(n Notifier) Option {
	return func(o *options) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithClock overrides the timestamp source for new items.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithTempIDs overrides how pending items are identified.
func WithTempIDs(f func() TempID) Option {
	return func(o *options) { o.newTempID = f }
}

// Resolver is the set of per-item actions the review island can trigger.
type Resolver interface {
	Apply(ctx context.Context, id ID) error
	MarkAsRead(ctx context.Context, id ID) error
	Reject(ctx context.Context, id ID) error
}

// board is the list/selection state shared by both panels.
// Callers hold the owning panel's mutex.
type board struct {
	entries   []Entry
	activeID  *ID
	selection string
	closed    bool
	inflight  map[ID]struct{}
}

func (b *board) find(id ID) (Item, int, bool) {
	for i, e := range b.entries {
		if e.Item != nil && e.Item.ID == id {
			return *e.Item, i, true
		}
	}
	return Item{}, -1, false
}

func (b *board) pendingIndex(tmp TempID) int {
	for i, e := range b.entries {
		if e.Pending != nil && e.Pending.TempID == tmp {
			return i
		}
	}
	return -1
}

func (b *board) removeAt(i int) {
	b.entries = append(b.entries[:i], b.entries[i+1:]...)
}

func (b *board) remove(id ID) {
	if _, i, ok := b.find(id); ok {
		b.removeAt(i)
	}
	if b.activeID != nil && *b.activeID == id {
		b.activeID = nil
		b.selection = ""
	}
}

// replace swaps the item list, keeping pending entries that are still in flight.
func (b *board) replace(items []Item) {
	entries := make([]Entry, 0, len(items)+len(b.entries))
	for i := range items {
		item := items[i]
		entries = append(entries, Entry{Item: &item})
	}
	for _, e := range b.entries {
		if e.Pending != nil {
			entries = append(entries, e)
		}
	}
	b.entries = entries
	if b.activeID != nil {
		if _, _, ok := b.find(*b.activeID); !ok {
			b.activeID = nil
		}
	}
}

// confirm puts item where the pending entry at idx was (idx < 0 appends). A
// reload that already listed the durable row wins and the pending entry is
// dropped, so one id is never held twice.
func (b *board) confirm(idx int, item Item) {
	if _, _, ok := b.find(item.ID); ok {
		if idx >= 0 {
			b.removeAt(idx)
		}
		return
	}
	if idx >= 0 {
		b.entries[idx] = Entry{Item: &item}
		return
	}
	b.entries = append(b.entries, Entry{Item: &item})
}

func (b *board) items() []Item {
	out := make([]Item, 0, len(b.entries))
	for _, e := range b.entries {
		if e.Item != nil {
			out = append(out, *e.Item)
		}
	}
	return NewestFirst(out)
}

func (b *board) snapshot() []Entry {
	out := make([]Entry, 0, len(b.entries))
	for i := len(b.entries) - 1; i >= 0; i-- {
		e := b.entries[i]
		if e.Pending != nil {
			p := *e.Pending
			out = append(out, Entry{Pending: &p})
		}
	}
	for _, item := range b.items() {
		out = append(out, Entry{Item: &item})
	}
	return out
}

func (b *board) selectItem(id ID) error {
	item, _, ok := b.find(id)
	if !ok {
		return &StaleReferenceError{ID: id}
	}
	active := item.ID
	b.activeID = &active
	b.selection = item.SelectedText
	return nil
}

func (b *board) setSelection(text string) {
	b.activeID = nil
	b.selection = text
}

func (b *board) active() *ID {
	if b.activeID == nil {
		return nil
	}
	id := *b.activeID
	return &id
}

// begin marks id as busy so a second click on the same item is rejected.
func (b *board) begin(id ID) error {
	if b.inflight == nil {
		b.inflight = make(map[ID]struct{})
	}
	if _, busy := b.inflight[id]; busy {
		return &ValidationError{Reason: "an action on this item is already in progress"}
	}
	b.inflight[id] = struct{}{}
	return nil
}

func (b *board) end(id ID) {
	delete(b.inflight, id)
}
