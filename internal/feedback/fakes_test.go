package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var errGatewayDown = errors.New("gateway down")

type fakeGateway struct {
	mu      sync.Mutex
	items   map[ID]Item
	nextID  int
	creates int
	updates int
	deletes int

	failCreate bool
	failUpdate bool
	failDelete map[ID]bool

	// afterCreate runs once the row is stored, before Create returns.
	afterCreate func()
	// beforeDelete runs while a Delete is in flight.
	beforeDelete func(ID)
}

func newFakeGateway(items ...Item) *fakeGateway {
	g := &fakeGateway{items: make(map[ID]Item), failDelete: make(map[ID]bool)}
	for _, item := range items {
		g.items[item.ID] = item
	}
	return g
}

func (g *fakeGateway) List(_ context.Context, f Filter) ([]Item, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []Item
	for _, item := range g.items {
		if item.DocumentVersionID != f.DocumentVersionID {
			continue
		}
		if f.Author != nil && !item.Author.Equal(*f.Author) {
			continue
		}
		out = append(out, item)
	}
	return NewestFirst(out), nil
}

func (g *fakeGateway) Create(_ context.Context, d Draft) (ID, error) {
	g.mu.Lock()
	g.creates++
	if g.failCreate {
		g.mu.Unlock()
		return "", errGatewayDown
	}
	g.nextID++
	id := ID(fmt.Sprintf("fb-%d", g.nextID))
	g.items[id] = Pending{Draft: d}.Confirm(id)
	hook := g.afterCreate
	g.mu.Unlock()

	if hook != nil {
		hook()
	}
	return id, nil
}

func (g *fakeGateway) UpdateStatus(_ context.Context, id ID, s Status) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updates++
	if g.failUpdate {
		return errGatewayDown
	}
	item, ok := g.items[id]
	if !ok {
		return fmt.Errorf("item %s not found", id)
	}
	item.Status = s
	g.items[id] = item
	return nil
}

func (g *fakeGateway) Delete(_ context.Context, id ID) error {
	g.mu.Lock()
	hook := g.beforeDelete
	g.mu.Unlock()
	if hook != nil {
		hook(id)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.deletes++
	if g.failDelete[id] {
		return errGatewayDown
	}
	delete(g.items, id)
	return nil
}

func (g *fakeGateway) stored() []Item {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Item, 0, len(g.items))
	for _, item := range g.items {
		out = append(out, item)
	}
	return out
}

type substitution struct{ find, replace string }

type fakeEditor struct {
	mu    sync.Mutex
	calls []substitution
}

func (e *fakeEditor) ApplyTextSubstitution(find, replace string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, substitution{find, replace})
}

func (e *fakeEditor) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *recordingNotifier) Notify(notice Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *recordingNotifier) levels() []NoticeLevel {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]NoticeLevel, 0, len(n.notices))
	for _, notice := range n.notices {
		out = append(out, notice.Level)
	}
	return out
}

// manualTimer fires only when the test calls fire.
type manualTimer struct {
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type manualClock struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (c *manualClock) AfterFunc(_ time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{f: f}
	c.timers = append(c.timers, t)
	return t
}

// fire runs every timer that has not been stopped.
func (c *manualClock) fire() {
	c.mu.Lock()
	timers := c.timers
	c.timers = nil
	c.mu.Unlock()
	for _, t := range timers {
		if !t.stopped {
			t.f()
		}
	}
}

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func item(id, selected, text string, typ Type, author Author, minutes int) Item {
	return Item{
		ID:                ID(id),
		Text:              text,
		SelectedText:      selected,
		Type:              typ,
		Timestamp:         baseTime.Add(time.Duration(minutes) * time.Minute),
		Author:            author,
		DocumentVersionID: "v1",
		Status:            StatusActive,
	}
}

// textEditor applies substitutions to a plain string like the host editor does.
type textEditor struct{ content string }

func (e *textEditor) ApplyTextSubstitution(find, replace string) {
	e.content = strings.Replace(e.content, find, replace, 1)
}
