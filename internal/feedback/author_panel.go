package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// AuthorPanel is the reviewer's side of one document version: it attaches
// comments and suggestions to selected text and triages automated feedback.
type AuthorPanel struct {
	gateway   Gateway
	editor    Editor
	reviewer  Author
	versionID string
	opts      options

	mu    sync.Mutex
	board board
	input string
}

// NewAuthorPanel creates a panel for reviewer on the given document version.
// editor receives the substitution when an automated suggestion is accepted.
func NewAuthorPanel(gateway Gateway, editor Editor, reviewer Author, versionID string, opts ...Option) *AuthorPanel {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &AuthorPanel{
		gateway:   gateway,
		editor:    editor,
		reviewer:  reviewer,
		versionID: versionID,
		opts:      o,
	}
}

func (p *AuthorPanel) Reviewer() Author { return p.reviewer }

func (p *AuthorPanel) DocumentVersionID() string { return p.versionID }

// Load fetches the reviewer's own items and automated items for the version.
func (p *AuthorPanel) Load(ctx context.Context) error {
	items, err := p.gateway.List(ctx, Filter{DocumentVersionID: p.versionID})
	if err != nil {
		return p.fail(&PersistenceError{Op: "list", Err: err})
	}
	visible := make([]Item, 0, len(items))
	for _, item := range items {
		if item.Author.IsAutomated() || item.Author.Equal(p.reviewer) {
			visible = append(visible, item)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.board.closed {
		return ErrClosed
	}
	p.board.replace(visible)
	return nil
}

// SetSelection records the editor's current selection and clears the active item.
func (p *AuthorPanel) SetSelection(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.board.setSelection(text)
}

// Select makes id the active item and mirrors its anchor into the selection.
func (p *AuthorPanel) Select(id ID) error {
	p.mu.Lock()
	err := p.board.selectItem(id)
	p.mu.Unlock()
	if err != nil {
		return p.fail(err)
	}
	return nil
}

// SetInput stores the draft text box content.
func (p *AuthorPanel) SetInput(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.input = text
}

func (p *AuthorPanel) Input() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.input
}

// CanSubmit reports whether the submit control should be enabled for text.
func (p *AuthorPanel) CanSubmit(text string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.TrimSpace(text) != "" && p.board.selection != ""
}

// Submit attaches text to the current selection. The item is shown as pending
// until the Gateway confirms it; on failure it disappears again and the typed
// text stays in the input.
func (p *AuthorPanel) Submit(ctx context.Context, text string, typ Type) (Item, error) {
	p.mu.Lock()
	if p.board.closed {
		p.mu.Unlock()
		return Item{}, ErrClosed
	}
	draft := Draft{
		Text:              text,
		SelectedText:      p.board.selection,
		Type:              typ,
		Timestamp:         p.opts.now(),
		Author:            p.reviewer,
		DocumentVersionID: p.versionID,
	}
	if err := draft.Validate(); err != nil {
		p.mu.Unlock()
		return Item{}, err
	}
	pending := Pending{TempID: p.opts.newTempID(), Draft: draft}
	p.board.entries = append(p.board.entries, Entry{Pending: &pending})
	p.input = text
	p.mu.Unlock()

	id, err := p.gateway.Create(ctx, draft)

	p.mu.Lock()
	if p.board.closed {
		p.mu.Unlock()
		return Item{}, ErrClosed
	}
	idx := p.board.pendingIndex(pending.TempID)
	if err != nil {
		if idx >= 0 {
			p.board.removeAt(idx)
		}
		p.mu.Unlock()
		return Item{}, p.fail(&PersistenceError{Op: "create", Err: err})
	}
	item := pending.Confirm(id)
	p.board.confirm(idx, item)
	p.input = ""
	p.board.selection = ""
	p.mu.Unlock()
	return item, nil
}

// Remove deletes one of the reviewer's own items.
func (p *AuthorPanel) Remove(ctx context.Context, id ID) error {
	item, err := p.claim(id)
	if err != nil {
		return err
	}
	defer p.release(id)
	if item.Author.IsAutomated() {
		return &ValidationError{Reason: "automated feedback is rejected, not removed"}
	}
	if err := p.gateway.Delete(ctx, id); err != nil {
		return p.fail(&PersistenceError{Op: "delete", Err: err})
	}
	return p.commit(func(b *board) { b.remove(id) })
}

// Accept adopts an automated item: a copy attributed to the reviewer replaces
// it and, for suggestions, the replacement text is applied to the document.
func (p *AuthorPanel) Accept(ctx context.Context, id ID) (Item, error) {
	item, err := p.claim(id)
	if err != nil {
		return Item{}, err
	}
	defer p.release(id)
	if !item.Author.IsAutomated() {
		return Item{}, &ValidationError{Reason: "only automated feedback can be accepted"}
	}

	draft := Draft{
		Text:              item.Text,
		SelectedText:      item.SelectedText,
		Type:              item.Type,
		Timestamp:         p.opts.now(),
		Author:            p.reviewer,
		DocumentVersionID: item.DocumentVersionID,
	}
	newID, err := p.gateway.Create(ctx, draft)
	if err != nil {
		return Item{}, p.fail(&PersistenceError{Op: "create", Err: err})
	}
	if err := p.gateway.Delete(ctx, item.ID); err != nil {
		// undo the copy so the store matches the unchanged local state
		if undoErr := p.gateway.Delete(ctx, newID); undoErr != nil {
			err = errors.Join(err, fmt.Errorf("undo create %s: %w", newID, undoErr))
		}
		return Item{}, p.fail(&PersistenceError{Op: "delete", Err: err})
	}
	adopted := Pending{Draft: draft}.Confirm(newID)

	err = p.commit(func(b *board) {
		b.remove(item.ID)
		b.confirm(-1, adopted)
		b.activeID = nil
		b.selection = ""
	})
	if err != nil {
		return Item{}, err
	}
	if item.IsSuggestion() && p.editor != nil {
		p.editor.ApplyTextSubstitution(item.SelectedText, item.Text)
	}
	return adopted, nil
}

// Reject discards an automated item without touching the document.
func (p *AuthorPanel) Reject(ctx context.Context, id ID) error {
	item, err := p.claim(id)
	if err != nil {
		return err
	}
	defer p.release(id)
	if !item.Author.IsAutomated() {
		return &ValidationError{Reason: "only automated feedback can be rejected"}
	}
	if err := p.gateway.Delete(ctx, id); err != nil {
		return p.fail(&PersistenceError{Op: "delete", Err: err})
	}
	return p.commit(func(b *board) { b.remove(id) })
}

// Items returns the confirmed items, newest first.
func (p *AuthorPanel) Items() []Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.board.items()
}

// Entries returns pending entries followed by confirmed items, newest first.
func (p *AuthorPanel) Entries() []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.board.snapshot()
}

func (p *AuthorPanel) ActiveID() *ID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.board.active()
}

func (p *AuthorPanel) Selection() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.board.selection
}

// Highlights projects the current items for the editor.
func (p *AuthorPanel) Highlights() []HighlightSpec {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Project(p.board.items(), p.board.activeID, p.board.selection)
}

// Close detaches the panel; results of in-flight calls are discarded.
func (p *AuthorPanel) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.board.closed = true
}

func (p *AuthorPanel) claim(id ID) (Item, error) {
	p.mu.Lock()
	if p.board.closed {
		p.mu.Unlock()
		return Item{}, ErrClosed
	}
	item, _, ok := p.board.find(id)
	if !ok {
		p.mu.Unlock()
		return Item{}, p.fail(&StaleReferenceError{ID: id})
	}
	err := p.board.begin(id)
	p.mu.Unlock()
	return item, err
}

func (p *AuthorPanel) release(id ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.board.end(id)
}

func (p *AuthorPanel) commit(apply func(*board)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.board.closed {
		return ErrClosed
	}
	apply(&p.board)
	return nil
}

func (p *AuthorPanel) fail(err error) error {
	report(p.opts.notifier, err)
	return err
}

// AuthorResolver lets the review island drive an author panel.
func AuthorResolver(p *AuthorPanel) Resolver {
	return authorResolver{p}
}

type authorResolver struct{ p *AuthorPanel }

func (r authorResolver) Apply(ctx context.Context, id ID) error {
	_, err := r.p.Accept(ctx, id)
	return err
}

func (r authorResolver) MarkAsRead(ctx context.Context, id ID) error {
	_, err := r.p.Accept(ctx, id)
	return err
}

func (r authorResolver) Reject(ctx context.Context, id ID) error {
	return r.p.Reject(ctx, id)
}
