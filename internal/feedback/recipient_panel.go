package feedback

import (
	"context"
	"sync"
)

// RecipientPanel is the document owner's side of one document version: it
// applies suggestions, acknowledges comments and dismisses feedback.
type RecipientPanel struct {
	gateway   Gateway
	editor    Editor
	versionID string
	opts      options

	mu    sync.Mutex
	board board
}

// NewRecipientPanel creates a panel over versionID. editor performs the text
// substitution when a suggestion is applied.
func NewRecipientPanel(gateway Gateway, editor Editor, versionID string, opts ...Option) *RecipientPanel {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &RecipientPanel{
		gateway:   gateway,
		editor:    editor,
		versionID: versionID,
		opts:      o,
	}
}

func (p *RecipientPanel) DocumentVersionID() string { return p.versionID }

// Load fetches the human-authored feedback of the version. Automated items stay
// with the reviewer until adopted.
func (p *RecipientPanel) Load(ctx context.Context) error {
	items, err := p.gateway.List(ctx, Filter{DocumentVersionID: p.versionID})
	if err != nil {
		return p.fail(&PersistenceError{Op: "list", Err: err})
	}
	visible := make([]Item, 0, len(items))
	for _, item := range items {
		switch item.Author.Kind() {
		case AuthorHuman:
			visible = append(visible, item)
		case AuthorAutomated:
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

// SelectItem makes id active and mirrors its anchor so the editor highlights it.
func (p *RecipientPanel) SelectItem(id ID) error {
	p.mu.Lock()
	err := p.board.selectItem(id)
	p.mu.Unlock()
	if err != nil {
		return p.fail(err)
	}
	return nil
}

// SetSelection records the editor's current selection and clears the active item.
func (p *RecipientPanel) SetSelection(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.board.setSelection(text)
}

// ApplySuggestion marks the suggestion accepted and replaces its anchor with the
// suggested text. The status change is persisted before anything local changes.
// When the anchor no longer occurs in the document the text is left as is but the
// suggestion still counts as accepted.
func (p *RecipientPanel) ApplySuggestion(ctx context.Context, id ID) (Item, error) {
	item, err := p.transition(ctx, id, TransitionApply)
	if err != nil {
		return Item{}, err
	}
	if p.editor != nil {
		p.editor.ApplyTextSubstitution(item.SelectedText, item.Text)
	}
	return item, nil
}

// Thank acknowledges a comment.
func (p *RecipientPanel) Thank(ctx context.Context, id ID) (Item, error) {
	return p.transition(ctx, id, TransitionThank)
}

// Dismiss deletes an item on the recipient's behalf.
func (p *RecipientPanel) Dismiss(ctx context.Context, id ID) error {
	if _, err := p.claim(id); err != nil {
		return err
	}
	defer p.release(id)
	if err := p.gateway.Delete(ctx, id); err != nil {
		return p.fail(&PersistenceError{Op: "delete", Err: err})
	}
	return p.commit(func(b *board) { b.remove(id) })
}

func (p *RecipientPanel) transition(ctx context.Context, id ID, t Transition) (Item, error) {
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
	next, err := Next(item, t)
	if err == nil {
		err = p.board.begin(id)
	}
	p.mu.Unlock()
	if err != nil {
		return Item{}, err
	}
	defer p.release(id)

	if err := p.gateway.UpdateStatus(ctx, id, next); err != nil {
		return Item{}, p.fail(&PersistenceError{Op: "update status", Err: err})
	}

	item.Status = next
	err = p.commit(func(b *board) {
		if _, i, ok := b.find(id); ok {
			b.entries[i].Item.Status = next
		}
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// Items returns the items, newest first.
func (p *RecipientPanel) Items() []Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.board.items()
}

// Pending returns the items still awaiting a decision, newest first.
func (p *RecipientPanel) Pending() []Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Item
	for _, item := range p.board.items() {
		if !Resolved(item) {
			out = append(out, item)
		}
	}
	return out
}

func (p *RecipientPanel) ActiveID() *ID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.board.active()
}

func (p *RecipientPanel) Selection() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.board.selection
}

// Highlights projects the current items for the editor.
func (p *RecipientPanel) Highlights() []HighlightSpec {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Project(p.board.items(), p.board.activeID, p.board.selection)
}

// Close detaches the panel; results of in-flight calls are discarded.
func (p *RecipientPanel) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.board.closed = true
}

func (p *RecipientPanel) claim(id ID) (Item, error) {
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

func (p *RecipientPanel) release(id ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.board.end(id)
}

func (p *RecipientPanel) commit(apply func(*board)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.board.closed {
		return ErrClosed
	}
	apply(&p.board)
	return nil
}

func (p *RecipientPanel) fail(err error) error {
	report(p.opts.notifier, err)
	return err
}

// RecipientResolver lets the review island drive a recipient panel.
func RecipientResolver(p *RecipientPanel) Resolver {
	return recipientResolver{p}
}

type recipientResolver struct{ p *RecipientPanel }

func (r recipientResolver) Apply(ctx context.Context, id ID) error {
	_, err := r.p.ApplySuggestion(ctx, id)
	return err
}

func (r recipientResolver) MarkAsRead(ctx context.Context, id ID) error {
	_, err := r.p.Thank(ctx, id)
	return err
}

func (r recipientResolver) Reject(ctx context.Context, id ID) error {
	return r.p.Dismiss(ctx, id)
}
