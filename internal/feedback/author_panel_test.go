package feedback

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func newAuthorPanel(t *testing.T, g *fakeGateway, e Editor, n Notifier) *AuthorPanel {
	t.Helper()
	p := NewAuthorPanel(g, e, Human("m-42"), "v1",
		WithNotifier(n),
		WithClock(func() time.Time { return baseTime.Add(60 * time.Minute) }),
	)
	if err := p.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return p
}

func TestAuthorPanel_LoadFiltersOtherReviewers(t *testing.T) {
	g := newFakeGateway(
		item("1", "a", "mine", TypeComment, Human("m-42"), 1),
		item("2", "b", "other mentor", TypeComment, Human("m-7"), 2),
		item("3", "c", "ai", TypeSuggestion, Automated(), 3),
	)
	p := newAuthorPanel(t, g, &fakeEditor{}, nil)

	items := p.Items()
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ID != "3" || items[1].ID != "1" {
		t.Errorf("expected newest first [3 1], got [%s %s]", items[0].ID, items[1].ID)
	}
}

// Reviewer selects a sentence and submits a suggestion.
func TestAuthorPanel_SubmitSuggestion(t *testing.T) {
	g := newFakeGateway()
	p := newAuthorPanel(t, g, &fakeEditor{}, nil)

	p.SetSelection("This sentence is unclear.")
	p.SetInput("This sentence lacks clarity.")
	if !p.CanSubmit(p.Input()) {
		t.Fatal("expected submit to be enabled")
	}
	got, err := p.Submit(context.Background(), "This sentence lacks clarity.", TypeSuggestion)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if got.Status != StatusActive || got.SelectedText != "This sentence is unclear." || got.Text != "This sentence lacks clarity." {
		t.Errorf("unexpected item %+v", got)
	}
	if !got.Author.Equal(Human("m-42")) {
		t.Errorf("expected reviewer as author, got %v", got.Author)
	}
	if p.Selection() != "" || p.Input() != "" {
		t.Errorf("expected selection and input cleared, got %q / %q", p.Selection(), p.Input())
	}
	if items := p.Items(); len(items) != 1 || items[0].ID != got.ID {
		t.Errorf("expected the confirmed item in the list, got %v", items)
	}
	for _, e := range p.Entries() {
		if !e.Confirmed() {
			t.Error("no pending entry should remain after confirmation")
		}
	}
}

func TestAuthorPanel_SubmitGuard(t *testing.T) {
	tests := []struct {
		name      string
		selection string
		text      string
	}{
		{"empty text", "some span", ""},
		{"blank text", "some span", "  "},
		{"empty selection", "", "a remark"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newFakeGateway()
			p := newAuthorPanel(t, g, &fakeEditor{}, nil)
			p.SetSelection(tt.selection)

			if p.CanSubmit(tt.text) {
				t.Error("submit should be disabled")
			}
			_, err := p.Submit(context.Background(), tt.text, TypeComment)
			if !IsValidation(err) {
				t.Errorf("expected ValidationError, got %v", err)
			}
			if g.creates != 0 {
				t.Errorf("expected no gateway call, got %d", g.creates)
			}
			if len(p.Entries()) != 0 {
				t.Errorf("expected no local append, got %d entries", len(p.Entries()))
			}
		})
	}
}

// A failed create leaves no item behind, notifies, and keeps the typed text.
func TestAuthorPanel_SubmitFailure(t *testing.T) {
	g := newFakeGateway()
	g.failCreate = true
	n := &recordingNotifier{}
	p := newAuthorPanel(t, g, &fakeEditor{}, n)

	p.SetSelection("This sentence is unclear.")
	_, err := p.Submit(context.Background(), "This sentence lacks clarity.", TypeSuggestion)
	if !IsPersistence(err) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if !errors.Is(err, errGatewayDown) {
		t.Errorf("expected wrapped gateway error, got %v", err)
	}
	if len(p.Entries()) != 0 {
		t.Errorf("expected empty list, got %d entries", len(p.Entries()))
	}
	if p.Input() != "This sentence lacks clarity." {
		t.Errorf("expected input retained, got %q", p.Input())
	}
	if p.Selection() != "This sentence is unclear." {
		t.Errorf("expected selection retained, got %q", p.Selection())
	}
	if lv := n.levels(); len(lv) != 1 || lv[0] != NoticeError {
		t.Errorf("expected one error notice, got %v", lv)
	}
}

// Accepting an AI comment re-attributes it to the mentor.
func TestAuthorPanel_AcceptComment(t *testing.T) {
	g := newFakeGateway(item("ai-1", "para 2", "Consider shortening", TypeComment, Automated(), 1))
	e := &fakeEditor{}
	p := newAuthorPanel(t, g, e, nil)
	if err := p.Select("ai-1"); err != nil {
		t.Fatalf("Select: %v", err)
	}

	adopted, err := p.Accept(context.Background(), "ai-1")
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}

	stored := g.stored()
	if len(stored) != 1 {
		t.Fatalf("expected exactly one stored item, got %d", len(stored))
	}
	s := stored[0]
	if s.Author.IsAutomated() || s.Author.ID() != "m-42" {
		t.Errorf("expected author m-42, got %v", s.Author)
	}
	if s.Text != "Consider shortening" || s.SelectedText != "para 2" || s.Type != TypeComment {
		t.Errorf("content changed during adoption: %+v", s)
	}
	if s.ID != adopted.ID {
		t.Errorf("returned item %s does not match stored %s", adopted.ID, s.ID)
	}
	items := p.Items()
	if len(items) != 1 || items[0].Author.IsAutomated() {
		t.Errorf("expected only the adopted item locally, got %v", items)
	}
	if p.ActiveID() != nil || p.Selection() != "" {
		t.Error("expected active item and selection cleared")
	}
	if e.count() != 0 {
		t.Errorf("comments must not touch the document, got %d substitutions", e.count())
	}
}

func TestAuthorPanel_AcceptSuggestionSubstitutesOnce(t *testing.T) {
	g := newFakeGateway(item("ai-1", "teh", "the", TypeSuggestion, Automated(), 1))
	e := &fakeEditor{}
	p := newAuthorPanel(t, g, e, nil)

	adopted, err := p.Accept(context.Background(), "ai-1")
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if adopted.Type != TypeSuggestion || adopted.Author.IsAutomated() {
		t.Errorf("unexpected adopted item %+v", adopted)
	}
	if len(e.calls) != 1 || e.calls[0] != (substitution{"teh", "the"}) {
		t.Errorf("expected one substitution (teh, the), got %v", e.calls)
	}
}

func TestAuthorPanel_AcceptRollsBackOnDeleteFailure(t *testing.T) {
	g := newFakeGateway(item("ai-1", "teh", "the", TypeSuggestion, Automated(), 1))
	g.failDelete["ai-1"] = true
	e := &fakeEditor{}
	n := &recordingNotifier{}
	p := newAuthorPanel(t, g, e, n)

	if _, err := p.Accept(context.Background(), "ai-1"); !IsPersistence(err) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	stored := g.stored()
	if len(stored) != 1 || stored[0].ID != "ai-1" {
		t.Errorf("expected the store to hold only the AI item, got %v", stored)
	}
	if items := p.Items(); len(items) != 1 || items[0].ID != "ai-1" {
		t.Errorf("expected local state unchanged, got %v", items)
	}
	if e.count() != 0 {
		t.Error("editor must not be touched when accept fails")
	}
	if len(n.levels()) != 1 {
		t.Errorf("expected one notice, got %v", n.levels())
	}
}

func TestAuthorPanel_RejectDoesNotTouchDocument(t *testing.T) {
	g := newFakeGateway(item("ai-1", "teh", "the", TypeSuggestion, Automated(), 1))
	e := &fakeEditor{}
	p := newAuthorPanel(t, g, e, nil)

	if err := p.Reject(context.Background(), "ai-1"); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if len(p.Items()) != 0 || len(g.stored()) != 0 {
		t.Error("expected the AI item removed")
	}
	if e.count() != 0 {
		t.Errorf("expected zero substitutions, got %d", e.count())
	}
}

func TestAuthorPanel_ActionsByAuthor(t *testing.T) {
	g := newFakeGateway(
		item("1", "a", "mine", TypeComment, Human("m-42"), 1),
		item("2", "b", "ai", TypeComment, Automated(), 2),
	)
	p := newAuthorPanel(t, g, &fakeEditor{}, nil)
	ctx := context.Background()

	if _, err := p.Accept(ctx, "1"); !IsValidation(err) {
		t.Errorf("accept on human item: expected ValidationError, got %v", err)
	}
	if err := p.Reject(ctx, "1"); !IsValidation(err) {
		t.Errorf("reject on human item: expected ValidationError, got %v", err)
	}
	if err := p.Remove(ctx, "2"); !IsValidation(err) {
		t.Errorf("remove on AI item: expected ValidationError, got %v", err)
	}
	if err := p.Remove(ctx, "1"); err != nil {
		t.Errorf("remove on own item: %v", err)
	}
	if g.deletes != 1 {
		t.Errorf("expected exactly one gateway delete, got %d", g.deletes)
	}
}

func TestAuthorPanel_StaleReference(t *testing.T) {
	g := newFakeGateway()
	n := &recordingNotifier{}
	p := newAuthorPanel(t, g, &fakeEditor{}, n)

	err := p.Remove(context.Background(), "gone")
	if !IsStaleReference(err) {
		t.Fatalf("expected StaleReferenceError, got %v", err)
	}
	if lv := n.levels(); len(lv) != 1 || lv[0] != NoticeInfo {
		t.Errorf("expected one info notice, got %v", lv)
	}
	if g.deletes != 0 {
		t.Error("stale reference must not reach the gateway")
	}
}

func TestAuthorPanel_ClosedDiscardsResult(t *testing.T) {
	g := newFakeGateway()
	p := newAuthorPanel(t, g, &fakeEditor{}, nil)
	p.SetSelection("span")
	p.Close()

	if _, err := p.Submit(context.Background(), "text", TypeComment); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if g.creates != 0 {
		t.Error("closed panel must not call the gateway")
	}
}

func TestAuthorPanel_Highlights(t *testing.T) {
	g := newFakeGateway(item("1", "alpha", "x", TypeComment, Human("m-42"), 1))
	p := newAuthorPanel(t, g, &fakeEditor{}, nil)
	p.SetSelection("beta")

	specs := p.Highlights()
	if len(specs) != 2 || specs[1].StyleClass != StyleSelection {
		t.Errorf("expected comment + selection specs, got %v", specs)
	}
	if err := p.Select("1"); err != nil {
		t.Fatal(err)
	}
	specs = p.Highlights()
	if len(specs) != 1 || specs[0].StyleClass != StyleActive || p.Selection() != "alpha" {
		t.Errorf("expected one active spec mirroring selection, got %v / %q", specs, p.Selection())
	}
}

// A reload that lands while a create is in flight already lists the new row;
// the confirmed item must not appear a second time.
func TestAuthorPanel_ReloadDuringCreateKeepsOneCopy(t *testing.T) {
	tests := []struct {
		name string
		seed []Item
		act  func(ctx context.Context, p *AuthorPanel) (Item, error)
	}{
		{
			name: "submit",
			act: func(ctx context.Context, p *AuthorPanel) (Item, error) {
				p.SetSelection("opening line")
				return p.Submit(ctx, "start with the result", TypeSuggestion)
			},
		},
		{
			name: "accept",
			seed: []Item{item("ai-1", "opening line", "start with the result", TypeSuggestion, Automated(), 1)},
			act: func(ctx context.Context, p *AuthorPanel) (Item, error) {
				return p.Accept(ctx, "ai-1")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			g := newFakeGateway(tt.seed...)
			p := newAuthorPanel(t, g, &fakeEditor{}, nil)
			g.afterCreate = func() {
				if err := p.Load(ctx); err != nil {
					t.Errorf("Load during create: %v", err)
				}
			}

			got, err := tt.act(ctx, p)
			if err != nil {
				t.Fatalf("%s: %v", tt.name, err)
			}
			items := p.Items()
			if len(items) != 1 || items[0].ID != got.ID {
				t.Fatalf("expected only %s, got %v", got.ID, items)
			}
			for _, e := range p.Entries() {
				if !e.Confirmed() {
					t.Error("no pending entry should remain")
				}
			}
			if err := p.Remove(ctx, got.ID); err != nil {
				t.Errorf("Remove: %v", err)
			}
			if len(p.Items()) != 0 || len(g.stored()) != 0 {
				t.Errorf("expected nothing left, got %v / %v", p.Items(), g.stored())
			}
		})
	}
}

func TestAuthorPanel_DeleteFailureKeepsState(t *testing.T) {
	tests := []struct {
		name string
		id   ID
		act  func(ctx context.Context, p *AuthorPanel, id ID) error
	}{
		{"remove own item", "c1", func(ctx context.Context, p *AuthorPanel, id ID) error { return p.Remove(ctx, id) }},
		{"reject automated item", "ai-1", func(ctx context.Context, p *AuthorPanel, id ID) error { return p.Reject(ctx, id) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newFakeGateway(
				item("c1", "thesis", "tighten this", TypeComment, Human("m-42"), 1),
				item("ai-1", "teh", "the", TypeSuggestion, Automated(), 2),
			)
			g.failDelete[tt.id] = true
			e := &fakeEditor{}
			n := &recordingNotifier{}
			p := newAuthorPanel(t, g, e, n)
			if err := p.Select(tt.id); err != nil {
				t.Fatal(err)
			}

			err := tt.act(context.Background(), p, tt.id)
			if !IsPersistence(err) || !errors.Is(err, errGatewayDown) {
				t.Fatalf("expected PersistenceError, got %v", err)
			}
			if len(p.Items()) != 2 {
				t.Errorf("expected both items kept, got %v", p.Items())
			}
			if active := p.ActiveID(); active == nil || *active != tt.id {
				t.Errorf("expected %s to stay active, got %v", tt.id, active)
			}
			if lv := n.levels(); len(lv) != 1 || lv[0] != NoticeError {
				t.Errorf("expected one error notice, got %v", lv)
			}
			if e.count() != 0 {
				t.Errorf("expected no substitutions, got %d", e.count())
			}

			// the item is released for a retry
			if err := tt.act(context.Background(), p, tt.id); !IsPersistence(err) {
				t.Errorf("retry: expected PersistenceError, got %v", err)
			}
		})
	}
}

func TestAuthorPanel_AcceptReportsFailedUndo(t *testing.T) {
	g := newFakeGateway(item("ai-1", "teh", "the", TypeSuggestion, Automated(), 1))
	g.failDelete["ai-1"] = true
	g.failDelete["fb-1"] = true
	p := newAuthorPanel(t, g, &fakeEditor{}, nil)

	_, err := p.Accept(context.Background(), "ai-1")
	if !IsPersistence(err) || !errors.Is(err, errGatewayDown) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if !strings.Contains(err.Error(), "undo create fb-1") {
		t.Errorf("expected the orphaned copy in the error, got %q", err.Error())
	}
	if items := p.Items(); len(items) != 1 || items[0].ID != "ai-1" {
		t.Errorf("expected local state unchanged, got %v", items)
	}
}

func TestAuthorPanel_SecondActionWhileBusy(t *testing.T) {
	ctx := context.Background()
	g := newFakeGateway(item("ai-1", "teh", "the", TypeSuggestion, Automated(), 1))
	n := &recordingNotifier{}
	p := newAuthorPanel(t, g, &fakeEditor{}, n)

	var nested error
	g.beforeDelete = func(id ID) { nested = p.Reject(ctx, id) }

	if err := p.Reject(ctx, "ai-1"); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if !IsValidation(nested) {
		t.Errorf("expected ValidationError for the overlapping reject, got %v", nested)
	}
	if g.deletes != 1 {
		t.Errorf("expected one gateway delete, got %d", g.deletes)
	}
	if len(n.levels()) != 0 {
		t.Errorf("validation must not raise a notice, got %v", n.levels())
	}
}
