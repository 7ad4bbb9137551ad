package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mentorhub/backend/internal/feedback"
	"github.com/mentorhub/backend/internal/models"
	"gorm.io/gorm"
)

type fakeReviewer struct {
	result *DocumentReviewResult
	err    error
	calls  int
}

func (r *fakeReviewer) ReviewDocument(ctx context.Context, req *DocumentReviewRequest) (*DocumentReviewResult, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

type captureQueue struct {
	tasks []*AIReviewTask
	err   error
}

func (q *captureQueue) Enqueue(task *AIReviewTask) error {
	q.tasks = append(q.tasks, task)
	return q.err
}
func (q *captureQueue) IsAsync() bool { return true }
func (q *captureQueue) Close() error  { return nil }

type aiReviewFixture struct {
	db       *gorm.DB
	svc      *AIReviewService
	store    *FeedbackStore
	reviewer *fakeReviewer
	queue    *captureQueue
	mentor   *models.User
	student  *models.User
	version  *models.DocumentVersion
}

func newAIReviewFixture(t *testing.T) *aiReviewFixture {
	t.Helper()
	db := newTestDB(t)
	student := createUser(t, db, "stu", models.RoleStudent)
	mentor := createUser(t, db, "mia", models.RoleMentor)
	_, version, err := NewDocumentService(db).Create(context.Background(),
		&CreateDocumentRequest{Title: "Essay", Content: "I am very happy to be here.", MentorID: &mentor.ID}, student)
	if err != nil {
		t.Fatal(err)
	}

	vid := FormatVersionID(version.ID)
	reviewer := &fakeReviewer{result: &DocumentReviewResult{
		Drafts: []feedback.Draft{
			{Text: "delighted", SelectedText: "very happy", Type: feedback.TypeSuggestion, Author: feedback.Automated(), DocumentVersionID: vid},
		},
		Dropped:  2,
		Provider: "openai",
		Model:    "gpt-4o-mini",
	}}
	queue := &captureQueue{}
	store := NewFeedbackStore(db, nil)
	return &aiReviewFixture{
		db:       db,
		svc:      NewAIReviewService(db, reviewer, store, queue, NewRealtimeHub()),
		store:    store,
		reviewer: reviewer,
		queue:    queue,
		mentor:   mentor,
		student:  student,
		version:  version,
	}
}

func TestAIReviewService_RequestAndProcess(t *testing.T) {
	f := newAIReviewFixture(t)
	ctx := context.Background()

	run, err := f.svc.Request(ctx, f.version.ID, f.mentor)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if run.Status != models.RunStatusPending || len(f.queue.tasks) != 1 {
		t.Fatalf("expected pending run and one task, got %s / %d", run.Status, len(f.queue.tasks))
	}

	if _, err := f.svc.Request(ctx, f.version.ID, f.mentor); !errors.Is(err, ErrRunInFlight) {
		t.Errorf("expected ErrRunInFlight, got %v", err)
	}

	if err := f.svc.Process(ctx, f.queue.tasks[0]); err != nil {
		t.Fatalf("process: %v", err)
	}
	got, err := f.svc.GetRun(ctx, run.ID, f.mentor)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.RunStatusCompleted || got.ItemCount != 1 || got.DroppedCount != 2 || got.Model != "gpt-4o-mini" {
		t.Errorf("unexpected run %+v", got)
	}
	if got.StartedAt == nil || got.FinishedAt == nil {
		t.Error("expected start and finish times")
	}

	items, err := f.store.List(ctx, feedback.Filter{DocumentVersionID: FormatVersionID(f.version.ID)})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || !items[0].Author.IsAutomated() {
		t.Errorf("expected one automated item, got %+v", items)
	}

	// redelivery is a no-op
	if err := f.svc.Process(ctx, f.queue.tasks[0]); err != nil {
		t.Fatal(err)
	}
	if f.reviewer.calls != 1 {
		t.Errorf("expected reviewer called once, got %d", f.reviewer.calls)
	}
}

func TestAIReviewService_RerunReplacesActiveAutomatedItems(t *testing.T) {
	f := newAIReviewFixture(t)
	ctx := context.Background()
	vid := FormatVersionID(f.version.ID)

	first, _ := f.svc.Request(ctx, f.version.ID, f.mentor)
	if err := f.svc.Process(ctx, &AIReviewTask{RunID: first.ID}); err != nil {
		t.Fatal(err)
	}
	second, err := f.svc.Request(ctx, f.version.ID, f.mentor)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Process(ctx, &AIReviewTask{RunID: second.ID}); err != nil {
		t.Fatal(err)
	}

	ai := feedback.Automated()
	items, _ := f.store.List(ctx, feedback.Filter{DocumentVersionID: vid, Author: &ai})
	if len(items) != 1 {
		t.Errorf("expected automated items replaced, got %d", len(items))
	}
}

func TestAIReviewService_ReviewerFailure(t *testing.T) {
	f := newAIReviewFixture(t)
	f.reviewer.err = errors.New("all LLMs failed")
	ctx := context.Background()

	run, _ := f.svc.Request(ctx, f.version.ID, f.mentor)
	if err := f.svc.Process(ctx, &AIReviewTask{RunID: run.ID}); err == nil {
		t.Error("expected process error")
	}
	got, _ := f.svc.GetRun(ctx, run.ID, f.mentor)
	if got.Status != models.RunStatusFailed || got.ErrorMessage == "" {
		t.Errorf("expected failed run with message, got %+v", got)
	}
}

func TestAIReviewService_RequestGuards(t *testing.T) {
	f := newAIReviewFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Request(ctx, f.version.ID, f.student); !errors.Is(err, ErrReviewDenied) {
		t.Errorf("expected ErrReviewDenied for student, got %v", err)
	}
	if _, err := f.svc.Request(ctx, 9999, f.mentor); !errors.Is(err, ErrVersionNotFound) {
		t.Errorf("expected ErrVersionNotFound, got %v", err)
	}

	f.queue.err = errors.New("redis down")
	run, err := f.svc.Request(ctx, f.version.ID, f.mentor)
	if err == nil {
		t.Fatal("expected enqueue error")
	}
	if run.Status != models.RunStatusFailed {
		t.Errorf("expected failed run after enqueue error, got %s", run.Status)
	}
}

func TestAIReviewService_RecoverStale(t *testing.T) {
	f := newAIReviewFixture(t)
	ctx := context.Background()

	run, _ := f.svc.Request(ctx, f.version.ID, f.mentor)
	f.svc.now = func() time.Time { return time.Now().Add(time.Hour) }

	n, err := f.svc.RecoverStale(30 * time.Minute)
	if err != nil || n != 1 {
		t.Fatalf("expected one recovered run, got %d err=%v", n, err)
	}
	got, _ := f.svc.GetRun(ctx, run.ID, f.mentor)
	if got.Status != models.RunStatusFailed {
		t.Errorf("expected failed, got %s", got.Status)
	}
}

func TestAIReviewService_RequestFailsWhenRunLookupFails(t *testing.T) {
	f := newAIReviewFixture(t)
	errLookup := errors.New("ai_review_runs unavailable")
	f.db.Callback().Query().Before("gorm:query").Register("test:fail_run_lookup", func(tx *gorm.DB) {
		if tx.Statement.Table == "ai_review_runs" {
			tx.AddError(errLookup)
		}
	})

	run, err := f.svc.Request(context.Background(), f.version.ID, f.mentor)
	if !errors.Is(err, errLookup) {
		t.Fatalf("expected lookup error, got %v", err)
	}
	if run != nil || len(f.queue.tasks) != 0 {
		t.Errorf("expected no run queued, got %v / %d tasks", run, len(f.queue.tasks))
	}
}
