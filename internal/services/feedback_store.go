package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mentorhub/backend/internal/feedback"
	"github.com/mentorhub/backend/internal/models"
	"gorm.io/gorm"
)

var ErrFeedbackNotFound = errors.New("feedback not found")

// FeedbackStore is the gorm implementation of feedback.Gateway.
// Every successful mutation is published on the realtime hub.
type FeedbackStore struct {
	db  *gorm.DB
	hub *RealtimeHub
	now func() time.Time

	mu        sync.RWMutex
	onCreated []func(feedback.Item)
}

var _ feedback.Gateway = (*FeedbackStore)(nil)

// NewFeedbackStore creates a store. hub may be nil.
func NewFeedbackStore(db *gorm.DB, hub *RealtimeHub) *FeedbackStore {
	return &FeedbackStore{db: db, hub: hub, now: time.Now}
}

// OnCreated registers fn to run after an item is stored.
func (s *FeedbackStore) OnCreated(fn func(feedback.Item)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCreated = append(s.onCreated, fn)
}

func parseVersionID(id string) (uint, error) {
	v, err := strconv.ParseUint(id, 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("invalid document version id %q", id)
	}
	return uint(v), nil
}

// FormatVersionID is the string form of a document version id used by the feedback package.
func FormatVersionID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func toItem(row models.Feedback) feedback.Item {
	return feedback.Item{
		ID:                feedback.ID(row.ID),
		Text:              row.Text,
		SelectedText:      row.SelectedText,
		Type:              feedback.Type(row.Type),
		Timestamp:         row.Timestamp,
		Author:            feedback.ParseAuthor(row.AuthorID),
		DocumentVersionID: FormatVersionID(row.DocumentVersionID),
		Status:            feedback.Status(row.Status),
	}
}

func (s *FeedbackStore) List(ctx context.Context, filter feedback.Filter) ([]feedback.Item, error) {
	versionID, err := parseVersionID(filter.DocumentVersionID)
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Where("document_version_id = ?", versionID)
	if filter.Author != nil {
		query = query.Where("author_id = ?", filter.Author.ID())
	}

	var rows []models.Feedback
	if err := query.Order("timestamp DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}

	items := make([]feedback.Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, toItem(row))
	}
	return items, nil
}

// Get loads a single item.
func (s *FeedbackStore) Get(ctx context.Context, id feedback.ID) (feedback.Item, error) {
	var row models.Feedback
	err := s.db.WithContext(ctx).Where("id = ?", string(id)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return feedback.Item{}, ErrFeedbackNotFound
	}
	if err != nil {
		return feedback.Item{}, err
	}
	return toItem(row), nil
}

func (s *FeedbackStore) Create(ctx context.Context, draft feedback.Draft) (feedback.ID, error) {
	if err := draft.Validate(); err != nil {
		return "", err
	}
	versionID, err := parseVersionID(draft.DocumentVersionID)
	if err != nil {
		return "", err
	}

	ts := draft.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	row := models.Feedback{
		ID:                uuid.NewString(),
		DocumentVersionID: versionID,
		AuthorID:          draft.Author.ID(),
		Type:              string(draft.Type),
		Status:            string(feedback.StatusActive),
		SelectedText:      draft.SelectedText,
		Text:              draft.Text,
		Timestamp:         ts,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("create feedback: %w", err)
	}

	item := toItem(row)
	s.publish(FeedbackEvent{
		Kind:              EventFeedbackCreated,
		DocumentVersionID: item.DocumentVersionID,
		FeedbackID:        string(item.ID),
		Status:            string(item.Status),
		Item:              &item,
	})
	feedbackEventsTotal.WithLabelValues(EventFeedbackCreated).Inc()

	s.mu.RLock()
	hooks := append([]func(feedback.Item){}, s.onCreated...)
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn(item)
	}
	return item.ID, nil
}

func (s *FeedbackStore) UpdateStatus(ctx context.Context, id feedback.ID, status feedback.Status) error {
	if !status.Valid() {
		return &feedback.ValidationError{Reason: "unknown status " + string(status)}
	}

	var row models.Feedback
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", string(id)).First(&row).Error; err != nil {
			return err
		}
		return tx.Model(&row).Update("status", string(status)).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrFeedbackNotFound
	}
	if err != nil {
		return fmt.Errorf("update feedback status: %w", err)
	}

	s.publish(FeedbackEvent{
		Kind:              EventFeedbackStatus,
		DocumentVersionID: FormatVersionID(row.DocumentVersionID),
		FeedbackID:        row.ID,
		Status:            string(status),
	})
	feedbackEventsTotal.WithLabelValues(EventFeedbackStatus).Inc()
	return nil
}

func (s *FeedbackStore) Delete(ctx context.Context, id feedback.ID) error {
	var row models.Feedback
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", string(id)).First(&row).Error; err != nil {
			return err
		}
		return tx.Delete(&row).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrFeedbackNotFound
	}
	if err != nil {
		return fmt.Errorf("delete feedback: %w", err)
	}

	s.publish(FeedbackEvent{
		Kind:              EventFeedbackDeleted,
		DocumentVersionID: FormatVersionID(row.DocumentVersionID),
		FeedbackID:        row.ID,
	})
	feedbackEventsTotal.WithLabelValues(EventFeedbackDeleted).Inc()
	return nil
}

// CountActive returns the number of active items of a version, split by author kind.
func (s *FeedbackStore) CountActive(ctx context.Context, versionID uint) (human, automated int64, err error) {
	base := s.db.WithContext(ctx).Model(&models.Feedback{}).
		Where("document_version_id = ? AND status = ?", versionID, string(feedback.StatusActive)).
		Session(&gorm.Session{})
	if err = base.Where("author_id <> ?", feedback.AutomatedAuthorID).Count(&human).Error; err != nil {
		return
	}
	err = base.Where("author_id = ?", feedback.AutomatedAuthorID).Count(&automated).Error
	return
}

func (s *FeedbackStore) publish(event FeedbackEvent) {
	if s.hub != nil {
		s.hub.Publish(event)
	}
}
