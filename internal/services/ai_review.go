package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mentorhub/backend/internal/feedback"
	"github.com/mentorhub/backend/internal/models"
	"github.com/mentorhub/backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrRunNotFound  = errors.New("ai review run not found")
	ErrRunInFlight  = errors.New("an ai review is already running for this version")
	ErrReviewDenied = errors.New("only mentors can request automated feedback")
)

// DocumentReviewer produces automated drafts for a document text.
type DocumentReviewer interface {
	ReviewDocument(ctx context.Context, req *DocumentReviewRequest) (*DocumentReviewResult, error)
}

// AIReviewService records automated review runs and turns their results into
// automated feedback items.
type AIReviewService struct {
	db       *gorm.DB
	docs     *DocumentService
	reviewer DocumentReviewer
	gateway  feedback.Gateway
	queue    TaskQueue
	hub      *RealtimeHub
	now      func() time.Time
}

func NewAIReviewService(db *gorm.DB, reviewer DocumentReviewer, gateway feedback.Gateway, queue TaskQueue, hub *RealtimeHub) *AIReviewService {
	return &AIReviewService{
		db:       db,
		docs:     NewDocumentService(db),
		reviewer: reviewer,
		gateway:  gateway,
		queue:    queue,
		hub:      hub,
		now:      time.Now,
	}
}

// Request creates a pending run for a version and queues it.
func (s *AIReviewService) Request(ctx context.Context, versionID uint, user *models.User) (*models.AIReviewRun, error) {
	if !user.CanReview() {
		return nil, ErrReviewDenied
	}
	if _, _, err := s.docs.GetVersion(ctx, versionID, user); err != nil {
		return nil, err
	}

	var inflight int64
	err := s.db.WithContext(ctx).Model(&models.AIReviewRun{}).
		Where("document_version_id = ? AND status IN ?", versionID, []string{models.RunStatusPending, models.RunStatusRunning}).
		Count(&inflight).Error
	if err != nil {
		return nil, fmt.Errorf("check running reviews: %w", err)
	}
	if inflight > 0 {
		return nil, ErrRunInFlight
	}

	run := models.AIReviewRun{
		DocumentVersionID: versionID,
		RequestedBy:       user.ID,
		Status:            models.RunStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(&run).Error; err != nil {
		return nil, err
	}

	task := &AIReviewTask{RunID: run.ID, DocumentVersionID: versionID, RequestedBy: user.ID}
	if err := s.queue.Enqueue(task); err != nil {
		s.finish(&run, nil, fmt.Errorf("enqueue: %w", err))
		return &run, err
	}
	s.publishRun(&run)
	return &run, nil
}

// GetRun returns a run if the user can see its document.
func (s *AIReviewService) GetRun(ctx context.Context, id uint, user *models.User) (*models.AIReviewRun, error) {
	var run models.AIReviewRun
	err := s.db.WithContext(ctx).First(&run, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	if _, _, err := s.docs.GetVersion(ctx, run.DocumentVersionID, user); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns the runs of a version, newest first.
func (s *AIReviewService) ListRuns(ctx context.Context, versionID uint, user *models.User) ([]models.AIReviewRun, error) {
	if _, _, err := s.docs.GetVersion(ctx, versionID, user); err != nil {
		return nil, err
	}
	var runs []models.AIReviewRun
	err := s.db.WithContext(ctx).Where("document_version_id = ?", versionID).Order("id DESC").Limit(20).Find(&runs).Error
	return runs, err
}

// Process executes a queued run. Runs that already finished are skipped so a
// redelivered task does not duplicate feedback.
func (s *AIReviewService) Process(ctx context.Context, task *AIReviewTask) error {
	var run models.AIReviewRun
	if err := s.db.WithContext(ctx).First(&run, task.RunID).Error; err != nil {
		return fmt.Errorf("load run %d: %w", task.RunID, err)
	}
	if run.Status == models.RunStatusCompleted || run.Status == models.RunStatusFailed {
		logger.Infof("[AIReview] Run %d already %s, skipping", run.ID, run.Status)
		return nil
	}

	started := s.now()
	run.Status = models.RunStatusRunning
	run.StartedAt = &started
	if err := s.db.WithContext(ctx).Model(&run).Updates(map[string]interface{}{
		"status":     run.Status,
		"started_at": started,
	}).Error; err != nil {
		return err
	}
	s.publishRun(&run)

	var version models.DocumentVersion
	if err := s.db.WithContext(ctx).First(&version, run.DocumentVersionID).Error; err != nil {
		s.finish(&run, nil, fmt.Errorf("load version: %w", err))
		return nil
	}

	result, err := s.reviewer.ReviewDocument(ctx, &DocumentReviewRequest{
		DocumentVersionID: version.ID,
		Content:           version.Content,
		RunID:             &run.ID,
	})
	if err != nil {
		s.finish(&run, nil, err)
		return err
	}

	if err := s.replaceAutomated(ctx, version.ID, result); err != nil {
		s.finish(&run, result, err)
		return err
	}
	s.finish(&run, result, nil)
	return nil
}

// replaceAutomated drops the version's untouched automated items and stores the new drafts.
func (s *AIReviewService) replaceAutomated(ctx context.Context, versionID uint, result *DocumentReviewResult) error {
	ai := feedback.Automated()
	existing, err := s.gateway.List(ctx, feedback.Filter{DocumentVersionID: FormatVersionID(versionID), Author: &ai})
	if err != nil {
		return err
	}
	for _, item := range existing {
		if item.Status != feedback.StatusActive {
			continue
		}
		if err := s.gateway.Delete(ctx, item.ID); err != nil && !errors.Is(err, ErrFeedbackNotFound) {
			return err
		}
	}
	for _, draft := range result.Drafts {
		if _, err := s.gateway.Create(ctx, draft); err != nil {
			return err
		}
	}
	return nil
}

func (s *AIReviewService) finish(run *models.AIReviewRun, result *DocumentReviewResult, runErr error) {
	finished := s.now()
	updates := map[string]interface{}{"finished_at": finished}
	run.FinishedAt = &finished

	if result != nil {
		run.Provider, run.Model = result.Provider, result.Model
		run.ItemCount, run.DroppedCount = len(result.Drafts), result.Dropped
		updates["provider"] = run.Provider
		updates["model"] = run.Model
		updates["item_count"] = run.ItemCount
		updates["dropped_count"] = run.DroppedCount
	}
	if runErr != nil {
		run.Status = models.RunStatusFailed
		run.ErrorMessage = runErr.Error()
		updates["error_message"] = run.ErrorMessage
		logger.Warnf("[AIReview] Run %d failed: %v", run.ID, runErr)
	} else {
		run.Status = models.RunStatusCompleted
		logger.Infof("[AIReview] Run %d completed with %d items", run.ID, run.ItemCount)
	}
	updates["status"] = run.Status

	if err := s.db.Model(run).Updates(updates).Error; err != nil {
		logger.Errorf("[AIReview] Failed to update run %d: %v", run.ID, err)
	}

	aiReviewRunsTotal.WithLabelValues(run.Status, run.Provider).Inc()
	if run.StartedAt != nil {
		aiReviewDuration.Observe(finished.Sub(*run.StartedAt).Seconds())
	}
	s.publishRun(run)
}

func (s *AIReviewService) publishRun(run *models.AIReviewRun) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(FeedbackEvent{
		Kind:              EventAIReviewRun,
		DocumentVersionID: FormatVersionID(run.DocumentVersionID),
		RunID:             run.ID,
		Status:            run.Status,
		Error:             run.ErrorMessage,
	})
}

// RecoverStale fails runs left running by a crashed process.
func (s *AIReviewService) RecoverStale(olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan)
	res := s.db.Model(&models.AIReviewRun{}).
		Where("status IN ? AND updated_at < ?", []string{models.RunStatusPending, models.RunStatusRunning}, cutoff).
		Updates(map[string]interface{}{
			"status":        models.RunStatusFailed,
			"error_message": "interrupted",
			"finished_at":   s.now(),
		})
	return res.RowsAffected, res.Error
}
