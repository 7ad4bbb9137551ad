package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mentorhub/backend/internal/feedback"
	"github.com/mentorhub/backend/internal/models"
	"github.com/mentorhub/backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const digestJob = "digest"

var ErrDigestNotFound = errors.New("digest not found")

// DigestService builds and mails the daily feedback summary.
type DigestService struct {
	db       *gorm.DB
	configs  *SystemConfigService
	email    *EmailService
	holidays *HolidayService
	locks    *JobLocks
	now      func() time.Time
}

func NewDigestService(db *gorm.DB, email *EmailService, holidays *HolidayService, locks *JobLocks) *DigestService {
	return &DigestService{
		db:       db,
		configs:  NewSystemConfigService(db),
		email:    email,
		holidays: holidays,
		locks:    locks,
		now:      time.Now,
	}
}

// Schedule (re)installs the digest job from the current settings.
func (s *DigestService) Schedule(sched *Scheduler) error {
	cfg := s.configs.GetDigestConfig()
	if !cfg.Enabled {
		sched.Unschedule(digestJob)
		return nil
	}
	spec, err := digestCron(cfg.Time)
	if err != nil {
		return err
	}
	return sched.Schedule(digestJob, spec, func() {
		if _, err := s.Run(context.Background()); err != nil {
			logger.Errorf("[Digest] Run failed: %v", err)
		}
	})
}

// digestCron turns "HH:MM" into a daily cron spec.
func digestCron(at string) (string, error) {
	parts := strings.Split(strings.TrimSpace(at), ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid digest time %q", at)
	}
	hour, err1 := strconv.Atoi(parts[0])
	minute, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid digest time %q", at)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// Run generates and sends today's digests unless today is off or another
// instance already claimed the run. It returns the number of digests sent.
func (s *DigestService) Run(ctx context.Context) (int, error) {
	cfg := s.configs.GetDigestConfig()
	if !cfg.Enabled {
		return 0, nil
	}
	now := s.now()
	if !s.holidays.IsWorkday(now, cfg.Country...) {
		logger.Infof("[Digest] Skipping %s, not a workday", now.Format("2006-01-02"))
		return 0, nil
	}
	if s.locks != nil {
		ok, err := s.locks.Claim(digestJob, now.Format("2006-01-02"), 12*time.Hour)
		if err != nil {
			return 0, err
		}
		if !ok {
			logger.Infof("[Digest] Run already claimed by another instance")
			return 0, nil
		}
	}

	digests, err := s.Generate(ctx, now)
	if err != nil {
		return 0, err
	}
	sent := 0
	for i := range digests {
		if s.Send(ctx, &digests[i]) == nil {
			sent++
		}
	}
	logger.Infof("[Digest] Generated %d digests, sent %d", len(digests), sent)
	return sent, nil
}

type digestCount struct {
	UserID      uint
	Total       int
	Suggestions int
	AIGenerated int
}

// Generate stores the digests for the day containing at. Users with no
// activity get none; digests already stored for that day are kept.
func (s *DigestService) Generate(ctx context.Context, at time.Time) ([]models.Digest, error) {
	day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, at.Location())
	end := day.AddDate(0, 0, 1)
	db := s.db.WithContext(ctx)

	// feedback received on owned documents
	var received []digestCount
	err := db.Table("feedbacks").
		Select("documents.owner_id AS user_id, COUNT(*) AS total, "+
			"SUM(CASE WHEN feedbacks.type = ? THEN 1 ELSE 0 END) AS suggestions, "+
			"SUM(CASE WHEN feedbacks.author_id = ? THEN 1 ELSE 0 END) AS ai_generated",
			string(feedback.TypeSuggestion), feedback.AutomatedAuthorID).
		Joins("JOIN document_versions ON document_versions.id = feedbacks.document_version_id").
		Joins("JOIN documents ON documents.id = document_versions.document_id AND documents.deleted_at IS NULL").
		Where("feedbacks.created_at >= ? AND feedbacks.created_at < ?", day, end).
		Group("documents.owner_id").
		Scan(&received).Error
	if err != nil {
		return nil, err
	}

	// a reviewer's feedback that recipients resolved
	var resolved []struct {
		AuthorID string
		Total    int
	}
	err = db.Model(&models.Feedback{}).
		Select("author_id, COUNT(*) AS total").
		Where("status <> ? AND author_id <> ?", string(feedback.StatusActive), feedback.AutomatedAuthorID).
		Where("updated_at >= ? AND updated_at < ?", day, end).
		Group("author_id").
		Scan(&resolved).Error
	if err != nil {
		return nil, err
	}

	byUser := make(map[uint]*models.Digest)
	get := func(id uint) *models.Digest {
		d, ok := byUser[id]
		if !ok {
			d = &models.Digest{DigestDate: day, UserID: id}
			byUser[id] = d
		}
		return d
	}
	for _, c := range received {
		d := get(c.UserID)
		d.NewFeedback = c.Total
		d.Suggestions = c.Suggestions
		d.Comments = c.Total - c.Suggestions
		d.AIGenerated = c.AIGenerated
	}
	for _, r := range resolved {
		id, err := strconv.ParseUint(r.AuthorID, 10, 64)
		if err != nil {
			continue
		}
		get(uint(id)).Resolved = r.Total
	}

	out := make([]models.Digest, 0, len(byUser))
	for _, d := range byUser {
		d.Body = buildDigestBody(d)
		res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(d)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			out = append(out, *d)
		}
	}
	return out, nil
}

func buildDigestBody(d *models.Digest) string {
	var sb strings.Builder
	sb.WriteString(`<html><body style="font-family: Arial, sans-serif;">`)
	fmt.Fprintf(&sb, "<h2>Your feedback for %s</h2><ul>", d.DigestDate.Format("Jan 2, 2006"))
	if d.NewFeedback > 0 {
		fmt.Fprintf(&sb, "<li>%d new items on your documents: %d suggestions, %d comments</li>", d.NewFeedback, d.Suggestions, d.Comments)
		if d.AIGenerated > 0 {
			fmt.Fprintf(&sb, "<li>%d of them were generated automatically</li>", d.AIGenerated)
		}
	}
	if d.Resolved > 0 {
		fmt.Fprintf(&sb, "<li>%d of your items were applied or acknowledged</li>", d.Resolved)
	}
	sb.WriteString(`</ul><hr><p style="color: #888; font-size: 12px;">MentorHub</p></body></html>`)
	return sb.String()
}

// Send mails one digest and records the outcome on it.
func (s *DigestService) Send(ctx context.Context, d *models.Digest) error {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, d.UserID).Error; err != nil {
		return s.markSent(ctx, d, err)
	}
	if user.Email == "" {
		return s.markSent(ctx, d, errors.New("user has no email address"))
	}
	err := s.email.Send(&Mail{
		To:      []string{user.Email},
		Subject: "[MentorHub] Daily feedback digest " + d.DigestDate.Format("2006-01-02"),
		Body:    d.Body,
	})
	return s.markSent(ctx, d, err)
}

func (s *DigestService) markSent(ctx context.Context, d *models.Digest, sendErr error) error {
	updates := map[string]interface{}{"notify_error": ""}
	d.NotifyError = ""
	if sendErr != nil {
		d.NotifyError = sendErr.Error()
		updates["notify_error"] = d.NotifyError
		digestsSentTotal.WithLabelValues("failed").Inc()
	} else {
		now := s.now()
		d.NotifiedAt = &now
		updates["notified_at"] = now
		digestsSentTotal.WithLabelValues("sent").Inc()
	}
	if err := s.db.WithContext(ctx).Model(&models.Digest{}).Where("id = ?", d.ID).Updates(updates).Error; err != nil {
		logger.Warnf("[Digest] Failed to record send result for digest %d: %v", d.ID, err)
	}
	return sendErr
}

// List returns a user's digests newest first; admins may pass userID 0 for all.
func (s *DigestService) List(ctx context.Context, userID uint, page, pageSize int) ([]models.Digest, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	query := s.db.WithContext(ctx).Model(&models.Digest{})
	if userID != 0 {
		query = query.Where("user_id = ?", userID)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []models.Digest
	err := query.Order("digest_date DESC, id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&out).Error
	return out, total, err
}

// Resend retries the mail of a stored digest.
func (s *DigestService) Resend(ctx context.Context, id uint) (*models.Digest, error) {
	var d models.Digest
	if err := s.db.WithContext(ctx).First(&d, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDigestNotFound
		}
		return nil, err
	}
	err := s.Send(ctx, &d)
	return &d, err
}
