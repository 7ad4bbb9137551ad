package services

import (
	"context"
	"errors"
	"strings"

	"github.com/mentorhub/backend/internal/models"
	"github.com/mentorhub/backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrVersionNotFound  = errors.New("document version not found")
	ErrDocumentAccess   = errors.New("no access to this document")
)

type DocumentService struct {
	db        *gorm.DB
	hub       *RealtimeHub
	onRemoved []func(versionIDs []uint)
}

func NewDocumentService(db *gorm.DB) *DocumentService {
	return &DocumentService{db: db}
}

// SetRealtimeHub publishes the feedback removed by cascade deletes to hub.
func (s *DocumentService) SetRealtimeHub(hub *RealtimeHub) {
	s.hub = hub
}

// OnVersionsRemoved registers fn to run after a document's versions are deleted.
func (s *DocumentService) OnVersionsRemoved(fn func(versionIDs []uint)) {
	s.onRemoved = append(s.onRemoved, fn)
}

type DocumentListRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Title    string `form:"title"`
	Kind     string `form:"kind"`
}

type DocumentListResponse struct {
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Items    []models.Document `json:"items"`
}

type CreateDocumentRequest struct {
	Title    string `json:"title" binding:"required,max=300"`
	Kind     string `json:"kind" binding:"omitempty,oneof=essay resume cover_letter other"`
	Content  string `json:"content"`
	MentorID *uint  `json:"mentor_id"`
}

type UpdateDocumentRequest struct {
	Title    string `json:"title" binding:"omitempty,max=300"`
	Kind     string `json:"kind" binding:"omitempty,oneof=essay resume cover_letter other"`
	MentorID *uint  `json:"mentor_id"`
}

type AddVersionRequest struct {
	Content string `json:"content"`
}

// CanAccess reports whether user may read and review doc.
func CanAccess(doc *models.Document, user *models.User) bool {
	if user == nil {
		return false
	}
	if user.Role == models.RoleAdmin || doc.OwnerID == user.ID {
		return true
	}
	return doc.MentorID != nil && *doc.MentorID == user.ID
}

// List returns the documents visible to user: all for admins, assigned ones for
// mentors, owned ones for students.
func (s *DocumentService) List(ctx context.Context, req *DocumentListRequest, user *models.User) (*DocumentListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	query := s.db.WithContext(ctx).Model(&models.Document{})
	switch user.Role {
	case models.RoleAdmin:
	case models.RoleMentor:
		query = query.Where("mentor_id = ? OR owner_id = ?", user.ID, user.ID)
	default:
		query = query.Where("owner_id = ?", user.ID)
	}
	if req.Title != "" {
		query = query.Where("title LIKE ?", "%"+req.Title+"%")
	}
	if req.Kind != "" {
		query = query.Where("kind = ?", req.Kind)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var docs []models.Document
	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("updated_at DESC").Find(&docs).Error; err != nil {
		return nil, err
	}

	return &DocumentListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    docs,
	}, nil
}

// Get loads a document and checks access.
func (s *DocumentService) Get(ctx context.Context, id uint, user *models.User) (*models.Document, error) {
	var doc models.Document
	err := s.db.WithContext(ctx).First(&doc, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	if !CanAccess(&doc, user) {
		return nil, ErrDocumentAccess
	}
	return &doc, nil
}

// Create stores a new document together with its first version.
func (s *DocumentService) Create(ctx context.Context, req *CreateDocumentRequest, owner *models.User) (*models.Document, *models.DocumentVersion, error) {
	kind := req.Kind
	if kind == "" {
		kind = "essay"
	}
	doc := models.Document{
		Title:    strings.TrimSpace(req.Title),
		Kind:     kind,
		OwnerID:  owner.ID,
		MentorID: req.MentorID,
	}
	version := models.DocumentVersion{
		Version:   1,
		Content:   req.Content,
		CreatedBy: owner.ID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&doc).Error; err != nil {
			return err
		}
		version.DocumentID = doc.ID
		return tx.Create(&version).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return &doc, &version, nil
}

// Update renames a document or changes its mentor. Only the owner or an admin may.
func (s *DocumentService) Update(ctx context.Context, id uint, req *UpdateDocumentRequest, user *models.User) (*models.Document, error) {
	doc, err := s.Get(ctx, id, user)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != user.ID && user.Role != models.RoleAdmin {
		return nil, ErrDocumentAccess
	}

	updates := map[string]interface{}{}
	if title := strings.TrimSpace(req.Title); title != "" {
		updates["title"] = title
	}
	if req.Kind != "" {
		updates["kind"] = req.Kind
	}
	if req.MentorID != nil {
		if *req.MentorID == 0 {
			updates["mentor_id"] = nil
		} else {
			updates["mentor_id"] = *req.MentorID
		}
	}
	if len(updates) == 0 {
		return doc, nil
	}
	if err := s.db.WithContext(ctx).Model(doc).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.Get(ctx, id, user)
}

// Delete removes a document with its versions and their feedback.
func (s *DocumentService) Delete(ctx context.Context, id uint, user *models.User) error {
	doc, err := s.Get(ctx, id, user)
	if err != nil {
		return err
	}
	if doc.OwnerID != user.ID && user.Role != models.RoleAdmin {
		return ErrDocumentAccess
	}

	var (
		versionIDs []uint
		removed    []models.Feedback
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.DocumentVersion{}).Where("document_id = ?", doc.ID).Pluck("id", &versionIDs).Error; err != nil {
			return err
		}
		if len(versionIDs) > 0 {
			if err := tx.Select("id", "document_version_id").Where("document_version_id IN ?", versionIDs).Find(&removed).Error; err != nil {
				return err
			}
			if err := tx.Where("document_version_id IN ?", versionIDs).Delete(&models.Feedback{}).Error; err != nil {
				return err
			}
			if err := tx.Where("document_id = ?", doc.ID).Delete(&models.DocumentVersion{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(doc).Error
	})
	if err != nil {
		return err
	}

	if s.hub != nil {
		for _, row := range removed {
			s.hub.Publish(FeedbackEvent{
				Kind:              EventFeedbackDeleted,
				DocumentVersionID: FormatVersionID(row.DocumentVersionID),
				FeedbackID:        row.ID,
			})
		}
		feedbackEventsTotal.WithLabelValues(EventFeedbackDeleted).Add(float64(len(removed)))
	}
	for _, fn := range s.onRemoved {
		fn(versionIDs)
	}
	logger.Infof("[Document] Deleted document %d with %d versions and %d feedback items", doc.ID, len(versionIDs), len(removed))
	return nil
}

// AddVersion appends a new version holding content.
func (s *DocumentService) AddVersion(ctx context.Context, documentID uint, content string, user *models.User) (*models.DocumentVersion, error) {
	doc, err := s.Get(ctx, documentID, user)
	if err != nil {
		return nil, err
	}

	version := models.DocumentVersion{
		DocumentID: doc.ID,
		Content:    content,
		CreatedBy:  user.ID,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last int
		if err := tx.Model(&models.DocumentVersion{}).
			Where("document_id = ?", doc.ID).
			Select("COALESCE(MAX(version), 0)").
			Scan(&last).Error; err != nil {
			return err
		}
		version.Version = last + 1
		if err := tx.Create(&version).Error; err != nil {
			return err
		}
		return tx.Model(doc).Update("updated_at", version.CreatedAt).Error
	})
	if err != nil {
		return nil, err
	}
	return &version, nil
}

// ListVersions returns the versions of a document, newest first, without content.
func (s *DocumentService) ListVersions(ctx context.Context, documentID uint, user *models.User) ([]models.DocumentVersion, error) {
	if _, err := s.Get(ctx, documentID, user); err != nil {
		return nil, err
	}
	var versions []models.DocumentVersion
	err := s.db.WithContext(ctx).
		Select("id", "document_id", "version", "created_by", "created_at", "updated_at").
		Where("document_id = ?", documentID).
		Order("version DESC").
		Find(&versions).Error
	return versions, err
}

// LatestVersion returns the highest version of a document.
func (s *DocumentService) LatestVersion(ctx context.Context, documentID uint, user *models.User) (*models.DocumentVersion, error) {
	if _, err := s.Get(ctx, documentID, user); err != nil {
		return nil, err
	}
	var version models.DocumentVersion
	err := s.db.WithContext(ctx).Where("document_id = ?", documentID).Order("version DESC").First(&version).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrVersionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &version, nil
}

// GetVersion loads a version and checks access to its document.
func (s *DocumentService) GetVersion(ctx context.Context, versionID uint, user *models.User) (*models.DocumentVersion, *models.Document, error) {
	var version models.DocumentVersion
	err := s.db.WithContext(ctx).First(&version, versionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrVersionNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	doc, err := s.Get(ctx, version.DocumentID, user)
	if err != nil {
		return nil, nil, err
	}
	return &version, doc, nil
}

// SaveContent overwrites the text of a version in place.
func (s *DocumentService) SaveContent(ctx context.Context, versionID uint, content string) error {
	res := s.db.WithContext(ctx).Model(&models.DocumentVersion{}).
		Where("id = ?", versionID).
		Update("content", content)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionNotFound
	}
	return nil
}

// VersionAuthorizer lets a user join the realtime channel of a version they can read.
func VersionAuthorizer(db *gorm.DB) ChannelAuthorizer {
	docs := NewDocumentService(db)
	return func(userID uint, channel string) bool {
		versionID, err := parseVersionID(channel)
		if err != nil {
			return false
		}
		var user models.User
		if err := db.First(&user, userID).Error; err != nil || !user.IsActive {
			return false
		}
		_, _, err = docs.GetVersion(context.Background(), versionID, &user)
		return err == nil
	}
}
