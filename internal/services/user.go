package services

import (
	"context"
	"errors"
	"strings"

	"github.com/mentorhub/backend/internal/models"
	"github.com/mentorhub/backend/internal/utils"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("username already taken")
	ErrSelfModify   = errors.New("cannot modify your own account")
)

// UserService is the administrators' view of accounts.
type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

type UserListRequest struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	Username string `form:"username"`
	Role     string `form:"role" binding:"omitempty,oneof=admin mentor student"`
}

type CreateUserRequest struct {
	Username string `json:"username" binding:"required,max=100"`
	Password string `json:"password" binding:"required,min=6"`
	Email    string `json:"email" binding:"omitempty,email"`
	Nickname string `json:"nickname"`
	Role     string `json:"role" binding:"required,oneof=admin mentor student"`
}

type UpdateUserRequest struct {
	Role     *string `json:"role" binding:"omitempty,oneof=admin mentor student"`
	IsActive *bool   `json:"is_active"`
	Nickname *string `json:"nickname"`
	Email    *string `json:"email" binding:"omitempty,email"`
}

func (s *UserService) List(ctx context.Context, req *UserListRequest) ([]models.User, int64, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}
	query := s.db.WithContext(ctx).Model(&models.User{})
	if req.Username != "" {
		query = query.Where("username LIKE ?", "%"+req.Username+"%")
	}
	if req.Role != "" {
		query = query.Where("role = ?", req.Role)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []models.User
	err := query.Order("id ASC").Offset((req.Page - 1) * req.PageSize).Limit(req.PageSize).Find(&users).Error
	return users, total, err
}

func (s *UserService) Create(ctx context.Context, req *CreateUserRequest) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	var count int64
	s.db.WithContext(ctx).Unscoped().Model(&models.User{}).Where("username = ?", username).Count(&count)
	if count > 0 {
		return nil, ErrUserExists
	}
	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username: username,
		Password: hashed,
		Email:    req.Email,
		Nickname: req.Nickname,
		Role:     req.Role,
		AuthType: "local",
		IsActive: true,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// Update changes another user's account; admins cannot edit themselves here.
func (s *UserService) Update(ctx context.Context, id uint, req *UpdateUserRequest, actor *models.User) (*models.User, error) {
	if id == actor.ID {
		return nil, ErrSelfModify
	}
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Role != nil {
		updates["role"] = *req.Role
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.Nickname != nil {
		updates["nickname"] = *req.Nickname
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserService) Delete(ctx context.Context, id uint, actor *models.User) error {
	if id == actor.ID {
		return ErrSelfModify
	}
	res := s.db.WithContext(ctx).Delete(&models.User{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
