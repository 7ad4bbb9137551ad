package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/mentorhub/backend/internal/config"
	"github.com/mentorhub/backend/internal/models"
	"github.com/mentorhub/backend/internal/utils"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrUserDisabled        = errors.New("user is disabled")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrInvalidAuthType     = errors.New("invalid auth type")
	ErrPasswordManaged     = errors.New("LDAP users cannot change password here")
)

const defaultRefreshHours = 720

type AuthService struct {
	db        *gorm.DB
	ldap      *LDAPService
	jwtConfig *config.JWTConfig
	configSvc *SystemConfigService
	now       func() time.Time
}

func NewAuthService(db *gorm.DB, jwtCfg *config.JWTConfig, ldapCfg config.LDAPConfig) *AuthService {
	configs := NewSystemConfigService(db)
	return &AuthService{
		db:        db,
		ldap:      NewLDAPService(ldapCfg, configs),
		jwtConfig: jwtCfg,
		configSvc: configs,
		now:       time.Now,
	}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	AuthType string `json:"auth_type" binding:"omitempty,oneof=local ldap"`
}

// TokenPair is what login and refresh hand back to the client.
type TokenPair struct {
	AccessToken     string       `json:"access_token"`
	AccessExpireAt  time.Time    `json:"access_expire_at"`
	RefreshToken    string       `json:"refresh_token"`
	RefreshExpireAt time.Time    `json:"refresh_expire_at"`
	User            *models.User `json:"user,omitempty"`
}

// Login authenticates a user and issues an access/refresh token pair.
func (s *AuthService) Login(req *LoginRequest, clientIP, userAgent string) (*TokenPair, error) {
	var user *models.User
	var err error
	switch req.AuthType {
	case "", "local":
		user, err = s.localAuth(req.Username, req.Password)
	case "ldap":
		user, err = s.ldapAuth(req.Username, req.Password)
	default:
		return nil, ErrInvalidAuthType
	}
	if err != nil {
		return nil, err
	}

	pair, err := s.issue(s.db, user, clientIP, userAgent)
	if err != nil {
		return nil, err
	}
	now := s.now()
	s.db.Model(user).Update("last_login", now)
	user.LastLogin = &now
	pair.User = user
	return pair, nil
}

func (s *AuthService) issue(tx *gorm.DB, user *models.User, clientIP, userAgent string) (*TokenPair, error) {
	accessHours := s.accessHours()
	access, err := utils.GenerateToken(user.ID, user.Username, user.Role, accessHours)
	if err != nil {
		return nil, err
	}
	refresh, hash, err := generateRefreshToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	record := models.RefreshToken{
		UserID:      user.ID,
		TokenHash:   hash,
		ExpiresAt:   now.Add(time.Duration(s.refreshHours()) * time.Hour),
		CreatedByIP: clientIP,
		UserAgent:   userAgent,
	}
	if err := tx.Create(&record).Error; err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:     access,
		AccessExpireAt:  now.Add(time.Duration(accessHours) * time.Hour),
		RefreshToken:    refresh,
		RefreshExpireAt: record.ExpiresAt,
	}, nil
}

// Refresh rotates a refresh token: the presented one is revoked and linked to
// its replacement.
func (s *AuthService) Refresh(refreshToken, clientIP, userAgent string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}

	var stored models.RefreshToken
	if err := s.db.Where("token_hash = ?", hashRefreshToken(refreshToken)).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	now := s.now()
	if !stored.Usable(now) {
		return nil, ErrInvalidRefreshToken
	}

	var user models.User
	if err := s.db.First(&user, stored.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserDisabled
	}

	var pair *TokenPair
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		if pair, err = s.issue(tx, &user, clientIP, userAgent); err != nil {
			return err
		}
		var replacement models.RefreshToken
		if err := tx.Where("token_hash = ?", hashRefreshToken(pair.RefreshToken)).First(&replacement).Error; err != nil {
			return err
		}
		res := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL", stored.ID).
			Updates(map[string]interface{}{
				"revoked_at":           now,
				"revoke_reason":        models.RevokeRotated,
				"replaced_by_token_id": replacement.ID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// lost a race with another refresh of the same token
			return ErrInvalidRefreshToken
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Logout revokes the presented refresh token.
func (s *AuthService) Logout(refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.db.Model(&models.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", hashRefreshToken(refreshToken)).
		Updates(map[string]interface{}{"revoked_at": s.now(), "revoke_reason": models.RevokeLogout}).Error
}

func (s *AuthService) accessHours() int {
	def := s.jwtConfig.ExpireHour
	if def <= 0 {
		def = 24
	}
	hours, err := strconv.Atoi(s.configSvc.GetWithDefault("auth_access_token_expire_hours", ""))
	if err != nil || hours <= 0 {
		return def
	}
	return hours
}

func (s *AuthService) refreshHours() int {
	hours := s.configSvc.GetInt("auth_refresh_token_expire_hours", defaultRefreshHours)
	if hours <= 0 {
		return defaultRefreshHours
	}
	return hours
}

func generateRefreshToken() (token, tokenHash string, err error) {
	buf := make([]byte, 32)
	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(buf)
	return token, hashRefreshToken(token), nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *AuthService) localAuth(username, password string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("username = ? AND auth_type = ?", username, "local").First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !utils.CheckPassword(password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserDisabled
	}
	return &user, nil
}

// ldapAuth binds against the directory and mirrors the account locally.
// Directory accounts start as mentors.
func (s *AuthService) ldapAuth(username, password string) (*models.User, error) {
	ldapUser, err := s.ldap.Authenticate(username, password)
	if err != nil {
		return nil, err
	}

	var user models.User
	err = s.db.Where("username = ? AND auth_type = ?", ldapUser.Username, "ldap").First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{
			Username: ldapUser.Username,
			Email:    ldapUser.Email,
			Nickname: ldapUser.Nickname,
			Role:     models.RoleMentor,
			AuthType: "ldap",
			IsActive: true,
		}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, err
		}
		return &user, nil
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserDisabled
	}
	s.db.Model(&user).Updates(map[string]interface{}{"email": ldapUser.Email, "nickname": ldapUser.Nickname})
	return &user, nil
}

func (s *AuthService) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateAdminIfNotExists seeds the first administrator.
func (s *AuthService) CreateAdminIfNotExists(password string) error {
	var count int64
	if err := s.db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if password == "" {
		password = "admin"
	}
	hashed, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	return s.db.Create(&models.User{
		Username: "admin",
		Password: hashed,
		Nickname: "Administrator",
		Role:     models.RoleAdmin,
		AuthType: "local",
		IsActive: true,
	}).Error
}

func (s *AuthService) IsLDAPEnabled() bool {
	return s.ldap.IsEnabled()
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

// ChangePassword replaces a local user's password and revokes their sessions.
func (s *AuthService) ChangePassword(userID uint, req *ChangePasswordRequest) error {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}
	if user.AuthType != "local" {
		return ErrPasswordManaged
	}
	if !utils.CheckPassword(req.OldPassword, user.Password) {
		return ErrInvalidCredentials
	}
	hashed, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Update("password", hashed).Error; err != nil {
			return err
		}
		return tx.Model(&models.RefreshToken{}).
			Where("user_id = ? AND revoked_at IS NULL", user.ID).
			Updates(map[string]interface{}{"revoked_at": s.now(), "revoke_reason": models.RevokePasswordChanged}).Error
	})
}
