package services

import (
	"errors"
	"testing"
	"time"

	"github.com/mentorhub/backend/internal/config"
	"github.com/mentorhub/backend/internal/models"
	"github.com/mentorhub/backend/internal/utils"
	"gorm.io/gorm"
)

func newTestAuth(t *testing.T) (*AuthService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	utils.SetJWTSecret("test-secret")
	return NewAuthService(db, &config.JWTConfig{Secret: "test", ExpireHour: 2}, config.LDAPConfig{}), db
}

func createLocalUser(t *testing.T, db *gorm.DB, username, password, role string) *models.User {
	t.Helper()
	hashed, err := utils.HashPassword(password)
	if err != nil {
		t.Fatal(err)
	}
	user := &models.User{Username: username, Password: hashed, Role: role, AuthType: "local", IsActive: true}
	if err := db.Create(user).Error; err != nil {
		t.Fatal(err)
	}
	return user
}

func TestAuthService_Login(t *testing.T) {
	s, db := newTestAuth(t)
	createLocalUser(t, db, "stu", "secret1", models.RoleStudent)
	disabled := createLocalUser(t, db, "gone", "secret1", models.RoleStudent)
	db.Model(disabled).Update("is_active", false)

	tests := []struct {
		name    string
		req     LoginRequest
		wantErr error
	}{
		{"ok", LoginRequest{Username: "stu", Password: "secret1"}, nil},
		{"explicit local", LoginRequest{Username: "stu", Password: "secret1", AuthType: "local"}, nil},
		{"wrong password", LoginRequest{Username: "stu", Password: "nope"}, ErrInvalidCredentials},
		{"unknown user", LoginRequest{Username: "who", Password: "secret1"}, ErrInvalidCredentials},
		{"disabled", LoginRequest{Username: "gone", Password: "secret1"}, ErrUserDisabled},
		{"ldap off", LoginRequest{Username: "stu", Password: "secret1", AuthType: "ldap"}, ErrLDAPDisabled},
		{"bad type", LoginRequest{Username: "stu", Password: "secret1", AuthType: "oauth"}, ErrInvalidAuthType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair, err := s.Login(&tt.req, "127.0.0.1", "test")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if err != nil {
				return
			}
			claims, err := utils.ParseToken(pair.AccessToken)
			if err != nil {
				t.Fatalf("parse token: %v", err)
			}
			if claims.Username != "stu" || claims.Role != models.RoleStudent {
				t.Errorf("unexpected claims %+v", claims)
			}
			if pair.User == nil || pair.User.LastLogin == nil || pair.RefreshToken == "" {
				t.Errorf("unexpected pair %+v", pair)
			}
		})
	}
}

func TestAuthService_RefreshRotates(t *testing.T) {
	s, db := newTestAuth(t)
	createLocalUser(t, db, "men", "secret1", models.RoleMentor)

	pair, err := s.Login(&LoginRequest{Username: "men", Password: "secret1"}, "", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	next, err := s.Refresh(pair.RefreshToken, "", "")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Error("expected a new refresh token")
	}
	if _, err := s.Refresh(pair.RefreshToken, "", ""); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("expected reused token rejected, got %v", err)
	}

	var old models.RefreshToken
	db.Where("token_hash = ?", hashRefreshToken(pair.RefreshToken)).First(&old)
	if old.RevokedAt == nil || old.ReplacedByTokenID == nil || old.RevokeReason != models.RevokeRotated {
		t.Errorf("expected old token revoked and linked, got %+v", old)
	}

	if err := s.Logout(next.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := s.Refresh(next.RefreshToken, "", ""); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("expected logged out token rejected, got %v", err)
	}
	var loggedOut models.RefreshToken
	db.Where("token_hash = ?", hashRefreshToken(next.RefreshToken)).First(&loggedOut)
	if loggedOut.RevokeReason != models.RevokeLogout {
		t.Errorf("expected logout reason, got %q", loggedOut.RevokeReason)
	}
	if _, err := s.Refresh("", "", ""); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("expected empty token rejected, got %v", err)
	}
}

func TestAuthService_RefreshExpired(t *testing.T) {
	s, db := newTestAuth(t)
	createLocalUser(t, db, "stu", "secret1", models.RoleStudent)
	pair, err := s.Login(&LoginRequest{Username: "stu", Password: "secret1"}, "", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	s.now = func() time.Time { return time.Now().Add(31 * 24 * time.Hour) }
	if _, err := s.Refresh(pair.RefreshToken, "", ""); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("expected expired token rejected, got %v", err)
	}
}

func TestAuthService_ChangePassword(t *testing.T) {
	s, db := newTestAuth(t)
	user := createLocalUser(t, db, "stu", "secret1", models.RoleStudent)
	pair, _ := s.Login(&LoginRequest{Username: "stu", Password: "secret1"}, "", "")

	if err := s.ChangePassword(user.ID, &ChangePasswordRequest{OldPassword: "wrong", NewPassword: "secret2"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected wrong old password rejected, got %v", err)
	}
	if err := s.ChangePassword(user.ID, &ChangePasswordRequest{OldPassword: "secret1", NewPassword: "secret2"}); err != nil {
		t.Fatalf("change: %v", err)
	}
	if _, err := s.Login(&LoginRequest{Username: "stu", Password: "secret2"}, "", ""); err != nil {
		t.Errorf("expected new password to work, got %v", err)
	}
	if _, err := s.Refresh(pair.RefreshToken, "", ""); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("expected earlier sessions revoked, got %v", err)
	}
	var revoked models.RefreshToken
	db.Where("token_hash = ?", hashRefreshToken(pair.RefreshToken)).First(&revoked)
	if revoked.RevokeReason != models.RevokePasswordChanged {
		t.Errorf("expected password change reason, got %q", revoked.RevokeReason)
	}

	ldapUser := &models.User{Username: "dir", Role: models.RoleMentor, AuthType: "ldap", IsActive: true}
	db.Create(ldapUser)
	if err := s.ChangePassword(ldapUser.ID, &ChangePasswordRequest{OldPassword: "x", NewPassword: "secret2"}); !errors.Is(err, ErrPasswordManaged) {
		t.Errorf("expected directory password refused, got %v", err)
	}
}

func TestRefreshToken_Usable(t *testing.T) {
	now := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	revokedAt := now.Add(-time.Hour)
	tests := []struct {
		name  string
		token models.RefreshToken
		want  bool
	}{
		{"fresh", models.RefreshToken{ExpiresAt: now.Add(time.Hour)}, true},
		{"expired", models.RefreshToken{ExpiresAt: now.Add(-time.Second)}, false},
		{"expires now", models.RefreshToken{ExpiresAt: now}, false},
		{"revoked", models.RefreshToken{ExpiresAt: now.Add(time.Hour), RevokedAt: &revokedAt}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.token.Usable(now); got != tt.want {
				t.Errorf("Usable = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAuthService_CreateAdminIfNotExists(t *testing.T) {
	s, db := newTestAuth(t)
	if err := s.CreateAdminIfNotExists("changeme"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := s.CreateAdminIfNotExists("other"); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	var count int64
	db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count)
	if count != 1 {
		t.Errorf("expected one admin, got %d", count)
	}
	if _, err := s.Login(&LoginRequest{Username: "admin", Password: "changeme"}, "", ""); err != nil {
		t.Errorf("expected seeded admin to log in, got %v", err)
	}
}

func TestLDAPService_Settings(t *testing.T) {
	db := newTestDB(t)
	configs := NewSystemConfigService(db)
	s := NewLDAPService(config.LDAPConfig{Enabled: true, Host: "file.example.com", Port: 389}, configs)

	if !s.IsEnabled() || s.settings().Host != "file.example.com" {
		t.Errorf("expected file config before stored settings, got %+v", s.settings())
	}
	if err := configs.SetMany(map[string]string{"ldap_enabled": "false", "ldap_host": "db.example.com"}); err != nil {
		t.Fatal(err)
	}
	if s.IsEnabled() {
		t.Error("expected stored settings to win")
	}
	if _, err := s.Authenticate("u", "p"); !errors.Is(err, ErrLDAPDisabled) {
		t.Errorf("expected disabled error, got %v", err)
	}
}

func TestUserService(t *testing.T) {
	db := newTestDB(t)
	s := NewUserService(db)
	ctx := t.Context()
	admin := createUser(t, db, "root", models.RoleAdmin)

	user, err := s.Create(ctx, &CreateUserRequest{Username: " stu ", Password: "secret1", Role: models.RoleStudent})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.Username != "stu" || user.Password == "secret1" {
		t.Errorf("unexpected user %+v", user)
	}
	if _, err := s.Create(ctx, &CreateUserRequest{Username: "stu", Password: "secret1", Role: models.RoleStudent}); !errors.Is(err, ErrUserExists) {
		t.Errorf("expected duplicate rejected, got %v", err)
	}

	mentor := models.RoleMentor
	updated, err := s.Update(ctx, user.ID, &UpdateUserRequest{Role: &mentor}, admin)
	if err != nil || updated.Role != models.RoleMentor {
		t.Errorf("expected role change, got %+v (%v)", updated, err)
	}
	if _, err := s.Update(ctx, admin.ID, &UpdateUserRequest{Role: &mentor}, admin); !errors.Is(err, ErrSelfModify) {
		t.Errorf("expected self edit refused, got %v", err)
	}

	users, total, err := s.List(ctx, &UserListRequest{Role: models.RoleMentor})
	if err != nil || total != 1 || users[0].ID != user.ID {
		t.Errorf("unexpected list %v %d (%v)", users, total, err)
	}

	if err := s.Delete(ctx, user.ID, admin); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, user.ID, admin); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected second delete to miss, got %v", err)
	}
}
