package services

import (
	"errors"
	"strconv"
	"strings"

	"github.com/mentorhub/backend/internal/models"
	"gorm.io/gorm"
)

type SystemConfigService struct {
	db *gorm.DB
}

func NewSystemConfigService(db *gorm.DB) *SystemConfigService {
	return &SystemConfigService{db: db}
}

func (s *SystemConfigService) Get(key string) (string, error) {
	var cfg models.SystemConfig
	if err := s.db.Where("config_key = ?", key).First(&cfg).Error; err != nil {
		return "", err
	}
	return cfg.Value, nil
}

func (s *SystemConfigService) GetWithDefault(key, defaultValue string) string {
	value, err := s.Get(key)
	if err != nil {
		return defaultValue
	}
	return value
}

func (s *SystemConfigService) GetInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(s.GetWithDefault(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func (s *SystemConfigService) GetBool(key string) bool {
	return s.GetWithDefault(key, "false") == "true"
}

func (s *SystemConfigService) Set(key, value string) error {
	var cfg models.SystemConfig
	err := s.db.Where("config_key = ?", key).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cfg = models.SystemConfig{Key: key, Value: value, Group: groupOf(key)}
		return s.db.Create(&cfg).Error
	}
	if err != nil {
		return err
	}
	return s.db.Model(&cfg).Update("value", value).Error
}

// SetMany updates several keys in one transaction.
func (s *SystemConfigService) SetMany(values map[string]string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		inner := &SystemConfigService{db: tx}
		for k, v := range values {
			if err := inner.Set(k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SystemConfigService) GetByGroup(group string) ([]models.SystemConfig, error) {
	var configs []models.SystemConfig
	if err := s.db.Where("config_group = ?", group).Order("id").Find(&configs).Error; err != nil {
		return nil, err
	}
	for i := range configs {
		if isSecretKey(configs[i].Key) && configs[i].Value != "" {
			configs[i].Value = "****"
		}
	}
	return configs, nil
}

// groupOf derives the group from the key prefix, e.g. "email_smtp_host" -> "email".
func groupOf(key string) string {
	if i := strings.Index(key, "_"); i > 0 {
		return key[:i]
	}
	return "general"
}

func (s *SystemConfigService) groupFor(key string) string {
	var cfg models.SystemConfig
	if err := s.db.Select("config_group").Where("config_key = ?", key).First(&cfg).Error; err == nil && cfg.Group != "" {
		return cfg.Group
	}
	return groupOf(key)
}

func isSecretKey(key string) bool {
	return strings.HasSuffix(key, "_password") || strings.HasSuffix(key, "_secret")
}

func splitAndTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type LDAPConfigResponse struct {
	Enabled     bool   `json:"enabled"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	BaseDN      string `json:"base_dn"`
	BindDN      string `json:"bind_dn"`
	UserFilter  string `json:"user_filter"`
	UseSSL      bool   `json:"use_ssl"`
	PasswordSet bool   `json:"password_set"`
}

func (s *SystemConfigService) GetLDAPConfig() *LDAPConfigResponse {
	return &LDAPConfigResponse{
		Enabled:     s.GetBool("ldap_enabled"),
		Host:        s.GetWithDefault("ldap_host", ""),
		Port:        s.GetInt("ldap_port", 389),
		BaseDN:      s.GetWithDefault("ldap_base_dn", ""),
		BindDN:      s.GetWithDefault("ldap_bind_dn", ""),
		UserFilter:  s.GetWithDefault("ldap_user_filter", "(uid=%s)"),
		UseSSL:      s.GetBool("ldap_use_ssl"),
		PasswordSet: s.GetWithDefault("ldap_bind_password", "") != "",
	}
}

// EmailConfig is the SMTP setup used for feedback notices and digests.
type EmailConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"smtp_host"`
	Port     int    `json:"smtp_port"`
	Username string `json:"username"`
	Password string `json:"-"`
	From     string `json:"from"`
	UseTLS   bool   `json:"use_tls"`
}

func (s *SystemConfigService) GetEmailConfig() *EmailConfig {
	return &EmailConfig{
		Enabled:  s.GetBool("email_enabled"),
		Host:     s.GetWithDefault("email_smtp_host", ""),
		Port:     s.GetInt("email_smtp_port", 587),
		Username: s.GetWithDefault("email_username", ""),
		Password: s.GetWithDefault("email_password", ""),
		From:     s.GetWithDefault("email_from", ""),
		UseTLS:   s.GetWithDefault("email_use_tls", "true") == "true",
	}
}

// DigestConfig controls the daily feedback digest.
type DigestConfig struct {
	Enabled bool     `json:"enabled"`
	Time    string   `json:"time"`    // HH:MM
	Country []string `json:"country"` // skip days that are holidays in any of these
}

func (s *SystemConfigService) GetDigestConfig() *DigestConfig {
	return &DigestConfig{
		Enabled: s.GetBool("digest_enabled"),
		Time:    s.GetWithDefault("digest_time", "18:00"),
		Country: splitAndTrim(s.GetWithDefault("digest_country", ""), ","),
	}
}

// UpdateConfigRequest carries a partial update of one group. Secret values left
// empty or masked keep their stored value.
type UpdateConfigRequest struct {
	Values map[string]string `json:"values" binding:"required"`
}

func (s *SystemConfigService) UpdateGroup(group string, req *UpdateConfigRequest) error {
	values := make(map[string]string, len(req.Values))
	for k, v := range req.Values {
		if s.groupFor(k) != group {
			return errors.New("key " + k + " does not belong to group " + group)
		}
		if isSecretKey(k) && (v == "" || v == "****") {
			continue
		}
		values[k] = v
	}
	return s.SetMany(values)
}
