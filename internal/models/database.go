package models

import (
	"fmt"

	"github.com/mentorhub/backend/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB(cfg *config.DatabaseConfig) error {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}

	DB = db
	return nil
}

// All lists every model managed by AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{},
		&RefreshToken{},
		&Document{},
		&DocumentVersion{},
		&Feedback{},
		&AIReviewRun{},
		&AIUsageLog{},
		&LLMConfig{},
		&SystemConfig{},
		&SystemLog{},
		&SchedulerLock{},
		&Digest{},
	}
}

func AutoMigrate() error {
	return DB.AutoMigrate(All()...)
}

func GetDB() *gorm.DB {
	return DB
}

// DefaultSystemConfigs are created on first start and never overwritten.
var DefaultSystemConfigs = []SystemConfig{
	{Key: "ldap_enabled", Value: "false", Type: "bool", Group: "ldap", Label: "Enable LDAP Authentication"},
	{Key: "ldap_host", Value: "", Type: "string", Group: "ldap", Label: "LDAP Server Host"},
	{Key: "ldap_port", Value: "389", Type: "int", Group: "ldap", Label: "LDAP Server Port"},
	{Key: "ldap_base_dn", Value: "", Type: "string", Group: "ldap", Label: "LDAP Base DN"},
	{Key: "ldap_bind_dn", Value: "", Type: "string", Group: "ldap", Label: "LDAP Bind DN"},
	{Key: "ldap_bind_password", Value: "", Type: "string", Group: "ldap", Label: "LDAP Bind Password"},
	{Key: "ldap_user_filter", Value: "(uid=%s)", Type: "string", Group: "ldap", Label: "LDAP User Filter"},
	{Key: "ldap_use_ssl", Value: "false", Type: "bool", Group: "ldap", Label: "Use SSL/TLS"},
	{Key: "email_enabled", Value: "false", Type: "bool", Group: "email", Label: "Enable Email Notices"},
	{Key: "email_smtp_host", Value: "", Type: "string", Group: "email", Label: "SMTP Host"},
	{Key: "email_smtp_port", Value: "587", Type: "int", Group: "email", Label: "SMTP Port"},
	{Key: "email_username", Value: "", Type: "string", Group: "email", Label: "SMTP Username"},
	{Key: "email_password", Value: "", Type: "string", Group: "email", Label: "SMTP Password"},
	{Key: "email_from", Value: "", Type: "string", Group: "email", Label: "Sender Address"},
	{Key: "email_use_tls", Value: "true", Type: "bool", Group: "email", Label: "Use STARTTLS"},
	{Key: "digest_enabled", Value: "false", Type: "bool", Group: "digest", Label: "Enable Daily Digest"},
	{Key: "digest_time", Value: "18:00", Type: "string", Group: "digest", Label: "Digest Send Time"},
	{Key: "digest_country", Value: "", Type: "string", Group: "digest", Label: "Skip Holidays Of Country"},
	{Key: "ai_review_llm_config_id", Value: "0", Type: "int", Group: "ai", Label: "LLM Config For Automated Feedback"},
	{Key: "ai_review_max_items", Value: "12", Type: "int", Group: "ai", Label: "Max Automated Feedback Items"},
	{Key: "log_retention_days", Value: "30", Type: "int", Group: "system", Label: "System Log Retention Days"},
}

// SeedDefaultData creates default system configs that do not exist yet.
func SeedDefaultData() error {
	return SeedSystemConfigs(DB)
}

func SeedSystemConfigs(db *gorm.DB) error {
	for _, cfg := range DefaultSystemConfigs {
		var count int64
		db.Model(&SystemConfig{}).Where("config_key = ?", cfg.Key).Count(&count)
		if count > 0 {
			continue
		}
		row := cfg
		if err := db.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}
