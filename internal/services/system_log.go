package services

import (
	"encoding/json"
	"time"

	"github.com/mentorhub/backend/internal/models"
	"github.com/mentorhub/backend/pkg/logger"
	"gorm.io/gorm"
)

var globalDB *gorm.DB

func InitSystemLogger(db *gorm.DB) {
	globalDB = db
}

// LogContext identifies who triggered a system log entry.
type LogContext struct {
	UserID    *uint
	RequestID string
	IP        string
	UserAgent string
}

func LogInfo(module, action, message string, lc LogContext, extra interface{}) {
	writeLog("info", module, action, message, lc, extra)
}

func LogWarning(module, action, message string, lc LogContext, extra interface{}) {
	writeLog("warning", module, action, message, lc, extra)
}

func LogError(module, action, message string, lc LogContext, extra interface{}) {
	writeLog("error", module, action, message, lc, extra)
}

func writeLog(level, module, action, message string, lc LogContext, extra interface{}) {
	if globalDB == nil {
		return
	}

	var extraStr string
	if extra != nil {
		if b, err := json.Marshal(extra); err == nil {
			extraStr = string(b)
		}
	}

	entry := &models.SystemLog{
		Level:     level,
		Module:    module,
		Action:    action,
		Message:   message,
		UserID:    lc.UserID,
		RequestID: lc.RequestID,
		IP:        lc.IP,
		UserAgent: lc.UserAgent,
		Extra:     extraStr,
		CreatedAt: time.Now(),
	}
	if err := globalDB.Create(entry).Error; err != nil {
		logger.Warnf("[SystemLog] failed to persist %s/%s: %v", module, action, err)
	}
}

type SystemLogService struct {
	db        *gorm.DB
	configSvc *SystemConfigService
}

func NewSystemLogService(db *gorm.DB) *SystemLogService {
	return &SystemLogService{db: db, configSvc: NewSystemConfigService(db)}
}

type SystemLogListRequest struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Level     string `form:"level"`
	Module    string `form:"module"`
	Action    string `form:"action"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
	Search    string `form:"search"`
}

func (s *SystemLogService) List(req *SystemLogListRequest) ([]models.SystemLog, int64, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	query := s.db.Model(&models.SystemLog{})
	if req.Level != "" {
		query = query.Where("level = ?", req.Level)
	}
	if req.Module != "" {
		query = query.Where("module = ?", req.Module)
	}
	if req.Action != "" {
		query = query.Where("action LIKE ?", "%"+req.Action+"%")
	}
	if req.StartDate != "" {
		query = query.Where("created_at >= ?", req.StartDate)
	}
	if req.EndDate != "" {
		query = query.Where("created_at <= ?", req.EndDate+" 23:59:59")
	}
	if req.Search != "" {
		query = query.Where("message LIKE ?", "%"+req.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.SystemLog
	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC").Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

func (s *SystemLogService) GetModules() ([]string, error) {
	var modules []string
	if err := s.db.Model(&models.SystemLog{}).Distinct("module").Pluck("module", &modules).Error; err != nil {
		return nil, err
	}
	return modules, nil
}

// CleanupOldLogs deletes logs older than retentionDays and returns how many were removed.
func (s *SystemLogService) CleanupOldLogs(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result := s.db.Where("created_at < ?", cutoff).Delete(&models.SystemLog{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (s *SystemLogService) GetRetentionDays() int {
	return s.configSvc.GetInt("log_retention_days", 30)
}

// RunCleanup applies the configured retention. It is registered as a daily job.
func (s *SystemLogService) RunCleanup() {
	days := s.GetRetentionDays()
	if days <= 0 {
		logger.Infof("[SystemLog] Log cleanup disabled (retention_days <= 0)")
		return
	}
	deleted, err := s.CleanupOldLogs(days)
	if err != nil {
		logger.Errorf("[SystemLog] Failed to cleanup old logs: %v", err)
		return
	}
	if deleted > 0 {
		logger.Infof("[SystemLog] Cleaned up %d logs older than %d days", deleted, days)
	}
}
