// Package service 审计记录
package service

import (
	"encoding/json"

	"github.com/smysle/sakura-musicdl-go/internal/database/models"
	"github.com/smysle/sakura-musicdl-go/internal/database/repository"
	"github.com/smysle/sakura-musicdl-go/pkg/logger"
)

// AuditDetail 审计事件负载
//
// 每种事件有自己的结构体，进程内保持可检查的具体类型，
// 只在落库那一刻序列化成 JSON。
type AuditDetail interface {
	auditDetail()
}

// CreatedDetail 入队事件负载
type CreatedDetail struct {
	ContentType models.ContentType   `json:"content_type"`
	Priority    models.Priority      `json:"priority"`
	Source      models.RequestSource `json:"source"`
}

// StartedDetail 开始处理事件负载
type StartedDetail struct {
	RetryCount int `json:"retry_count"`
}

// CompletedDetail 完成事件负载
type CompletedDetail struct {
	Bytes      int64 `json:"bytes"`
	DurationMS int64 `json:"duration_ms"`
}

// FailedDetail 失败事件负载
type FailedDetail struct {
	ErrorType    string `json:"error_type"`
	ErrorMessage string `json:"error_message"`
	RetryCount   int    `json:"retry_count"`
}

// RetryScheduledDetail 安排重试事件负载
type RetryScheduledDetail struct {
	ErrorType   string `json:"error_type"`
	RetryCount  int    `json:"retry_count"`
	NextRetryAt string `json:"next_retry_at"`
}

// AdminRetryDetail 管理员重试事件负载
type AdminRetryDetail struct {
	PreviousError string `json:"previous_error"`
}

// WatchdogRestartDetail 重启事件负载
type WatchdogRestartDetail struct {
	Level      int    `json:"level"`
	Cooldown   string `json:"cooldown"`
	RestartErr string `json:"restart_error,omitempty"`
}

// WatchdogResetDetail 管理员重置事件负载
type WatchdogResetDetail struct {
	PreviousLevel int `json:"previous_level"`
}

func (CreatedDetail) auditDetail()         {}
func (StartedDetail) auditDetail()         {}
func (CompletedDetail) auditDetail()       {}
func (FailedDetail) auditDetail()          {}
func (RetryScheduledDetail) auditDetail()  {}
func (AdminRetryDetail) auditDetail()      {}
func (WatchdogRestartDetail) auditDetail() {}
func (WatchdogResetDetail) auditDetail()   {}

// AuditLogger 审计记录器，队列仓库审计表的薄封装
//
// 审计失败只记日志不阻断主流程。
type AuditLogger struct {
	repo *repository.AuditRepository
}

// NewAuditLogger 创建记录器
func NewAuditLogger(repo *repository.AuditRepository) *AuditLogger {
	return &AuditLogger{repo: repo}
}

// Record 追加一条审计记录
func (a *AuditLogger) Record(event models.AuditEvent, item *models.QueueItem, detail AuditDetail) {
	entry := &models.AuditLog{Event: event}
	if item != nil {
		entry.QueueItemID = &item.ID
		entry.UserID = item.UserID
		contentID := item.ContentID
		entry.ContentID = &contentID
	}

	if detail != nil {
		data, err := json.Marshal(detail)
		if err != nil {
			logger.Error().Err(err).Str("event", string(event)).Msg("序列化审计负载失败")
		} else {
			s := string(data)
			entry.Detail = &s
		}
	}

	if err := a.repo.Append(entry); err != nil {
		logger.Error().Err(err).Str("event", string(event)).Msg("写入审计日志失败")
	}
}

// RecordSystem 记录与具体条目无关的事件（重启、重置）
func (a *AuditLogger) RecordSystem(event models.AuditEvent, detail AuditDetail) {
	a.Record(event, nil, detail)
}
