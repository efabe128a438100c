// Package models 数据模型 - 审计日志
package models

import (
	"time"
)

// AuditEvent 审计事件类型
type AuditEvent string

const (
	AuditCreated         AuditEvent = "created"
	AuditStarted         AuditEvent = "started"
	AuditCompleted       AuditEvent = "completed"
	AuditFailed          AuditEvent = "failed"
	AuditRetryScheduled  AuditEvent = "retry_scheduled"
	AuditAdminRetry      AuditEvent = "admin_retry"
	AuditWatchdogRestart AuditEvent = "watchdog_restart"
	AuditWatchdogReset   AuditEvent = "watchdog_reset"
)

// AuditLog 审计日志，只追加不修改
type AuditLog struct {
	ID          int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Timestamp   time.Time  `gorm:"column:timestamp;index" json:"timestamp"`
	Event       AuditEvent `gorm:"column:event;size:24;index" json:"event"`
	QueueItemID *string    `gorm:"column:queue_item_id;size:36;index" json:"queue_item_id,omitempty"`
	UserID      *int64     `gorm:"column:user_id;index" json:"user_id,omitempty"`
	ContentID   *string    `gorm:"column:content_id;size:64;index" json:"content_id,omitempty"`
	Detail      *string    `gorm:"column:detail;type:text" json:"detail,omitempty"` // JSON 负载
}

// TableName 表名
func (AuditLog) TableName() string {
	return "download_audit_log"
}
