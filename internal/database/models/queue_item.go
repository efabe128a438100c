// Package models 数据模型 - 下载队列条目
package models

import (
	"time"
)

// QueueStatus 队列条目状态
type QueueStatus string

const (
	StatusPending      QueueStatus = "pending"       // 等待处理
	StatusInProgress   QueueStatus = "in_progress"   // 处理中
	StatusRetryWaiting QueueStatus = "retry_waiting" // 等待重试
	StatusCompleted    QueueStatus = "completed"     // 已完成（终态）
	StatusFailed       QueueStatus = "failed"        // 已失败（终态）
)

// IsTerminal 是否终态
func (s QueueStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Priority 队列优先级，数值越小越先处理
type Priority int

const (
	PriorityWatchdog  Priority = 1 // 完整性修复
	PriorityUser      Priority = 2 // 用户请求
	PriorityExpansion Priority = 3 // 曲库扩充
)

// ContentType 下载内容类型
type ContentType string

const (
	ContentAlbum       ContentType = "album"
	ContentTrackAudio  ContentType = "track_audio"
	ContentArtistImage ContentType = "artist_image"
	ContentAlbumImage  ContentType = "album_image"
)

// RequestSource 请求来源
type RequestSource string

const (
	SourceUser      RequestSource = "user"
	SourceWatchdog  RequestSource = "watchdog"
	SourceExpansion RequestSource = "expansion"
)

// QueueItem 下载队列条目
//
// 专辑条目是父条目，进入处理时为每首曲目和每张图片生成子条目，
// 自身保持 in_progress 直到全部子条目到达终态。
type QueueItem struct {
	ID       string  `gorm:"column:id;primaryKey;size:36" json:"id"`
	ParentID *string `gorm:"column:parent_id;size:36;index" json:"parent_id,omitempty"`

	Status      QueueStatus   `gorm:"column:status;size:16;default:'pending';index:idx_status_priority" json:"status"`
	Priority    Priority      `gorm:"column:priority;index:idx_status_priority" json:"priority"`
	ContentType ContentType   `gorm:"column:content_type;size:16" json:"content_type"`
	ContentID   string        `gorm:"column:content_id;size:64;index" json:"content_id"`
	Source      RequestSource `gorm:"column:request_source;size:16" json:"request_source"`
	UserID      *int64        `gorm:"column:requested_by_user_id" json:"requested_by_user_id,omitempty"`

	CreatedAt     time.Time  `gorm:"column:created_at" json:"created_at"`
	StartedAt     *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt   *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	LastAttemptAt *time.Time `gorm:"column:last_attempt_at" json:"last_attempt_at,omitempty"`
	NextRetryAt   *time.Time `gorm:"column:next_retry_at" json:"next_retry_at,omitempty"`

	RetryCount int `gorm:"column:retry_count;default:0" json:"retry_count"`
	MaxRetries int `gorm:"column:max_retries;default:8" json:"max_retries"`

	ErrorType    *string `gorm:"column:error_type;size:16" json:"error_type,omitempty"`
	ErrorMessage *string `gorm:"column:error_message;type:text" json:"error_message,omitempty"`

	BytesDownloaded      int64 `gorm:"column:bytes_downloaded;default:0" json:"bytes_downloaded"`
	ProcessingDurationMS int64 `gorm:"column:processing_duration_ms;default:0" json:"processing_duration_ms"`
}

// TableName 表名
func (QueueItem) TableName() string {
	return "download_queue"
}

// IsTopLevel 是否顶层条目
func (q *QueueItem) IsTopLevel() bool {
	return q.ParentID == nil
}

// IsStale 处理中是否已滞留超过给定时长
func (q *QueueItem) IsStale(age time.Duration) bool {
	if q.Status != StatusInProgress || q.StartedAt == nil {
		return false
	}
	return time.Since(*q.StartedAt) > age
}

// ChildrenProgress 子条目状态统计
type ChildrenProgress struct {
	Total      int64 `json:"total"`
	Pending    int64 `json:"pending"`
	InProgress int64 `json:"in_progress"`
	Retrying   int64 `json:"retrying"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}

// Terminal 已到达终态的子条目数
func (p *ChildrenProgress) Terminal() int64 {
	return p.Completed + p.Failed
}

// AllTerminal 是否全部子条目都到达终态
func (p *ChildrenProgress) AllTerminal() bool {
	return p.Total > 0 && p.Terminal() == p.Total
}
