// Package repository 审计日志仓库
package repository

import (
	"time"

	"github.com/smysle/sakura-musicdl-go/internal/database"
	"github.com/smysle/sakura-musicdl-go/internal/database/models"
	"gorm.io/gorm"
)

// AuditRepository 审计日志仓库，只有追加和查询
type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository 创建仓库
func NewAuditRepository() *AuditRepository {
	return &AuditRepository{db: database.GetDB()}
}

// NewAuditRepositoryWithDB 指定数据库实例创建（测试用）
func NewAuditRepositoryWithDB(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append 追加一条审计记录
func (r *AuditRepository) Append(entry *models.AuditLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	return r.db.Create(entry).Error
}

// AuditFilter 审计查询过滤条件，零值字段不过滤
type AuditFilter struct {
	QueueItemID string
	UserID      *int64
	Event       models.AuditEvent
	ContentID   string
	From        *time.Time
	To          *time.Time
}

// Query 过滤分页查询，按时间倒序
func (r *AuditRepository) Query(filter AuditFilter, page, pageSize int) ([]models.AuditLog, int64, error) {
	query := r.db.Model(&models.AuditLog{})

	if filter.QueueItemID != "" {
		query = query.Where("queue_item_id = ?", filter.QueueItemID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Event != "" {
		query = query.Where("event = ?", filter.Event)
	}
	if filter.ContentID != "" {
		query = query.Where("content_id = ?", filter.ContentID)
	}
	if filter.From != nil {
		query = query.Where("timestamp >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("timestamp < ?", *filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []models.AuditLog
	offset := (page - 1) * pageSize
	err := query.Order("timestamp DESC, id DESC").Offset(offset).Limit(pageSize).Find(&entries).Error
	return entries, total, err
}
