// Package repository 下载队列数据仓库
package repository

import (
	"errors"
	"time"

	"github.com/smysle/sakura-musicdl-go/internal/database"
	"github.com/smysle/sakura-musicdl-go/internal/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// activeStatuses 未到终态的状态集合
var activeStatuses = []models.QueueStatus{
	models.StatusPending, models.StatusInProgress, models.StatusRetryWaiting,
}

// parentSettleStatuses 允许收口迁移的父条目状态
//
// 除了正常处理中的父条目，failed 的父条目在管理员重试
// 单个失败子条目后，子条目再次到终态时也必须能重新收口。
var parentSettleStatuses = []models.QueueStatus{
	models.StatusInProgress, models.StatusFailed,
}

// QueueRepository 下载队列仓库
//
// 所有状态迁移都是「检查当前状态再更新」的条件更新，
// 并发调用下同一迁移最多生效一次。
type QueueRepository struct {
	db *gorm.DB
}

// NewQueueRepository 创建队列仓库
func NewQueueRepository() *QueueRepository {
	return &QueueRepository{db: database.GetDB()}
}

// NewQueueRepositoryWithDB 指定数据库实例创建（测试用）
func NewQueueRepositoryWithDB(db *gorm.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

// EnqueueIfAbsent 内容不在活动队列时入队
//
// 存在性检查和插入在同一事务内完成，检查带排他锁，
// 并发请求同一内容只有一个会真正建行。返回 false 表示已有活动条目。
func (r *QueueRepository) EnqueueIfAbsent(item *models.QueueItem) (bool, error) {
	created := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&models.QueueItem{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("content_type = ? AND content_id = ? AND status IN ?",
				item.ContentType, item.ContentID, activeStatuses).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		if item.CreatedAt.IsZero() {
			item.CreatedAt = time.Now()
		}
		if item.Status == "" {
			item.Status = models.StatusPending
		}
		if err := tx.Create(item).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

// GetItem 根据 ID 获取条目
func (r *QueueRepository) GetItem(id string) (*models.QueueItem, error) {
	var item models.QueueItem
	err := r.db.Where("id = ?", id).First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// GetNextPending 获取下一个待处理条目
//
// 按优先级升序、创建时间升序排序；队列为空返回 nil（不是错误）。
func (r *QueueRepository) GetNextPending() (*models.QueueItem, error) {
	var item models.QueueItem
	err := r.db.Where("status = ?", models.StatusPending).
		Order("priority ASC, created_at ASC").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ClaimForProcessing 原子认领条目
//
// 仅当条目仍是 pending 时迁移到 in_progress。
// 返回 false 表示别的调用者先认领了，属于正常情况而非错误。
func (r *QueueRepository) ClaimForProcessing(id string) (bool, error) {
	now := time.Now()
	result := r.db.Model(&models.QueueItem{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Updates(map[string]interface{}{
			"status":          models.StatusInProgress,
			"started_at":      now,
			"last_attempt_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkCompleted 标记完成
func (r *QueueRepository) MarkCompleted(id string, bytes int64, durationMS int64) error {
	return r.db.Model(&models.QueueItem{}).
		Where("id = ? AND status = ?", id, models.StatusInProgress).
		Updates(map[string]interface{}{
			"status":                 models.StatusCompleted,
			"completed_at":           time.Now(),
			"bytes_downloaded":       bytes,
			"processing_duration_ms": durationMS,
			"error_type":             nil,
			"error_message":          nil,
		}).Error
}

// MarkRetryWaiting 标记等待重试并累加重试计数
func (r *QueueRepository) MarkRetryWaiting(id string, nextRetryAt time.Time, errType, errMsg string) error {
	return r.db.Model(&models.QueueItem{}).
		Where("id = ? AND status = ?", id, models.StatusInProgress).
		Updates(map[string]interface{}{
			"status":        models.StatusRetryWaiting,
			"next_retry_at": nextRetryAt,
			"retry_count":   gorm.Expr("retry_count + 1"),
			"error_type":    errType,
			"error_message": errMsg,
		}).Error
}

// MarkFailed 标记终态失败
func (r *QueueRepository) MarkFailed(id string, errType, errMsg string) error {
	return r.db.Model(&models.QueueItem{}).
		Where("id = ? AND status = ?", id, models.StatusInProgress).
		Updates(map[string]interface{}{
			"status":        models.StatusFailed,
			"completed_at":  time.Now(),
			"error_type":    errType,
			"error_message": errMsg,
		}).Error
}

// CreateChildren 为专辑父条目创建子条目
//
// 单事务执行，父条目进入处理后只会创建一次。
func (r *QueueRepository) CreateChildren(parentID string, children []models.QueueItem) error {
	if len(children) == 0 {
		return nil
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		var parent models.QueueItem
		if err := tx.Where("id = ?", parentID).First(&parent).Error; err != nil {
			return err
		}
		if parent.ContentType != models.ContentAlbum {
			return errors.New("父条目不是专辑类型")
		}

		// 已有子条目则跳过，保证只创建一次
		var existing int64
		if err := tx.Model(&models.QueueItem{}).
			Where("parent_id = ?", parentID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}

		now := time.Now()
		for i := range children {
			children[i].ParentID = &parent.ID
			children[i].Status = models.StatusPending
			children[i].Priority = parent.Priority
			children[i].Source = parent.Source
			children[i].UserID = parent.UserID
			children[i].MaxRetries = parent.MaxRetries
			children[i].CreatedAt = now
		}
		return tx.Create(&children).Error
	})
}

// GetChildrenProgress 统计子条目各状态数量
func (r *QueueRepository) GetChildrenProgress(parentID string) (*models.ChildrenProgress, error) {
	return childrenProgress(r.db, parentID)
}

func childrenProgress(db *gorm.DB, parentID string) (*models.ChildrenProgress, error) {
	var rows []struct {
		Status models.QueueStatus
		Count  int64
	}
	err := db.Model(&models.QueueItem{}).
		Select("status, COUNT(*) AS count").
		Where("parent_id = ?", parentID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	progress := &models.ChildrenProgress{}
	for _, row := range rows {
		progress.Total += row.Count
		switch row.Status {
		case models.StatusPending:
			progress.Pending = row.Count
		case models.StatusInProgress:
			progress.InProgress = row.Count
		case models.StatusRetryWaiting:
			progress.Retrying = row.Count
		case models.StatusCompleted:
			progress.Completed = row.Count
		case models.StatusFailed:
			progress.Failed = row.Count
		}
	}
	return progress, nil
}

// DecideParentStatus 由子条目进度推导父条目终态
//
// 全部完成 => completed；有失败且其余都到终态 => failed；
// 还有未到终态的子条目 => 不迁移。
func DecideParentStatus(p *models.ChildrenProgress) (models.QueueStatus, bool) {
	if !p.AllTerminal() {
		return "", false
	}
	if p.Failed > 0 {
		return models.StatusFailed, true
	}
	return models.StatusCompleted, true
}

// CheckParentCompletion 检查并迁移父条目终态
//
// 返回迁移后的状态；子条目尚未全部结束时返回 ("", false, nil)。
// 已经 failed 的父条目也会参与迁移：重试过的子条目全部成功后
// 父条目能从 failed 翻到 completed。
func (r *QueueRepository) CheckParentCompletion(parentID string) (models.QueueStatus, bool, error) {
	var newStatus models.QueueStatus
	var done bool

	err := r.db.Transaction(func(tx *gorm.DB) error {
		progress, err := childrenProgress(tx, parentID)
		if err != nil {
			return err
		}

		status, ok := DecideParentStatus(progress)
		if !ok {
			return nil
		}

		updates := map[string]interface{}{
			"status":       status,
			"completed_at": time.Now(),
		}
		if status == models.StatusFailed {
			errType := "partial"
			errMsg := "部分子条目下载失败"
			updates["error_type"] = errType
			updates["error_message"] = errMsg
		}

		result := tx.Model(&models.QueueItem{}).
			Where("id = ? AND status IN ?", parentID, parentSettleStatuses).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 1 {
			newStatus = status
			done = true
		}
		return nil
	})
	return newStatus, done, err
}

// FindByContent 按内容查找条目
func (r *QueueRepository) FindByContent(contentType models.ContentType, contentID string) (*models.QueueItem, error) {
	var item models.QueueItem
	err := r.db.Where("content_type = ? AND content_id = ?", contentType, contentID).
		Order("created_at DESC").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// IsInQueue 内容是否在队列中（含终态）
func (r *QueueRepository) IsInQueue(contentType models.ContentType, contentID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.QueueItem{}).
		Where("content_type = ? AND content_id = ?", contentType, contentID).
		Count(&count).Error
	return count > 0, err
}

// IsInActiveQueue 内容是否在活动队列中（未到终态）
func (r *QueueRepository) IsInActiveQueue(contentType models.ContentType, contentID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.QueueItem{}).
		Where("content_type = ? AND content_id = ? AND status IN ?",
			contentType, contentID, activeStatuses).
		Count(&count).Error
	return count > 0, err
}

// PromoteDueRetries 把重试时间已到的条目提升回 pending
func (r *QueueRepository) PromoteDueRetries() (int64, error) {
	result := r.db.Model(&models.QueueItem{}).
		Where("status = ? AND next_retry_at <= ?", models.StatusRetryWaiting, time.Now()).
		Updates(map[string]interface{}{
			"status":        models.StatusPending,
			"next_retry_at": nil,
		})
	return result.RowsAffected, result.Error
}

// FindStaleInProgress 查找滞留的处理中条目
//
// 只用于告警展示，绝不自动改状态。
func (r *QueueRepository) FindStaleInProgress(age time.Duration) ([]models.QueueItem, error) {
	var items []models.QueueItem
	cutoff := time.Now().Add(-age)
	err := r.db.Where("status = ? AND started_at < ?", models.StatusInProgress, cutoff).
		Order("started_at ASC").
		Find(&items).Error
	return items, err
}

// CountByStatus 按状态统计
func (r *QueueRepository) CountByStatus() (map[models.QueueStatus]int64, error) {
	var rows []struct {
		Status models.QueueStatus
		Count  int64
	}
	err := r.db.Model(&models.QueueItem{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.QueueStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// CountByPriority 按优先级统计未到终态的条目
func (r *QueueRepository) CountByPriority() (map[models.Priority]int64, error) {
	var rows []struct {
		Priority models.Priority
		Count    int64
	}
	err := r.db.Model(&models.QueueItem{}).
		Select("priority, COUNT(*) AS count").
		Where("status IN ?", activeStatuses).
		Group("priority").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.Priority]int64, len(rows))
	for _, row := range rows {
		counts[row.Priority] = row.Count
	}
	return counts, nil
}

// ListFailed 分页获取失败条目
func (r *QueueRepository) ListFailed(page, pageSize int) ([]models.QueueItem, int64, error) {
	var items []models.QueueItem
	var total int64

	query := r.db.Model(&models.QueueItem{}).Where("status = ?", models.StatusFailed)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("completed_at DESC").Offset(offset).Limit(pageSize).Find(&items).Error
	return items, total, err
}

// retryPlan 管理员重试的执行方式
type retryPlan int

const (
	retryNone      retryPlan = iota // 不可重试
	retryReEnqueue                  // 条目本身回到 pending
	retryChildren                   // 重置失败子条目，父条目回到 in_progress
)

// adminRetryPlan 决定失败条目的重试方式
//
// 已拆分过子条目的专辑父条目不能直接回 pending：重新处理会因为
// 子条目已存在而跳过创建，父条目会永远滞留在 in_progress。
// 这种父条目改为重置失败的子条目，由正常收口流程收尾。
func adminRetryPlan(item *models.QueueItem, childCount int64) retryPlan {
	if item.Status != models.StatusFailed {
		return retryNone
	}
	if item.ContentType == models.ContentAlbum && childCount > 0 {
		return retryChildren
	}
	return retryReEnqueue
}

// resetToPending 重回 pending 时清空的字段
func resetToPending() map[string]interface{} {
	return map[string]interface{}{
		"status":        models.StatusPending,
		"retry_count":   0,
		"next_retry_at": nil,
		"completed_at":  nil,
		"error_type":    nil,
		"error_message": nil,
	}
}

// AdminRetry 管理员手动重试失败条目
//
// 普通条目重置为 pending 并清空错误和重试计数；
// 已拆分子条目的专辑父条目则重置其失败的子条目并回到 in_progress，
// 等子条目重新到终态后由收口流程决定最终状态。
// 返回 false 表示条目不存在或不是 failed 状态。
func (r *QueueRepository) AdminRetry(id string) (bool, error) {
	retried := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var item models.QueueItem
		if err := tx.Where("id = ?", id).First(&item).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		var childCount int64
		if item.ContentType == models.ContentAlbum {
			if err := tx.Model(&models.QueueItem{}).
				Where("parent_id = ?", id).
				Count(&childCount).Error; err != nil {
				return err
			}
		}

		switch adminRetryPlan(&item, childCount) {
		case retryChildren:
			if err := tx.Model(&models.QueueItem{}).
				Where("parent_id = ? AND status = ?", id, models.StatusFailed).
				Updates(resetToPending()).Error; err != nil {
				return err
			}
			result := tx.Model(&models.QueueItem{}).
				Where("id = ? AND status = ?", id, models.StatusFailed).
				Updates(map[string]interface{}{
					"status":        models.StatusInProgress,
					"started_at":    time.Now(),
					"completed_at":  nil,
					"error_type":    nil,
					"error_message": nil,
				})
			if result.Error != nil {
				return result.Error
			}
			retried = result.RowsAffected == 1
		case retryReEnqueue:
			result := tx.Model(&models.QueueItem{}).
				Where("id = ? AND status = ?", id, models.StatusFailed).
				Updates(resetToPending())
			if result.Error != nil {
				return result.Error
			}
			retried = result.RowsAffected == 1
		}
		return nil
	})
	return retried, err
}

// ListByUser 分页获取某用户的顶层请求
func (r *QueueRepository) ListByUser(userID int64, page, pageSize int) ([]models.QueueItem, int64, error) {
	var items []models.QueueItem
	var total int64

	query := r.db.Model(&models.QueueItem{}).
		Where("requested_by_user_id = ? AND parent_id IS NULL", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&items).Error
	return items, total, err
}
