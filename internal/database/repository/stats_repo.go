// Package repository 用户请求配额仓库
package repository

import (
	"errors"
	"time"

	"github.com/smysle/sakura-musicdl-go/internal/database"
	"github.com/smysle/sakura-musicdl-go/internal/database/models"
	"gorm.io/gorm"
)

// StatsRepository 用户请求计数仓库
type StatsRepository struct {
	db *gorm.DB
}

// NewStatsRepository 创建仓库
func NewStatsRepository() *StatsRepository {
	return &StatsRepository{db: database.GetDB()}
}

// NewStatsRepositoryWithDB 指定数据库实例创建（测试用）
func NewStatsRepositoryWithDB(db *gorm.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// Get 获取用户计数，跨日时懒惰清零
func (r *StatsRepository) Get(userID int64) (*models.UserStats, error) {
	var stats models.UserStats
	err := r.db.Where("user_id = ?", userID).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.UserStats{
			UserID:        userID,
			LastResetDate: today(),
		}, nil
	}
	if err != nil {
		return nil, err
	}

	if stats.NeedsReset(today()) {
		stats.RequestsToday = 0
		stats.LastResetDate = today()
	}
	return &stats, nil
}

// IncrementRequest 请求入队时累加计数
func (r *StatsRepository) IncrementRequest(userID int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var stats models.UserStats
		err := tx.Where("user_id = ?", userID).First(&stats).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&models.UserStats{
				UserID:          userID,
				RequestsToday:   1,
				RequestsInQueue: 1,
				LastResetDate:   today(),
				UpdatedAt:       time.Now(),
			}).Error
		}
		if err != nil {
			return err
		}

		// 跨日清零
		if stats.NeedsReset(today()) {
			stats.RequestsToday = 0
			stats.LastResetDate = today()
		}
		stats.RequestsToday++
		stats.RequestsInQueue++
		stats.UpdatedAt = time.Now()
		return tx.Save(&stats).Error
	})
}

// DecrementInQueue 顶层请求到终态时回落排队计数
func (r *StatsRepository) DecrementInQueue(userID int64) error {
	return r.db.Model(&models.UserStats{}).
		Where("user_id = ? AND requests_in_queue > 0", userID).
		Updates(map[string]interface{}{
			"requests_in_queue": gorm.Expr("requests_in_queue - 1"),
			"updated_at":        time.Now(),
		}).Error
}

func today() string {
	return time.Now().Format("2006-01-02")
}
