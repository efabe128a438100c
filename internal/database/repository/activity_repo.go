// Package repository 下载活动统计仓库
package repository

import (
	"errors"
	"time"

	"github.com/smysle/sakura-musicdl-go/internal/database"
	"github.com/smysle/sakura-musicdl-go/internal/database/models"
	"gorm.io/gorm"
)

// ActivityRepository 按小时聚合的活动仓库
type ActivityRepository struct {
	db *gorm.DB
}

// NewActivityRepository 创建仓库
func NewActivityRepository() *ActivityRepository {
	return &ActivityRepository{db: database.GetDB()}
}

// NewActivityRepositoryWithDB 指定数据库实例创建（测试用）
func NewActivityRepositoryWithDB(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// ActivityDelta 单次记账的增量
type ActivityDelta struct {
	Albums   int64
	Tracks   int64
	Images   int64
	Bytes    int64
	Failures int64
}

// Record 累加到当前小时桶
func (r *ActivityRepository) Record(delta ActivityDelta) error {
	bucket := models.HourOf(time.Now())

	return r.db.Transaction(func(tx *gorm.DB) error {
		var row models.ActivityHour
		err := tx.Where("hour_bucket = ?", bucket).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&models.ActivityHour{
				HourBucket: bucket,
				Albums:     delta.Albums,
				Tracks:     delta.Tracks,
				Images:     delta.Images,
				Bytes:      delta.Bytes,
				Failures:   delta.Failures,
			}).Error
		}
		if err != nil {
			return err
		}

		return tx.Model(&models.ActivityHour{}).
			Where("hour_bucket = ?", bucket).
			Updates(map[string]interface{}{
				"albums":   gorm.Expr("albums + ?", delta.Albums),
				"tracks":   gorm.Expr("tracks + ?", delta.Tracks),
				"images":   gorm.Expr("images + ?", delta.Images),
				"bytes":    gorm.Expr("bytes + ?", delta.Bytes),
				"failures": gorm.Expr("failures + ?", delta.Failures),
			}).Error
	})
}

// Range 获取时间范围内的小时桶
func (r *ActivityRepository) Range(from, to time.Time) ([]models.ActivityHour, error) {
	var rows []models.ActivityHour
	err := r.db.Where("hour_bucket >= ? AND hour_bucket < ?", models.HourOf(from), to).
		Order("hour_bucket ASC").
		Find(&rows).Error
	return rows, err
}

// DayTotal 汇总最近 24 小时
func (r *ActivityRepository) DayTotal() (*models.ActivityHour, error) {
	var total models.ActivityHour
	err := r.db.Model(&models.ActivityHour{}).
		Select("COALESCE(SUM(albums),0) AS albums, COALESCE(SUM(tracks),0) AS tracks, "+
			"COALESCE(SUM(images),0) AS images, COALESCE(SUM(bytes),0) AS bytes, "+
			"COALESCE(SUM(failures),0) AS failures").
		Where("hour_bucket >= ?", time.Now().Add(-24*time.Hour)).
		Scan(&total).Error
	return &total, err
}
