// Package models 数据模型 - 用户请求配额
package models

import (
	"time"
)

// UserStats 每用户请求计数
//
// RequestsToday 跨过日期边界时懒惰清零，不依赖定时任务。
type UserStats struct {
	UserID          int64     `gorm:"column:user_id;primaryKey;autoIncrement:false" json:"user_id"`
	RequestsToday   int       `gorm:"column:requests_today;default:0" json:"requests_today"`
	RequestsInQueue int       `gorm:"column:requests_in_queue;default:0" json:"requests_in_queue"`
	LastResetDate   string    `gorm:"column:last_reset_date;size:10" json:"last_reset_date"` // YYYY-MM-DD
	UpdatedAt       time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// TableName 表名
func (UserStats) TableName() string {
	return "user_download_stats"
}

// NeedsReset 是否需要按日期清零
func (s *UserStats) NeedsReset(today string) bool {
	return s.LastResetDate != today
}
