// Package models 数据模型 - 下载活动统计
package models

import (
	"time"
)

// ActivityHour 按小时聚合的下载活动
type ActivityHour struct {
	HourBucket time.Time `gorm:"column:hour_bucket;primaryKey" json:"hour_bucket"`
	Albums     int64     `gorm:"column:albums;default:0" json:"albums"`
	Tracks     int64     `gorm:"column:tracks;default:0" json:"tracks"`
	Images     int64     `gorm:"column:images;default:0" json:"images"`
	Bytes      int64     `gorm:"column:bytes;default:0" json:"bytes"`
	Failures   int64     `gorm:"column:failures;default:0" json:"failures"`
}

// TableName 表名
func (ActivityHour) TableName() string {
	return "download_activity_hourly"
}

// HourOf 归一化到小时桶
func HourOf(t time.Time) time.Time {
	return t.Truncate(time.Hour)
}
