// Package models 数据模型 - 键值状态
package models

import (
	"time"
)

// KVState 组件状态持久化（当前只有损坏检测器使用）
type KVState struct {
	Key       string    `gorm:"column:k;primaryKey;size:64" json:"key"`
	Value     string    `gorm:"column:v;type:text" json:"value"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// TableName 表名
func (KVState) TableName() string {
	return "component_state"
}
