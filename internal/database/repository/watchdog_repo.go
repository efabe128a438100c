// Package repository 损坏检测器状态仓库
package repository

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/smysle/sakura-musicdl-go/internal/database"
	"github.com/smysle/sakura-musicdl-go/internal/database/models"
	"gorm.io/gorm"
)

const watchdogStateKey = "corruption_watchdog"

// WatchdogState 跨重启持久化的检测器状态
//
// 滑动窗口是瞬态的，不持久化。
type WatchdogState struct {
	Level         int        `json:"level"`
	Successes     int        `json:"successes_since_last_level_change"`
	LastRestartAt *time.Time `json:"last_restart_at,omitempty"`
}

// WatchdogRepository 检测器状态仓库（kv 表）
type WatchdogRepository struct {
	db *gorm.DB
}

// NewWatchdogRepository 创建仓库
func NewWatchdogRepository() *WatchdogRepository {
	return &WatchdogRepository{db: database.GetDB()}
}

// NewWatchdogRepositoryWithDB 指定数据库实例创建（测试用）
func NewWatchdogRepositoryWithDB(db *gorm.DB) *WatchdogRepository {
	return &WatchdogRepository{db: db}
}

// Load 读取持久化状态，没有记录时返回零值状态
func (r *WatchdogRepository) Load() (*WatchdogState, error) {
	var row models.KVState
	err := r.db.Where("k = ?", watchdogStateKey).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &WatchdogState{}, nil
	}
	if err != nil {
		return nil, err
	}

	var state WatchdogState
	if err := json.Unmarshal([]byte(row.Value), &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Save 写入持久化状态
func (r *WatchdogRepository) Save(state *WatchdogState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}

	row := models.KVState{
		Key:       watchdogStateKey,
		Value:     string(data),
		UpdatedAt: time.Now(),
	}
	return r.db.Save(&row).Error
}
