// Package service 损坏检测
package service

import (
	"sync"
	"time"

	"github.com/smysle/sakura-musicdl-go/internal/config"
	"github.com/smysle/sakura-musicdl-go/internal/database/repository"
	"github.com/smysle/sakura-musicdl-go/pkg/logger"
)

// WatchdogStore 检测器状态持久化接口
type WatchdogStore interface {
	Load() (*repository.WatchdogState, error)
	Save(state *repository.WatchdogState) error
}

// Watchdog 损坏检测器
//
// 记录最近若干次音频校验结果，窗口内失败达到阈值时要求重启上游；
// 连续成功会逐级降回基线。等级和成功计数持久化，窗口是瞬态的。
type Watchdog struct {
	mu sync.Mutex

	window        []bool // false 表示失败
	windowSize    int
	failThreshold int

	level                 int
	successes             int
	successesToDeescalate int
	lastRestartAt         *time.Time

	cooldownBase time.Duration
	cooldownMax  time.Duration

	store WatchdogStore
	now   func() time.Time
}

// NewWatchdog 创建检测器并恢复持久化状态
func NewWatchdog(cfg *config.WatchdogConfig, store WatchdogStore) (*Watchdog, error) {
	w := &Watchdog{
		windowSize:            cfg.WindowSize,
		failThreshold:         cfg.FailThreshold,
		successesToDeescalate: cfg.SuccessesToDeescalate,
		cooldownBase:          time.Duration(cfg.CooldownBaseSeconds) * time.Second,
		cooldownMax:           time.Duration(cfg.CooldownMaxSeconds) * time.Second,
		store:                 store,
		now:                   time.Now,
	}

	if store != nil {
		state, err := store.Load()
		if err != nil {
			return nil, err
		}
		w.level = state.Level
		w.successes = state.Successes
		w.lastRestartAt = state.LastRestartAt
	}
	return w, nil
}

// RecordResult 记录一次音频校验结果
//
// 返回 true 表示需要重启上游。窗口在发出信号时清空，
// 同一个窗口周期内只发一次信号。
func (w *Watchdog) RecordResult(success bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if success {
		w.successes++
		if w.level == 0 {
			return false
		}
		if w.successes >= w.successesToDeescalate {
			w.level--
			w.successes = 0
			logger.Info().Int("level", w.level).Msg("损坏检测降级")
		}
		// 每次成功都落盘，进程重启不丢降级进度
		w.persist()
		return false
	}

	w.push(false)

	failures := 0
	for _, ok := range w.window {
		if !ok {
			failures++
		}
	}
	if failures >= w.failThreshold {
		w.window = w.window[:0]
		return true
	}
	return false
}

// push 滑入一个结果，超出窗口大小时淘汰最旧的
func (w *Watchdog) push(ok bool) {
	w.window = append(w.window, ok)
	if len(w.window) > w.windowSize {
		w.window = w.window[len(w.window)-w.windowSize:]
	}
}

// RecordRestart 处理器实际触发重启后调用
//
// 升级冷却等级、清空窗口和降级计数，并持久化。
func (w *Watchdog) RecordRestart() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.level++
	w.successes = 0
	w.window = w.window[:0]
	w.lastRestartAt = &now
	w.persist()

	logger.Warn().
		Int("level", w.level).
		Dur("cooldown", w.cooldownDuration(w.level)).
		Msg("损坏检测升级并进入冷却")
}

// cooldownDuration 等级对应的冷却时长，min(base * 2^L, max)
func (w *Watchdog) cooldownDuration(level int) time.Duration {
	d := w.cooldownBase
	for i := 0; i < level; i++ {
		d *= 2
		if d >= w.cooldownMax {
			return w.cooldownMax
		}
	}
	if d > w.cooldownMax {
		return w.cooldownMax
	}
	return d
}

// InCooldown 是否处于重启后冷却期
func (w *Watchdog) InCooldown() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inCooldownLocked()
}

func (w *Watchdog) inCooldownLocked() bool {
	if w.lastRestartAt == nil {
		return false
	}
	return w.now().Before(w.lastRestartAt.Add(w.cooldownDuration(w.level)))
}

// AdminReset 管理员强制回到基线并立即解除冷却
func (w *Watchdog) AdminReset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.level = 0
	w.successes = 0
	w.window = w.window[:0]
	w.lastRestartAt = nil
	w.persist()

	logger.Info().Msg("损坏检测已由管理员重置")
}

// persist 保存等级和成功计数，调用方需持锁
func (w *Watchdog) persist() {
	if w.store == nil {
		return
	}
	err := w.store.Save(&repository.WatchdogState{
		Level:         w.level,
		Successes:     w.successes,
		LastRestartAt: w.lastRestartAt,
	})
	if err != nil {
		logger.Error().Err(err).Msg("持久化损坏检测状态失败")
	}
}

// WatchdogSnapshot 给管理接口的状态快照
type WatchdogSnapshot struct {
	Level             int        `json:"level"`
	Successes         int        `json:"successes_since_last_level_change"`
	LastRestartAt     *time.Time `json:"last_restart_at,omitempty"`
	InCooldown        bool       `json:"in_cooldown"`
	CooldownRemaining string     `json:"cooldown_remaining,omitempty"`
	RecentWindow      []bool     `json:"recent_window"`
}

// State 状态快照
func (w *Watchdog) State() WatchdogSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snapshot := WatchdogSnapshot{
		Level:         w.level,
		Successes:     w.successes,
		LastRestartAt: w.lastRestartAt,
		InCooldown:    w.inCooldownLocked(),
		RecentWindow:  append([]bool(nil), w.window...),
	}
	if snapshot.InCooldown {
		remaining := w.lastRestartAt.Add(w.cooldownDuration(w.level)).Sub(w.now())
		snapshot.CooldownRemaining = remaining.Round(time.Second).String()
	}
	return snapshot
}
