// Package service 损坏检测测试
package service

import (
	"testing"
	"time"

	"github.com/smysle/sakura-musicdl-go/internal/config"
	"github.com/smysle/sakura-musicdl-go/internal/database/repository"
)

// fakeWatchdogStore 内存版状态仓库
type fakeWatchdogStore struct {
	state repository.WatchdogState
	saves int
}

func (f *fakeWatchdogStore) Load() (*repository.WatchdogState, error) {
	s := f.state
	return &s, nil
}

func (f *fakeWatchdogStore) Save(state *repository.WatchdogState) error {
	f.state = *state
	f.saves++
	return nil
}

func testWatchdogConfig() *config.WatchdogConfig {
	return &config.WatchdogConfig{
		WindowSize:            4,
		FailThreshold:         2,
		SuccessesToDeescalate: 10,
		CooldownBaseSeconds:   600,
		CooldownMaxSeconds:    7200,
	}
}

func newTestWatchdog(t *testing.T, store WatchdogStore) *Watchdog {
	t.Helper()
	w, err := NewWatchdog(testWatchdogConfig(), store)
	if err != nil {
		t.Fatalf("创建检测器失败: %v", err)
	}
	return w
}

func TestWatchdog_TriggerOncePerWindowFill(t *testing.T) {
	w := newTestWatchdog(t, nil)

	// 第一次失败不够阈值
	if w.RecordResult(false) {
		t.Error("一次失败不应触发重启")
	}
	// 第二次失败达到 2/4 阈值
	if !w.RecordResult(false) {
		t.Error("窗口内两次失败应触发重启")
	}
	// 信号发出后窗口清空，下一次失败不该立即再触发
	if w.RecordResult(false) {
		t.Error("窗口清空后单次失败不应再触发")
	}
	if !w.RecordResult(false) {
		t.Error("窗口再次积满失败应再次触发")
	}
}

func TestWatchdog_SuccessesDontTrigger(t *testing.T) {
	w := newTestWatchdog(t, nil)

	for i := 0; i < 20; i++ {
		if w.RecordResult(true) {
			t.Fatal("成功不应触发重启")
		}
	}
	// 成功夹着单次失败也不触发
	if w.RecordResult(false) {
		t.Error("窗口内单次失败不应触发")
	}
}

func TestWatchdog_RestartEscalatesAndCooldown(t *testing.T) {
	store := &fakeWatchdogStore{}
	w := newTestWatchdog(t, store)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	w.RecordRestart()

	state := w.State()
	if state.Level != 1 {
		t.Errorf("重启后等级应为 1，实际 %d", state.Level)
	}
	if !w.InCooldown() {
		t.Error("重启后应处于冷却期")
	}

	// 等级 1 冷却 600*2 = 1200 秒
	now = now.Add(19 * time.Minute)
	if !w.InCooldown() {
		t.Error("19 分钟后应仍在冷却期")
	}
	now = now.Add(2 * time.Minute)
	if w.InCooldown() {
		t.Error("21 分钟后冷却应已结束")
	}

	if store.state.Level != 1 {
		t.Errorf("等级应已持久化，实际 %d", store.state.Level)
	}
}

func TestWatchdog_CooldownCapped(t *testing.T) {
	w := newTestWatchdog(t, nil)

	tests := []struct {
		level    int
		expected time.Duration
	}{
		{0, 600 * time.Second},
		{1, 1200 * time.Second},
		{2, 2400 * time.Second},
		{3, 4800 * time.Second},
		{4, 7200 * time.Second}, // 9600 封顶
		{10, 7200 * time.Second},
	}

	for _, tt := range tests {
		if got := w.cooldownDuration(tt.level); got != tt.expected {
			t.Errorf("cooldownDuration(%d) = %v, want %v", tt.level, got, tt.expected)
		}
	}
}

func TestWatchdog_Deescalation(t *testing.T) {
	store := &fakeWatchdogStore{}
	w := newTestWatchdog(t, store)

	w.RecordRestart()
	if w.State().Level != 1 {
		t.Fatalf("前置条件：等级应为 1")
	}

	// 9 次成功还不够
	for i := 0; i < 9; i++ {
		w.RecordResult(true)
	}
	if w.State().Level != 1 {
		t.Error("9 次成功不应降级")
	}

	// 第 10 次成功降回 0
	w.RecordResult(true)
	state := w.State()
	if state.Level != 0 {
		t.Errorf("10 次连续成功后应降回 0，实际 %d", state.Level)
	}
	if state.Successes != 0 {
		t.Errorf("降级后成功计数应清零，实际 %d", state.Successes)
	}
}

func TestWatchdog_AdminReset(t *testing.T) {
	store := &fakeWatchdogStore{}
	w := newTestWatchdog(t, store)

	w.RecordRestart()
	w.RecordRestart()
	if !w.InCooldown() {
		t.Fatal("前置条件：应在冷却期")
	}

	w.AdminReset()

	state := w.State()
	if state.Level != 0 {
		t.Errorf("重置后等级应为 0，实际 %d", state.Level)
	}
	if w.InCooldown() {
		t.Error("重置应立即解除冷却")
	}
	if store.state.Level != 0 {
		t.Error("重置应持久化")
	}
}

// 降级进度要能跨进程重启：每次成功都要落到仓库，
// 不能等到降级发生时才写（那时计数已归零）
func TestWatchdog_SuccessProgressSurvivesRestart(t *testing.T) {
	store := &fakeWatchdogStore{}
	w := newTestWatchdog(t, store)

	w.RecordResult(false)
	w.RecordResult(false)
	w.RecordRestart()

	for i := 0; i < 5; i++ {
		w.RecordResult(true)
	}
	if got := w.State().Successes; got != 5 {
		t.Fatalf("内存中成功计数 = %d, want 5", got)
	}

	// 用同一个仓库重建，模拟进程重启
	restored := newTestWatchdog(t, store)
	state := restored.State()
	if state.Level != 1 {
		t.Errorf("重启后等级 = %d, want 1", state.Level)
	}
	if state.Successes != 5 {
		t.Errorf("重启后成功计数 = %d, want 5", state.Successes)
	}
}

func TestWatchdog_RestorePersistedState(t *testing.T) {
	restartAt := time.Now().Add(-time.Minute)
	store := &fakeWatchdogStore{
		state: repository.WatchdogState{Level: 2, Successes: 3, LastRestartAt: &restartAt},
	}

	w := newTestWatchdog(t, store)

	state := w.State()
	if state.Level != 2 {
		t.Errorf("应恢复持久化等级 2，实际 %d", state.Level)
	}
	if state.Successes != 3 {
		t.Errorf("应恢复成功计数 3，实际 %d", state.Successes)
	}
	// 等级 2 冷却 40 分钟，1 分钟前重启过
	if !w.InCooldown() {
		t.Error("恢复后应仍在冷却期")
	}
}
