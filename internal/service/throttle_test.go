// Package service 带宽限速测试
package service

import (
	"testing"
	"time"

	"github.com/smysle/sakura-musicdl-go/internal/config"
)

const mb = 1024 * 1024

func testThrottle() (*Throttle, *time.Time) {
	t := NewThrottle(&config.ThrottleConfig{MBPerMinute: 20, MBPerHour: 1500})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	t.now = func() time.Time { return now }
	return t, &now
}

func TestThrottle_EmptyNotThrottled(t *testing.T) {
	th, _ := testThrottle()
	if th.CheckBandwidth() {
		t.Error("没有任何样本时不应超限")
	}
}

func TestThrottle_ExactMinuteCeiling(t *testing.T) {
	th, _ := testThrottle()

	// 刚好达到每分钟上限即判定超限
	th.RecordDownload(20 * mb)
	if !th.CheckBandwidth() {
		t.Error("刚好达到每分钟上限应判定超限")
	}
}

func TestThrottle_OneByteUnderMinuteCeiling(t *testing.T) {
	th, _ := testThrottle()

	th.RecordDownload(20*mb - 1)
	if th.CheckBandwidth() {
		t.Error("差一字节不应判定超限")
	}
}

func TestThrottle_HourCeiling(t *testing.T) {
	th, now := testThrottle()

	// 分散在一小时内但躲开最近一分钟
	base := *now
	for i := 0; i < 50; i++ {
		*now = base.Add(time.Duration(i-55) * time.Minute)
		th.RecordDownload(30 * mb)
	}
	*now = base

	if !th.CheckBandwidth() {
		t.Error("小时窗口达到上限应判定超限")
	}
}

func TestThrottle_OldSamplesPruned(t *testing.T) {
	th, now := testThrottle()

	base := *now
	*now = base.Add(-2 * time.Hour)
	th.RecordDownload(5000 * mb)
	*now = base

	if th.CheckBandwidth() {
		t.Error("一小时前的样本应被清理，不计入预算")
	}

	if state := th.State(); state.HourBytes != 0 {
		t.Errorf("清理后小时字节数应为 0，实际 %d", state.HourBytes)
	}
}

func TestThrottle_MinuteWindowSlides(t *testing.T) {
	th, now := testThrottle()

	base := *now
	*now = base.Add(-5 * time.Minute)
	th.RecordDownload(20 * mb)
	*now = base

	// 超过一分钟的样本只计入小时窗口
	if th.CheckBandwidth() {
		t.Error("五分钟前的样本不应触发分钟限制")
	}

	state := th.State()
	if state.MinuteBytes != 0 {
		t.Errorf("分钟窗口应为 0，实际 %d", state.MinuteBytes)
	}
	if state.HourBytes != 20*mb {
		t.Errorf("小时窗口应为 %d，实际 %d", 20*mb, state.HourBytes)
	}
}

func TestThrottle_IgnoreNonPositive(t *testing.T) {
	th, _ := testThrottle()
	th.RecordDownload(0)
	th.RecordDownload(-5)

	if state := th.State(); state.HourBytes != 0 {
		t.Errorf("非正字节数不应记账，实际 %d", state.HourBytes)
	}
}
