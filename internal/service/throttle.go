// Package service 带宽限速
package service

import (
	"sync"
	"time"

	"github.com/smysle/sakura-musicdl-go/internal/config"
)

// sample 一次下载的记录
type sample struct {
	ts    time.Time
	bytes int64
}

// Throttle 滑动窗口带宽限速器
//
// 只做事后统计：下载完成后记账，下一轮检查时隔窗判断。
// 达到上限（含等于）即判定超限。
type Throttle struct {
	mu         sync.Mutex
	samples    []sample
	minuteCeil int64 // 每分钟字节上限
	hourCeil   int64 // 每小时字节上限
	now        func() time.Time
}

// NewThrottle 按配置创建限速器
func NewThrottle(cfg *config.ThrottleConfig) *Throttle {
	return &Throttle{
		minuteCeil: int64(cfg.MBPerMinute) * 1024 * 1024,
		hourCeil:   int64(cfg.MBPerHour) * 1024 * 1024,
		now:        time.Now,
	}
}

// CheckBandwidth 判断带宽预算是否耗尽
//
// 先清理一小时前的样本，再分别统计近一分钟和近一小时。
func (t *Throttle) CheckBandwidth() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.prune(now)

	minuteAgo := now.Add(-time.Minute)
	var minuteSum, hourSum int64
	for _, s := range t.samples {
		hourSum += s.bytes
		if s.ts.After(minuteAgo) || s.ts.Equal(minuteAgo) {
			minuteSum += s.bytes
		}
	}

	return minuteSum >= t.minuteCeil || hourSum >= t.hourCeil
}

// RecordDownload 下载完成后记录实际传输字节数
func (t *Throttle) RecordDownload(bytes int64) {
	if bytes <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.samples = append(t.samples, sample{ts: t.now(), bytes: bytes})
}

// prune 丢弃一小时前的样本，调用方需持锁
func (t *Throttle) prune(now time.Time) {
	hourAgo := now.Add(-time.Hour)
	idx := 0
	for idx < len(t.samples) && t.samples[idx].ts.Before(hourAgo) {
		idx++
	}
	if idx > 0 {
		t.samples = t.samples[idx:]
	}
}

// ThrottleState 限速器当前状态快照
type ThrottleState struct {
	MinuteBytes int64 `json:"minute_bytes"`
	MinuteLimit int64 `json:"minute_limit"`
	HourBytes   int64 `json:"hour_bytes"`
	HourLimit   int64 `json:"hour_limit"`
	Throttled   bool  `json:"throttled"`
}

// State 给管理接口用的快照
func (t *Throttle) State() ThrottleState {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.prune(now)

	minuteAgo := now.Add(-time.Minute)
	var minuteSum, hourSum int64
	for _, s := range t.samples {
		hourSum += s.bytes
		if s.ts.After(minuteAgo) || s.ts.Equal(minuteAgo) {
			minuteSum += s.bytes
		}
	}

	return ThrottleState{
		MinuteBytes: minuteSum,
		MinuteLimit: t.minuteCeil,
		HourBytes:   hourSum,
		HourLimit:   t.hourCeil,
		Throttled:   minuteSum >= t.minuteCeil || hourSum >= t.hourCeil,
	}
}
