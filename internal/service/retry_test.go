// Package service 重试策略测试
package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/smysle/sakura-musicdl-go/internal/config"
	"github.com/smysle/sakura-musicdl-go/internal/provider"
)

func testRetryPolicy() *RetryPolicy {
	return NewRetryPolicy(&config.QueueConfig{
		MaxRetries:            8,
		InitialBackoffSeconds: 60,
		BackoffMultiplier:     2.5,
		MaxBackoffSeconds:     3600,
	})
}

func TestRetryPolicy_BackoffMonotonic(t *testing.T) {
	p := testRetryPolicy()

	prev := time.Duration(0)
	for i := 0; i < 20; i++ {
		backoff := p.Backoff(i)
		if backoff < prev {
			t.Errorf("退避时长应单调不减: Backoff(%d)=%v < Backoff(%d)=%v", i, backoff, i-1, prev)
		}
		prev = backoff
	}
}

func TestRetryPolicy_BackoffValues(t *testing.T) {
	p := testRetryPolicy()

	tests := []struct {
		retryCount int
		expected   time.Duration
	}{
		{0, 60 * time.Second},
		{1, 150 * time.Second},
		{2, 375 * time.Second},
		{3, time.Duration(937.5 * float64(time.Second))},
		{5, 3600 * time.Second},  // 5859s 超过上限
		{10, 3600 * time.Second}, // 封顶
		{50, 3600 * time.Second}, // float 溢出也封顶
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("retry_%d", tt.retryCount), func(t *testing.T) {
			if got := p.Backoff(tt.retryCount); got != tt.expected {
				t.Errorf("Backoff(%d) = %v, want %v", tt.retryCount, got, tt.expected)
			}
		})
	}
}

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	p := testRetryPolicy()

	retryable := provider.NewError(provider.ErrTimeout, "超时")
	notFound := provider.NewError(provider.ErrNotFound, "不存在")

	tests := []struct {
		name       string
		err        error
		retryCount int
		expected   bool
	}{
		{"可重试错误首次失败", retryable, 0, true},
		{"可重试错误接近上限", retryable, 7, true},
		{"重试次数耗尽", retryable, 8, false},
		{"内容不存在不重试", notFound, 0, false},
		{"内容不存在无论重试几次都不重试", notFound, 3, false},
		{"裸错误归为可重试", fmt.Errorf("其他错误"), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.ShouldRetry(tt.err, tt.retryCount); got != tt.expected {
				t.Errorf("ShouldRetry(%v, %d) = %v, want %v", tt.err, tt.retryCount, got, tt.expected)
			}
		})
	}
}

func TestRetryPolicy_NextRetryAt(t *testing.T) {
	p := testRetryPolicy()

	before := time.Now()
	next := p.NextRetryAt(0)
	after := time.Now()

	if next.Before(before.Add(60*time.Second)) || next.After(after.Add(60*time.Second)) {
		t.Errorf("NextRetryAt(0) 应为 now+60s，实际 %v", next)
	}
}
