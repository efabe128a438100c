// Package service 重试策略
package service

import (
	"math"
	"time"

	"github.com/smysle/sakura-musicdl-go/internal/config"
	"github.com/smysle/sakura-musicdl-go/internal/provider"
)

// RetryPolicy 重试退避策略，纯计算无状态
type RetryPolicy struct {
	maxRetries     int
	initialBackoff time.Duration
	multiplier     float64
	maxBackoff     time.Duration
}

// NewRetryPolicy 按配置创建策略
func NewRetryPolicy(cfg *config.QueueConfig) *RetryPolicy {
	return &RetryPolicy{
		maxRetries:     cfg.MaxRetries,
		initialBackoff: time.Duration(cfg.InitialBackoffSeconds) * time.Second,
		multiplier:     cfg.BackoffMultiplier,
		maxBackoff:     time.Duration(cfg.MaxBackoffSeconds) * time.Second,
	}
}

// MaxRetries 最大重试次数
func (p *RetryPolicy) MaxRetries() int {
	return p.maxRetries
}

// Backoff 第 retryCount 次重试前的等待时长
//
// initial * multiplier^retryCount，封顶 maxBackoff。
func (p *RetryPolicy) Backoff(retryCount int) time.Duration {
	backoff := time.Duration(float64(p.initialBackoff) * math.Pow(p.multiplier, float64(retryCount)))
	if backoff > p.maxBackoff || backoff < 0 {
		return p.maxBackoff
	}
	return backoff
}

// NextRetryAt 下一次重试时刻
func (p *RetryPolicy) NextRetryAt(retryCount int) time.Time {
	return time.Now().Add(p.Backoff(retryCount))
}

// ShouldRetry 判断失败是否值得重试
//
// 上游不存在该内容时重试是白费功夫；重试次数耗尽也不再重试。
func (p *RetryPolicy) ShouldRetry(err error, retryCount int) bool {
	if !provider.IsRetryable(err) {
		return false
	}
	return retryCount < p.maxRetries
}
