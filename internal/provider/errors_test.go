// Package provider 错误分类测试
package provider

import (
	"fmt"
	"testing"
)

func TestFromStatus(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		expected ErrorType
	}{
		{"404 是内容不存在", 404, ErrNotFound},
		{"504 是超时", 504, ErrTimeout},
		{"429 是连接类", 429, ErrConnection},
		{"503 是连接类", 503, ErrConnection},
		{"400 归为未知", 400, ErrUnknown},
		{"500 归为未知", 500, ErrUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromStatus(tt.code, "x")
			if err.Type != tt.expected {
				t.Errorf("FromStatus(%d).Type = %v, want %v", tt.code, err.Type, tt.expected)
			}
		})
	}
}

func TestError_Retryable(t *testing.T) {
	for _, et := range []ErrorType{ErrConnection, ErrTimeout, ErrParse, ErrStorage, ErrUnknown} {
		e := &Error{Type: et}
		if !e.Retryable() {
			t.Errorf("%v 应该可重试", et)
		}
	}

	e := &Error{Type: ErrNotFound}
	if e.Retryable() {
		t.Error("not_found 不应该重试")
	}
}

func TestTypeOf_Wrapped(t *testing.T) {
	inner := NewError(ErrTimeout, "请求超时")
	wrapped := fmt.Errorf("下载失败: %w", inner)

	if got := TypeOf(wrapped); got != ErrTimeout {
		t.Errorf("TypeOf(包裹后) = %v, want %v", got, ErrTimeout)
	}

	if got := TypeOf(fmt.Errorf("裸错误")); got != ErrUnknown {
		t.Errorf("非本包错误应归为 unknown，实际 %v", got)
	}
}
