// Package provider 上游内容源客户端
package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType 上游错误分类
type ErrorType string

const (
	ErrConnection ErrorType = "connection" // 网络或服务不可用，可重试
	ErrTimeout    ErrorType = "timeout"    // 超时，可重试
	ErrParse      ErrorType = "parse"      // 响应解析失败，可重试
	ErrStorage    ErrorType = "storage"    // 本地写入失败，可重试
	ErrNotFound   ErrorType = "not_found"  // 上游不存在该内容，不重试
	ErrUnknown    ErrorType = "unknown"    // 其他，可重试
)

// Error 带分类的上游错误
type Error struct {
	Type       ErrorType
	StatusCode int
	Message    string
}

// Error 实现 error 接口
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Retryable 是否值得重试
//
// 只有内容不存在是确定性失败，其余都可能是暂时的。
func (e *Error) Retryable() bool {
	return e.Type != ErrNotFound
}

// NewError 构造分类错误
func NewError(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// FromStatus 从 HTTP 状态码推导分类
func FromStatus(code int, msg string) *Error {
	var t ErrorType
	switch code {
	case http.StatusNotFound:
		t = ErrNotFound
	case http.StatusGatewayTimeout:
		t = ErrTimeout
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		t = ErrConnection
	default:
		t = ErrUnknown
	}
	return &Error{Type: t, StatusCode: code, Message: msg}
}

// TypeOf 提取错误分类，非本包错误归为 unknown
func TypeOf(err error) ErrorType {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Type
	}
	return ErrUnknown
}

// IsRetryable 判断错误是否可重试
func IsRetryable(err error) bool {
	return TypeOf(err) != ErrNotFound
}
