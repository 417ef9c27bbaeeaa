package common

import (
	"errors"
	"fmt"
)

// AppError 应用级错误结构
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 让 errors.Is 可以按错误码匹配 (例如与 ErrNotFound 比较)
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Err == nil && t.Code == e.Code
}

// WrapError 包装错误
func WrapError(code, message string, err error) error {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewError 创建新错误
func NewError(code, message string) error {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// CodeOf 返回错误链上第一个 AppError 的错误码，没有则返回空串
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// 错误码常量
const (
	ErrCodeGitHubAPI      = "GITHUB_API_ERROR"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeRetryExhausted = "RETRY_EXHAUSTED"
	ErrCodeRateLimited    = "RATE_LIMITED"
	ErrCodeDecode         = "DECODE_ERROR"
	ErrCodeInvalidConfig  = "INVALID_CONFIG"
	ErrCodeStorage        = "STORAGE_ERROR"
	ErrCodeNotification   = "NOTIFICATION_ERROR"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

// 缺席哨兵：资源不存在，或者重试预算耗尽。调用方只应把它当作"跳过这一项"。
var (
	ErrNotFound       = &AppError{Code: ErrCodeNotFound, Message: "resource not found"}
	ErrRetryExhausted = &AppError{Code: ErrCodeRetryExhausted, Message: "retries exhausted"}
)

// IsAbsent 判断错误是否为缺席哨兵
func IsAbsent(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrRetryExhausted)
}
