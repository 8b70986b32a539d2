// Package errors 提供统一的错误定义
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误 (1xxx)
	CodeSuccess            ErrorCode = "0"
	CodeUnknown            ErrorCode = "1000"
	CodeInvalidParam       ErrorCode = "1001"
	CodeUnauthorized       ErrorCode = "1002"
	CodeForbidden          ErrorCode = "1003"
	CodeNotFound           ErrorCode = "1004"
	CodeConflict           ErrorCode = "1005"
	CodeTooManyRequests    ErrorCode = "1006"
	CodeInternalError      ErrorCode = "1007"
	CodeServiceUnavailable ErrorCode = "1008"

	// 认证授权错误 (2xxx)
	CodeTokenExpired ErrorCode = "2001"
	CodeTokenInvalid ErrorCode = "2002"
	CodeTokenMissing ErrorCode = "2003"

	// 资源错误 (3xxx)
	CodeSegmentNotFound   ErrorCode = "3001"
	CodeRuleNotFound      ErrorCode = "3002"
	CodeRecordingNotFound ErrorCode = "3003"
	CodeFileNotFound      ErrorCode = "3004"

	// 业务错误 (4xxx)
	CodeDescribeFailed  ErrorCode = "4001"
	CodeValidation      ErrorCode = "4002"
	CodeSearchFailed    ErrorCode = "4003"
	CodeIndexFailed     ErrorCode = "4004"
	CodeLLMCallFailed   ErrorCode = "4005"
	CodeEmbeddingFailed ErrorCode = "4006"
	CodeStateConflict   ErrorCode = "4007"
	CodePermanentInput  ErrorCode = "4008"

	// 外部服务错误 (5xxx)
	CodeDatabaseError    ErrorCode = "5001"
	CodeCacheError       ErrorCode = "5002"
	CodeVectorDBError    ErrorCode = "5003"
	CodeStorageError     ErrorCode = "5004"
	CodeLLMProviderError ErrorCode = "5005"
	CodeTransientIO      ErrorCode = "5006"
	CodeCapacity         ErrorCode = "5007"
)

// AppError 应用错误
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Err        error     `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail 添加详细信息
func (e *AppError) WithDetail(detail string) *AppError {
	e.Detail = detail
	return e
}

// WithError 添加底层错误
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Err:        err,
	}
}

// Transient 网络/存储抖动，可退避重试
func Transient(err error, message string) *AppError {
	return Wrap(err, CodeTransientIO, message)
}

// Permanent 输入非法或不支持，不重试
func Permanent(err error, message string) *AppError {
	return Wrap(err, CodePermanentInput, message)
}

// Capacity 外部服务限流，按更长的退避重试
func Capacity(err error, message string) *AppError {
	return Wrap(err, CodeCapacity, message)
}

// StateConflict 状态冲突（如未录制时停止）
func StateConflict(message string) *AppError {
	return New(CodeStateConflict, message)
}

// codeToHTTPStatus 错误码转 HTTP 状态码
func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case CodeSuccess:
		return http.StatusOK
	case CodeInvalidParam, CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized, CodeTokenExpired, CodeTokenInvalid, CodeTokenMissing:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound, CodeSegmentNotFound, CodeRuleNotFound, CodeRecordingNotFound, CodeFileNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeStateConflict:
		return http.StatusConflict
	case CodePermanentInput:
		return http.StatusUnprocessableEntity
	case CodeTooManyRequests, CodeCapacity:
		return http.StatusTooManyRequests
	case CodeServiceUnavailable, CodeTransientIO:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// 预定义错误（只读，需要附加信息时用 New 构造新实例）
var (
	ErrInvalidParam       = New(CodeInvalidParam, "invalid parameter")
	ErrUnauthorized       = New(CodeUnauthorized, "unauthorized")
	ErrNotFound           = New(CodeNotFound, "resource not found")
	ErrTooManyRequests    = New(CodeTooManyRequests, "too many requests")
	ErrInternalError      = New(CodeInternalError, "internal server error")
	ErrServiceUnavailable = New(CodeServiceUnavailable, "service unavailable")

	ErrTokenExpired = New(CodeTokenExpired, "token expired")
	ErrTokenInvalid = New(CodeTokenInvalid, "token invalid")
	ErrTokenMissing = New(CodeTokenMissing, "token missing")

	ErrSegmentNotFound = New(CodeSegmentNotFound, "segment not found")
	ErrRuleNotFound    = New(CodeRuleNotFound, "alert rule not found")
	ErrFileNotFound    = New(CodeFileNotFound, "file not found")

	ErrNotRecording = New(CodeStateConflict, "not recording")
)

// IsAppError 检查错误链中是否有 AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError 将错误转换为 AppError
func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeUnknown, "unknown error")
}

// CodeOf 返回错误链中第一个 AppError 的错误码
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// IsPermanent 输入类错误，重试无意义
func IsPermanent(err error) bool {
	switch CodeOf(err) {
	case CodePermanentInput, CodeInvalidParam, CodeValidation, CodeStateConflict,
		CodeNotFound, CodeSegmentNotFound, CodeRuleNotFound, CodeFileNotFound:
		return true
	}
	return false
}

// IsCapacity 是否为限流错误
func IsCapacity(err error) bool {
	return CodeOf(err) == CodeCapacity
}

// IsRetryable 未归类的错误按可重试处理
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !IsPermanent(err)
}

// Kind 返回用于日志和指标的错误类别
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case IsCapacity(err):
		return "capacity"
	case CodeOf(err) == CodeStateConflict:
		return "state_conflict"
	case IsPermanent(err):
		return "permanent"
	default:
		return "transient"
	}
}
