package errors

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"strings"
)

var (
	capacityMarkers  = []string{"429", "rate limit", "ratelimit", "too many requests", "quota", "throttl", "slowdown", "slow down"}
	permanentMarkers = []string{"400", "401", "403", "404", "invalid", "unsupported", "malformed", "not found", "unauthorized", "forbidden", "no such file"}
	transientMarkers = []string{"timeout", "timed out", "deadline", "connection", "reset by peer", "eof", "unavailable", "500", "502", "503", "504", "temporar", "broken pipe"}
)

// ClassifyStatus 按 HTTP 状态码归类，0 表示未知
func ClassifyStatus(err error, status int, message string) *AppError {
	switch {
	case status == http.StatusTooManyRequests:
		return Capacity(err, message)
	case status == http.StatusRequestTimeout || status >= 500:
		return Transient(err, message)
	case status >= 400:
		return Permanent(err, message)
	default:
		return Classify(err, message)
	}
}

// Classify 将外部调用错误归为 Transient / Capacity / Permanent
// 已是 AppError 的保持原分类；无法判断时按 Transient 处理
func Classify(err error, message string) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, io.ErrUnexpectedEOF) || stderrors.Is(err, io.EOF) {
		return Transient(err, message)
	}
	if stderrors.Is(err, context.Canceled) {
		return Transient(err, message)
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return Transient(err, message)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, capacityMarkers):
		return Capacity(err, message)
	case containsAny(msg, transientMarkers):
		return Transient(err, message)
	case containsAny(msg, permanentMarkers):
		return Permanent(err, message)
	default:
		return Transient(err, message)
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
