// Package logger 基于 slog 的结构化日志，上下文中的追踪与业务标识自动附加到每条日志
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// ContextKey 日志上下文键
type ContextKey string

const (
	TraceIDKey   ContextKey = "trace_id"
	SpanIDKey    ContextKey = "span_id"
	RequestIDKey ContextKey = "request_id"
	UserIDKey    ContextKey = "user_id"
	StreamIDKey  ContextKey = "stream_id"
	SegmentIDKey ContextKey = "segment_id"
)

// 按输出顺序排列
var contextKeys = []ContextKey{TraceIDKey, SpanIDKey, RequestIDKey, UserIDKey, StreamIDKey, SegmentIDKey}

var current atomic.Pointer[slog.Logger]

// Init 初始化全局日志器，输出到 stdout
func Init(level, format string) {
	SetDefault(New(os.Stdout, level, format))
}

// New 创建日志器，format 为 json 时输出 JSON，否则输出文本
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: true,
	}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// SetDefault 替换全局日志器
func SetDefault(l *slog.Logger) {
	current.Store(l)
	slog.SetDefault(l)
}

// ParseLevel 未知级别按 info 处理
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default 全局日志器，未初始化时使用 info/json
func Default() *slog.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	l := New(os.Stdout, "info", "json")
	if current.CompareAndSwap(nil, l) {
		return l
	}
	return current.Load()
}

// FromContext 附带上下文标识的日志器
func FromContext(ctx context.Context) *slog.Logger {
	l := Default()
	var attrs []any
	for _, key := range contextKeys {
		if v := ctx.Value(key); v != nil {
			attrs = append(attrs, string(key), v)
		}
	}
	if len(attrs) == 0 {
		return l
	}
	return l.With(attrs...)
}

// WithContext 写入日志上下文
func WithContext(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}

// WithSegment 写入流与分段标识
func WithSegment(ctx context.Context, streamID, segmentID string) context.Context {
	return WithContext(WithContext(ctx, StreamIDKey, streamID), SegmentIDKey, segmentID)
}

func Debug(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Debug(msg, args...)
}

func Info(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Info(msg, args...)
}

func Warn(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Warn(msg, args...)
}

// Error err 非空时以 error 字段附加
func Error(ctx context.Context, msg string, err error, args ...any) {
	if err != nil {
		args = append(args, "error", err.Error())
	}
	FromContext(ctx).Error(msg, args...)
}

// Fatal 记录错误后退出进程
func Fatal(ctx context.Context, msg string, err error, args ...any) {
	Error(ctx, msg, err, args...)
	os.Exit(1)
}
