// Package capture 负责直播流的分段录制
package capture

import (
	"context"
	"errors"
	"time"
)

// ErrStreamEnded 未请求停止时流意外结束
var ErrStreamEnded = errors.New("stream ended unexpectedly")

// maxChunksOnStop 停止时最多收尾的分段数：当前分段和停止前刚出现的新分段
const maxChunksOnStop = 2

// Options 单次录制参数
type Options struct {
	StreamURL     string
	ChunkDuration time.Duration
	// Dir 分段文件输出目录
	Dir string
}

// Chunk 已落盘的分段文件
type Chunk struct {
	Path string
	// Duration 实际时长，<=0 表示未知，由录制器按墙钟补齐
	Duration time.Duration
	// Empty 没有写入任何帧，文件已丢弃
	Empty bool
}

// Events 分段边界回调，调用顺序为 Opened, Closed, Opened, Closed ...
type Events interface {
	ChunkOpened(path string)
	ChunkClosed(chunk Chunk)
}

// Segmenter 把直播流切成固定时长的文件
// Run 阻塞直到流结束或 ctx 取消；ctx 取消时须先完成当前分段再返回 nil
type Segmenter interface {
	Run(ctx context.Context, opts Options, events Events) error
}
