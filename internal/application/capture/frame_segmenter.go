package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Frame 一帧数据，PTS 为相对流起点的偏移
type Frame struct {
	PTS      time.Duration
	Duration time.Duration
	Data     []byte
}

// End 帧结束时刻
func (f Frame) End() time.Duration {
	return f.PTS + f.Duration
}

// FrameReader 逐帧读取，流结束返回 io.EOF
type FrameReader interface {
	ReadFrame(ctx context.Context) (Frame, error)
	Close() error
}

// FrameSource 按流地址打开帧读取器
type FrameSource func(ctx context.Context, streamURL string) (FrameReader, error)

// FrameSegmenter 按帧时间戳切分，帧数据原样写入文件
type FrameSegmenter struct {
	open FrameSource
	ext  string
}

// NewFrameSegmenter 创建帧切分器
func NewFrameSegmenter(open FrameSource, ext string) *FrameSegmenter {
	if ext == "" {
		ext = ".bin"
	}
	return &FrameSegmenter{open: open, ext: ext}
}

type chunkFile struct {
	path   string
	f      *os.File
	w      *bufio.Writer
	start  time.Duration
	end    time.Duration
	frames int
}

// Run 读取帧直到 ctx 取消；EOF 返回 ErrStreamEnded
func (s *FrameSegmenter) Run(ctx context.Context, opts Options, events Events) error {
	if opts.ChunkDuration <= 0 {
		return fmt.Errorf("chunk duration must be positive")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create recordings dir: %w", err)
	}

	reader, err := s.open(ctx, opts.StreamURL)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}
	defer reader.Close()

	var (
		cur        *chunkFile
		chunkStart time.Duration
		started    bool
		index      int
	)

	finish := func(end time.Duration) error {
		if cur == nil {
			return nil
		}
		c := cur
		cur = nil
		if err := c.w.Flush(); err != nil {
			_ = c.f.Close()
			return fmt.Errorf("failed to flush chunk: %w", err)
		}
		if err := c.f.Close(); err != nil {
			return fmt.Errorf("failed to close chunk: %w", err)
		}
		events.ChunkClosed(Chunk{Path: c.path, Duration: end - c.start})
		return nil
	}

	for {
		if ctx.Err() != nil {
			return finish(lastEnd(cur))
		}

		frame, err := reader.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return finish(lastEnd(cur))
			}
			// 未请求停止时流结束，与 ffmpeg 退出同样视为失败
			if errors.Is(err, io.EOF) {
				if ferr := finish(lastEnd(cur)); ferr != nil {
					return errors.Join(ErrStreamEnded, ferr)
				}
				return ErrStreamEnded
			}
			if ferr := finish(lastEnd(cur)); ferr != nil {
				return errors.Join(err, ferr)
			}
			return fmt.Errorf("failed to read frame: %w", err)
		}

		if !started {
			chunkStart = frame.PTS
			started = true
		}

		// 跨过边界：当前分段按整段时长关闭，停顿期间并入前一段以保持连续
		if frame.PTS >= chunkStart+opts.ChunkDuration {
			next := chunkStart + opts.ChunkDuration
			for frame.PTS >= next+opts.ChunkDuration {
				next += opts.ChunkDuration
			}
			if err := finish(next); err != nil {
				return err
			}
			chunkStart = next
		}

		if cur == nil {
			path := filepath.Join(opts.Dir, fmt.Sprintf("chunk_%s_%04d%s", time.Now().Format("20060102_150405"), index, s.ext))
			index++
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("failed to create chunk: %w", err)
			}
			cur = &chunkFile{path: path, f: f, w: bufio.NewWriter(f), start: chunkStart}
			events.ChunkOpened(path)
		}

		if _, err := cur.w.Write(frame.Data); err != nil {
			if ferr := finish(lastEnd(cur)); ferr != nil {
				return errors.Join(err, ferr)
			}
			return fmt.Errorf("failed to write frame: %w", err)
		}
		cur.frames++
		cur.end = frame.End()
	}
}

func lastEnd(c *chunkFile) time.Duration {
	if c == nil {
		return 0
	}
	return c.end
}
