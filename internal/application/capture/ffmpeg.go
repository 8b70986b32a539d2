package capture

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"video-sentinel/internal/config"
	"video-sentinel/pkg/logger"
)

const chunkPattern = "chunk_*.mp4"

const (
	remuxTimeout = time.Minute
	probeTimeout = 15 * time.Second
)

// FFmpegSegmenter 使用 ffmpeg segment muxer 直接拷贝码流录制
type FFmpegSegmenter struct {
	ffmpeg       string
	ffprobe      string
	faststart    bool
	pollInterval time.Duration
	stopTimeout  time.Duration
}

// NewFFmpegSegmenter 创建 ffmpeg 切分器
func NewFFmpegSegmenter(cfg *config.CaptureConfig) *FFmpegSegmenter {
	bin := cfg.FFmpegPath
	if bin == "" {
		bin = "ffmpeg"
	}
	probe := "ffprobe"
	if dir := filepath.Dir(bin); dir != "." {
		probe = filepath.Join(dir, "ffprobe")
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 2 * time.Second
	}
	stop := cfg.StopTimeout
	if stop <= 0 {
		stop = 10 * time.Second
	}
	return &FFmpegSegmenter{
		ffmpeg:       bin,
		ffprobe:      probe,
		faststart:    cfg.Faststart,
		pollInterval: poll,
		stopTimeout:  stop,
	}
}

// SegmentArgs 构建 ffmpeg 分段录制参数
func SegmentArgs(streamURL string, chunk time.Duration, dir string) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if strings.HasPrefix(strings.ToLower(streamURL), "rtsp") {
		args = append(args, "-rtsp_transport", "tcp")
	}
	args = append(args,
		"-fflags", "+genpts",
		"-i", streamURL,
		"-map", "0:v:0",
		"-an",
		"-c:v", "copy",
		"-f", "segment",
		"-segment_time", strconv.Itoa(int(chunk.Seconds())),
		"-segment_format", "mp4",
		"-reset_timestamps", "1",
		"-strftime", "1",
		"-y",
		filepath.Join(dir, "chunk_%Y%m%d_%H%M%S.mp4"),
	)
	return args
}

// Run 启动 ffmpeg 并轮询输出目录；新文件出现即视为上一文件完成
func (s *FFmpegSegmenter) Run(ctx context.Context, opts Options, events Events) error {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create recordings dir: %w", err)
	}
	existing := make(map[string]bool)
	for _, p := range listChunks(opts.Dir) {
		existing[p] = true
	}

	cmd := exec.Command(s.ffmpeg, SegmentArgs(opts.StreamURL, opts.ChunkDuration, opts.Dir)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open ffmpeg stdin: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open ffmpeg stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	logger.Info(ctx, "ffmpeg segment recorder started", "pid", cmd.Process.Pid, "chunk_seconds", int(opts.ChunkDuration.Seconds()))

	go drainStderr(ctx, stderr)

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	var open string
	seen := make(map[string]bool)

	// 目录中比最新文件更早的文件都已完成
	scan := func() {
		files := listChunks(opts.Dir)
		for _, p := range files {
			if existing[p] || seen[p] {
				continue
			}
			seen[p] = true
			if open != "" {
				s.finalize(ctx, open, events)
			}
			open = p
			events.ChunkOpened(p)
		}
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			scan()

		case <-ctx.Done():
			// q 让 ffmpeg 写完当前分段的 moov 后退出
			_, _ = io.WriteString(stdin, "q\n")
			_ = stdin.Close()
			select {
			case <-exited:
			case <-time.After(s.stopTimeout):
				logger.Warn(ctx, "ffmpeg did not exit in time, killing", "timeout", s.stopTimeout)
				_ = cmd.Process.Kill()
				<-exited
			}
			scan()
			if open != "" {
				s.finalize(ctx, open, events)
			}
			return nil

		case werr := <-exited:
			scan()
			if open != "" {
				s.finalize(ctx, open, events)
			}
			if werr != nil {
				return fmt.Errorf("%w: %v", ErrStreamEnded, werr)
			}
			return ErrStreamEnded
		}
	}
}

// StopBudget 等待 ffmpeg 退出，再收尾最多两个分段
func (s *FFmpegSegmenter) StopBudget() time.Duration {
	per := probeTimeout
	if s.faststart {
		per += remuxTimeout
	}
	return s.stopTimeout + maxChunksOnStop*per
}

// finalize 空文件直接删除，否则可选 faststart 重封装并探测时长
func (s *FFmpegSegmenter) finalize(ctx context.Context, path string, events Events) {
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		logger.Warn(ctx, "ffmpeg produced empty chunk, discarding", "path", path)
		_ = os.Remove(path)
		events.ChunkClosed(Chunk{Path: path, Empty: true})
		return
	}
	if s.faststart {
		if err := s.remuxFaststart(ctx, path); err != nil {
			logger.Warn(ctx, "faststart remux failed, keeping original", "path", path, "error", err)
		}
	}
	d, err := s.probeDuration(ctx, path)
	if err != nil {
		logger.Debug(ctx, "ffprobe failed", "path", path, "error", err)
	}
	events.ChunkClosed(Chunk{Path: path, Duration: d})
}

func (s *FFmpegSegmenter) remuxFaststart(ctx context.Context, path string) error {
	ext := filepath.Ext(path)
	tmp := strings.TrimSuffix(path, ext) + "_faststart" + ext

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), remuxTimeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, s.ffmpeg, "-loglevel", "error", "-y", "-i", path, "-c", "copy", "-movflags", "+faststart", tmp)
	var out bytes.Buffer
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(out.String()))
	}
	return os.Rename(tmp, path)
}

func (s *FFmpegSegmenter) probeDuration(ctx context.Context, path string) (time.Duration, error) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, s.ffprobe, "-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", path)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return 0, err
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(out.String()), 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func listChunks(dir string) []string {
	files, _ := filepath.Glob(filepath.Join(dir, chunkPattern))
	files = slices.DeleteFunc(files, func(p string) bool {
		return strings.HasSuffix(p, "_faststart.mp4")
	})
	slices.Sort(files)
	return files
}

func drainStderr(ctx context.Context, r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			logger.Debug(ctx, "ffmpeg", "line", line)
		}
	}
}
