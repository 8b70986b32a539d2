// Package query 提供自然语言检索、按需分析与统计
package query

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"video-sentinel/internal/application/index"
	"video-sentinel/internal/config"
	"video-sentinel/internal/domain/entity"
	embedclient "video-sentinel/internal/infrastructure/embedding"
	"video-sentinel/internal/infrastructure/vlm"
	apperrors "video-sentinel/pkg/errors"
	"video-sentinel/pkg/logger"
)

var tracer = otel.Tracer("query")

const (
	defaultResults     = 5
	defaultMaxResults  = 25
	defaultMaxDistance = 0.70
	defaultMaxMinutes  = 1440
	maxQueryLength     = 1000
	trailingWindow     = 24 * time.Hour
)

// Options 检索参数
type Options struct {
	DefaultResults      int
	MaxResults          int
	MaxDistance         float64
	AnalysisMaxDistance float64
	AnalysisProvider    string
	StatsMaxMinutes     float64
	Location            *time.Location
}

// OptionsFromConfig 从全局配置构建检索参数
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DefaultResults:      cfg.Query.DefaultResults,
		MaxResults:          cfg.Query.MaxResults,
		MaxDistance:         cfg.Query.MaxDistance,
		AnalysisMaxDistance: cfg.Query.AnalysisMaxDistance,
		AnalysisProvider:    cfg.Query.AnalysisProvider,
		StatsMaxMinutes:     cfg.Query.StatsMaxMinutes,
		Location:            cfg.App.Location(),
	}
}

// Engine 查询引擎，只读访问索引
type Engine struct {
	index     *index.Index
	embedder  embedding.Embedder
	describer vlm.Describer
	opts      Options
	now       func() time.Time
}

// NewEngine 创建查询引擎
func NewEngine(idx *index.Index, emb embedding.Embedder, describer vlm.Describer, opts Options) *Engine {
	if opts.DefaultResults <= 0 {
		opts.DefaultResults = defaultResults
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = defaultMaxResults
	}
	if opts.MaxDistance <= 0 {
		opts.MaxDistance = defaultMaxDistance
	}
	if opts.AnalysisMaxDistance <= 0 {
		opts.AnalysisMaxDistance = opts.MaxDistance
	}
	if opts.StatsMaxMinutes <= 0 {
		opts.StatsMaxMinutes = defaultMaxMinutes
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Engine{
		index:     idx,
		embedder:  emb,
		describer: describer,
		opts:      opts,
		now:       time.Now,
	}
}

// FindClips 检索与查询最相近的分段，按距离升序，同距离较新的在前
func (e *Engine) FindClips(ctx context.Context, in Input) ([]Clip, error) {
	return e.findClips(ctx, in, e.opts.MaxDistance)
}

func (e *Engine) findClips(ctx context.Context, in Input, maxDistance float64) ([]Clip, error) {
	ctx, span := tracer.Start(ctx, "query.FindClips")
	defer span.End()

	q, err := normalizeQuery(in.Query)
	if err != nil {
		return nil, err
	}
	from, to, err := e.window(in.TargetDate)
	if err != nil {
		return nil, err
	}
	k := e.limit(in.NResults)

	vec, err := embedclient.Embed(ctx, e.embedder, q)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	hits, err := e.index.Search(ctx, index.SearchQuery{
		Vector:      vec,
		From:        from,
		To:          to,
		Limit:       k,
		MaxDistance: maxDistance,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	clips := make([]Clip, 0, len(hits))
	for _, h := range hits {
		clips = append(clips, Clip{Record: h.Record, Distance: h.Distance})
	}
	span.SetAttributes(attribute.Int("query.k", k), attribute.Int("query.clips", len(clips)))
	return clips, nil
}

// Analyze 对命中分段逐个调用描述服务，单个失败记录在条目中不中断整批
func (e *Engine) Analyze(ctx context.Context, in Input) ([]AnalysisItem, error) {
	clips, err := e.findClips(ctx, in, e.opts.AnalysisMaxDistance)
	if err != nil {
		return nil, err
	}
	if len(clips) == 0 {
		logger.Info(ctx, "no relevant clips for analysis", "target_date", in.TargetDate)
		return []AnalysisItem{}, nil
	}

	prompt := strings.TrimSpace(in.Query)
	items := make([]AnalysisItem, 0, len(clips))
	for _, c := range clips {
		item := AnalysisItem{Location: c.Record.Location, LocalPath: c.Record.LocalPath}
		text, err := e.describer.Describe(ctx, vlm.Request{
			Provider: e.opts.AnalysisProvider,
			VideoURL: c.Record.Location,
			Prompt:   prompt,
		})
		if err != nil {
			logger.Warn(ctx, "clip analysis failed", "segment_id", c.Record.SegmentID, "error", err.Error())
			item.Error = err.Error()
		} else {
			item.Analysis = text
		}
		items = append(items, item)
	}
	return items, nil
}

// AvailableDates 有索引记录的日期，新的在前
func (e *Engine) AvailableDates(ctx context.Context) ([]string, error) {
	dates, err := e.index.Dates(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to list dates")
	}
	if dates == nil {
		dates = []string{}
	}
	return dates, nil
}

// Stats 最近 24 小时已处理的分段数与时长
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	sum, err := e.index.Summarize(ctx, e.now().Add(-trailingWindow))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to summarize index")
	}
	minutes := float64(sum.DurationMs) / float64(time.Minute/time.Millisecond)
	return &Stats{
		ChunksProcessed: sum.Records,
		TotalMinutes:    round1(minutes),
		MaxMinutes:      e.opts.StatsMaxMinutes,
		ProgressPercent: math.Min(100, round1(minutes/e.opts.StatsMaxMinutes*100)),
	}, nil
}

// window 指定日期取当地自然日，否则取最近 24 小时
func (e *Engine) window(targetDate string) (time.Time, time.Time, error) {
	targetDate = strings.TrimSpace(targetDate)
	if targetDate == "" {
		return e.now().Add(-trailingWindow), time.Time{}, nil
	}
	day, err := time.ParseInLocation(entity.DateLayout, targetDate, e.opts.Location)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.New(apperrors.CodeValidation, "target_date must be YYYY-MM-DD")
	}
	return day, day.AddDate(0, 0, 1), nil
}

func (e *Engine) limit(n int) int {
	if n <= 0 {
		n = e.opts.DefaultResults
	}
	return max(1, min(n, e.opts.MaxResults))
}

func normalizeQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", apperrors.New(apperrors.CodeValidation, "query is required")
	}
	if len([]rune(q)) > maxQueryLength {
		return "", apperrors.New(apperrors.CodeValidation, "query is too long")
	}
	return q, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
