package dto

import (
	"time"

	"video-sentinel/internal/application/query"
)

// SearchRequest 检索/分析请求
type SearchRequest struct {
	Query      string `json:"query" binding:"required"`
	NResults   int    `json:"n_results,omitempty" binding:"omitempty,min=1,max=50"`
	TargetDate string `json:"target_date,omitempty"`
}

// ToInput 转换为查询引擎输入
func (r *SearchRequest) ToInput() query.Input {
	return query.Input{
		Query:      r.Query,
		NResults:   r.NResults,
		TargetDate: r.TargetDate,
	}
}

// ClipMetadata 片段元数据
type ClipMetadata struct {
	SegmentID    string `json:"segment_id"`
	StreamID     string `json:"stream_id"`
	Description  string `json:"description"`
	CapturedAt   string `json:"captured_at"`
	CapturedDate string `json:"captured_date"`
	DurationMs   int64  `json:"duration_ms"`
}

// ClipResponse 检索命中的片段
type ClipResponse struct {
	Location  string        `json:"location"`
	LocalPath string        `json:"local_path"`
	Metadata  *ClipMetadata `json:"metadata"`
	Distance  float64       `json:"distance"`
}

// SearchResponse 检索响应
type SearchResponse struct {
	Clips []*ClipResponse `json:"clips"`
	Query string          `json:"query"`
}

// ToSearchResponse 转换检索结果
func ToSearchResponse(q string, clips []query.Clip) *SearchResponse {
	out := make([]*ClipResponse, 0, len(clips))
	for _, c := range clips {
		rec := c.Record
		out = append(out, &ClipResponse{
			Location:  rec.Location,
			LocalPath: rec.LocalPath,
			Metadata: &ClipMetadata{
				SegmentID:    rec.SegmentID,
				StreamID:     rec.StreamID,
				Description:  rec.Description,
				CapturedAt:   rec.CapturedAt.Format(time.RFC3339),
				CapturedDate: rec.CapturedDate,
				DurationMs:   rec.DurationMs,
			},
			Distance: c.Distance,
		})
	}
	return &SearchResponse{Clips: out, Query: q}
}

// AnalysisItemResponse 单个片段的分析结果，analysis 与 error 二选一
type AnalysisItemResponse struct {
	Location  string `json:"location"`
	LocalPath string `json:"local_path,omitempty"`
	Analysis  string `json:"analysis,omitempty"`
	Error     string `json:"error,omitempty"`
}

// AnalysisResponse 分析响应
type AnalysisResponse struct {
	Results []*AnalysisItemResponse `json:"results"`
	Query   string                  `json:"query"`
}

// ToAnalysisResponse 转换分析结果
func ToAnalysisResponse(q string, items []query.AnalysisItem) *AnalysisResponse {
	out := make([]*AnalysisItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, &AnalysisItemResponse{
			Location:  it.Location,
			LocalPath: it.LocalPath,
			Analysis:  it.Analysis,
			Error:     it.Error,
		})
	}
	return &AnalysisResponse{Results: out, Query: q}
}

// DatesResponse 有录像的日期
type DatesResponse struct {
	Dates []string `json:"dates"`
}

// StatsResponse 处理统计
type StatsResponse struct {
	ChunksProcessed int64   `json:"chunks_processed"`
	TotalMinutes    float64 `json:"total_minutes"`
	MaxMinutes      float64 `json:"max_minutes"`
	ProgressPercent float64 `json:"progress_percent"`
}

// ToStatsResponse 转换统计
func ToStatsResponse(st *query.Stats) *StatsResponse {
	return &StatsResponse{
		ChunksProcessed: st.ChunksProcessed,
		TotalMinutes:    st.TotalMinutes,
		MaxMinutes:      st.MaxMinutes,
		ProgressPercent: st.ProgressPercent,
	}
}
