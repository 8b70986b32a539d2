package dto

import (
	"time"

	"video-sentinel/internal/domain/entity"
	"video-sentinel/internal/domain/repository"
)

// SegmentResponse 分段详情
type SegmentResponse struct {
	ID          string `json:"id"`
	StreamID    string `json:"stream_id"`
	RecordingID string `json:"recording_id"`
	Sequence    int64  `json:"sequence"`
	State       string `json:"state"`
	StartedAt   string `json:"started_at"`
	DurationMs  int64  `json:"duration_ms"`
	LocalPath   string `json:"local_path"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
	Attempts    int    `json:"attempts"`
	LastError   string `json:"last_error,omitempty"`
	FinishedAt  string `json:"finished_at,omitempty"`
}

// SegmentListResponse 分段分页列表
type SegmentListResponse struct {
	Items    []*SegmentResponse `json:"items"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}

// ToSegmentResponse 转换分段
func ToSegmentResponse(s *entity.Segment) *SegmentResponse {
	resp := &SegmentResponse{
		ID:          s.ID,
		StreamID:    s.StreamID,
		RecordingID: s.RecordingID,
		Sequence:    s.Sequence,
		State:       string(s.State),
		StartedAt:   s.StartedAt.Format(time.RFC3339),
		DurationMs:  s.DurationMs,
		LocalPath:   s.LocalPath,
		Location:    s.Location,
		Description: s.Description,
		Attempts:    s.Attempts,
		LastError:   s.LastError,
	}
	if s.FinishedAt != nil {
		resp.FinishedAt = s.FinishedAt.Format(time.RFC3339)
	}
	return resp
}

// ToSegmentListResponse 转换分段分页结果
func ToSegmentListResponse(r *repository.PagedResult[*entity.Segment]) *SegmentListResponse {
	out := make([]*SegmentResponse, 0, len(r.Items))
	for _, s := range r.Items {
		out = append(out, ToSegmentResponse(s))
	}
	return &SegmentListResponse{
		Items:    out,
		Total:    r.Total,
		Page:     r.Page,
		PageSize: r.PageSize,
	}
}
