package dto

import (
	"time"

	"video-sentinel/internal/application/capture"
	"video-sentinel/internal/application/maintenance"
)

// StartRecordingRequest 开始录制请求
// chunk_duration_minutes 省略时用默认值，显式给出时必须在 [1,60]
type StartRecordingRequest struct {
	StreamURL            string `json:"stream_url" binding:"required"`
	ChunkDurationMinutes *int   `json:"chunk_duration_minutes,omitempty"`
}

// ChunkMinutes 未给出时返回 0
func (r *StartRecordingRequest) ChunkMinutes() int {
	if r.ChunkDurationMinutes == nil {
		return 0
	}
	return *r.ChunkDurationMinutes
}

// RecordingActionResponse 开始/停止录制响应
type RecordingActionResponse struct {
	Status    string   `json:"status"`
	StreamURL string   `json:"stream_url"`
	Warnings  []string `json:"warnings,omitempty"`
}

// RecordingStatusResponse 录制状态
// 未在录制时 stream_url 为 null
type RecordingStatusResponse struct {
	Recording            bool    `json:"recording"`
	StreamURL            *string `json:"stream_url"`
	State                string  `json:"state"`
	StreamID             string  `json:"stream_id,omitempty"`
	RecordingID          string  `json:"recording_id,omitempty"`
	ChunkDurationMinutes int     `json:"chunk_duration_minutes,omitempty"`
	StartedAt            string  `json:"started_at,omitempty"`
	CurrentSegment       string  `json:"current_segment,omitempty"`
	SegmentsClosed       int     `json:"segments_closed"`
	Error                string  `json:"error,omitempty"`
}

// ToRecordingActionResponse 转换开始/停止结果
func ToRecordingActionResponse(status string, st capture.Status) *RecordingActionResponse {
	return &RecordingActionResponse{
		Status:    status,
		StreamURL: st.StreamURL,
		Warnings:  st.Warnings,
	}
}

// ToRecordingStatusResponse 转换录制状态
func ToRecordingStatusResponse(st capture.Status) *RecordingStatusResponse {
	resp := &RecordingStatusResponse{
		Recording:      st.Recording(),
		State:          string(st.State),
		SegmentsClosed: st.SegmentsClosed,
		Error:          st.Error,
	}
	if !resp.Recording {
		return resp
	}
	url := st.StreamURL
	resp.StreamURL = &url
	resp.StreamID = st.StreamID
	resp.RecordingID = st.RecordingID
	resp.ChunkDurationMinutes = int(st.ChunkDuration / time.Minute)
	resp.CurrentSegment = st.CurrentSegment
	if !st.StartedAt.IsZero() {
		resp.StartedAt = st.StartedAt.Format(time.RFC3339)
	}
	return resp
}

// ClearDatabaseResponse 清库结果
type ClearDatabaseResponse struct {
	RecordsDeleted  int64 `json:"records_deleted"`
	SegmentsDeleted int64 `json:"segments_deleted"`
	TriggersDeleted int64 `json:"triggers_deleted"`
	FilesDeleted    int   `json:"files_deleted"`
}

// ToClearDatabaseResponse 转换清库结果
func ToClearDatabaseResponse(r *maintenance.ClearResult) *ClearDatabaseResponse {
	return &ClearDatabaseResponse{
		RecordsDeleted:  r.RecordsDeleted,
		SegmentsDeleted: r.SegmentsDeleted,
		TriggersDeleted: r.TriggersDeleted,
		FilesDeleted:    r.FilesDeleted,
	}
}
