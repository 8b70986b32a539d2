package entity

import "time"

// DateLayout 日历日期格式
const DateLayout = "2006-01-02"

// IndexRecord 可检索的分段描述记录
type IndexRecord struct {
	// ID 单调递增，作为告警水位线
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SegmentID    string    `gorm:"type:uuid;not null;uniqueIndex" json:"segment_id"`
	StreamID     string    `gorm:"type:varchar(128);not null;index" json:"stream_id"`
	Description  string    `gorm:"type:text;not null" json:"description"`
	Embedding    []float32 `gorm:"-" json:"-"`
	CapturedAt   time.Time `gorm:"not null;index" json:"captured_at"`
	CapturedDate string    `gorm:"type:char(10);not null;index" json:"captured_date"`
	DurationMs   int64     `gorm:"not null;default:0" json:"duration_ms"`
	Location     string    `gorm:"type:text" json:"location"`
	LocalPath    string    `gorm:"type:text" json:"local_path"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName GORM 表名
func (IndexRecord) TableName() string { return "index_records" }

// NewIndexRecord 由已描述的分段构建索引记录
func NewIndexRecord(seg *Segment, embedding []float32, loc *time.Location) *IndexRecord {
	if loc == nil {
		loc = time.Local
	}
	return &IndexRecord{
		SegmentID:    seg.ID,
		StreamID:     seg.StreamID,
		Description:  seg.Description,
		Embedding:    embedding,
		CapturedAt:   seg.StartedAt,
		CapturedDate: seg.StartedAt.In(loc).Format(DateLayout),
		DurationMs:   seg.DurationMs,
		Location:     seg.Location,
		LocalPath:    seg.LocalPath,
		CreatedAt:    time.Now(),
	}
}

// Minutes 分段时长（分钟）
func (r *IndexRecord) Minutes() float64 {
	return float64(r.DurationMs) / float64(time.Minute/time.Millisecond)
}
