package query

import "video-sentinel/internal/domain/entity"

// Input 检索输入
type Input struct {
	Query    string
	NResults int
	// TargetDate 形如 2006-01-02，为空表示最近 24 小时
	TargetDate string
}

// Clip 命中的分段
type Clip struct {
	Record   *entity.IndexRecord
	Distance float64
}

// AnalysisItem 单个分段的分析结果，Analysis 与 Error 二选一
type AnalysisItem struct {
	Location  string
	LocalPath string
	Analysis  string
	Error     string
}

// Stats 最近 24 小时的处理统计
type Stats struct {
	ChunksProcessed int64
	TotalMinutes    float64
	MaxMinutes      float64
	ProgressPercent float64
}
