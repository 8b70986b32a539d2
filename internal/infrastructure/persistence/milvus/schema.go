package milvus

import (
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// CollectionSegments 视频分段描述向量集合
	CollectionSegments = "segments"

	fieldSegmentID  = "segment_id"
	fieldCapturedAt = "captured_at"
	fieldVector     = "vector"
)

// SegmentsSchema 分段向量 Collection Schema，captured_at 为 Unix 毫秒
func SegmentsSchema(dim int) *entity.Schema {
	return &entity.Schema{
		CollectionName: CollectionSegments,
		Description:    "Video segment description embeddings",
		Fields: []*entity.Field{
			{
				Name:       fieldSegmentID,
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     fieldCapturedAt,
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     fieldVector,
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": strconv.Itoa(dim),
				},
			},
		},
	}
}
