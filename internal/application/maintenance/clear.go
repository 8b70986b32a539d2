// Package maintenance 提供清库等运维操作
package maintenance

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"video-sentinel/internal/application/index"
	"video-sentinel/internal/domain/repository"
	apperrors "video-sentinel/pkg/errors"
	"video-sentinel/pkg/logger"
)

// RecordingState 录制状态查询
type RecordingState interface {
	IsRecording() bool
}

// ClearResult 清库结果
type ClearResult struct {
	RecordsDeleted  int64
	SegmentsDeleted int64
	TriggersDeleted int64
	FilesDeleted    int
}

// Service 运维服务
type Service struct {
	recorder      RecordingState
	index         *index.Index
	segments      repository.SegmentRepository
	triggers      repository.AlertTriggerRepository
	recordingsDir string
}

// NewService 创建运维服务
func NewService(
	recorder RecordingState,
	idx *index.Index,
	segments repository.SegmentRepository,
	triggers repository.AlertTriggerRepository,
	recordingsDir string,
) *Service {
	return &Service{
		recorder:      recorder,
		index:         idx,
		segments:      segments,
		triggers:      triggers,
		recordingsDir: recordingsDir,
	}
}

// ClearDatabase 删除索引记录、向量、分段、触发记录和本地录像
// 录制中返回 StateConflict；规则保留，触发计数不回退
func (s *Service) ClearDatabase(ctx context.Context) (*ClearResult, error) {
	if s.recorder != nil && s.recorder.IsRecording() {
		return nil, apperrors.StateConflict("cannot clear database while recording")
	}

	res := &ClearResult{}
	var err error
	if res.RecordsDeleted, err = s.index.Clear(ctx); err != nil {
		return nil, err
	}
	if res.TriggersDeleted, err = s.triggers.DeleteAll(ctx); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to clear alert triggers")
	}
	if res.SegmentsDeleted, err = s.segments.DeleteAll(ctx); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to clear segments")
	}
	if res.FilesDeleted, err = removeRecordings(s.recordingsDir); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStorageError, "failed to delete local recordings")
	}

	logger.Info(ctx, "database cleared",
		"records_deleted", res.RecordsDeleted,
		"segments_deleted", res.SegmentsDeleted,
		"triggers_deleted", res.TriggersDeleted,
		"files_deleted", res.FilesDeleted,
	)
	return res, nil
}

// removeRecordings 删除目录下的全部文件和空子目录，根目录保留
func removeRecordings(root string) (int, error) {
	if root == "" {
		return 0, nil
	}
	var dirs []string
	deleted := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if path != root {
				dirs = append(dirs, path)
			}
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		deleted++
		return nil
	})
	if err != nil {
		return deleted, err
	}
	// 先删最深的目录
	for i := len(dirs) - 1; i >= 0; i-- {
		_ = os.Remove(dirs[i])
	}
	return deleted, nil
}
