// Package storage 分段对象存储（R2/S3、本地目录、内存）
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"video-sentinel/internal/config"
	apperrors "video-sentinel/pkg/errors"
)

// ErrObjectNotFound 对象不存在
var ErrObjectNotFound = errors.New("object not found")

// Location 上传后的位置描述
type Location struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// Store 分段持久化存储
type Store interface {
	// Put 上传本地文件到 key，返回可供外部模型访问的位置
	Put(ctx context.Context, key, localPath string) (Location, error)
	Delete(ctx context.Context, key string) error
	Backend() string
}

// NewStoreFromConfig 根据配置创建存储后端
func NewStoreFromConfig(ctx context.Context, cfg *config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "r2", "s3":
		return NewS3Store(ctx, cfg)
	case "filesystem":
		if cfg.Filesystem.Root == "" {
			return nil, fmt.Errorf("filesystem storage requires storage.filesystem.root to be set")
		}
		return NewFileSystemStore(cfg.Filesystem.Root, cfg.Filesystem.PublicURL)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

var contentTypes = map[string]string{
	".avi": "video/x-msvideo",
	".mp4": "video/mp4",
	".mov": "video/quicktime",
	".mkv": "video/x-matroska",
}

// ContentType 按扩展名返回 MIME 类型
func ContentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// PublicURL 拼接公开访问地址
func PublicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}

// ObjectKey 由前缀和文件名生成对象 key
func ObjectKey(prefix, localPath string) string {
	name := filepath.Base(localPath)
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// openLocal 打开待上传文件，文件缺失属于不可重试错误
func openLocal(localPath string) (*os.File, int64, error) {
	f, err := os.Open(localPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, apperrors.Permanent(err, "segment file not found")
		}
		return nil, 0, apperrors.Transient(err, "failed to open segment file")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, apperrors.Transient(err, "failed to stat segment file")
	}
	if info.IsDir() {
		f.Close()
		return nil, 0, apperrors.Permanent(fmt.Errorf("%s is a directory", localPath), "invalid segment file")
	}
	return f, info.Size(), nil
}
