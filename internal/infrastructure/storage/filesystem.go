package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	apperrors "video-sentinel/pkg/errors"
)

// FileSystemStore 将分段复制到本地目录，用于开发和单机部署
type FileSystemStore struct {
	root      string
	publicURL string
}

var _ Store = (*FileSystemStore)(nil)

// NewFileSystemStore 创建目录存储
func NewFileSystemStore(root, publicURL string) (*FileSystemStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &FileSystemStore{root: abs, publicURL: publicURL}, nil
}

// Backend 后端名称
func (s *FileSystemStore) Backend() string { return "filesystem" }

// Put 以临时文件 + rename 的方式原子写入
func (s *FileSystemStore) Put(ctx context.Context, key, localPath string) (Location, error) {
	if err := ctx.Err(); err != nil {
		return Location{}, apperrors.Transient(err, "upload cancelled")
	}

	destPath, err := s.resolve(key)
	if err != nil {
		return Location{}, err
	}

	src, size, err := openLocal(localPath)
	if err != nil {
		return Location{}, err
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return Location{}, apperrors.Transient(err, "failed to create object directory")
	}
	if err := writeFile(destPath, src, size); err != nil {
		return Location{}, apperrors.Transient(err, "failed to store segment")
	}

	url := "file://" + destPath
	if s.publicURL != "" {
		url = PublicURL(s.publicURL, key)
	}
	return Location{Key: key, URL: url}, nil
}

// Delete 删除对象，不存在时忽略
func (s *FileSystemStore) Delete(_ context.Context, key string) error {
	p, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return apperrors.Transient(err, "failed to delete object")
	}
	return nil
}

func (s *FileSystemStore) resolve(key string) (string, error) {
	p := filepath.Join(s.root, filepath.FromSlash(key))
	if p != s.root && !strings.HasPrefix(p, s.root+string(os.PathSeparator)) {
		return "", apperrors.Permanent(fmt.Errorf("key %q escapes storage root", key), "invalid object key")
	}
	return p, nil
}

func writeFile(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
