package storage

import (
	"context"
	"io"
	"sync"

	apperrors "video-sentinel/pkg/errors"
)

// MemoryStore 内存存储，用于测试
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	// 依次返回的注入错误
	failures []error
	puts     int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Backend 后端名称
func (s *MemoryStore) Backend() string { return "memory" }

// FailNext 让接下来的 Put 依次返回这些错误
func (s *MemoryStore) FailNext(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, errs...)
}

// Put 读取本地文件内容保存到内存
func (s *MemoryStore) Put(ctx context.Context, key, localPath string) (Location, error) {
	if err := ctx.Err(); err != nil {
		return Location{}, apperrors.Transient(err, "upload cancelled")
	}

	s.mu.Lock()
	s.puts++
	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		s.mu.Unlock()
		return Location{}, err
	}
	s.mu.Unlock()

	f, _, err := openLocal(localPath)
	if err != nil {
		return Location{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return Location{}, apperrors.Transient(err, "failed to read segment file")
	}

	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()
	return Location{Key: key, URL: "memory://" + key}, nil
}

// Delete 删除对象
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// Get 读取对象内容
func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	return data, ok
}

// Puts Put 调用次数（含失败）
func (s *MemoryStore) Puts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}
