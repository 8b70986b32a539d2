package memory

import (
	"context"
	"sync"

	"video-sentinel/internal/domain/repository"
)

// WatermarkStore 内存水位线
type WatermarkStore struct {
	mu     sync.Mutex
	value  int64
	locked bool
}

// NewWatermarkStore 创建内存水位线
func NewWatermarkStore() *WatermarkStore {
	return &WatermarkStore{}
}

var _ repository.WatermarkStore = (*WatermarkStore)(nil)

func (s *WatermarkStore) Get(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, nil
}

func (s *WatermarkStore) Set(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = id
	return nil
}

func (s *WatermarkStore) TryLock(_ context.Context) (func(context.Context) error, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked {
		return nil, false, nil
	}
	s.locked = true
	return func(context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.locked = false
		return nil
	}, true, nil
}

// Transactor 内存事务，串行执行
type Transactor struct {
	mu sync.Mutex
}

// NewTransactor 创建内存事务管理器
func NewTransactor() *Transactor {
	return &Transactor{}
}

var _ repository.Transactor = (*Transactor)(nil)

func (t *Transactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}
