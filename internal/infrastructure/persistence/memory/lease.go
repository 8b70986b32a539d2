package memory

import (
	"context"
	"sync"
	"time"

	"video-sentinel/internal/domain/repository"
)

// LeaseStore 进程内租约，按墙钟过期
type LeaseStore struct {
	mu      sync.Mutex
	holder  string
	expires time.Time
	now     func() time.Time
}

// NewLeaseStore 创建内存租约
func NewLeaseStore() *LeaseStore {
	return &LeaseStore{now: time.Now}
}

var _ repository.LeaseStore = (*LeaseStore)(nil)

func (s *LeaseStore) TryAcquire(_ context.Context, token string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holder != "" && s.now().Before(s.expires) {
		return false, nil
	}
	s.holder = token
	s.expires = s.now().Add(ttl)
	return true, nil
}

func (s *LeaseStore) Renew(_ context.Context, token string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holder != token || !s.now().Before(s.expires) {
		return false, nil
	}
	s.expires = s.now().Add(ttl)
	return true, nil
}

func (s *LeaseStore) Release(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holder == token {
		s.holder = ""
	}
	return nil
}

// Expire 让当前租约立即过期
func (s *LeaseStore) Expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expires = time.Time{}
}
