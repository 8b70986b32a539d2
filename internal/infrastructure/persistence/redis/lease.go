package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"video-sentinel/internal/domain/repository"
)

// 仅当租约仍由自己持有时续期
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// LeaseStore 基于 SET NX PX 的独占租约
type LeaseStore struct {
	client *Client
	key    string
}

var _ repository.LeaseStore = (*LeaseStore)(nil)

// NewLeaseStore 创建租约存储，key 区分不同的租约
func NewLeaseStore(client *Client, key string) *LeaseStore {
	return &LeaseStore{client: client, key: key}
}

func (s *LeaseStore) TryAcquire(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	ctx, span := tracer.Start(ctx, "redis.LeaseStore.TryAcquire")
	defer span.End()

	ok, err := s.client.rdb.SetNX(ctx, s.key, token, ttl).Result()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to acquire lease %s: %w", s.key, err)
	}
	return ok, nil
}

func (s *LeaseStore) Renew(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	ctx, span := tracer.Start(ctx, "redis.LeaseStore.Renew")
	defer span.End()

	n, err := renewScript.Run(ctx, s.client.rdb, []string{s.key}, token, ttl.Milliseconds()).Int()
	if err != nil && !IsNil(err) {
		span.RecordError(err)
		return false, fmt.Errorf("failed to renew lease %s: %w", s.key, err)
	}
	return n == 1, nil
}

func (s *LeaseStore) Release(ctx context.Context, token string) error {
	ctx, span := tracer.Start(ctx, "redis.LeaseStore.Release")
	defer span.End()

	if err := unlockScript.Run(ctx, s.client.rdb, []string{s.key}, token).Err(); err != nil && !IsNil(err) {
		span.RecordError(err)
		return fmt.Errorf("failed to release lease %s: %w", s.key, err)
	}
	return nil
}
