package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"video-sentinel/internal/domain/repository"
)

const (
	watermarkKey = "alert:watermark"
	evalLockKey  = "alert:evaluate:lock"
)

// 仅当锁仍由自己持有时删除
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// WatermarkStore 告警水位线与评估锁
type WatermarkStore struct {
	client  *Client
	lockTTL time.Duration
}

var _ repository.WatermarkStore = (*WatermarkStore)(nil)

// NewWatermarkStore 创建水位线存储
func NewWatermarkStore(client *Client, lockTTL time.Duration) *WatermarkStore {
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	return &WatermarkStore{client: client, lockTTL: lockTTL}
}

// Get 读取水位线，未设置时为 0
func (s *WatermarkStore) Get(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "redis.WatermarkStore.Get")
	defer span.End()

	val, err := s.client.rdb.Get(ctx, watermarkKey).Result()
	if err != nil {
		if IsNil(err) {
			return 0, nil
		}
		span.RecordError(err)
		return 0, fmt.Errorf("failed to get watermark: %w", err)
	}

	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid watermark value %q: %w", val, err)
	}
	return id, nil
}

// Set 写入水位线
func (s *WatermarkStore) Set(ctx context.Context, id int64) error {
	ctx, span := tracer.Start(ctx, "redis.WatermarkStore.Set")
	defer span.End()

	if err := s.client.rdb.Set(ctx, watermarkKey, strconv.FormatInt(id, 10), 0).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set watermark: %w", err)
	}
	return nil
}

// TryLock 以 SET NX PX 获取评估锁
func (s *WatermarkStore) TryLock(ctx context.Context) (func(context.Context) error, bool, error) {
	ctx, span := tracer.Start(ctx, "redis.WatermarkStore.TryLock")
	defer span.End()

	token := uuid.NewString()
	ok, err := s.client.rdb.SetNX(ctx, evalLockKey, token, s.lockTTL).Result()
	if err != nil {
		span.RecordError(err)
		return nil, false, fmt.Errorf("failed to acquire evaluation lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	unlock := func(ctx context.Context) error {
		if err := unlockScript.Run(ctx, s.client.rdb, []string{evalLockKey}, token).Err(); err != nil && !IsNil(err) {
			return fmt.Errorf("failed to release evaluation lock: %w", err)
		}
		return nil
	}
	return unlock, true, nil
}
