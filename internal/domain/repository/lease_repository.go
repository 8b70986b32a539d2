package repository

import (
	"context"
	"time"
)

// LeaseStore 跨进程独占租约，token 标识持有者
type LeaseStore interface {
	// TryAcquire 租约空闲时占有，ok=false 表示被其他持有者占用
	TryAcquire(ctx context.Context, token string, ttl time.Duration) (ok bool, err error)

	// Renew 仍由 token 持有时延长租约，ok=false 表示已丢失
	Renew(ctx context.Context, token string, ttl time.Duration) (ok bool, err error)

	// Release 仅释放 token 自己持有的租约
	Release(ctx context.Context, token string) error
}
