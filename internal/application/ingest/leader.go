package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"video-sentinel/internal/domain/repository"
	"video-sentinel/pkg/logger"
)

// Leader 摄取写入方的选主
// 索引提交顺序与告警水位线都依赖单写者，持有租约的实例才能消费
type Leader struct {
	store repository.LeaseStore
	ttl   time.Duration
	retry time.Duration
}

// NewLeader 创建选主器；retry 为未抢到租约时的重试间隔
func NewLeader(store repository.LeaseStore, ttl, retry time.Duration) *Leader {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if retry <= 0 {
		retry = ttl / 3
	}
	return &Leader{store: store, ttl: ttl, retry: retry}
}

// Lease 已获得的租约，后台按 ttl/3 续期
type Lease struct {
	store repository.LeaseStore
	token string
	ttl   time.Duration

	lost     chan struct{}
	lostOnce sync.Once
	stop     context.CancelFunc
	done     chan struct{}
}

// Acquire 阻塞到获得租约或 ctx 取消
func (l *Leader) Acquire(ctx context.Context) (*Lease, error) {
	token := uuid.NewString()
	waiting := false
	for {
		ok, err := l.store.TryAcquire(ctx, token, l.ttl)
		if err != nil {
			logger.Warn(ctx, "failed to acquire ingest lease", "error", err.Error())
		}
		if ok {
			logger.Info(ctx, "ingest lease acquired", "ttl", l.ttl)
			return l.hold(token), nil
		}
		if !waiting {
			logger.Info(ctx, "another ingest worker holds the lease, waiting")
			waiting = true
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

func (l *Leader) hold(token string) *Lease {
	ctx, cancel := context.WithCancel(context.Background())
	ls := &Lease{
		store: l.store,
		token: token,
		ttl:   l.ttl,
		lost:  make(chan struct{}),
		stop:  cancel,
		done:  make(chan struct{}),
	}
	go ls.renew(ctx)
	return ls
}

func (ls *Lease) renew(ctx context.Context) {
	defer close(ls.done)

	ticker := time.NewTicker(ls.ttl / 3)
	defer ticker.Stop()
	// 上次成功续期的时间，超过 ttl 未续上视为丢失
	renewed := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		rctx, cancel := context.WithTimeout(ctx, ls.ttl/3)
		ok, err := ls.store.Renew(rctx, ls.token, ls.ttl)
		cancel()
		switch {
		case err == nil && ok:
			renewed = time.Now()
		case err == nil:
			logger.Error(ctx, "ingest lease taken over by another worker", errors.New("lease lost"))
			ls.markLost()
			return
		case time.Since(renewed) >= ls.ttl:
			logger.Error(ctx, "ingest lease expired while renewal kept failing", err)
			ls.markLost()
			return
		default:
			logger.Warn(ctx, "failed to renew ingest lease", "error", err.Error())
		}
	}
}

func (ls *Lease) markLost() {
	ls.lostOnce.Do(func() { close(ls.lost) })
}

// Lost 租约丢失时关闭，持有者必须停止写入
func (ls *Lease) Lost() <-chan struct{} {
	return ls.lost
}

// Release 停止续期并释放租约
func (ls *Lease) Release(ctx context.Context) error {
	ls.stop()
	<-ls.done
	return ls.store.Release(ctx, ls.token)
}
