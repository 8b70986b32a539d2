package ingest

import (
	"context"
	"sync"
)

// Sequencer 按提交顺序放行同一流的索引提交
// 每张票在其前序全部结束（indexed 或 failed）后才能通过 Wait
type Sequencer struct {
	mu   sync.Mutex
	last map[string]chan struct{}
}

// NewSequencer 创建顺序器
func NewSequencer() *Sequencer {
	return &Sequencer{last: make(map[string]chan struct{})}
}

// Ticket 一个分段在其流中的位置
type Ticket struct {
	s        *Sequencer
	streamID string
	prev     chan struct{}
	done     chan struct{}
	once     sync.Once
}

// Reserve 按调用顺序领取票据
func (s *Sequencer) Reserve(streamID string) *Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &Ticket{
		s:        s,
		streamID: streamID,
		prev:     s.last[streamID],
		done:     make(chan struct{}),
	}
	s.last[streamID] = t.done
	return t
}

// Wait 等待轮到自己
func (t *Ticket) Wait(ctx context.Context) error {
	if t.prev == nil {
		return nil
	}
	select {
	case <-t.prev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release 结束本票；done 仅在前序也结束后关闭，提前失败的分段不会让后序越过更早的分段
func (t *Ticket) Release() {
	t.once.Do(func() {
		if t.prev == nil {
			t.finish()
			return
		}
		select {
		case <-t.prev:
			t.finish()
		default:
			go func() {
				<-t.prev
				t.finish()
			}()
		}
	})
}

func (t *Ticket) finish() {
	t.s.mu.Lock()
	if t.s.last[t.streamID] == t.done {
		delete(t.s.last, t.streamID)
	}
	t.s.mu.Unlock()
	close(t.done)
}

// Pending 仍有未结束票据的流数量
func (s *Sequencer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.last)
}
