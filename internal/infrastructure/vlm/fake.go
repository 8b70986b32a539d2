package vlm

import (
	"context"
	"fmt"
	"sync"
)

// Reply 脚本化的单次响应
type Reply struct {
	Text string
	Err  error
}

// Fake 按 URL 返回脚本化响应的描述客户端，用于测试和本地开发
// 同一 URL 的多个响应依次消费，最后一个会被重复使用
type Fake struct {
	mu       sync.Mutex
	scripts  map[string][]Reply
	fallback func(req Request) (string, error)
	calls    []Request
}

var _ Describer = (*Fake)(nil)

// NewFake 创建 Fake，默认回复 "description of <url>"
func NewFake() *Fake {
	return &Fake{
		scripts: make(map[string][]Reply),
		fallback: func(req Request) (string, error) {
			return fmt.Sprintf("description of %s", req.VideoURL), nil
		},
	}
}

// Script 为 URL 追加响应
func (f *Fake) Script(url string, replies ...Reply) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[url] = append(f.scripts[url], replies...)
	return f
}

// SetFallback 设置未脚本化 URL 的响应函数
func (f *Fake) SetFallback(fn func(req Request) (string, error)) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fallback = fn
	return f
}

// Describe 实现 Describer
func (f *Fake) Describe(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.mu.Lock()
	f.calls = append(f.calls, req)
	replies := f.scripts[req.VideoURL]
	if len(replies) > 0 {
		r := replies[0]
		if len(replies) > 1 {
			f.scripts[req.VideoURL] = replies[1:]
		}
		f.mu.Unlock()
		return r.Text, r.Err
	}
	fallback := f.fallback
	f.mu.Unlock()
	return fallback(req)
}

// Calls 已收到的请求副本
func (f *Fake) Calls() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.calls...)
}
