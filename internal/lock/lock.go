// Package lock 按头条加锁，同一头条同时只有一个请求在补全
package lock

import (
	"context"
	"sync"
)

// Locker 按 key 互斥，Acquire 阻塞到拿到锁或 ctx 结束，release 可重复调用
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// MemoryLocker 进程内锁，单实例部署和测试用
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

// slot 无人持有或等待时从 map 中删除
type slot struct {
	ch   chan struct{}
	refs int
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[string]*slot)}
}

func (l *MemoryLocker) ref(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *MemoryLocker) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string) (func(), error) {
	s := l.ref(key)
	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.unref(key, s)
		})
	}, nil
}
