package locks

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Locker hands out exclusive, expiring locks keyed by string.
type Locker interface {
	// Acquire waits up to wait for the lock. A non-positive wait tries once.
	Acquire(ctx context.Context, key string, ttl, wait time.Duration) (release func(), err error)
}

var ErrNotAcquired = errors.New("locks: lock not acquired")

// Local is an in-process keyed mutex. ttl is ignored; locks live until released.
type Local struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func NewLocal() *Local {
	return &Local{held: map[string]chan struct{}{}}
}

func (l *Local) Acquire(ctx context.Context, key string, _ time.Duration, wait time.Duration) (func(), error) {
	var deadline <-chan time.Time
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		deadline = t.C
	}
	for {
		l.mu.Lock()
		ch, busy := l.held[key]
		if !busy {
			ch = make(chan struct{})
			l.held[key] = ch
			l.mu.Unlock()
			var once sync.Once
			return func() {
				once.Do(func() {
					l.mu.Lock()
					delete(l.held, key)
					l.mu.Unlock()
					close(ch)
				})
			}, nil
		}
		l.mu.Unlock()
		if wait <= 0 {
			return nil, ErrNotAcquired
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, ErrNotAcquired
		}
	}
}
