package lock

import (
	"context"
	"sync"
)

type memoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewMemoryLocker creates an in-process Locker. It is used when no Redis URL
// is configured and in tests; it only protects against concurrent requests
// within a single process.
func NewMemoryLocker() Locker {
	return &memoryLocker{
		held: make(map[string]bool),
	}
}

func (l *memoryLocker) WithLocks(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	for _, key := range keys {
		if l.held[key] {
			l.mu.Unlock()
			return ErrNotAcquired
		}
	}
	for _, key := range keys {
		l.held[key] = true
	}
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		for _, key := range keys {
			delete(l.held, key)
		}
		l.mu.Unlock()
	}()

	return fn(ctx)
}
