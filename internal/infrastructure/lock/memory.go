package lock

import (
	"context"
	"sync"
	"time"
)

// InMemory is a single-process Locker for tests: a held lock simply records
// the instant it's due to expire.
type InMemory struct {
	mu      sync.Mutex
	heldUntil map[string]time.Time
	now     func() time.Time
}

func NewInMemory() *InMemory {
	return &InMemory{heldUntil: make(map[string]time.Time), now: time.Now}
}

func (l *InMemory) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if until, ok := l.heldUntil[key]; ok && until.After(now) {
		return false, nil
	}
	l.heldUntil[key] = now.Add(ttl)
	return true, nil
}

func (l *InMemory) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.heldUntil, key)
	return nil
}
