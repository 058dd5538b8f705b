// Package lock serializes work keyed by an identifier such as an asset id.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is returned when a lock could not be acquired within the wait bound.
var ErrTimeout = errors.New("lock: timed out waiting for lock")

// Locker grants exclusive access per key. The returned release func must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// AssetKey is the lock key guarding availability of one asset.
func AssetKey(id string) string { return "asset:" + id }

// LocalLocker is an in-process keyed mutex. Entries are removed once unused.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]*localEntry
	wait    time.Duration
}

type localEntry struct {
	sem  chan struct{}
	refs int
}

// NewLocalLocker returns a locker that waits at most wait for a key (0 = until ctx is done).
func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{entries: make(map[string]*localEntry), wait: wait}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &localEntry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, e)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.unref(key, e)
		})
	}, nil
}

func (l *LocalLocker) unref(key string, e *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// Len reports how many keys are currently held or awaited.
func (l *LocalLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
