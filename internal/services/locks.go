package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// keyedLocks hands out one binary semaphore per key. Entries are reference
// counted and dropped when the last holder or waiter leaves, so the map only
// holds keys that are currently contended.
//
// The zero value is ready to use.
type keyedLocks struct {
	mu sync.Mutex
	m  map[string]*keyedLock
}

type keyedLock struct {
	sem  *semaphore.Weighted
	refs int
}

var errLockTimeout = errors.New("lock wait timed out")

// acquire blocks until the lock for key is held, timeout elapses
// (errLockTimeout) or ctx is done (ctx.Err()). A non-positive timeout waits
// on ctx alone. The returned release must be called exactly once.
func (l *keyedLocks) acquire(ctx context.Context, key string, timeout time.Duration) (release func(), err error) {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[string]*keyedLock)
	}
	e, ok := l.m[key]
	if !ok {
		e = &keyedLock{sem: semaphore.NewWeighted(1)}
		l.m[key] = e
	}
	e.refs++
	l.mu.Unlock()

	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := e.sem.Acquire(waitCtx, 1); err != nil {
		l.unref(key, e)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errLockTimeout
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			l.unref(key, e)
		})
	}, nil
}

func (l *keyedLocks) unref(key string, e *keyedLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.m, key)
	}
}

// size is the number of keys currently tracked.
func (l *keyedLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
