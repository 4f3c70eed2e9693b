package services

import (
	"context"
	"sync"
)

// Runner runs a catch-up for one owner.
type Runner interface {
	ProcessDue(ctx context.Context, ownerID string) (RunResult, error)
}

// OwnerLocks is a keyed mutex: at most one holder per owner, with no
// contention between different owners. Entries are dropped once unused.
type OwnerLocks struct {
	mu    sync.Mutex
	locks map[string]*ownerLock
}

type ownerLock struct {
	sem  chan struct{}
	refs int
}

// NewOwnerLocks creates an empty lock set.
func NewOwnerLocks() *OwnerLocks {
	return &OwnerLocks{locks: make(map[string]*ownerLock)}
}

// Lock blocks until the owner's lock is held or ctx is done. The returned
// function releases it and must be called exactly once.
func (l *OwnerLocks) Lock(ctx context.Context, ownerID string) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[ownerID]
	if !ok {
		lk = &ownerLock{sem: make(chan struct{}, 1)}
		l.locks[ownerID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.sem <- struct{}{}:
		return func() {
			<-lk.sem
			l.release(ownerID, lk)
		}, nil
	case <-ctx.Done():
		l.release(ownerID, lk)
		return nil, ctx.Err()
	}
}

func (l *OwnerLocks) release(ownerID string, lk *ownerLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, ownerID)
	}
}

// Len returns the number of owners currently holding or waiting on a lock.
func (l *OwnerLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// SerializedProcessor guarantees at most one in-flight catch-up per owner.
type SerializedProcessor struct {
	runner Runner
	locks  *OwnerLocks
}

// NewSerializedProcessor wraps runner. Passing nil locks allocates a private set;
// share one set between every trigger that can reach the same store.
func NewSerializedProcessor(runner Runner, locks *OwnerLocks) *SerializedProcessor {
	if locks == nil {
		locks = NewOwnerLocks()
	}
	return &SerializedProcessor{runner: runner, locks: locks}
}

// ProcessDue waits for the owner's lock and runs the wrapped processor.
func (s *SerializedProcessor) ProcessDue(ctx context.Context, ownerID string) (RunResult, error) {
	unlock, err := s.locks.Lock(ctx, ownerID)
	if err != nil {
		return RunResult{OwnerID: ownerID}, err
	}
	defer unlock()
	return s.runner.ProcessDue(ctx, ownerID)
}
