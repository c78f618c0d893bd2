// Package lock serializes work per key, typically a customer phone number.
package lock

import (
	"context"
	"sync"
)

// Locker grants exclusive access to a key. The returned unlock func is safe to call
// more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Keyed is an in-process lock with one FIFO queue per key. Waiters on one key never
// block another key, and a waiter whose context ends leaves the queue.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	waiters []chan struct{}
}

func NewKeyed() *Keyed {
	return &Keyed{entries: make(map[string]*entry)}
}

func (k *Keyed) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, held := k.entries[key]
	if !held {
		k.entries[key] = &entry{}
		k.mu.Unlock()
		return k.unlocker(key), nil
	}

	ready := make(chan struct{})
	e.waiters = append(e.waiters, ready)
	k.mu.Unlock()

	select {
	case <-ready:
		return k.unlocker(key), nil
	case <-ctx.Done():
		k.mu.Lock()
		defer k.mu.Unlock()
		for i, w := range e.waiters {
			if w == ready {
				e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
				return nil, ctx.Err()
			}
		}
		// Handed the lock between ctx.Done and taking mu; pass it on.
		k.releaseLocked(key)
		return nil, ctx.Err()
	}
}

func (k *Keyed) unlocker(key string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			k.mu.Lock()
			k.releaseLocked(key)
			k.mu.Unlock()
		})
	}
}

func (k *Keyed) releaseLocked(key string) {
	e := k.entries[key]
	if e == nil {
		return
	}
	if len(e.waiters) == 0 {
		delete(k.entries, key)
		return
	}
	next := e.waiters[0]
	e.waiters = e.waiters[1:]
	close(next)
}

// Chain acquires lockers in order and releases them in reverse.
type Chain []Locker

func (c Chain) Lock(ctx context.Context, key string) (func(), error) {
	unlocks := make([]func(), 0, len(c))
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, l := range c {
		unlock, err := l.Lock(ctx, key)
		if err != nil {
			release()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	var once sync.Once
	return func() { once.Do(release) }, nil
}
