package engine

import (
	"context"
	"fmt"
	"sync"

	"leaderbot/core"
)

// KeyedMutex serializes cycles per (leaderboard id, year) inside one process.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]chan struct{})}
}

func lockKey(id core.LeaderboardID, year int) string { return fmt.Sprintf("%d:%d", id, year) }

func (k *KeyedMutex) slot(key string) chan struct{} {
	k.mu.Lock()
	defer k.mu.Unlock()
	ch, ok := k.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		k.locks[key] = ch
	}
	return ch
}

// Lock blocks until the key is free or ctx is done. The returned func releases it.
func (k *KeyedMutex) Lock(ctx context.Context, id core.LeaderboardID, year int) (func(), error) {
	ch := k.slot(lockKey(id, year))
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryLock acquires the key without waiting.
func (k *KeyedMutex) TryLock(id core.LeaderboardID, year int) (func(), bool) {
	ch := k.slot(lockKey(id, year))
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, true
	default:
		return nil, false
	}
}
