// Package syncutil holds small concurrency primitives shared by stores.
package syncutil

import (
	"context"
	"hash/fnv"
)

// DefaultShards is the shard count used by NewContextShardedMutex.
const DefaultShards = 256

// ContextShardedMutex provides a fixed-size pool of channel-based mutexes
// keyed by string. Waiters can give up when their context is cancelled.
// Memory stays bounded regardless of how many keys are seen, at the cost of
// occasional false sharing between keys that hash to the same shard.
type ContextShardedMutex struct {
	shards []chan struct{}
}

// NewContextShardedMutex creates a mutex pool with DefaultShards shards.
func NewContextShardedMutex() *ContextShardedMutex {
	return NewContextShardedMutexN(DefaultShards)
}

// NewContextShardedMutexN creates a mutex pool with n shards (minimum 1).
func NewContextShardedMutexN(n int) *ContextShardedMutex {
	if n < 1 {
		n = 1
	}
	m := &ContextShardedMutex{shards: make([]chan struct{}, n)}
	for i := range m.shards {
		m.shards[i] = make(chan struct{}, 1)
		m.shards[i] <- struct{}{} // start unlocked
	}
	return m
}

// LockContext acquires the mutex for key. On success the caller MUST call the
// returned unlock function. On cancellation it returns the context error.
func (m *ContextShardedMutex) LockContext(ctx context.Context, key string) (func(), error) {
	shard := m.shards[m.shardIdx(key)]

	select {
	case <-shard:
		return func() { shard <- struct{}{} }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Lock implements the keyed-locker contract used by stores.
func (m *ContextShardedMutex) Lock(ctx context.Context, key string) (func(), error) {
	return m.LockContext(ctx, key)
}

func (m *ContextShardedMutex) shardIdx(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % uint32(len(m.shards))
}
