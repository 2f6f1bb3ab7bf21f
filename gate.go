package cachemap

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// gateWeight is the weight of exclusive access, it also bounds the number of concurrent readers.
const gateWeight = 1 << 30

// Gate is a fair reader/writer lock.
//
// Requests are granted in arrival order: readers share access, a writer waits for earlier readers
// to leave and blocks readers that arrived after it. Gate is not re-entrant.
//
// Please use NewGate to create instance.
type Gate struct {
	sem     *semaphore.Weighted
	waiting atomic.Int64
}

// NewGate creates a Gate.
func NewGate() *Gate {
	return &Gate{sem: semaphore.NewWeighted(gateWeight)}
}

// RLock acquires shared access.
func (g *Gate) RLock() {
	_ = g.acquire(context.Background(), 1) //nolint:errcheck // Background context is never done.
}

// RUnlock releases shared access.
func (g *Gate) RUnlock() {
	g.sem.Release(1)
}

// Lock acquires exclusive access.
func (g *Gate) Lock() {
	_ = g.acquire(context.Background(), gateWeight) //nolint:errcheck // Background context is never done.
}

// Unlock releases exclusive access.
func (g *Gate) Unlock() {
	g.sem.Release(gateWeight)
}

// RLockContext acquires shared access or fails when ctx is done first.
func (g *Gate) RLockContext(ctx context.Context) error {
	return g.acquire(ctx, 1)
}

// LockContext acquires exclusive access or fails when ctx is done first.
func (g *Gate) LockContext(ctx context.Context) error {
	return g.acquire(ctx, gateWeight)
}

// TryRLock acquires shared access if nobody holds or waits for exclusive access.
func (g *Gate) TryRLock() bool {
	return g.sem.TryAcquire(1)
}

// TryLock acquires exclusive access if the gate is free and nobody waits.
func (g *Gate) TryLock() bool {
	return g.sem.TryAcquire(gateWeight)
}

// Waiting returns number of blocked acquisitions.
func (g *Gate) Waiting() int {
	return int(g.waiting.Load())
}

func (g *Gate) acquire(ctx context.Context, n int64) error {
	if g.sem.TryAcquire(n) {
		return nil
	}

	g.waiting.Add(1)
	defer g.waiting.Add(-1)

	return g.sem.Acquire(ctx, n)
}
