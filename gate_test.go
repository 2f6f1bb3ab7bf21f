package cachemap_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vearutop/cachemap"
)

func waitQueued(t *testing.T, g *cachemap.Gate, n int) {
	t.Helper()

	require.Eventually(t, func() bool { return g.Waiting() == n }, time.Second, time.Millisecond)
}

// waitWriterQueued polls until shared access is refused, which happens once a writer is queued.
func waitWriterQueued(t *testing.T, g *cachemap.Gate) {
	t.Helper()

	require.Eventually(t, func() bool {
		if g.TryRLock() {
			g.RUnlock()

			return false
		}

		return true
	}, time.Second, time.Millisecond)
}

func TestGate_sharedReaders(t *testing.T) {
	g := cachemap.NewGate()

	g.RLock()
	assert.True(t, g.TryRLock())
	assert.False(t, g.TryLock())

	g.RUnlock()
	g.RUnlock()

	assert.True(t, g.TryLock())
	assert.False(t, g.TryRLock())
	assert.False(t, g.TryLock())
	g.Unlock()
}

func TestGate_readerBlockedByWriter(t *testing.T) {
	g := cachemap.NewGate()
	g.Lock()

	acquired := make(chan struct{})

	go func() {
		g.RLock()
		close(acquired)
		g.RUnlock()
	}()

	waitQueued(t, g, 1)

	select {
	case <-acquired:
		t.Fatal("reader acquired while writer holds the gate")
	case <-time.After(30 * time.Millisecond):
	}

	g.Unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("reader was not admitted")
	}
}

func TestGate_fairness(t *testing.T) {
	g := cachemap.NewGate()

	// R1 is admitted.
	g.RLock()

	events := make(chan string, 2)

	go func() {
		g.Lock()
		events <- "W2"
		g.Unlock()
	}()

	waitWriterQueued(t, g)
	assert.Equal(t, 1, g.Waiting())

	// R2 arrives after W2 is queued.
	go func() {
		g.RLock()
		events <- "R2"
		g.RUnlock()
	}()

	waitQueued(t, g, 2)

	// W2 waits for R1, R2 waits for W2.
	select {
	case e := <-events:
		t.Fatalf("unexpected acquisition: %s", e)
	case <-time.After(50 * time.Millisecond):
	}

	g.RUnlock()
	assert.Equal(t, "W2", <-events)
	assert.Equal(t, "R2", <-events)
}

func TestGate_LockContext(t *testing.T) {
	g := cachemap.NewGate()
	g.RLock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := g.LockContext(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, g.Waiting())

	require.NoError(t, g.RLockContext(context.Background()))
	g.RUnlock()
	g.RUnlock()

	require.NoError(t, g.LockContext(context.Background()))
	g.Unlock()
}
