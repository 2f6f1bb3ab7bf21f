package cachemap

import (
	"fmt"
	"sync"
	"time"
)

// Clearer removes all cached entries.
type Clearer interface {
	Clear()
}

// Invalidator is a registry of caches to clear together.
type Invalidator struct {
	sync.Mutex

	// SkipInterval defines minimal duration between two invalidations (flood protection), default 15s.
	// Use -1 to disable.
	SkipInterval time.Duration

	// Callbacks contains a list of functions to call on invalidate.
	Callbacks []func()

	lastRun time.Time
}

// Add registers caches to clear on invalidate.
func (i *Invalidator) Add(caches ...Clearer) {
	i.Lock()
	defer i.Unlock()

	for _, c := range caches {
		i.Callbacks = append(i.Callbacks, c.Clear)
	}
}

// Invalidate clears registered caches.
func (i *Invalidator) Invalidate() error {
	i.Lock()
	defer i.Unlock()

	if i.Callbacks == nil {
		return ErrNothingToInvalidate
	}

	if i.SkipInterval == 0 {
		i.SkipInterval = 15 * time.Second
	}

	if i.SkipInterval > 0 && time.Since(i.lastRun) < i.SkipInterval {
		return fmt.Errorf("%w at %s, %s did not pass",
			ErrAlreadyInvalidated, i.lastRun.String(), i.SkipInterval.String())
	}

	i.lastRun = time.Now()
	for _, cb := range i.Callbacks {
		cb()
	}

	return nil
}
