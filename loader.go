package cachemap

import (
	"context"
	"sync"
	"time"

	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
	lru "github.com/hashicorp/golang-lru/v2"
)

// LoaderConfig is optional configuration for NewLoader.
type LoaderConfig struct {
	// Name is added to logs and stats.
	Name string

	// FailedBuildTTL is ttl of failed build cache, default 20s, -1 disables errors cache.
	FailedBuildTTL time.Duration

	// FailedBuildsLimit is a maximum number of failed builds to remember, default 1000.
	FailedBuildsLimit int

	// Logger collects messages with context.
	Logger ctxd.Logger

	// Stats tracks stats.
	Stats stats.Tracker
}

// Loader fills a cache with values built on miss, builds are locked per key.
//
// Please use NewLoader to create instance.
type Loader[K comparable, V any] struct {
	cache    *Cache[K, V]
	failures *lru.Cache[K, failedBuild]

	lock     sync.Mutex         // Securing keyLocks.
	keyLocks map[K]chan struct{} // Preventing build concurrency per key.

	config LoaderConfig
	log    ctxd.Logger
	stat   stats.Tracker
}

// NewLoader creates a Loader on top of cache.
func NewLoader[K comparable, V any](cache *Cache[K, V], config LoaderConfig) *Loader[K, V] {
	if config.FailedBuildTTL == 0 {
		config.FailedBuildTTL = 20 * time.Second
	}

	if config.FailedBuildsLimit <= 0 {
		config.FailedBuildsLimit = 1000
	}

	l := &Loader[K, V]{
		cache:    cache,
		keyLocks: make(map[K]chan struct{}),
		config:   config,
	}

	l.log = config.Logger
	if l.log == nil {
		l.log = ctxd.NoOpLogger{}
	}

	l.stat = config.Stats
	if l.stat == nil {
		l.stat = stats.NoOp{}
	}

	if config.FailedBuildTTL > 0 {
		// Error is only returned for non-positive size.
		l.failures, _ = lru.New[K, failedBuild](config.FailedBuildsLimit) //nolint:errcheck
	}

	return l
}

// Get returns value from cache or from build function.
//
// Concurrent calls for the same key wait for a single build, waiting is bound by ctx.
// Build runs with ctx detached from cancellation, so that waiters are not failed by the first caller.
// Use WithSkipRead to rebuild cached value.
func (l *Loader[K, V]) Get(ctx context.Context, key K, build func(ctx context.Context) (V, error)) (V, error) {
	skipRead := SkipRead(ctx)

	if !skipRead {
		if v, found := l.cache.Get(key); found {
			return v, nil
		}
	}

	// Locking key for build or finding active lock.
	l.lock.Lock()

	keyLock, alreadyLocked := l.keyLocks[key]
	if !alreadyLocked {
		keyLock = make(chan struct{})
		l.keyLocks[key] = keyLock
	}
	l.lock.Unlock()

	if alreadyLocked {
		return l.waitForValue(ctx, key, keyLock, build)
	}

	defer func() {
		l.lock.Lock()
		delete(l.keyLocks, key)
		close(keyLock)
		l.lock.Unlock()
	}()

	// Value could have been built by previous lock owner.
	if !skipRead {
		if v, found := l.cache.Get(key); found {
			return v, nil
		}

		if err := l.recentlyFailed(key); err != nil {
			return *new(V), err
		}
	}

	return l.doBuild(context.WithoutCancel(ctx), key, build)
}

// Forget discards cached build failure of key.
func (l *Loader[K, V]) Forget(key K) {
	if l.failures != nil {
		l.failures.Remove(key)
	}
}

func (l *Loader[K, V]) waitForValue(
	ctx context.Context,
	key K,
	keyLock chan struct{},
	build func(ctx context.Context) (V, error),
) (V, error) {
	l.log.Debug(ctx, "waiting for cache value", "name", l.config.Name, "key", key)

	select {
	case <-keyLock:
	case <-ctx.Done():
		return *new(V), ctxd.WrapError(ctx, ctx.Err(), "failed to wait for cache value", "key", key)
	}

	if v, found := l.cache.Get(key); found {
		return v, nil
	}

	if err := l.recentlyFailed(key); err != nil {
		return *new(V), err
	}

	// Built value did not stay in cache, building again.
	return l.Get(ctx, key, build)
}

func (l *Loader[K, V]) doBuild(ctx context.Context, key K, build func(ctx context.Context) (V, error)) (V, error) {
	defer func() {
		l.stat.Add(ctx, MetricBuild, 1, "name", l.config.Name)
	}()

	l.log.Debug(ctx, "building cache value", "name", l.config.Name, "key", key)

	v, err := build(ctx)
	if err != nil {
		l.stat.Add(ctx, MetricFailed, 1, "name", l.config.Name)
		l.log.Warn(ctx, "failed to build cache value",
			"error", err,
			"name", l.config.Name,
			"key", key)

		if l.failures != nil {
			l.failures.Add(key, failedBuild{err: err, at: time.Now()})
		}

		return *new(V), err
	}

	l.cache.Put(key, v)

	return v, nil
}

func (l *Loader[K, V]) recentlyFailed(key K) error {
	if l.failures == nil {
		return nil
	}

	f, found := l.failures.Get(key)
	if !found {
		return nil
	}

	// Failures expire lazily on lookup.
	if time.Since(f.at) >= l.config.FailedBuildTTL {
		l.failures.Remove(key)

		return nil
	}

	return f.err
}

type failedBuild struct {
	err error
	at  time.Time
}
