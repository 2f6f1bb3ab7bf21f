package querycache

import (
	"context"
	"sync"
	"time"

	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
	"github.com/jmgilman/go/errors"
	"github.com/puzpuzpuz/xsync"
	"github.com/vearutop/cachemap"
)

// SentinelError is an error.
type SentinelError string

// ErrUncachable is returned by compile functions to exclude query id from caching.
const ErrUncachable = SentinelError("query is not cachable")

// Error implements error.
func (e SentinelError) Error() string {
	return string(e)
}

// MetricExcluded is a name of a metric to count queries rejected by exclusions.
const MetricExcluded = "query_cache_excluded"

// DefaultMaxSize is a default number of prepared queries kept in primary tier.
const DefaultMaxSize = 1000

// PreparedQuery is a compiled query ready for execution.
type PreparedQuery struct {
	ID       string
	Language string
	Text     string
	Params   []string
}

// Config controls query cache.
type Config struct {
	// Name is added to logs and stats, default "prepared_query".
	Name string

	// MaxSize is primary tier capacity of prepared queries, default 1000.
	MaxSize int

	// SoftSize is overflow tier capacity of prepared queries, see cachemap.Config.
	SoftSize int

	// ClearSkipInterval is minimal duration between two clears, no limit by default.
	ClearSkipInterval time.Duration

	// Logger collects messages with context.
	Logger ctxd.Logger

	// Stats tracks stats.
	Stats stats.Tracker
}

// Cache keeps prepared queries by id and remembers ids that should not be cached.
//
// Please use New to create instance.
type Cache struct {
	mu sync.RWMutex

	delegate    *cachemap.Cache[string, *PreparedQuery]
	uncachables *cachemap.Cache[string, Exclusion]
	patterns    *xsync.Map // Exclusion by pattern.
	loader      *cachemap.Loader[string, *PreparedQuery]
	invalidator *cachemap.Invalidator

	config Config
	log    ctxd.Logger
	stat   stats.Tracker
}

// New creates query cache.
func New(config Config) (*Cache, error) {
	if config.Name == "" {
		config.Name = "prepared_query"
	}

	if config.MaxSize == 0 {
		config.MaxSize = DefaultMaxSize
	}

	c := &Cache{
		patterns: xsync.NewMap(),
		config:   config,
	}

	c.log = config.Logger
	if c.log == nil {
		c.log = ctxd.NoOpLogger{}
	}

	c.stat = config.Stats
	if c.stat == nil {
		c.stat = stats.NoOp{}
	}

	var err error

	c.delegate, err = cachemap.New[string, *PreparedQuery](cachemap.Config{
		Name:        config.Name,
		Logger:      config.Logger,
		Stats:       config.Stats,
		MaxSize:     config.MaxSize,
		InitialSize: config.MaxSize,
		SoftSize:    config.SoftSize,
		LoadFactor:  cachemap.DefaultLoadFactor,
	})
	if err != nil {
		return nil, err
	}

	c.uncachables, err = cachemap.New[string, Exclusion](cachemap.Config{
		Name:       config.Name + "_uncachable",
		Logger:     config.Logger,
		MaxSize:    config.MaxSize,
		SoftSize:   cachemap.SoftUnbounded,
		SoftTTL:    -1,
		LoadFactor: cachemap.DefaultLoadFactor,
	})
	if err != nil {
		c.delegate.Close()

		return nil, err
	}

	c.loader = cachemap.NewLoader(c.delegate, cachemap.LoaderConfig{
		Name:           config.Name,
		FailedBuildTTL: -1,
		Logger:         config.Logger,
		Stats:          config.Stats,
	})

	skip := config.ClearSkipInterval
	if skip == 0 {
		skip = -1
	}

	c.invalidator = &cachemap.Invalidator{SkipInterval: skip}
	c.invalidator.Add(c.delegate, c.uncachables)

	return c, nil
}

// Close stops background jobs of underlying caches.
func (c *Cache) Close() {
	c.delegate.Close()
	c.uncachables.Close()
}

// Register caches prepared query, it returns false if query id is excluded or already cached.
func (c *Cache) Register(q *PreparedQuery) bool {
	if q == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, excluded := c.isExcluded(q.ID); excluded {
		c.stat.Add(context.Background(), MetricExcluded, 1, "name", c.config.Name)

		return false
	}

	if c.delegate.ContainsKey(q.ID) {
		return false
	}

	c.delegate.Put(q.ID, q)

	return true
}

// Get returns cached prepared query of an id that is not excluded.
func (c *Cache) Get(id string) (*PreparedQuery, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, found := c.uncachables.Peek(id); found {
		return nil, false
	}

	return c.delegate.Get(id)
}

// Compile returns cached prepared query or compiles and caches it.
//
// Concurrent calls for the same id compile once. If compile fails with ErrUncachable,
// query id is marked as uncachable and later calls fail without compiling.
func (c *Cache) Compile(
	ctx context.Context,
	id string,
	compile func(ctx context.Context) (*PreparedQuery, error),
) (*PreparedQuery, error) {
	c.mu.Lock()
	ex, excluded := c.isExcluded(id)
	c.mu.Unlock()

	if excluded {
		c.stat.Add(ctx, MetricExcluded, 1, "name", c.config.Name)

		return nil, errors.WrapWithContext(ErrUncachable, errors.CodeInvalidInput, "query is excluded from cache",
			map[string]interface{}{"id": id, "reason": ex.String()})
	}

	q, err := c.loader.Get(ctx, id, compile)
	if err == nil {
		return q, nil
	}

	if errors.Is(err, ErrUncachable) {
		c.log.Info(ctx, "query marked uncachable", "name", c.config.Name, "id", id, "error", err)
		c.MarkUncachable(id, Exclusion{Reason: err.Error()})
	}

	return nil, err
}

// Invalidate removes prepared query, it returns true if query was cached.
func (c *Cache) Invalidate(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, found := c.delegate.Remove(id)

	return found
}

// MarkUncachable removes prepared query and excludes its id from caching.
//
// Strong exclusion of an id is kept. Removed query is returned.
func (c *Cache) MarkUncachable(id string, ex Exclusion) (*PreparedQuery, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, found := c.uncachables.Peek(id); !found || !prev.Strong {
		c.uncachables.Put(id, ex)
	}

	return c.delegate.Remove(id)
}

// IsExcluded returns exclusion of query id.
func (c *Cache) IsExcluded(id string) (Exclusion, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.isExcluded(id)
}

func (c *Cache) isExcluded(id string) (Exclusion, bool) {
	if ex, found := c.uncachables.Peek(id); found {
		return ex, true
	}

	var (
		ex    Exclusion
		found bool
	)

	c.patterns.Range(func(_ string, value interface{}) bool {
		e := value.(Exclusion) //nolint:errcheck

		if e.Matches(id) {
			ex, found = e, true

			return false
		}

		return true
	})

	if found {
		c.uncachables.Put(id, ex)
	}

	return ex, found
}

// AddExclusionPattern excludes query ids matching glob pattern and removes matching cached queries.
func (c *Cache) AddExclusionPattern(pattern, reason string) error {
	ex, err := NewExclusion(pattern, reason)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.patterns.Store(pattern, ex)

	removed := 0

	for _, id := range cachedKeys(c.delegate) {
		if ex.Matches(id) {
			c.delegate.Remove(id)
			c.uncachables.Put(id, ex)

			removed++
		}
	}

	c.log.Debug(context.Background(), "exclusion pattern added",
		"name", c.config.Name,
		"pattern", pattern,
		"removed", removed)

	return nil
}

// RemoveExclusionPattern drops exclusion pattern and exclusions of ids set by it.
func (c *Cache) RemoveExclusionPattern(pattern string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, found := c.patterns.LoadAndDelete(pattern); !found {
		return false
	}

	for _, id := range cachedKeys(c.uncachables) {
		if ex, found := c.uncachables.Peek(id); found && ex.Pattern == pattern {
			c.uncachables.Remove(id)
		}
	}

	return true
}

// Clear removes cached queries and runtime exclusions, exclusion patterns are kept.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.invalidator.Invalidate()
}

// Len returns number of cached queries.
func (c *Cache) Len() int {
	return c.delegate.Len()
}

// Statistics returns counters of prepared queries cache.
func (c *Cache) Statistics() cachemap.Statistics {
	return c.delegate.Stats()
}

func cachedKeys[V any](c *cachemap.Cache[string, V]) []string {
	return append(c.Keys(), c.OverflowKeys()...)
}
