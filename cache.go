package cachemap

import (
	"context"
	"reflect"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
	"github.com/puzpuzpuz/xsync"
)

// Tier identifies where a cached entry resides.
type Tier int

// Tiers.
const (
	TierNone Tier = iota
	TierPrimary
	TierOverflow
	TierPinned
)

// EvictionReason explains why an entry left the primary or overflow tier.
type EvictionReason int

// Eviction reasons.
const (
	// Demoted means entry moved from primary to overflow tier.
	Demoted EvictionReason = iota
	// Dropped means entry was discarded because overflow tier is disabled.
	Dropped
	// Reclaimed means overflow tier gave up entry because of capacity, age or heap pressure.
	Reclaimed
)

// EvictionListener receives eviction notifications.
//
// Listener is called synchronously, possibly under cache lock, and must not call the cache.
type EvictionListener[K comparable, V any] func(key K, value V, reason EvictionReason)

// Statistics is a snapshot of cache counters.
type Statistics struct {
	Hits       int64
	Misses     int64
	Writes     int64
	Demotions  int64
	Drops      int64
	Promotions int64
	Reclaims   int64
}

type counters struct {
	hits       *xsync.Counter
	misses     *xsync.Counter
	writes     *xsync.Counter
	demotions  *xsync.Counter
	drops      *xsync.Counter
	promotions *xsync.Counter
	reclaims   *xsync.Counter
}

func newCounters() counters {
	return counters{
		hits:       new(xsync.Counter),
		misses:     new(xsync.Counter),
		writes:     new(xsync.Counter),
		demotions:  new(xsync.Counter),
		drops:      new(xsync.Counter),
		promotions: new(xsync.Counter),
		reclaims:   new(xsync.Counter),
	}
}

type pin[V any] struct {
	value V
	set   bool
}

// Cache is a two-tier cache with bounded primary tier, overflow tier of evicted entries and pinning.
//
// Please use New to create instance.
type Cache[K comparable, V any] struct {
	*cache[K, V]
}

type cache[K comparable, V any] struct {
	gate     *Gate
	primary  map[K]V
	policy   EvictionPolicy[K]
	overflow *overflow[K, V]
	pinned   map[K]pin[V]
	maxSize  int

	config   Config
	log      ctxd.Logger
	stat     stats.Tracker
	counters counters
	listener atomic.Pointer[EvictionListener[K, V]]

	closed    chan struct{}
	closeOnce sync.Once
}

// New creates a cache instance with optional configuration (only first argument is used).
//
// DefaultConfig is used if configuration is not provided.
func New[K comparable, V any](cfg ...Config) (*Cache[K, V], error) {
	config := DefaultConfig()

	if len(cfg) >= 1 {
		config = cfg[0]
	}

	config, err := config.normalize()
	if err != nil {
		return nil, err
	}

	c := &cache[K, V]{
		gate:     NewGate(),
		primary:  make(map[K]V, config.mapCapacity()),
		pinned:   make(map[K]pin[V]),
		maxSize:  config.MaxSize,
		config:   config,
		log:      config.Logger,
		stat:     config.Stats,
		counters: newCounters(),
		closed:   make(chan struct{}),
	}

	if config.LRU {
		c.policy = NewRecency[K](config.mapCapacity())
	} else {
		c.policy = NewInsertion[K](config.mapCapacity())
	}

	c.overflow = newOverflow[K, V](config.SoftSize, config.SoftTTL, c.reclaimed)

	C := &Cache[K, V]{
		cache: c,
	}

	go c.janitor()

	runtime.SetFinalizer(C, func(m *Cache[K, V]) {
		c.Close()
	})

	return C, nil
}

// Close stops background jobs.
func (c *cache[K, V]) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}

// SetEvictionListener sets or removes (with nil) eviction listener.
func (c *cache[K, V]) SetEvictionListener(listener EvictionListener[K, V]) {
	if listener == nil {
		c.listener.Store(nil)

		return
	}

	c.listener.Store(&listener)
}

// Put stores value and returns previous value of the key found in any tier.
func (c *cache[K, V]) Put(key K, value V) (V, bool) {
	c.gate.Lock()
	defer c.gate.Unlock()

	return c.put(key, value)
}

// Get returns cached value, an overflow entry is promoted to primary tier.
func (c *cache[K, V]) Get(key K) (V, bool) {
	if !c.config.LRU {
		c.gate.RLock()
		v, found := c.primary[key]
		c.gate.RUnlock()

		if found {
			c.hit()

			return v, true
		}
	}

	c.gate.Lock()
	defer c.gate.Unlock()

	return c.get(key)
}

// Peek returns cached value without promotion or ordering change.
func (c *cache[K, V]) Peek(key K) (V, bool) {
	c.gate.RLock()
	defer c.gate.RUnlock()

	return c.peek(key)
}

// Remove deletes key from all tiers and clears its pin.
func (c *cache[K, V]) Remove(key K) (V, bool) {
	c.gate.Lock()
	defer c.gate.Unlock()

	return c.remove(key)
}

// Pin exempts key from eviction, missing key is pinned in advance.
func (c *cache[K, V]) Pin(key K) {
	c.gate.Lock()
	defer c.gate.Unlock()

	c.pin(key)
}

// Unpin makes key evictable again, it returns false if key was not pinned.
func (c *cache[K, V]) Unpin(key K) bool {
	c.gate.Lock()
	defer c.gate.Unlock()

	return c.unpin(key)
}

// Clear removes all entries and pins.
func (c *cache[K, V]) Clear() {
	c.gate.Lock()
	defer c.gate.Unlock()

	c.clear()
}

// Update calls fn with exclusive access to the cache.
//
// Tx must not be used after fn returns.
func (c *cache[K, V]) Update(fn func(tx *Tx[K, V]) error) error {
	c.gate.Lock()
	defer c.gate.Unlock()

	return fn(&Tx[K, V]{c: c})
}

// SetPrimaryCapacity changes primary tier capacity, negative value means DefaultMaxSize.
//
// Shrinking is enforced lazily by the next write or promotion.
func (c *cache[K, V]) SetPrimaryCapacity(n int) error {
	if n < 0 {
		n = DefaultMaxSize
	}

	if n == 0 && c.config.LRU {
		return invalidConfig("LRU primary tier max size must be greater than 0", map[string]interface{}{
			"maxSize": n,
		})
	}

	c.gate.Lock()
	defer c.gate.Unlock()

	c.maxSize = n
	c.config.MaxSize = n

	return nil
}

// SetSoftCapacity replaces overflow tier with one of a new capacity, see Config.SoftSize.
//
// Existing overflow entries are moved to the new tier from the oldest to the newest.
func (c *cache[K, V]) SetSoftCapacity(n int) {
	if n < SoftDisabled {
		n = SoftUnbounded
	}

	c.gate.Lock()
	defer c.gate.Unlock()

	old := c.overflow
	c.config.SoftSize = n
	c.overflow = newOverflow[K, V](n, c.config.SoftTTL, c.reclaimed)

	for _, k := range old.keys() {
		v, found := old.peek(k)
		if !found {
			continue
		}

		c.toOverflow(k, v, false)
	}

	old.purge()
}

// ContainsKey checks if key has a value in any tier.
func (c *cache[K, V]) ContainsKey(key K) bool {
	c.gate.RLock()
	defer c.gate.RUnlock()

	_, found := c.peek(key)

	return found
}

// ContainsValue checks if any tier holds a value deeply equal to v.
func (c *cache[K, V]) ContainsValue(v V) bool {
	c.gate.RLock()
	defer c.gate.RUnlock()

	for _, pv := range c.primary {
		if reflect.DeepEqual(pv, v) {
			return true
		}
	}

	for _, p := range c.pinned {
		if p.set && reflect.DeepEqual(p.value, v) {
			return true
		}
	}

	for _, ov := range c.overflow.values() {
		if reflect.DeepEqual(ov, v) {
			return true
		}
	}

	return false
}

// Len returns number of hard-referenced entries: primary tier and pinned values outside of it.
func (c *cache[K, V]) Len() int {
	c.gate.RLock()
	defer c.gate.RUnlock()

	return c.len()
}

// IsEmpty checks if there are no hard-referenced entries.
func (c *cache[K, V]) IsEmpty() bool {
	return c.Len() == 0
}

// PrimaryLen returns number of primary tier entries.
func (c *cache[K, V]) PrimaryLen() int {
	c.gate.RLock()
	defer c.gate.RUnlock()

	return len(c.primary)
}

// OverflowLen returns number of overflow tier entries.
func (c *cache[K, V]) OverflowLen() int {
	c.gate.RLock()
	defer c.gate.RUnlock()

	return c.overflow.len()
}

// PinnedLen returns number of pinned keys, including keys pinned in advance.
func (c *cache[K, V]) PinnedLen() int {
	c.gate.RLock()
	defer c.gate.RUnlock()

	return len(c.pinned)
}

// PinnedKeys returns pinned keys in no particular order.
func (c *cache[K, V]) PinnedKeys() []K {
	c.gate.RLock()
	defer c.gate.RUnlock()

	keys := make([]K, 0, len(c.pinned))
	for k := range c.pinned {
		keys = append(keys, k)
	}

	return keys
}

// Keys returns primary tier keys in eviction order followed by pinned keys with values outside of it.
func (c *cache[K, V]) Keys() []K {
	c.gate.RLock()
	defer c.gate.RUnlock()

	return c.keys()
}

// OverflowKeys returns overflow tier keys from the oldest to the newest.
func (c *cache[K, V]) OverflowKeys() []K {
	c.gate.RLock()
	defer c.gate.RUnlock()

	return c.overflow.keys()
}

// Locate returns tier of the key and its pin status.
func (c *cache[K, V]) Locate(key K) (Tier, bool) {
	c.gate.RLock()
	defer c.gate.RUnlock()

	p, pinned := c.pinned[key]

	if _, found := c.primary[key]; found {
		return TierPrimary, pinned
	}

	if c.overflow.contains(key) {
		return TierOverflow, pinned
	}

	if pinned && p.set {
		return TierPinned, true
	}

	return TierNone, pinned
}

// Walk calls walkFn for hard-referenced entries in eviction order.
//
// Entries are collected before the first call, walkFn may use the cache.
func (c *cache[K, V]) Walk(walkFn func(key K, value V) error) (int, error) {
	c.gate.RLock()
	keys := c.keys()
	values := make([]V, len(keys))

	for i, k := range keys {
		values[i], _ = c.peek(k)
	}
	c.gate.RUnlock()

	n := 0

	for i, k := range keys {
		if err := walkFn(k, values[i]); err != nil {
			return n, err
		}

		n++
	}

	return n, nil
}

// MaxSize returns primary tier capacity.
func (c *cache[K, V]) MaxSize() int {
	c.gate.RLock()
	defer c.gate.RUnlock()

	return c.maxSize
}

// SoftSize returns overflow tier capacity, see Config.SoftSize.
func (c *cache[K, V]) SoftSize() int {
	c.gate.RLock()
	defer c.gate.RUnlock()

	return c.config.SoftSize
}

// IsLRU checks if primary tier is ordered by recency.
func (c *cache[K, V]) IsLRU() bool {
	return c.config.LRU
}

// ConcurrencyLevel returns advisory concurrency hint.
func (c *cache[K, V]) ConcurrencyLevel() int {
	return c.config.ConcurrencyLevel
}

// Stats returns a snapshot of counters.
func (c *cache[K, V]) Stats() Statistics {
	return Statistics{
		Hits:       c.counters.hits.Value(),
		Misses:     c.counters.misses.Value(),
		Writes:     c.counters.writes.Value(),
		Demotions:  c.counters.demotions.Value(),
		Drops:      c.counters.drops.Value(),
		Promotions: c.counters.promotions.Value(),
		Reclaims:   c.counters.reclaims.Value(),
	}
}

func (c *cache[K, V]) hit() {
	c.counters.hits.Inc()

	if c.stat != nil {
		c.stat.Add(context.Background(), MetricHit, 1, "name", c.config.Name)
	}
}

func (c *cache[K, V]) notify(key K, value V, reason EvictionReason) {
	if l := c.listener.Load(); l != nil {
		(*l)(key, value, reason)
	}
}

// reclaimed is called by overflow tier, possibly from its own goroutine.
func (c *cache[K, V]) reclaimed(key K, value V) {
	c.counters.reclaims.Inc()

	ctx := context.Background()

	if c.log != nil {
		c.log.Debug(ctx, "reclaimed overflow entry", "name", c.config.Name, "key", key)
	}

	if c.stat != nil {
		c.stat.Add(ctx, MetricReclaim, 1, "name", c.config.Name)
	}

	c.notify(key, value, Reclaimed)
}
