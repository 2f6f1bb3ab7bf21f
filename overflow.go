package cachemap

import (
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// softEntry wraps an overflow value to tell reclamation apart from explicit removal.
type softEntry[V any] struct {
	value   V
	at      time.Time
	claimed atomic.Bool
}

// softStore is a synchronized LRU store, implemented by golang-lru caches.
type softStore[K comparable, V any] interface {
	Add(key K, value V) bool
	Peek(key K) (V, bool)
	Remove(key K) bool
	Contains(key K) bool
	Keys() []K
	Values() []V
	Len() int
	Purge()
	RemoveOldest() (K, V, bool)
}

var (
	_ softStore[string, int] = &lru.Cache[string, int]{}
	_ softStore[string, int] = &expirable.LRU[string, int]{}
	_ softStore[string, int] = discard[string, int]{}
)

// overflow is a tier of entries evicted from primary, entries may vanish at any time.
type overflow[K comparable, V any] struct {
	store     softStore[K, *softEntry[V]]
	capacity  int
	ttl       time.Duration
	purging   atomic.Bool
	reclaimed func(key K, value V)
}

func newOverflow[K comparable, V any](capacity int, ttl time.Duration, reclaimed func(key K, value V)) *overflow[K, V] {
	o := &overflow[K, V]{
		capacity:  capacity,
		reclaimed: reclaimed,
	}

	switch {
	case capacity == SoftDisabled:
		o.store = discard[K, *softEntry[V]]{}
	case capacity > 0:
		// Error is only returned for non-positive size.
		o.store, _ = lru.NewWithEvict[K, *softEntry[V]](capacity, o.onEvict) //nolint:errcheck
	default:
		if ttl > 0 {
			o.ttl = ttl
		}

		// Store TTL is not used, it would start a goroutine that is never stopped, see expire.
		o.store = expirable.NewLRU[K, *softEntry[V]](0, o.onEvict, 0)
	}

	return o
}

func (o *overflow[K, V]) onEvict(key K, e *softEntry[V]) {
	if e.claimed.Load() || o.purging.Load() {
		return
	}

	if o.reclaimed != nil {
		o.reclaimed(key, e.value)
	}
}

func (o *overflow[K, V]) disabled() bool {
	return o.capacity == SoftDisabled
}

func (o *overflow[K, V]) add(key K, value V) {
	o.store.Add(key, &softEntry[V]{value: value, at: time.Now()})
}

// take removes and returns an entry.
func (o *overflow[K, V]) take(key K) (V, bool) {
	e, found := o.store.Peek(key)
	if !found {
		var zero V

		return zero, false
	}

	e.claimed.Store(true)
	o.store.Remove(key)

	return e.value, true
}

func (o *overflow[K, V]) peek(key K) (V, bool) {
	e, found := o.store.Peek(key)
	if !found {
		var zero V

		return zero, false
	}

	return e.value, true
}

func (o *overflow[K, V]) contains(key K) bool {
	return o.store.Contains(key)
}

func (o *overflow[K, V]) len() int {
	return o.store.Len()
}

// keys returns keys from the oldest to the newest.
func (o *overflow[K, V]) keys() []K {
	return o.store.Keys()
}

func (o *overflow[K, V]) values() []V {
	entries := o.store.Values()
	values := make([]V, 0, len(entries))

	for _, e := range entries {
		values = append(values, e.value)
	}

	return values
}

// purge removes all entries without reporting reclamation.
func (o *overflow[K, V]) purge() {
	o.purging.Store(true)
	o.store.Purge()
	o.purging.Store(false)
}

// shed reclaims up to n oldest entries.
func (o *overflow[K, V]) shed(n int) int {
	removed := 0

	for ; removed < n; removed++ {
		if _, _, ok := o.store.RemoveOldest(); !ok {
			break
		}
	}

	return removed
}

// expire reclaims entries of unbounded tier that were added more than ttl before now, from the oldest.
func (o *overflow[K, V]) expire(now time.Time) int {
	if o.ttl <= 0 {
		return 0
	}

	removed := 0

	for _, k := range o.store.Keys() {
		e, found := o.store.Peek(k)
		if !found {
			continue
		}

		if now.Sub(e.at) < o.ttl {
			break
		}

		if o.store.Remove(k) {
			removed++
		}
	}

	return removed
}

// discard is a store of disabled overflow tier.
type discard[K comparable, V any] struct{}

func (discard[K, V]) Add(K, V) bool { return false }

func (discard[K, V]) Peek(K) (V, bool) {
	var zero V

	return zero, false
}

func (discard[K, V]) Remove(K) bool   { return false }
func (discard[K, V]) Contains(K) bool { return false }
func (discard[K, V]) Keys() []K       { return nil }
func (discard[K, V]) Values() []V     { return nil }
func (discard[K, V]) Len() int        { return 0 }
func (discard[K, V]) Purge()          {}

func (discard[K, V]) RemoveOldest() (K, V, bool) {
	var (
		k K
		v V
	)

	return k, v, false
}
