package cachemap

import (
	"slices"

	"github.com/vearutop/cachemap/internal/ring"
)

// EvictionPolicy tracks primary tier keys and selects eviction victims.
//
// All methods are invoked under the cache write lock.
type EvictionPolicy[K comparable] interface {
	// Admitted is called when key enters the primary tier.
	Admitted(key K)
	// Accessed is called on a primary tier read hit.
	Accessed(key K)
	// Updated is called when a primary tier key receives a new value.
	Updated(key K)
	// Removed is called when key leaves the primary tier.
	Removed(key K)
	// Victim returns the first key in eviction order that is not pinned.
	Victim(pinned func(key K) bool) (K, bool)
	// Keys returns tracked keys in eviction order.
	Keys() []K
	// Len returns number of tracked keys.
	Len() int
	// Reset forgets all keys.
	Reset()
}

// Recency evicts the least recently used key first, reads and updates refresh position.
type Recency[K comparable] struct {
	order *ring.Order[K]
}

// Insertion evicts the earliest admitted key first, reads and updates keep position.
type Insertion[K comparable] struct {
	order *ring.Order[K]
}

var (
	_ EvictionPolicy[string] = &Recency[string]{}
	_ EvictionPolicy[string] = &Insertion[string]{}
)

// NewRecency creates LRU eviction policy.
func NewRecency[K comparable](sizeHint int) *Recency[K] {
	return &Recency[K]{order: ring.New[K](sizeHint)}
}

// NewInsertion creates FIFO eviction policy.
func NewInsertion[K comparable](sizeHint int) *Insertion[K] {
	return &Insertion[K]{order: ring.New[K](sizeHint)}
}

// Admitted implements EvictionPolicy.
func (p *Recency[K]) Admitted(key K) {
	if !p.order.PushBack(key) {
		p.order.MoveToBack(key)
	}
}

// Accessed implements EvictionPolicy.
func (p *Recency[K]) Accessed(key K) {
	p.order.MoveToBack(key)
}

// Updated implements EvictionPolicy.
func (p *Recency[K]) Updated(key K) {
	p.order.MoveToBack(key)
}

// Removed implements EvictionPolicy.
func (p *Recency[K]) Removed(key K) {
	p.order.Remove(key)
}

// Victim implements EvictionPolicy.
func (p *Recency[K]) Victim(pinned func(key K) bool) (K, bool) {
	return victim(p.order, pinned)
}

// Keys implements EvictionPolicy.
func (p *Recency[K]) Keys() []K {
	return slices.Collect(p.order.All())
}

// Len implements EvictionPolicy.
func (p *Recency[K]) Len() int {
	return p.order.Len()
}

// Reset implements EvictionPolicy.
func (p *Recency[K]) Reset() {
	p.order.Reset()
}

// Admitted implements EvictionPolicy.
func (p *Insertion[K]) Admitted(key K) {
	p.order.PushBack(key)
}

// Accessed implements EvictionPolicy.
func (p *Insertion[K]) Accessed(K) {}

// Updated implements EvictionPolicy.
func (p *Insertion[K]) Updated(K) {}

// Removed implements EvictionPolicy.
func (p *Insertion[K]) Removed(key K) {
	p.order.Remove(key)
}

// Victim implements EvictionPolicy.
func (p *Insertion[K]) Victim(pinned func(key K) bool) (K, bool) {
	return victim(p.order, pinned)
}

// Keys implements EvictionPolicy.
func (p *Insertion[K]) Keys() []K {
	return slices.Collect(p.order.All())
}

// Len implements EvictionPolicy.
func (p *Insertion[K]) Len() int {
	return p.order.Len()
}

// Reset implements EvictionPolicy.
func (p *Insertion[K]) Reset() {
	p.order.Reset()
}

func victim[K comparable](order *ring.Order[K], pinned func(key K) bool) (K, bool) {
	for k := range order.All() {
		if pinned == nil || !pinned(k) {
			return k, true
		}
	}

	var zero K

	return zero, false
}
