package cachemap

// Tx gives access to cache operations while the cache is exclusively locked by Update.
type Tx[K comparable, V any] struct {
	c *cache[K, V]
}

// Put stores value, see Cache.Put.
func (tx *Tx[K, V]) Put(key K, value V) (V, bool) {
	return tx.c.put(key, value)
}

// Get returns cached value, see Cache.Get.
func (tx *Tx[K, V]) Get(key K) (V, bool) {
	return tx.c.get(key)
}

// Peek returns cached value without promotion.
func (tx *Tx[K, V]) Peek(key K) (V, bool) {
	return tx.c.peek(key)
}

// Remove deletes key, see Cache.Remove.
func (tx *Tx[K, V]) Remove(key K) (V, bool) {
	return tx.c.remove(key)
}

// Pin exempts key from eviction.
func (tx *Tx[K, V]) Pin(key K) {
	tx.c.pin(key)
}

// Unpin makes key evictable again.
func (tx *Tx[K, V]) Unpin(key K) bool {
	return tx.c.unpin(key)
}

// ContainsKey checks if key has a value in any tier.
func (tx *Tx[K, V]) ContainsKey(key K) bool {
	_, found := tx.c.peek(key)

	return found
}

// Len returns number of hard-referenced entries.
func (tx *Tx[K, V]) Len() int {
	return tx.c.len()
}
