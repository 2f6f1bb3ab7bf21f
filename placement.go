package cachemap

import "context"

// Methods of this file must be called with the gate held, exclusively for mutations.

func (c *cache[K, V]) isPinned(key K) bool {
	_, pinned := c.pinned[key]

	return pinned
}

func (c *cache[K, V]) put(key K, value V) (V, bool) {
	var (
		prev  V
		found bool
	)

	c.counters.writes.Inc()

	if c.stat != nil {
		c.stat.Add(context.Background(), MetricWrite, 1, "name", c.config.Name)
	}

	if p, pinned := c.pinned[key]; pinned {
		prev, found = p.value, p.set
		c.pinned[key] = pin[V]{value: value, set: true}
	}

	if pv, ok := c.primary[key]; ok {
		c.primary[key] = value
		c.policy.Updated(key)

		return pv, true
	}

	if ov, ok := c.overflow.take(key); ok {
		prev, found = ov, true
	}

	c.place(key, value)

	return prev, found
}

// place admits an entry to primary tier evicting entries above capacity.
// If every primary entry is pinned the new entry goes to overflow tier.
func (c *cache[K, V]) place(key K, value V) {
	for len(c.primary) >= c.maxSize {
		victim, ok := c.policy.Victim(c.isPinned)
		if !ok {
			c.toOverflow(key, value, false)

			return
		}

		c.demote(victim)
	}

	c.primary[key] = value
	c.policy.Admitted(key)
}

func (c *cache[K, V]) demote(key K) {
	value := c.primary[key]

	delete(c.primary, key)
	c.policy.Removed(key)
	c.toOverflow(key, value, true)
}

func (c *cache[K, V]) toOverflow(key K, value V, demoted bool) {
	ctx := context.Background()

	if c.overflow.disabled() {
		c.counters.drops.Inc()

		if c.log != nil {
			c.log.Debug(ctx, "dropped cache entry", "name", c.config.Name, "key", key)
		}

		if c.stat != nil {
			c.stat.Add(ctx, MetricDrop, 1, "name", c.config.Name)
		}

		c.notify(key, value, Dropped)

		return
	}

	c.overflow.add(key, value)

	if !demoted {
		return
	}

	c.counters.demotions.Inc()

	if c.log != nil {
		c.log.Debug(ctx, "demoted cache entry", "name", c.config.Name, "key", key)
	}

	if c.stat != nil {
		c.stat.Add(ctx, MetricEvict, 1, "name", c.config.Name)
	}

	c.notify(key, value, Demoted)
}

func (c *cache[K, V]) get(key K) (V, bool) {
	if v, ok := c.primary[key]; ok {
		c.policy.Accessed(key)
		c.hit()

		return v, true
	}

	if v, ok := c.overflow.take(key); ok {
		c.promoted(key)
		c.place(key, v)
		c.hit()

		return v, true
	}

	// Overflow tier may have reclaimed a pinned entry.
	if p, ok := c.pinned[key]; ok && p.set {
		c.place(key, p.value)
		c.hit()

		return p.value, true
	}

	c.counters.misses.Inc()

	ctx := context.Background()

	if c.log != nil {
		c.log.Debug(ctx, "cache miss", "name", c.config.Name, "key", key)
	}

	if c.stat != nil {
		c.stat.Add(ctx, MetricMiss, 1, "name", c.config.Name)
	}

	var zero V

	return zero, false
}

func (c *cache[K, V]) promoted(key K) {
	c.counters.promotions.Inc()

	ctx := context.Background()

	if c.log != nil {
		c.log.Debug(ctx, "promoted overflow entry", "name", c.config.Name, "key", key)
	}

	if c.stat != nil {
		c.stat.Add(ctx, MetricPromote, 1, "name", c.config.Name)
	}
}

func (c *cache[K, V]) peek(key K) (V, bool) {
	if v, ok := c.primary[key]; ok {
		return v, true
	}

	if v, ok := c.overflow.peek(key); ok {
		return v, true
	}

	if p, ok := c.pinned[key]; ok && p.set {
		return p.value, true
	}

	var zero V

	return zero, false
}

func (c *cache[K, V]) remove(key K) (V, bool) {
	p, pinned := c.pinned[key]
	delete(c.pinned, key)

	if v, ok := c.primary[key]; ok {
		delete(c.primary, key)
		c.policy.Removed(key)

		return v, true
	}

	if v, ok := c.overflow.take(key); ok {
		return v, true
	}

	if pinned && p.set {
		return p.value, true
	}

	var zero V

	return zero, false
}

func (c *cache[K, V]) pin(key K) {
	if c.isPinned(key) {
		return
	}

	if v, ok := c.primary[key]; ok {
		c.pinned[key] = pin[V]{value: v, set: true}

		return
	}

	if v, ok := c.overflow.peek(key); ok {
		c.pinned[key] = pin[V]{value: v, set: true}

		return
	}

	c.pinned[key] = pin[V]{}
}

func (c *cache[K, V]) unpin(key K) bool {
	p, pinned := c.pinned[key]
	if !pinned {
		return false
	}

	delete(c.pinned, key)

	if !p.set {
		return true
	}

	// Value only held by pin is handed back to overflow tier.
	if _, ok := c.primary[key]; !ok && !c.overflow.contains(key) {
		c.toOverflow(key, p.value, false)
	}

	return true
}

func (c *cache[K, V]) clear() {
	clear(c.primary)
	clear(c.pinned)
	c.policy.Reset()
	c.overflow.purge()

	if c.log != nil {
		c.log.Debug(context.Background(), "cleared cache", "name", c.config.Name)
	}
}

func (c *cache[K, V]) len() int {
	n := len(c.primary)

	for k, p := range c.pinned {
		if !p.set {
			continue
		}

		if _, ok := c.primary[k]; !ok {
			n++
		}
	}

	return n
}

func (c *cache[K, V]) keys() []K {
	keys := c.policy.Keys()

	for k, p := range c.pinned {
		if !p.set {
			continue
		}

		if _, ok := c.primary[k]; !ok {
			keys = append(keys, k)
		}
	}

	return keys
}
