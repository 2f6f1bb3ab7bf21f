package cachemap

import (
	"context"
	"runtime"
	"time"
)

func (c *cache[K, V]) janitor() {
	reclaim := time.NewTicker(c.config.ReclaimJobInterval)
	defer reclaim.Stop()

	report := time.NewTicker(c.config.ItemsCountReportInterval)
	defer report.Stop()

	expireInterval := c.config.ReclaimJobInterval
	if c.config.SoftTTL > 0 && c.config.SoftTTL < expireInterval {
		expireInterval = c.config.SoftTTL
	}

	expire := time.NewTicker(expireInterval)
	defer expire.Stop()

	for {
		select {
		case <-expire.C:
			c.expireOverflow()
		case <-reclaim.C:
			c.evictHeapInUse()
		case <-report.C:
			c.reportItemsCount()
		case <-c.closed:
			return
		}
	}
}

// expireOverflow reclaims overflow entries older than SoftTTL.
func (c *cache[K, V]) expireOverflow() int {
	c.gate.RLock()
	defer c.gate.RUnlock()

	return c.overflow.expire(time.Now())
}

// evictHeapInUse reclaims a fraction of the oldest overflow entries if heap in use is above the soft limit.
func (c *cache[K, V]) evictHeapInUse() int {
	if c.config.HeapInUseSoftLimit == 0 {
		return 0
	}

	runtime.GC()

	m := runtime.MemStats{}
	runtime.ReadMemStats(&m)

	if m.HeapInuse < c.config.HeapInUseSoftLimit {
		return 0
	}

	c.gate.RLock()
	defer c.gate.RUnlock()

	evictItems := int(float64(c.overflow.len()) * c.config.HeapInUseEvictFraction)

	if c.log != nil {
		c.log.Debug(context.Background(), "evicting overflow on heap pressure",
			"name", c.config.Name,
			"heapInUse", m.HeapInuse,
			"items", evictItems,
		)
	}

	return c.overflow.shed(evictItems)
}

func (c *cache[K, V]) reportItemsCount() {
	c.gate.RLock()
	count := c.len()
	overflowCount := c.overflow.len()
	c.gate.RUnlock()

	ctx := context.Background()

	if c.log != nil {
		c.log.Debug(ctx, "cache items count",
			"name", c.config.Name,
			"count", count,
			"overflow", overflowCount,
		)
	}

	if c.stat != nil {
		c.stat.Set(ctx, MetricItems, float64(count), "name", c.config.Name)
		c.stat.Set(ctx, MetricOverflowItems, float64(overflowCount), "name", c.config.Name)
	}
}
