package cachemap

const (
	// MetricHit is a name of a metric to count cache hits.
	MetricHit = "cache_hit"

	// MetricMiss is a name of a metric to count cache misses.
	MetricMiss = "cache_miss"

	// MetricWrite is a name of a metric to count cache writes.
	MetricWrite = "cache_write"

	// MetricEvict is a name of a metric to count primary entries demoted to overflow.
	MetricEvict = "cache_evict"

	// MetricDrop is a name of a metric to count evicted entries discarded without overflow.
	MetricDrop = "cache_drop"

	// MetricPromote is a name of a metric to count overflow entries promoted to primary.
	MetricPromote = "cache_promote"

	// MetricReclaim is a name of a metric to count overflow entries reclaimed.
	MetricReclaim = "cache_reclaim"

	// MetricItems is a name of a gauge to report number of hard-referenced cached entries.
	MetricItems = "cache_items"

	// MetricOverflowItems is a name of a gauge to report number of overflow entries.
	MetricOverflowItems = "cache_overflow_items"

	// MetricBuild is a name of a metric to count value builds.
	MetricBuild = "cache_build"

	// MetricFailed is a name of a metric to count failed builds.
	MetricFailed = "cache_failed"
)
