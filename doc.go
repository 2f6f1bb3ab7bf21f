// Package cachemap provides a two-tier in-memory cache for expensive derived artifacts.
//
// Features:
//
//   - Primary tier of bounded capacity, ordered by recency (LRU) or by insertion (FIFO).
//   - Evicted entries are demoted to overflow tier instead of being lost, overflow entries can be reclaimed
//     at any time by capacity, age or heap pressure.
//   - Overflow entry is promoted back to primary tier on access.
//   - Pinned keys are never evicted, a key can be pinned before it has a value.
//   - Fair reader/writer gate: concurrent reads, writers served in arrival order.
//   - Builds of missing values are locked per key, build errors are cached with low TTL.
//   - Allows logging, stats collection, eviction notifications.
//   - Dump and restore of cached entries with gob.
package cachemap
