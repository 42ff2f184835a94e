// Package cache provides the in-memory response cache for the proxy.
//
// It implements the following:
//
// - Deterministic cache key generation (parameter order and casing do not matter)
// - Per-endpoint TTL freshness (fixed at startup, not derived from origin headers)
// - Bounded capacity with least-recently-used eviction
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	store := cache.NewStore(128, clock.New())
//
//	key := cache.Key{
//		Endpoint: "players.txt",
//		Params:   map[string]string{"world": "de42"},
//	}
//
//	entry, ok := store.Get(key.String())
//	if !ok {
//		// Cache miss - fetch from the origin
//	}
//
// The store is the sole owner of entry lifetime: Get hands out deep copies,
// so callers can never mutate or observe a shared entry.
//
// # Metrics
//
// The store exports Prometheus metrics:
//
//   - grepoproxy_cache_hits_total - Cache hits
//   - grepoproxy_cache_misses_total - Cache misses
//   - grepoproxy_cache_evictions_total - LRU evictions
//   - grepoproxy_cache_expired_total - Entries dropped after their TTL passed
//   - grepoproxy_cache_entries - Current entry count
package cache
