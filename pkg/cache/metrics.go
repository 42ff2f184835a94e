package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks fresh cache hits
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grepoproxy_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	// CacheMisses tracks cache misses (absent or expired)
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grepoproxy_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// CacheEvictions tracks LRU evictions at capacity
	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grepoproxy_cache_evictions_total",
			Help: "Total number of entries evicted by the LRU policy",
		},
	)

	// CacheExpired tracks entries dropped because their TTL passed
	CacheExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grepoproxy_cache_expired_total",
			Help: "Total number of entries dropped after expiry",
		},
	)

	// CacheEntries tracks the current entry count
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "grepoproxy_cache_entries",
			Help: "Current number of cached entries",
		},
	)
)
