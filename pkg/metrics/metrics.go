// Package metrics provides the centralized Prometheus metrics reference
// for the proxy. All metrics are defined in their owning packages (cache,
// coalesce, upstream, proxy) via promauto to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the proxy.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - grepoproxy_cache_hits_total (Counter): Fresh cache hits
//   - grepoproxy_cache_misses_total (Counter): Misses, absent or expired
//   - grepoproxy_cache_evictions_total (Counter): LRU evictions at capacity
//   - grepoproxy_cache_expired_total (Counter): Entries dropped after expiry
//   - grepoproxy_cache_entries (Gauge): Current entry count
//
// Coalescing Metrics (pkg/coalesce):
//   - grepoproxy_coalesced_waits_total (Counter): Requests served by another
//     caller's in-flight fetch
//   - grepoproxy_coalesce_wait_timeouts_total (Counter): Waits abandoned on
//     deadline
//
// Origin Metrics (pkg/upstream):
//   - grepoproxy_upstream_requests_total{datafile, status} (Counter): Origin
//     requests by datafile and outcome
//   - grepoproxy_upstream_request_duration_seconds{datafile} (Histogram):
//     Origin fetch duration
//   - grepoproxy_upstream_failures_total{kind} (Counter): Failures by kind
//     (unreachable, timeout, upstream_status, bad_response)
//
// Response Metrics (pkg/proxy):
//   - grepoproxy_responses_total{datafile, status} (Counter): Responses sent
//     to callers
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(grepoproxy_cache_hits_total[5m])) /
//   (sum(rate(grepoproxy_cache_hits_total[5m])) + sum(rate(grepoproxy_cache_misses_total[5m])))
//
//   # Origin Failure Rate
//   rate(grepoproxy_upstream_failures_total[5m])
//
//   # P95 Origin Latency
//   histogram_quantile(0.95, rate(grepoproxy_upstream_request_duration_seconds_bucket[5m]))
//
//   # Requests Saved by Coalescing
//   rate(grepoproxy_coalesced_waits_total[5m])
