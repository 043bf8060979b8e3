package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(premiumCacheWritesTotal, cacheRequestsTotal) }

var (
	premiumCacheWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "premium_cache_writes_total",
			Help: "Best-effort writes of the verified premium state into the local cache.",
		},
		[]string{"result"}, // ok|fail
	)

	cacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Tracks cache hits and misses for various caches.",
		},
		[]string{"cache", "result"}, // e.g., cache="premium", result="hit"
	)
)

func IncPremiumCacheWrite(ok bool) {
	premiumCacheWritesTotal.WithLabelValues(boolResult(ok)).Inc()
}

func IncCacheRequest(cacheName, result string) {
	cacheRequestsTotal.WithLabelValues(norm(cacheName), norm(result)).Inc()
}
