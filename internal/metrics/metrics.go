// Package metrics registers the Prometheus collectors kingress exposes on
// its introspection endpoint's /metrics path. This is observability,
// independent of the JSON routing-table introspection: the original this
// was distilled from shipped a config dump but no metrics at all, so this
// package is a supplemental addition, not a requirement derived from it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionsAccepted counts accepted connections per listener
	// ("http", "https").
	ConnectionsAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kingress",
			Subsystem: "proxy",
			Name:      "connections_accepted_total",
			Help:      "Total connections accepted, by listener.",
		},
		[]string{"listener"},
	)

	// BackendDialFailures counts failed backend dials by reason
	// ("lookup_failed", "connect_failed").
	BackendDialFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kingress",
			Subsystem: "backend",
			Name:      "dial_failures_total",
			Help:      "Total backend dial failures, by reason.",
		},
		[]string{"reason"},
	)

	// CacheHits and CacheMisses count resolver cache lookups.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kingress",
			Subsystem: "resolver_cache",
			Name:      "hits_total",
			Help:      "Total resolver cache hits.",
		},
	)
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kingress",
			Subsystem: "resolver_cache",
			Name:      "misses_total",
			Help:      "Total resolver cache misses.",
		},
	)

	// CacheEvictions counts LRU evictions driven by capacity pressure.
	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kingress",
			Subsystem: "resolver_cache",
			Name:      "evictions_total",
			Help:      "Total resolver cache entries evicted for capacity.",
		},
	)

	// ResolverCoalesced counts concurrent cluster-API lookups for the same
	// endpoint that were coalesced into one API call by the Kube variant's
	// singleflight.Group.
	ResolverCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kingress",
			Subsystem: "resolver",
			Name:      "coalesced_lookups_total",
			Help:      "Total concurrent resolver lookups coalesced into one API call.",
		},
	)
)
