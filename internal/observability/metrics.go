// Package observability defines the prometheus metrics exposed by viptier.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// namespace defines the global prefix for all metrics (viptier_...).
const namespace = "viptier"

var (
	// HTTPReqDuration measures the latency of HTTP requests.
	// Metric: viptier_http_handling_seconds
	HTTPReqDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_handling_seconds",
		Help:      "Time taken to handle HTTP requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	// HTTPReqTotal counts the total number of HTTP requests.
	// Metric: viptier_http_requests_total
	HTTPReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests",
	}, []string{"method", "path", "code"})

	// ProvisionTotal counts provisioning orchestrations by operation
	// (create, delete) and result (success, rejected, invalid, error).
	ProvisionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "provision",
		Name:      "operations_total",
		Help:      "Total rule provisioning operations",
	}, []string{"operation", "result"})

	// ClassificationTotal counts access classifications by outcome.
	ClassificationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "classifier",
		Name:      "classifications_total",
		Help:      "Total access classifications",
	}, []string{"vip"})

	// --- Access log sink ---

	// AccessLogQueueDepth tracks the number of entries buffered between
	// the request path and the drain worker.
	AccessLogQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "accesslog",
		Name:      "queue_depth",
		Help:      "Buffered access log entries awaiting persistence",
	})

	// AccessLogDropped counts entries dropped because the queue was full.
	AccessLogDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "accesslog",
		Name:      "dropped_total",
		Help:      "Access log entries dropped due to a full queue",
	})

	// AccessLogWriteFailures counts worker-side persistence failures.
	// Failures never propagate to the access-granting request.
	AccessLogWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "accesslog",
		Name:      "write_failures_total",
		Help:      "Access log writes that failed in the drain worker",
	})

	// --- Rule cache ---

	// RuleCacheHits counts rule set cache hits by tier (l1, l2).
	RuleCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rulecache",
		Name:      "hits_total",
		Help:      "Rule set cache hits by tier",
	}, []string{"tier"})

	// RuleCacheMisses counts lookups that fell through to the rule store.
	RuleCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rulecache",
		Name:      "misses_total",
		Help:      "Rule set lookups served by the rule store",
	})
)
