// Package metrics exposes the process-wide Prometheus instruments. Contexts
// stay metrics-free; the HTTP shim and workers record here.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agegate_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agegate_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	ReviewTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agegate_review_transitions_total",
		Help: "Review request transitions by kind (created, cancelled, assigned, resolved, inactivity_closed).",
	}, []string{"kind"})

	StoreContentionTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agegate_store_contention_total",
		Help: "Operations that failed with store contention after retries.",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agegate_queue_depth",
		Help: "Queued review requests at last observation.",
	})
)
