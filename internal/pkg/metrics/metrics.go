package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// VendorRequestTotal counts upstream cloud calls by endpoint and outcome
	// (success, vendor_error, auth_error, transport_error, breaker_open).
	VendorRequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aquahub_vendor_requests_total",
			Help: "Total number of requests issued to the vendor cloud.",
		},
		[]string{"endpoint", "outcome"},
	)

	// VendorRequestLatency records upstream call durations.
	VendorRequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aquahub_vendor_request_latency_seconds",
			Help:    "Latency of vendor cloud requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// CacheLookupTotal counts status cache lookups.
	// result: hit, miss, join (attached to an in-flight fetch), fallback.
	CacheLookupTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aquahub_cache_lookups_total",
			Help: "Total number of device status cache lookups.",
		},
		[]string{"result"},
	)

	// SyncCycleTotal counts completed background sync cycles.
	SyncCycleTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aquahub_sync_cycles_total",
			Help: "Total number of background sync cycles.",
		},
		[]string{"outcome"},
	)

	// SyncDeviceFailureTotal counts per-device failures during a sync cycle.
	SyncDeviceFailureTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aquahub_sync_device_failures_total",
			Help: "Total number of devices that failed to refresh during sync.",
		},
	)

	// SyncCycleDuration records how long a full sync cycle takes.
	SyncCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aquahub_sync_cycle_duration_seconds",
			Help:    "Duration of a full background sync cycle.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)
)

// Registry is the process-wide registry served on the metrics endpoint.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		VendorRequestTotal,
		VendorRequestLatency,
		CacheLookupTotal,
		SyncCycleTotal,
		SyncDeviceFailureTotal,
		SyncCycleDuration,
	)
}
