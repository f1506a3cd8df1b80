package assets

import "github.com/prometheus/client_golang/prometheus"

var (
	fetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "textgend",
			Subsystem: "assets",
			Name:      "fetch_total",
			Help:      "Asset retrievals by kind and result (hit, fetched, error)",
		},
		[]string{"kind", "result"},
	)

	fetchedBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "textgend",
			Subsystem: "assets",
			Name:      "fetched_bytes_total",
			Help:      "Bytes downloaded from the network",
		},
		[]string{"kind"},
	)

	fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "textgend",
			Subsystem: "assets",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of network fetches for a single URL",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		},
		[]string{"kind"},
	)

	cacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "textgend",
			Subsystem: "assets",
			Name:      "cache_evictions_total",
			Help:      "Entries evicted from a bounded asset cache",
		},
	)
)

func init() {
	prometheus.MustRegister(fetchTotal, fetchedBytesTotal, fetchDuration, cacheEvictionsTotal)
}
