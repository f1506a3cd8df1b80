package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	modelLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "textgend",
			Name:      "model_loads_total",
			Help:      "Model loads by result (ok, fetch_error, load_error, error)",
		},
		[]string{"result"},
	)

	modelLoadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "textgend",
			Name:      "model_load_duration_seconds",
			Help:      "Duration of successful model loads including asset fetch",
			Buckets:   prometheus.ExponentialBuckets(0.05, 3, 8),
		},
	)

	handlesLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "textgend",
			Name:      "handles_loaded",
			Help:      "Number of loaded model handles",
		},
	)

	admissionRejectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "textgend",
			Name:      "admission_rejects_total",
			Help:      "Generations rejected by backpressure, by stage (queue, inflight)",
		},
		[]string{"model", "stage"},
	)
)

func init() {
	prometheus.MustRegister(modelLoadsTotal, modelLoadDuration, handlesLoaded, admissionRejectsTotal)
}
