package generation

import "github.com/prometheus/client_golang/prometheus"

const (
	outcomeComplete = "complete"
	outcomeAborted  = "aborted"
	outcomeError    = "error"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "textgend",
			Name:      "generation_runs_total",
			Help:      "Finished generations by outcome (complete, aborted, error)",
		},
		[]string{"outcome"},
	)

	tokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "textgend",
			Name:      "generation_tokens_total",
			Help:      "Tokens emitted by model",
		},
		[]string{"model"},
	)

	tokensPerSecond = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "textgend",
			Name:      "generation_tokens_per_second",
			Help:      "Throughput of the last completed generation by model",
		},
		[]string{"model"},
	)
)

func init() {
	prometheus.MustRegister(runsTotal, tokensTotal, tokensPerSecond)
}
