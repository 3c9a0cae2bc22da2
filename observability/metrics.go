package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// resolveTotal counts orchestrator runs by slot and terminal outcome
	resolveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casebrief_resolve_total",
		Help: "Total brief resolutions by slot and outcome",
	}, []string{"slot", "outcome"})

	// resolveDuration tracks end-to-end resolve latency
	resolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "casebrief_resolve_duration_seconds",
		Help:    "Brief resolution duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"slot"})

	// generationAttempts tracks how many generations a resolution needed
	generationAttempts = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "casebrief_generation_attempts",
		Help:    "Generations performed per brief resolution",
		Buckets: []float64{0, 1, 2, 3, 5, 8},
	}, []string{"slot"})

	// completionCalls counts completion backend calls by purpose and status
	completionCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casebrief_completion_calls_total",
		Help: "Total completion calls by purpose and status",
	}, []string{"purpose", "status"})
)

// RecordResolve records the outcome of one orchestrator run
func RecordResolve(slot, outcome string, attempts int, elapsed time.Duration) {
	resolveTotal.WithLabelValues(slot, outcome).Inc()
	resolveDuration.WithLabelValues(slot).Observe(elapsed.Seconds())
	generationAttempts.WithLabelValues(slot).Observe(float64(attempts))
}

// RecordCompletion records one completion call. purpose is "generate" or "verify".
func RecordCompletion(purpose string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	completionCalls.WithLabelValues(purpose, status).Inc()
}
