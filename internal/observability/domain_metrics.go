package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	gateValidationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tablegate_gate_validations_total",
			Help: "Total number of candidate queries presented to the safety gate.",
		},
	)
	gateRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablegate_gate_rejections_total",
			Help: "Total number of gate rejections by rejection kind.",
		},
		[]string{"kind"},
	)
	queryExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablegate_query_executions_total",
			Help: "Total number of executed queries by outcome.",
		},
		[]string{"outcome"},
	)
	queryDurationMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tablegate_query_duration_ms",
			Help:    "Backend query latency in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 500, 1000, 2000, 5000},
		},
	)
	generationCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablegate_generation_calls_total",
			Help: "Total number of model generation calls by outcome.",
		},
		[]string{"outcome"},
	)
	followUpHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tablegate_followup_hits_total",
			Help: "Total number of follow-up requests served from session memory.",
		},
	)
	archiveWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablegate_archive_writes_total",
			Help: "Total number of result archive writes by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		gateValidationsTotal,
		gateRejectionsTotal,
		queryExecutionsTotal,
		queryDurationMs,
		generationCallsTotal,
		followUpHitsTotal,
		archiveWritesTotal,
	)
}

func ObserveGateValidation(rejectionKind string) {
	gateValidationsTotal.Inc()
	if rejectionKind != "" {
		gateRejectionsTotal.WithLabelValues(rejectionKind).Inc()
	}
}

func ObserveQueryExecution(err bool, elapsed time.Duration) {
	outcome := "ok"
	if err {
		outcome = "error"
	}
	queryExecutionsTotal.WithLabelValues(outcome).Inc()
	if !err {
		queryDurationMs.Observe(float64(elapsed.Milliseconds()))
	}
}

func ObserveGenerationCall(err bool) {
	outcome := "ok"
	if err {
		outcome = "error"
	}
	generationCallsTotal.WithLabelValues(outcome).Inc()
}

func IncrementFollowUpHit() {
	followUpHitsTotal.Inc()
}

func ObserveArchiveWrite(err bool) {
	outcome := "ok"
	if err {
		outcome = "error"
	}
	archiveWritesTotal.WithLabelValues(outcome).Inc()
}
