package commit

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	commitsTotal   *prometheus.CounterVec
	commitDuration *prometheus.HistogramVec
	rollbacksTotal *prometheus.CounterVec
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.HistogramVec, *prometheus.CounterVec) {
	total := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crewsched_commits_total",
			Help: "Number of commit attempts by operation and outcome",
		},
		[]string{"op", "outcome"},
	)
	dur := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crewsched_commit_duration_seconds",
			Help:    "Time from commit request to reconcile or rollback",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
	rb := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crewsched_rollbacks_total",
			Help: "Number of optimistic changes reverted after a persistence failure",
		},
		[]string{"reason"},
	)
	return total, dur, rb
}

func init() {
	commitsTotal, commitDuration, rollbacksTotal = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers commit metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(commitsTotal, commitDuration, rollbacksTotal)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	commitsTotal, commitDuration, rollbacksTotal = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
