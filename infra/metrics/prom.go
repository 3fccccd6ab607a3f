package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/crewsched/core/events"
	coremetrics "github.com/kilianp07/crewsched/core/metrics"
)

// PromSink exposes placement, travel and session activity as Prometheus metrics.
type PromSink struct {
	snap     *prometheus.HistogramVec
	lookups  *prometheus.CounterVec
	latency  prometheus.Histogram
	sessions *prometheus.CounterVec
	windows  *prometheus.CounterVec
}

// NewPromSink registers metrics on the default Prometheus registerer.
// The /metrics server is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		snap: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crewsched_placement_snap_minutes",
			Help:    "Distance placements were moved forward at commit",
			Buckets: []float64{0, 15, 30, 60, 120, 240, 480},
		}, []string{"op"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crewsched_travel_lookups_total",
			Help: "Travel duration requests by outcome",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crewsched_travel_lookup_seconds",
			Help:    "Latency of upstream travel lookups",
			Buckets: prometheus.DefBuckets,
		}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crewsched_interaction_sessions_total",
			Help: "Drag and resize sessions by result",
		}, []string{"kind", "committed", "reason"}),
		windows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crewsched_lane_windows_updates_total",
			Help: "Lane window recomputations after background travel lookups",
		}, []string{"pending"}),
	}
	var err error
	if s.snap, err = register(reg, s.snap); err != nil {
		return nil, err
	}
	if s.lookups, err = register(reg, s.lookups); err != nil {
		return nil, err
	}
	if s.latency, err = register(reg, s.latency); err != nil {
		return nil, err
	}
	if s.sessions, err = register(reg, s.sessions); err != nil {
		return nil, err
	}
	if s.windows, err = register(reg, s.windows); err != nil {
		return nil, err
	}
	return s, nil
}

// register returns the already registered collector when c was registered
// before, so several sinks can share one registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordCommit observes the snap distance of successful commits.
func (s *PromSink) RecordCommit(rec coremetrics.CommitRecord) error {
	if rec.Outcome == "reconciled" {
		s.snap.WithLabelValues(rec.Op).Observe(float64(rec.SnapDelta))
	}
	return nil
}

// RecordTravelLookup counts the lookup and, for upstream calls, its latency.
func (s *PromSink) RecordTravelLookup(rec coremetrics.TravelLookupRecord) error {
	s.lookups.WithLabelValues(rec.Outcome).Inc()
	if rec.Outcome == "miss" || rec.Outcome == "unknown" {
		s.latency.Observe(rec.Latency.Seconds())
	}
	return nil
}

// RecordSession counts finished interaction sessions.
func (s *PromSink) RecordSession(rec coremetrics.SessionRecord) error {
	s.sessions.WithLabelValues(rec.Kind, strconv.FormatBool(rec.Committed), string(rec.Reason)).Inc()
	return nil
}

// RecordLaneWindows counts a lane window recomputation.
func (s *PromSink) RecordLaneWindows(ev events.LaneWindowsUpdated) error {
	s.windows.WithLabelValues(strconv.FormatBool(ev.Pending)).Inc()
	return nil
}
