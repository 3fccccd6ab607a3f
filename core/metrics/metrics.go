package metrics

import (
	"time"

	"github.com/kilianp07/crewsched/core/model"
)

// CommitRecord describes one finished commit attempt.
type CommitRecord struct {
	Op        string
	Outcome   string // "reconciled", "rolled_back" or "rejected"
	Reason    model.ReasonCode
	CrewID    string
	Day       model.DayKey
	SnapDelta int
	Duration  time.Duration
	Time      time.Time
}

// MetricsSink records commit outcomes for observability purposes.
type MetricsSink interface {
	RecordCommit(rec CommitRecord) error
}

// TravelLookupRecord describes one travel duration request.
type TravelLookupRecord struct {
	// Outcome is "hit", "miss", "coalesced" or "unknown".
	Outcome string
	Latency time.Duration
	Time    time.Time
}

// TravelRecorder is implemented by sinks able to record travel lookups.
type TravelRecorder interface {
	RecordTravelLookup(rec TravelLookupRecord) error
}

// SessionRecord describes the end of an interaction session.
type SessionRecord struct {
	Kind      string // "drag" or "resize"
	Committed bool
	Reason    model.ReasonCode
	Samples   int
	Time      time.Time
}

// SessionRecorder is implemented by sinks able to record interaction sessions.
type SessionRecorder interface {
	RecordSession(rec SessionRecord) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordCommit(CommitRecord) error             { return nil }
func (NopSink) RecordTravelLookup(TravelLookupRecord) error { return nil }
func (NopSink) RecordSession(SessionRecord) error           { return nil }

// OrNop returns s, or NopSink when s is nil.
func OrNop(s MetricsSink) MetricsSink {
	if s == nil {
		return NopSink{}
	}
	return s
}
