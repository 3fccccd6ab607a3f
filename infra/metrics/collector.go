package metrics

import (
	"context"

	"github.com/kilianp07/crewsched/core/events"
	coremetrics "github.com/kilianp07/crewsched/core/metrics"
	"github.com/kilianp07/crewsched/internal/eventbus"
)

// LaneWindowsRecorder is implemented by sinks that count lane window updates.
type LaneWindowsRecorder interface {
	RecordLaneWindows(ev events.LaneWindowsUpdated) error
}

// StartEventCollector subscribes to lane window updates and records them.
// It stops when the context is canceled or the bus is closed.
func StartEventCollector(ctx context.Context, bus *eventbus.Bus[events.LaneWindowsUpdated], rec LaneWindowsRecorder) {
	if bus == nil || rec == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				_ = rec.RecordLaneWindows(ev)
			}
		}
	}()
}

// LaneRecorder returns the first sink able to record lane window updates,
// looking inside a MultiSink. It returns nil when there is none.
func LaneRecorder(s coremetrics.MetricsSink) LaneWindowsRecorder {
	if rec, ok := s.(LaneWindowsRecorder); ok {
		return rec
	}
	if m, ok := s.(*coremetrics.MultiSink); ok {
		for _, inner := range m.Sinks {
			if rec := LaneRecorder(inner); rec != nil {
				return rec
			}
		}
	}
	return nil
}

// CloseSinks closes every sink holding a client connection.
func CloseSinks(s coremetrics.MetricsSink) {
	switch v := s.(type) {
	case interface{ Close() }:
		v.Close()
	case *coremetrics.MultiSink:
		for _, inner := range v.Sinks {
			CloseSinks(inner)
		}
	}
}
