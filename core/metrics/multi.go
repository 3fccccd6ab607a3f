package metrics

// MultiSink fans records out to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordCommit forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordCommit(rec CommitRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordCommit(rec); err != nil {
			return err
		}
	}
	return nil
}

// RecordTravelLookup forwards to sinks implementing TravelRecorder.
func (m *MultiSink) RecordTravelLookup(rec TravelLookupRecord) error {
	for _, s := range m.Sinks {
		if tr, ok := s.(TravelRecorder); ok {
			if err := tr.RecordTravelLookup(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordSession forwards to sinks implementing SessionRecorder.
func (m *MultiSink) RecordSession(rec SessionRecord) error {
	for _, s := range m.Sinks {
		if sr, ok := s.(SessionRecorder); ok {
			if err := sr.RecordSession(rec); err != nil {
				return err
			}
		}
	}
	return nil
}
