// Package metrics defines the sinks that record scheduling outcomes.
// Sinks like PromSink and InfluxSink (infra/metrics) record commits and
// travel lookups; several sinks can be combined with NewMultiSink, and the
// factory helpers return a MultiSink automatically when more than one sink
// is configured.
package metrics
