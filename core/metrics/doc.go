// Package metrics defines the sinks that record planning activity. Sinks
// like PromSink and InfluxSink live in infra/metrics and register themselves
// by type name; NewMetricsSink builds a MultiSink when several are
// configured. Optional recorder interfaces let a sink opt into eligibility,
// occupancy and utilization samples.
package metrics
