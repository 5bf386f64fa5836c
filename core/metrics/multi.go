package metrics

import "errors"

// MultiSink fans events out to multiple sinks. Optional recorders are only
// called on sinks that implement them. Every sink is attempted and the
// errors are joined.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

func (m *MultiSink) RecordAssignment(res AssignmentResult) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordAssignment(res))
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordEligibility(q EligibilityQuery) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(EligibilityRecorder); ok {
			errs = append(errs, rec.RecordEligibility(q))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordOccupancySync(ev OccupancySync) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(OccupancyRecorder); ok {
			errs = append(errs, rec.RecordOccupancySync(ev))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordOperationError(ev OperationError) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(ErrorRecorder); ok {
			errs = append(errs, rec.RecordOperationError(ev))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordUtilization(samples []VesselUtilization) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(UtilizationRecorder); ok {
			errs = append(errs, rec.RecordUtilization(samples))
		}
	}
	return errors.Join(errs...)
}

// Close closes the sinks that hold a connection.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
