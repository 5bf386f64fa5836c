package metrics

import "time"

// AssignmentResult is one committed assignment.
type AssignmentResult struct {
	OrderID          int64
	VesselID         string
	Station          string
	Outcome          string
	LotSize          float64
	ProducedQuantity float64
	ChildLotSize     float64
	Duration         time.Duration
	Time             time.Time
}

// MetricsSink records planning results for observability purposes.
type MetricsSink interface {
	RecordAssignment(res AssignmentResult) error
}

// EligibilityQuery describes one resolver call.
type EligibilityQuery struct {
	OrderID    int64
	Candidates int
	Duration   time.Duration
	Time       time.Time
}

// EligibilityRecorder records resolver calls.
type EligibilityRecorder interface {
	RecordEligibility(q EligibilityQuery) error
}

// OccupancySync is one synchronizer decision. Action is "upserted",
// "deleted" or "none".
type OccupancySync struct {
	OrderID  int64
	VesselID string
	Action   string
	Time     time.Time
}

// OccupancyRecorder records synchronizer decisions.
type OccupancyRecorder interface {
	RecordOccupancySync(ev OccupancySync) error
}

// OperationError is a failed planning operation.
type OperationError struct {
	Operation string
	Kind      string
	Time      time.Time
}

// ErrorRecorder records failed operations by kind.
type ErrorRecorder interface {
	RecordOperationError(ev OperationError) error
}

// VesselUtilization is a utilization ratio sample for a vessel.
type VesselUtilization struct {
	VesselID string
	Ratio    float64
	Time     time.Time
}

// UtilizationRecorder records utilization snapshots.
type UtilizationRecorder interface {
	RecordUtilization(samples []VesselUtilization) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordAssignment(AssignmentResult) error     { return nil }
func (NopSink) RecordEligibility(EligibilityQuery) error    { return nil }
func (NopSink) RecordOccupancySync(OccupancySync) error     { return nil }
func (NopSink) RecordOperationError(OperationError) error   { return nil }
func (NopSink) RecordUtilization([]VesselUtilization) error { return nil }
