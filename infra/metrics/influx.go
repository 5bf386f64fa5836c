package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/pailas/core/metrics"
	"github.com/kilianp07/pailas/infra/logger"
)

// InfluxConfig locates the InfluxDB bucket.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes planning activity to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

var (
	_ coremetrics.MetricsSink         = (*InfluxSink)(nil)
	_ coremetrics.EligibilityRecorder = (*InfluxSink)(nil)
	_ coremetrics.OccupancyRecorder   = (*InfluxSink)(nil)
	_ coremetrics.ErrorRecorder       = (*InfluxSink)(nil)
	_ coremetrics.UtilizationRecorder = (*InfluxSink)(nil)
)

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func (s *InfluxSink) write(points ...*write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordAssignment writes a vessel_assignment point.
func (s *InfluxSink) RecordAssignment(res coremetrics.AssignmentResult) error {
	p := write.NewPointWithMeasurement("vessel_assignment").
		AddTag("vessel_id", res.VesselID).
		AddTag("outcome", res.Outcome).
		AddTag("component", "allocation_engine")
	if res.Station != "" {
		p = p.AddTag("station", res.Station)
	}
	p = p.AddField("order_id", res.OrderID).
		AddField("lot_size", round3(res.LotSize)).
		AddField("produced_quantity", round3(res.ProducedQuantity)).
		AddField("child_lot_size", round3(res.ChildLotSize)).
		AddField("duration_ms", round3(res.Duration.Seconds()*1000)).
		SetTime(res.Time)
	return s.write(p)
}

// RecordEligibility writes an eligibility_query point.
func (s *InfluxSink) RecordEligibility(q coremetrics.EligibilityQuery) error {
	p := write.NewPointWithMeasurement("eligibility_query").
		AddTag("component", "eligibility_resolver").
		AddField("order_id", q.OrderID).
		AddField("candidates", q.Candidates).
		AddField("duration_ms", round3(q.Duration.Seconds()*1000)).
		SetTime(q.Time)
	return s.write(p)
}

// RecordOccupancySync writes an occupancy_sync point.
func (s *InfluxSink) RecordOccupancySync(ev coremetrics.OccupancySync) error {
	p := write.NewPointWithMeasurement("occupancy_sync").
		AddTag("action", ev.Action)
	if ev.VesselID != "" {
		p = p.AddTag("vessel_id", ev.VesselID)
	}
	p = p.AddField("order_id", ev.OrderID).SetTime(ev.Time)
	return s.write(p)
}

// RecordOperationError writes an operation_error point.
func (s *InfluxSink) RecordOperationError(ev coremetrics.OperationError) error {
	p := write.NewPointWithMeasurement("operation_error").
		AddTag("operation", ev.Operation).
		AddTag("kind", ev.Kind).
		AddField("count", 1).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordUtilization writes one vessel_utilization point per sample.
func (s *InfluxSink) RecordUtilization(samples []coremetrics.VesselUtilization) error {
	if len(samples) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(samples))
	for _, u := range samples {
		points = append(points, write.NewPointWithMeasurement("vessel_utilization").
			AddTag("vessel_id", u.VesselID).
			AddField("ratio", round3(u.Ratio)).
			SetTime(u.Time))
	}
	return s.write(points...)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
