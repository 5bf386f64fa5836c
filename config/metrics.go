package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/pailas/core/factory"
)

// MetricsConfig lists the metrics sinks and where /metrics is served.
type MetricsConfig struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusAddr enables the dedicated /metrics server when set.
	PrometheusAddr string `json:"prometheus_addr"`
	// UtilizationHorizonHours is the window of the utilization gauges.
	UtilizationHorizonHours int `json:"utilization_horizon_hours"`
}

func (c *MetricsConfig) SetDefaults() {
	if c.UtilizationHorizonHours <= 0 {
		c.UtilizationHorizonHours = 7 * 24
	}
}

func (c MetricsConfig) Validate() error {
	for i, s := range c.Sinks {
		if s.Type == "" {
			return fmt.Errorf("sink %d: type is required", i)
		}
	}
	return nil
}

// UtilizationHorizon returns the utilization window length.
func (c MetricsConfig) UtilizationHorizon() time.Duration {
	return time.Duration(c.UtilizationHorizonHours) * time.Hour
}

// HasSink reports whether a sink of the given type is configured.
func (c MetricsConfig) HasSink(typ string) bool {
	for _, s := range c.Sinks {
		if s.Type == typ {
			return true
		}
	}
	return false
}
