package config

import (
	"fmt"
	"time"
)

// HTTPConfig configures the planning API server.
type HTTPConfig struct {
	Addr string `json:"addr"`
	// RequestTimeoutSeconds bounds every handler's context.
	RequestTimeoutSeconds int `json:"request_timeout_seconds"`
	// Mode is passed to gin: "release", "debug" or "test".
	Mode string `json:"mode"`
}

func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = 10
	}
	if c.Mode == "" {
		c.Mode = "release"
	}
}

func (c HTTPConfig) Validate() error {
	switch c.Mode {
	case "release", "debug", "test":
	default:
		return fmt.Errorf("unknown gin mode %q", c.Mode)
	}
	return nil
}

// RequestTimeout returns the handler timeout.
func (c HTTPConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}
