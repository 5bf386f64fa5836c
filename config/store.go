package config

import (
	"fmt"
	"time"
)

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	// Driver is "memory", "sqlite" or "postgres".
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
	// Seed is an optional YAML dataset imported at startup.
	Seed                   string `json:"seed"`
	AutoMigrate            bool   `json:"auto_migrate"`
	MaxOpenConns           int    `json:"max_open_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
}

func (c *StoreConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "memory"
	}
	if c.Driver == "sqlite" && c.DSN == "" {
		c.DSN = "pailas.db"
	}
}

func (c StoreConfig) Validate() error {
	switch c.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.DSN == "" {
			return fmt.Errorf("dsn is required for %s", c.Driver)
		}
	default:
		return fmt.Errorf("unknown driver %q", c.Driver)
	}
	if c.MaxOpenConns < 0 {
		return fmt.Errorf("max_open_conns must not be negative")
	}
	return nil
}

// ConnMaxLifetime returns the pool connection lifetime.
func (c StoreConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeSeconds) * time.Second
}
