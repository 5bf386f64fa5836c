package audit

import (
	"fmt"

	"github.com/kilianp07/pailas/core/factory"
)

var storeRegistry = factory.NewRegistry[Store]()

// RegisterStore adds an audit store factory identified by name.
func RegisterStore(name string, f factory.Factory[Store]) error {
	return storeRegistry.Register(name, f)
}

// NewStore builds the store described by cfg. An empty type yields a NopStore.
func NewStore(cfg factory.ModuleConfig) (Store, error) {
	if cfg.Type == "" {
		return NopStore{}, nil
	}
	return storeRegistry.Create(cfg)
}

type fileConf struct {
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

func decodeFile(conf map[string]any) (fileConf, error) {
	c := fileConf{MaxSizeMB: 10, MaxBackups: 5, MaxAgeDays: 30}
	if err := factory.Decode(conf, &c); err != nil {
		return c, err
	}
	if c.Path == "" {
		return c, fmt.Errorf("audit store: path is required")
	}
	return c, nil
}

func init() {
	_ = RegisterStore("nop", func(map[string]any) (Store, error) { return NopStore{}, nil })
	_ = RegisterStore("jsonl", func(conf map[string]any) (Store, error) {
		c, err := decodeFile(conf)
		if err != nil {
			return nil, err
		}
		return NewJSONLStore(c.Path)
	})
	_ = RegisterStore("rotating", func(conf map[string]any) (Store, error) {
		c, err := decodeFile(conf)
		if err != nil {
			return nil, err
		}
		return NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	})
	_ = RegisterStore("sqlite", func(conf map[string]any) (Store, error) {
		c, err := decodeFile(conf)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(c.Path)
	})
}
