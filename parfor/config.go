// File: parfor/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// File configuration (YAML or JSON) mapped onto pool options.

package parfor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/momentics/hioload-parfor/api"
)

// Config is the file form of the pool options.
type Config struct {
	MaxWorkers int    `yaml:"max_workers" json:"max_workers"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	Schedule   string `yaml:"schedule" json:"schedule"`
	PinWorkers bool   `yaml:"pin_workers" json:"pin_workers"`
	History    int    `yaml:"history" json:"history"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize: DefaultBatchSize,
		Schedule:  api.ScheduleDynamic.String(),
		History:   DefaultHistory,
	}
}

// LoadConfig reads a YAML or JSON file, chosen by extension. Keys missing
// from the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("unsupported config format: %s", ext)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and the schedule name.
func (c Config) Validate() error {
	if c.MaxWorkers < 0 {
		return fmt.Errorf("%w: max_workers must be non-negative", api.ErrInvalidArgument)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("%w: batch_size must be non-negative", api.ErrInvalidArgument)
	}
	if c.History < 0 {
		return fmt.Errorf("%w: history must be non-negative", api.ErrInvalidArgument)
	}
	if _, err := ParseSchedule(c.Schedule); err != nil {
		return err
	}
	return nil
}

// Options converts the config to pool options.
func (c Config) Options() ([]Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	sched, _ := ParseSchedule(c.Schedule)
	return []Option{
		WithMaxWorkers(c.MaxWorkers),
		WithBatchSize(c.BatchSize),
		WithSchedule(sched),
		WithPinning(c.PinWorkers),
		WithHistory(c.History),
	}, nil
}

// ParseSchedule maps "dynamic" or "static" (case-insensitive, empty means
// dynamic) to a schedule.
func ParseSchedule(s string) (api.Schedule, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dynamic":
		return api.ScheduleDynamic, nil
	case "static":
		return api.ScheduleStatic, nil
	default:
		return 0, fmt.Errorf("%w: unknown schedule %q", api.ErrInvalidArgument, s)
	}
}
