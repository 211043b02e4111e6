// Package config loads tool configuration from TOML files.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"calcium-tracer/internal/chart"
	"calcium-tracer/internal/intensity"
)

// Analysis holds pipeline tuning options.
type Analysis struct {
	// BaselineFrames is the ΔF/F baseline window length.
	BaselineFrames int `toml:"baseline_frames"`

	// MinCellArea is the minimum component size (pixels) the stand-in
	// segmenter keeps.
	MinCellArea int `toml:"min_cell_area"`
}

// Config is the full tool configuration.
type Config struct {
	Analysis Analysis    `toml:"analysis"`
	Chart    chart.Style `toml:"chart"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Analysis: Analysis{
			BaselineFrames: intensity.DefaultBaselineFrames,
			MinCellArea:    12,
		},
		Chart: chart.DefaultStyle(),
	}
}

// Load reads a TOML config file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}
