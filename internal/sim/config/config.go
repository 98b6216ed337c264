package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"evacgrid.dev/internal/sim/evac"
)

// Config is the on-disk run configuration (configs/evac.yaml).
type Config struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	Agents int `yaml:"agents"`
	Doors  int `yaml:"doors"`

	PreEvacDelaySec int `yaml:"pre_evac_delay_sec"`
	EvacWindowSec   int `yaml:"evac_window_sec"`

	Seed int64 `yaml:"seed"`
}

func defaults() Config {
	return Config{
		Width:           15,
		Height:          10,
		Agents:          8,
		Doors:           3,
		PreEvacDelaySec: 10,
		EvacWindowSec:   30,
	}
}

// Load reads a config file, falling back to defaults when path is empty.
func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("evac.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("evac.yaml: %w", err)
	}
	return cfg, nil
}

// Normalize clamps parameters into their supported ranges: grid at least
// 10x10, 1..20 agents, at least 2 doors but never more than the wall can
// hold, pre-evacuation delay at least 5s.
func (c *Config) Normalize() {
	if c.Width < 10 {
		c.Width = 10
	}
	if c.Height < 10 {
		c.Height = 10
	}
	if c.Agents < 1 {
		c.Agents = 1
	}
	if c.Agents > 20 {
		c.Agents = 20
	}
	if c.Doors < 2 {
		c.Doors = 2
	}
	if max := c.maxDoors(); c.Doors > max {
		c.Doors = max
	}
	if c.PreEvacDelaySec < 5 {
		c.PreEvacDelaySec = 5
	}
	if c.EvacWindowSec <= 0 {
		c.EvacWindowSec = 30
	}
}

// maxDoors is the number of boundary cells excluding the four corners.
func (c *Config) maxDoors() int {
	return 2*(c.Width-2) + 2*(c.Height-2)
}

// Validate rejects combinations Normalize cannot repair. Runs before the
// simulation is constructed so bad parameters never surface mid-run.
func (c *Config) Validate() error {
	if c.Doors > c.maxDoors() {
		return fmt.Errorf("%d doors requested but the boundary holds at most %d", c.Doors, c.maxDoors())
	}
	interior := (c.Width - 2) * (c.Height - 2)
	if c.Agents > interior {
		return fmt.Errorf("%d agents requested but the interior has only %d cells", c.Agents, interior)
	}
	return nil
}

// Params converts the file config into simulation parameters.
func (c Config) Params() evac.Params {
	return evac.Params{
		Width:        c.Width,
		Height:       c.Height,
		Agents:       c.Agents,
		Doors:        c.Doors,
		PreEvacDelay: time.Duration(c.PreEvacDelaySec) * time.Second,
		EvacWindow:   time.Duration(c.EvacWindowSec) * time.Second,
		Seed:         c.Seed,
	}
}
