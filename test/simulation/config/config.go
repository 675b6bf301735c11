// Package config loads the YAML settings for the routing simulation.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the simulation configuration
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Workload   WorkloadConfig   `yaml:"workload"`
	Routing    RoutingConfig    `yaml:"routing"`
}

type SimulationConfig struct {
	Duration time.Duration `yaml:"duration"`
	Seed     int64         `yaml:"seed"`
}

type WorkloadConfig struct {
	// WriteInterval is the pause between generator writes.
	WriteInterval time.Duration `yaml:"write_interval"`

	// ReadInterval is the pause between reads per reader goroutine.
	ReadInterval time.Duration `yaml:"read_interval"`

	// Readers is the number of concurrent reader goroutines.
	Readers int `yaml:"readers"`

	// ReplicationDelay is how long a write takes to appear on the
	// replica. Must stay below the routing lag threshold or fresh reads
	// will legitimately miss.
	ReplicationDelay time.Duration `yaml:"replication_delay"`
}

type RoutingConfig struct {
	LagThreshold        time.Duration `yaml:"lag_threshold"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
	ProbeTimeout        time.Duration `yaml:"probe_timeout"`
	MaxAttempts         int           `yaml:"max_attempts"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()

	return &cfg, nil
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()

	return cfg
}

// ApplyDefaults fills zero values with the simulation defaults.
func (c *Config) ApplyDefaults() {
	if c.Simulation.Duration == 0 {
		c.Simulation.Duration = 2 * time.Minute
	}
	if c.Workload.WriteInterval == 0 {
		c.Workload.WriteInterval = 10 * time.Millisecond
	}
	if c.Workload.ReadInterval == 0 {
		c.Workload.ReadInterval = 5 * time.Millisecond
	}
	if c.Workload.Readers == 0 {
		c.Workload.Readers = 4
	}
	if c.Workload.ReplicationDelay == 0 {
		c.Workload.ReplicationDelay = 150 * time.Millisecond
	}
	if c.Routing.LagThreshold == 0 {
		c.Routing.LagThreshold = 400 * time.Millisecond
	}
	if c.Routing.HealthCheckInterval == 0 {
		c.Routing.HealthCheckInterval = time.Second
	}
	if c.Routing.ProbeTimeout == 0 {
		c.Routing.ProbeTimeout = 250 * time.Millisecond
	}
	if c.Routing.MaxAttempts == 0 {
		c.Routing.MaxAttempts = 3
	}
}
