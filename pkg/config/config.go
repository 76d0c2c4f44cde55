// Ordo - Agent orchestration substrate
// License: MIT
//
// Copyright (c) 2026 Ordo contributors

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the root Ordo configuration. Values load from an optional
// JSON file with ORDO_* environment variables taking precedence.
type Config struct {
	Swarm     SwarmConfig     `json:"swarm"`
	Retry     RetryConfig     `json:"retry"`
	SharedMem SharedMemConfig `json:"shared_memory"`
	Deploy    DeployConfig    `json:"deploy"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Improve   ImproveConfig   `json:"improve"`
	LogLevel  string          `json:"log_level" env:"ORDO_LOG_LEVEL"`
}

// SwarmConfig tunes the coordinator and executors.
type SwarmConfig struct {
	Parallel       bool          `json:"parallel" env:"ORDO_SWARM_PARALLEL"`
	Timeout        time.Duration `json:"timeout" env:"ORDO_SWARM_TIMEOUT"`
	MaxRetries     int           `json:"max_retries" env:"ORDO_SWARM_MAX_RETRIES"`
	RetryDelay     time.Duration `json:"retry_delay" env:"ORDO_SWARM_RETRY_DELAY"`
	Tick           time.Duration `json:"tick" env:"ORDO_SWARM_TICK"`
	Selection      string        `json:"selection" env:"ORDO_SWARM_SELECTION"`
	Synthesis      string        `json:"synthesis" env:"ORDO_SWARM_SYNTHESIS"`
	ConflictPolicy string        `json:"conflict_policy" env:"ORDO_SWARM_CONFLICT_POLICY"`
}

// RetryConfig tunes the backoff engine.
type RetryConfig struct {
	MaxRetries   int           `json:"max_retries" env:"ORDO_RETRY_MAX_RETRIES"`
	BaseInterval time.Duration `json:"base_interval" env:"ORDO_RETRY_BASE_INTERVAL"`
	Jitter       float64       `json:"jitter" env:"ORDO_RETRY_JITTER"`
}

// SharedMemConfig tunes the shared memory substrate.
type SharedMemConfig struct {
	DBPath          string `json:"db_path" env:"ORDO_SHAREDMEM_DB_PATH"`
	CleanupSchedule string `json:"cleanup_schedule" env:"ORDO_SHAREDMEM_CLEANUP_SCHEDULE"`
}

// DeployConfig tunes the deployment controller.
type DeployConfig struct {
	Strategy           string        `json:"strategy" env:"ORDO_DEPLOY_STRATEGY"`
	InstanceCount      int           `json:"instance_count" env:"ORDO_DEPLOY_INSTANCE_COUNT"`
	HealthCheckRetries int           `json:"health_check_retries" env:"ORDO_DEPLOY_HEALTH_CHECK_RETRIES"`
	HealthCheckDelay   time.Duration `json:"health_check_delay" env:"ORDO_DEPLOY_HEALTH_CHECK_DELAY"`
	TrafficShiftDelay  time.Duration `json:"traffic_shift_delay" env:"ORDO_DEPLOY_TRAFFIC_SHIFT_DELAY"`
	RollbackOnFailure  bool          `json:"rollback_on_failure" env:"ORDO_DEPLOY_ROLLBACK_ON_FAILURE"`
}

// RateLimitConfig tunes tier-aware operation pacing.
type RateLimitConfig struct {
	Enabled bool `json:"enabled" env:"ORDO_RATELIMIT_ENABLED"`
	Burst   int  `json:"burst" env:"ORDO_RATELIMIT_BURST"`
}

// ImproveConfig tunes the self-improvement pipeline.
type ImproveConfig struct {
	ProbeCount       int    `json:"probe_count" env:"ORDO_IMPROVE_PROBE_COUNT"`
	VelocitySchedule string `json:"velocity_schedule" env:"ORDO_IMPROVE_VELOCITY_SCHEDULE"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Swarm: SwarmConfig{
			Parallel:   true,
			Timeout:    5 * time.Minute,
			MaxRetries: 3,
			RetryDelay: time.Second,
			Tick:       100 * time.Millisecond,
			Selection:  "best_match",
			Synthesis:  "concatenate",
		},
		Retry: RetryConfig{
			MaxRetries:   7,
			BaseInterval: time.Second,
			Jitter:       0.10,
		},
		SharedMem: SharedMemConfig{
			DBPath:          "~/.ordo/sharedmem.db",
			CleanupSchedule: "* * * * *",
		},
		Deploy: DeployConfig{
			Strategy:           "blue-green",
			InstanceCount:      2,
			HealthCheckRetries: 3,
			HealthCheckDelay:   2 * time.Second,
			TrafficShiftDelay:  time.Second,
			RollbackOnFailure:  true,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Burst:   5,
		},
		Improve: ImproveConfig{
			ProbeCount:       100,
			VelocitySchedule: "0 * * * *",
		},
		LogLevel: "info",
	}
}

// LoadConfig reads the JSON file at path (missing file is fine) and
// applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes cfg to path, creating parent directories.
func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
