// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package config holds the process-wide tunables the step manager's
// core treats as given rather than deriving: scheduler knobs that in a
// real cluster come from slurm.conf.
package config

import (
	"os"
	"strconv"
)

// Config holds the step manager's tunables.
type Config struct {
	// FastSchedule records whether node CPU counts come from
	// configured values (true) or from live node state (false). It is
	// loaded but not read by any code in this module: the count-CPUs
	// helper sums Resources.Cpus as given and has no fallback for a
	// job without a per-node CPU array.
	FastSchedule bool

	// SwitchType names the configured interconnect plugin. The only
	// behavior the core keys off of it directly is downgrading an
	// ARBITRARY task distribution to BLOCK under "switch/elan".
	SwitchType string

	// MaxTasksPerNode bounds num_tasks relative to the chosen node
	// count during step creation.
	MaxTasksPerNode int32

	// PortRangeLow/PortRangeHigh bound the reserved port range handed
	// out to steps that need client rendezvous ports.
	PortRangeLow  int32
	PortRangeHigh int32

	// CheckpointDefaultIntervalSeconds is the checkpoint sweep's
	// interval, applied to every step; zero or less disables the sweep.
	CheckpointDefaultIntervalSeconds int32

	// Debug enables verbose (Debug-level) logging.
	Debug bool
}

// NewDefault returns a Config with the same defaults a stock slurmctld
// ships with.
func NewDefault() *Config {
	return &Config{
		FastSchedule:                     getEnvBoolOrDefault("STEPMGR_FAST_SCHEDULE", true),
		SwitchType:                       getEnvOrDefault("STEPMGR_SWITCH_TYPE", "switch/none"),
		MaxTasksPerNode:                  int32(getEnvIntOrDefault("STEPMGR_MAX_TASKS_PER_NODE", 512)),
		PortRangeLow:                     int32(getEnvIntOrDefault("STEPMGR_PORT_RANGE_LOW", 60001)),
		PortRangeHigh:                    int32(getEnvIntOrDefault("STEPMGR_PORT_RANGE_HIGH", 63000)),
		CheckpointDefaultIntervalSeconds: int32(getEnvIntOrDefault("STEPMGR_CKPT_INTERVAL", 0)),
		Debug:                            getEnvBoolOrDefault("STEPMGR_DEBUG", false),
	}
}

// Load refreshes c from environment variables, leaving fields whose
// variable is unset untouched.
func (c *Config) Load() {
	if v := os.Getenv("STEPMGR_SWITCH_TYPE"); v != "" {
		c.SwitchType = v
	}
	if v, ok := getEnvInt("STEPMGR_MAX_TASKS_PER_NODE"); ok {
		c.MaxTasksPerNode = int32(v)
	}
	if v, ok := getEnvInt("STEPMGR_PORT_RANGE_LOW"); ok {
		c.PortRangeLow = int32(v)
	}
	if v, ok := getEnvInt("STEPMGR_PORT_RANGE_HIGH"); ok {
		c.PortRangeHigh = int32(v)
	}
	if v, ok := getEnvInt("STEPMGR_CKPT_INTERVAL"); ok {
		c.CheckpointDefaultIntervalSeconds = int32(v)
	}
	c.FastSchedule = getEnvBoolOrDefault("STEPMGR_FAST_SCHEDULE", c.FastSchedule)
	c.Debug = getEnvBoolOrDefault("STEPMGR_DEBUG", c.Debug)
}

// Validate checks the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.MaxTasksPerNode <= 0 {
		return ErrInvalidMaxTasksPerNode
	}
	if c.PortRangeLow <= 0 || c.PortRangeHigh <= 0 || c.PortRangeLow > c.PortRangeHigh {
		return ErrInvalidPortRange
	}
	return nil
}

// IsElanSwitch reports whether the configured interconnect is the one
// special-cased by the node selector's distribution downgrade.
func (c *Config) IsElanSwitch() bool {
	return c.SwitchType == "switch/elan"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if v, ok := getEnvInt(key); ok {
		return v
	}
	return defaultValue
}

func getEnvInt(key string) (int, bool) {
	value := os.Getenv(key)
	if value == "" {
		return 0, false
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return i, true
}
