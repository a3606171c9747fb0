package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/robfig/cron/v3"
)

const (
	EnvIndexVectorWeight   = "COVENANT_INDEX_VECTOR_WEIGHT"
	EnvIndexWorkers        = "COVENANT_INDEX_WORKERS"
	EnvIndexBatchSize      = "COVENANT_INDEX_BATCH_SIZE"
	EnvIndexVerifySchedule = "COVENANT_INDEX_VERIFY_SCHEDULE"
)

// IndexConfig holds search index parameters. VerifySchedule is a five-field
// cron spec; "off" disables scheduled verification.
type IndexConfig struct {
	VectorWeight   float64 `toml:"vector_weight"`
	Workers        int     `toml:"workers"`
	BatchSize      int     `toml:"batch_size"`
	VerifySchedule string  `toml:"verify_schedule"`
}

// Schedule returns the verification cron spec, or "" when disabled.
func (c *IndexConfig) Schedule() string {
	if c.VerifySchedule == "off" {
		return ""
	}
	return c.VerifySchedule
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *IndexConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *IndexConfig) Merge(overlay *IndexConfig) {
	if overlay.VectorWeight != 0 {
		c.VectorWeight = overlay.VectorWeight
	}
	if overlay.Workers != 0 {
		c.Workers = overlay.Workers
	}
	if overlay.BatchSize != 0 {
		c.BatchSize = overlay.BatchSize
	}
	if overlay.VerifySchedule != "" {
		c.VerifySchedule = overlay.VerifySchedule
	}
}

func (c *IndexConfig) loadDefaults() {
	if c.VectorWeight == 0 {
		c.VectorWeight = 0.3
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.BatchSize == 0 {
		c.BatchSize = 32
	}
	if c.VerifySchedule == "" {
		c.VerifySchedule = "*/15 * * * *"
	}
}

func (c *IndexConfig) loadEnv() {
	if v := os.Getenv(EnvIndexVectorWeight); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.VectorWeight = f
		}
	}
	if v := os.Getenv(EnvIndexWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}
	if v := os.Getenv(EnvIndexBatchSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.BatchSize = n
		}
	}
	if v := os.Getenv(EnvIndexVerifySchedule); v != "" {
		c.VerifySchedule = v
	}
}

func (c *IndexConfig) validate() error {
	if c.VectorWeight < 0 || c.VectorWeight > 1 {
		return fmt.Errorf("vector_weight must be in [0, 1]")
	}
	if c.Workers < 1 {
		return fmt.Errorf("invalid workers: %d", c.Workers)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("invalid batch_size: %d", c.BatchSize)
	}
	if spec := c.Schedule(); spec != "" {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("invalid verify_schedule: %w", err)
		}
	}
	return nil
}
