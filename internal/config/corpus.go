package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvCorpusRenewalWindow = "COVENANT_CORPUS_RENEWAL_WINDOW_DAYS"
	EnvCorpusHorizon       = "COVENANT_CORPUS_HORIZON_DAYS"
	EnvCorpusDefaultTerm   = "COVENANT_CORPUS_DEFAULT_TERM"
)

// CorpusConfig holds contract status and reporting parameters.
type CorpusConfig struct {
	RenewalWindowDays int    `toml:"renewal_window_days"`
	HorizonDays       int    `toml:"horizon_days"`
	DefaultTerm       string `toml:"default_term"`
}

// DefaultTermDuration returns DefaultTerm as a time.Duration.
func (c *CorpusConfig) DefaultTermDuration() time.Duration {
	d, _ := time.ParseDuration(c.DefaultTerm)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *CorpusConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *CorpusConfig) Merge(overlay *CorpusConfig) {
	if overlay.RenewalWindowDays != 0 {
		c.RenewalWindowDays = overlay.RenewalWindowDays
	}
	if overlay.HorizonDays != 0 {
		c.HorizonDays = overlay.HorizonDays
	}
	if overlay.DefaultTerm != "" {
		c.DefaultTerm = overlay.DefaultTerm
	}
}

func (c *CorpusConfig) loadDefaults() {
	if c.RenewalWindowDays == 0 {
		c.RenewalWindowDays = 90
	}
	if c.HorizonDays == 0 {
		c.HorizonDays = 90
	}
	if c.DefaultTerm == "" {
		c.DefaultTerm = "8760h"
	}
}

func (c *CorpusConfig) loadEnv() {
	if v := os.Getenv(EnvCorpusRenewalWindow); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RenewalWindowDays = n
		}
	}
	if v := os.Getenv(EnvCorpusHorizon); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.HorizonDays = n
		}
	}
	if v := os.Getenv(EnvCorpusDefaultTerm); v != "" {
		c.DefaultTerm = v
	}
}

func (c *CorpusConfig) validate() error {
	if c.RenewalWindowDays < 1 {
		return fmt.Errorf("invalid renewal_window_days: %d", c.RenewalWindowDays)
	}
	if c.HorizonDays < 1 {
		return fmt.Errorf("invalid horizon_days: %d", c.HorizonDays)
	}
	d, err := time.ParseDuration(c.DefaultTerm)
	if err != nil {
		return fmt.Errorf("invalid default_term: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("default_term must be positive")
	}
	return nil
}
