package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvRetrievalTopK     = "COVENANT_RETRIEVAL_TOP_K"
	EnvRetrievalFloor    = "COVENANT_RETRIEVAL_FLOOR"
	EnvRetrievalOverlap  = "COVENANT_RETRIEVAL_OVERLAP"
	EnvRetrievalTimeout  = "COVENANT_RETRIEVAL_TIMEOUT"
	EnvRetrievalPassages = "COVENANT_RETRIEVAL_PASSAGES"
	EnvRetrievalBoost    = "COVENANT_RETRIEVAL_CLAUSE_BOOST"
)

// RetrievalConfig holds question answering parameters. Floor is on the
// 0-100 relevance scale; Overlap is the duplicate token-overlap ratio.
// ClauseBoost weights chunks backing a clause named by the question.
type RetrievalConfig struct {
	TopK        int     `toml:"top_k"`
	Floor       float64 `toml:"floor"`
	Overlap     float64 `toml:"overlap"`
	ClauseBoost float64 `toml:"clause_boost"`
	Timeout     string  `toml:"timeout"`
	Passages    int     `toml:"passages"`
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *RetrievalConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *RetrievalConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *RetrievalConfig) Merge(overlay *RetrievalConfig) {
	if overlay.TopK != 0 {
		c.TopK = overlay.TopK
	}
	if overlay.Floor != 0 {
		c.Floor = overlay.Floor
	}
	if overlay.Overlap != 0 {
		c.Overlap = overlay.Overlap
	}
	if overlay.ClauseBoost != 0 {
		c.ClauseBoost = overlay.ClauseBoost
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
	if overlay.Passages != 0 {
		c.Passages = overlay.Passages
	}
}

func (c *RetrievalConfig) loadDefaults() {
	if c.TopK == 0 {
		c.TopK = 5
	}
	if c.Floor == 0 {
		c.Floor = 10
	}
	if c.Overlap == 0 {
		c.Overlap = 0.9
	}
	if c.ClauseBoost == 0 {
		c.ClauseBoost = 1
	}
	if c.Timeout == "" {
		c.Timeout = "10s"
	}
	if c.Passages == 0 {
		c.Passages = 3
	}
}

func (c *RetrievalConfig) loadEnv() {
	if v := os.Getenv(EnvRetrievalTopK); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.TopK = n
		}
	}
	if v := os.Getenv(EnvRetrievalFloor); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Floor = f
		}
	}
	if v := os.Getenv(EnvRetrievalOverlap); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Overlap = f
		}
	}
	if v := os.Getenv(EnvRetrievalBoost); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.ClauseBoost = f
		}
	}
	if v := os.Getenv(EnvRetrievalTimeout); v != "" {
		c.Timeout = v
	}
	if v := os.Getenv(EnvRetrievalPassages); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Passages = n
		}
	}
}

func (c *RetrievalConfig) validate() error {
	if c.TopK < 1 {
		return fmt.Errorf("invalid top_k: %d", c.TopK)
	}
	if c.Floor < 0 || c.Floor > 100 {
		return fmt.Errorf("floor must be in [0, 100]")
	}
	if c.Overlap <= 0 || c.Overlap > 1 {
		return fmt.Errorf("overlap must be in (0, 1]")
	}
	if c.ClauseBoost <= 0 || c.ClauseBoost > 10 {
		return fmt.Errorf("clause_boost must be in (0, 10]")
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	if c.Passages < 1 {
		return fmt.Errorf("invalid passages: %d", c.Passages)
	}
	return nil
}
