package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/JaimeStill/covenant/pkg/formatting"
)

// Clause classifiers.
const (
	ClassifierRules = "rules"
	ClassifierModel = "model"
)

const (
	EnvPipelineChunkTarget     = "COVENANT_PIPELINE_CHUNK_TARGET"
	EnvPipelineChunkMin        = "COVENANT_PIPELINE_CHUNK_MIN"
	EnvPipelineChunkMax        = "COVENANT_PIPELINE_CHUNK_MAX"
	EnvPipelineClassifier      = "COVENANT_PIPELINE_CLASSIFIER"
	EnvPipelineThreshold       = "COVENANT_PIPELINE_THRESHOLD"
	EnvPipelineWorkers         = "COVENANT_PIPELINE_WORKERS"
	EnvPipelineMaxFileSize     = "COVENANT_PIPELINE_MAX_FILE_SIZE"
	EnvPipelineRebuildOnCommit = "COVENANT_PIPELINE_REBUILD_ON_COMMIT"
)

// PipelineConfig holds ingestion parameters: chunk sizing in characters,
// clause classification, and the per-document size limit.
type PipelineConfig struct {
	ChunkTarget     int     `toml:"chunk_target"`
	ChunkMin        int     `toml:"chunk_min"`
	ChunkMax        int     `toml:"chunk_max"`
	ChunkTolerance  float64 `toml:"chunk_tolerance"`
	Classifier      string  `toml:"classifier"`
	Threshold       float64 `toml:"threshold"`
	Workers         int     `toml:"workers"`
	MaxFileSize     string  `toml:"max_file_size"`
	RebuildOnCommit bool    `toml:"rebuild_on_commit"`
}

// MaxFileSizeBytes returns MaxFileSize in bytes.
func (c *PipelineConfig) MaxFileSizeBytes() int64 {
	size, err := formatting.ParseBytes(c.MaxFileSize)
	if err != nil {
		return 10 * 1024 * 1024
	}
	return size
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *PipelineConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *PipelineConfig) Merge(overlay *PipelineConfig) {
	if overlay.ChunkTarget != 0 {
		c.ChunkTarget = overlay.ChunkTarget
	}
	if overlay.ChunkMin != 0 {
		c.ChunkMin = overlay.ChunkMin
	}
	if overlay.ChunkMax != 0 {
		c.ChunkMax = overlay.ChunkMax
	}
	if overlay.ChunkTolerance != 0 {
		c.ChunkTolerance = overlay.ChunkTolerance
	}
	if overlay.Classifier != "" {
		c.Classifier = overlay.Classifier
	}
	if overlay.Threshold != 0 {
		c.Threshold = overlay.Threshold
	}
	if overlay.Workers != 0 {
		c.Workers = overlay.Workers
	}
	if overlay.MaxFileSize != "" {
		c.MaxFileSize = overlay.MaxFileSize
	}
	if overlay.RebuildOnCommit {
		c.RebuildOnCommit = true
	}
}

func (c *PipelineConfig) loadDefaults() {
	if c.ChunkTarget == 0 {
		c.ChunkTarget = 800
	}
	if c.ChunkMin == 0 {
		c.ChunkMin = 500
	}
	if c.ChunkMax == 0 {
		c.ChunkMax = 1000
	}
	if c.ChunkTolerance == 0 {
		c.ChunkTolerance = 0.2
	}
	if c.Classifier == "" {
		c.Classifier = ClassifierRules
	}
	if c.Threshold == 0 {
		c.Threshold = 50
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.MaxFileSize == "" {
		c.MaxFileSize = "10MB"
	}
}

func (c *PipelineConfig) loadEnv() {
	setInt := func(envVar string, dst *int) {
		if v := os.Getenv(envVar); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setInt(EnvPipelineChunkTarget, &c.ChunkTarget)
	setInt(EnvPipelineChunkMin, &c.ChunkMin)
	setInt(EnvPipelineChunkMax, &c.ChunkMax)
	setInt(EnvPipelineWorkers, &c.Workers)

	if v := os.Getenv(EnvPipelineClassifier); v != "" {
		c.Classifier = v
	}
	if v := os.Getenv(EnvPipelineThreshold); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Threshold = f
		}
	}
	if v := os.Getenv(EnvPipelineMaxFileSize); v != "" {
		c.MaxFileSize = v
	}
	if v := os.Getenv(EnvPipelineRebuildOnCommit); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.RebuildOnCommit = b
		}
	}
}

func (c *PipelineConfig) validate() error {
	if c.ChunkMin < 1 || c.ChunkMin > c.ChunkTarget || c.ChunkTarget > c.ChunkMax {
		return fmt.Errorf("chunk sizes must satisfy 0 < chunk_min <= chunk_target <= chunk_max")
	}
	if c.ChunkTolerance <= 0 || c.ChunkTolerance >= 1 {
		return fmt.Errorf("chunk_tolerance must be between 0 and 1")
	}
	if c.Classifier != ClassifierRules && c.Classifier != ClassifierModel {
		return fmt.Errorf("unsupported classifier %q", c.Classifier)
	}
	if c.Threshold <= 0 || c.Threshold > 100 {
		return fmt.Errorf("threshold must be in (0, 100]")
	}
	if c.Workers < 1 {
		return fmt.Errorf("invalid workers: %d", c.Workers)
	}
	if _, err := formatting.ParseBytes(c.MaxFileSize); err != nil {
		return fmt.Errorf("invalid max_file_size: %w", err)
	}
	return nil
}
