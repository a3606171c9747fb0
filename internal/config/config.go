package config

import (
	"fmt"
	"os"
	"time"

	"github.com/JaimeStill/covenant/pkg/database"
	"github.com/JaimeStill/covenant/pkg/storage"
	"github.com/pelletier/go-toml/v2"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvCovenantEnv             = "COVENANT_ENV"
	EnvCovenantShutdownTimeout = "COVENANT_SHUTDOWN_TIMEOUT"
	EnvCovenantVersion         = "COVENANT_VERSION"
)

var databaseEnv = &database.Env{
	Enabled:         "COVENANT_DB_ENABLED",
	Host:            "COVENANT_DB_HOST",
	Port:            "COVENANT_DB_PORT",
	Name:            "COVENANT_DB_NAME",
	User:            "COVENANT_DB_USER",
	Password:        "COVENANT_DB_PASSWORD",
	SSLMode:         "COVENANT_DB_SSL_MODE",
	MaxOpenConns:    "COVENANT_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "COVENANT_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "COVENANT_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "COVENANT_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	Provider:         "COVENANT_STORAGE_PROVIDER",
	ContainerName:    "COVENANT_STORAGE_CONTAINER_NAME",
	ConnectionString: "COVENANT_STORAGE_CONNECTION_STRING",
	Endpoint:         "COVENANT_STORAGE_ENDPOINT",
	AccessKey:        "COVENANT_STORAGE_ACCESS_KEY",
	SecretKey:        "COVENANT_STORAGE_SECRET_KEY",
	UseSSL:           "COVENANT_STORAGE_USE_SSL",
}

// Config is the root configuration for the Covenant service.
type Config struct {
	Server          ServerConfig     `toml:"server"`
	Database        database.Config  `toml:"database"`
	Storage         storage.Config   `toml:"storage"`
	API             APIConfig        `toml:"api"`
	Corpus          CorpusConfig     `toml:"corpus"`
	Pipeline        PipelineConfig   `toml:"pipeline"`
	Retrieval       RetrievalConfig  `toml:"retrieval"`
	Index           IndexConfig      `toml:"index"`
	Generation      GenerationConfig `toml:"generation"`
	Embedding       EmbeddingConfig  `toml:"embedding"`
	Logging         LoggingConfig    `toml:"logging"`
	ShutdownTimeout string           `toml:"shutdown_timeout"`
	Version         string           `toml:"version"`
}

// Env returns the COVENANT_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvCovenantEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Corpus.Merge(&overlay.Corpus)
	c.Pipeline.Merge(&overlay.Pipeline)
	c.Retrieval.Merge(&overlay.Retrieval)
	c.Index.Merge(&overlay.Index)
	c.Generation.Merge(&overlay.Generation)
	c.Embedding.Merge(&overlay.Embedding)
	c.Logging.Merge(&overlay.Logging)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Corpus.Finalize(); err != nil {
		return fmt.Errorf("corpus: %w", err)
	}
	if err := c.Pipeline.Finalize(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := c.Retrieval.Finalize(); err != nil {
		return fmt.Errorf("retrieval: %w", err)
	}
	if err := c.Index.Finalize(); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	if err := c.Generation.Finalize(); err != nil {
		return fmt.Errorf("generation: %w", err)
	}
	if err := c.Embedding.Finalize(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := c.Logging.Finalize(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvCovenantShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvCovenantVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvCovenantEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
