package openapi

import (
	"fmt"
	"os"
	"strings"
)

// DefaultPath is where the document is served relative to its module.
const DefaultPath = "/openapi.json"

// Config describes the served OpenAPI document.
type Config struct {
	Title       string `toml:"title"`
	Description string `toml:"description"`
	Path        string `toml:"path"`
}

// ConfigEnv names the environment variables that override Config.
type ConfigEnv struct {
	Title       string
	Description string
	Path        string
}

func (c *Config) Finalize(env *ConfigEnv) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	if !strings.HasPrefix(c.Path, "/") || strings.ContainsAny(c.Path, " {}") {
		return fmt.Errorf("path must be an absolute route without wildcards: %q", c.Path)
	}
	return nil
}

func (c *Config) Merge(overlay *Config) {
	for dst, src := range map[*string]string{
		&c.Title:       overlay.Title,
		&c.Description: overlay.Description,
		&c.Path:        overlay.Path,
	} {
		if src != "" {
			*dst = src
		}
	}
}

func (c *Config) loadDefaults() {
	if c.Title == "" {
		c.Title = "Covenant API"
	}
	if c.Description == "" {
		c.Description = "Contract document intelligence: ingestion, clause extraction, grounded question answering, and portfolio reports."
	}
	if c.Path == "" {
		c.Path = DefaultPath
	}
}

func (c *Config) loadEnv(env *ConfigEnv) {
	for name, dst := range map[string]*string{
		env.Title:       &c.Title,
		env.Description: &c.Description,
		env.Path:        &c.Path,
	} {
		if name == "" {
			continue
		}
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
}
