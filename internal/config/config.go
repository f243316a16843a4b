// Package config holds the finalizer settings and loads them from TOML.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pelletier/go-toml/v2"

	"github.com/jward/xref/internal/redirect"
	"github.com/jward/xref/internal/symbols"
)

// FileName is the config file looked up in the output directory.
const FileName = "xref.toml"

// Config is the finalizer configuration.
type Config struct {
	// Parallelism bounds the worker pool. 0 means runtime.NumCPU().
	Parallelism         int `toml:"parallelism"`
	SignificantIDLength int `toml:"significant_id_length"`
	MaxTableEntries     int `toml:"max_table_entries"`
	// ExcludeProjects are doublestar patterns matched against project names.
	// Excluded projects keep their symbols in the master index but get no
	// redirect tables, reference pages or backpatching.
	ExcludeProjects []string `toml:"exclude_projects"`
	// Manifest records the run in a SQLite build manifest.
	Manifest bool `toml:"manifest"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Parallelism:         runtime.NumCPU(),
		SignificantIDLength: redirect.DefaultSignificantIDLength,
		MaxTableEntries:     redirect.DefaultMaxTableEntries,
		Manifest:            true,
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks ranges and fills Parallelism when unset.
func (c *Config) Validate() error {
	if c.Parallelism < 0 {
		return fmt.Errorf("parallelism must not be negative, got %d", c.Parallelism)
	}
	if c.Parallelism == 0 {
		c.Parallelism = runtime.NumCPU()
	}
	if c.SignificantIDLength < 2 || c.SignificantIDLength > symbols.IDWidth {
		return fmt.Errorf("significant_id_length %d out of range [2,%d]", c.SignificantIDLength, symbols.IDWidth)
	}
	if c.MaxTableEntries < 1 {
		return fmt.Errorf("max_table_entries must be positive, got %d", c.MaxTableEntries)
	}
	for _, p := range c.ExcludeProjects {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("exclude_projects: bad pattern %q", p)
		}
	}
	return nil
}

// RedirectOptions returns the table layout for redirect.Build.
func (c *Config) RedirectOptions() redirect.Options {
	return redirect.Options{
		SignificantIDLength: c.SignificantIDLength,
		MaxTableEntries:     c.MaxTableEntries,
	}
}

// Excluded reports whether project matches any exclude pattern.
func (c *Config) Excluded(project string) bool {
	for _, p := range c.ExcludeProjects {
		if ok, _ := doublestar.Match(p, project); ok {
			return true
		}
	}
	return false
}

// Encode renders c as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
