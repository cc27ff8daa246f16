// Package config handles .gocpd.yaml configuration files.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/gocpd/internal/chunker"
)

// FileName is the expected config file name in a project root.
const FileName = ".gocpd.yaml"

// EnvDBPath overrides the database location
const EnvDBPath = "GOCPD_DB_PATH"

// DefaultDBPath is the default location for the database
const DefaultDBPath = "~/.gocpd/gocpd.db"

// Config represents the contents of a .gocpd.yaml file. Zero values mean
// "use the default".
type Config struct {
	BlockSize     *int     `yaml:"block_size,omitempty"`
	Workers       int      `yaml:"workers,omitempty"`
	BatchSize     int      `yaml:"batch_size,omitempty"`
	IncludeTests  *bool    `yaml:"include_tests,omitempty"`
	IncludeVendor bool     `yaml:"include_vendor,omitempty"`
	Extensions    []string `yaml:"extensions,omitempty"`
	MinLines      int      `yaml:"min_lines,omitempty"`
	DBPath        string   `yaml:"db_path,omitempty"`
}

// Load reads the .gocpd.yaml file from the given project root.
// If the file does not exist, it returns a zero-value Config and nil error.
func Load(root string) (*Config, error) {
	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path) //nolint:gosec // user-provided project path
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Starter returns a config with every default spelled out, used for a new
// .gocpd.yaml.
func Starter() *Config {
	blockSize := chunker.DefaultBlockSize
	includeTests := true
	return &Config{
		BlockSize:    &blockSize,
		BatchSize:    20,
		IncludeTests: &includeTests,
		Extensions:   []string{".go"},
	}
}

// Write marshals the config to YAML and writes it to w.
func Write(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close() //nolint:errcheck // best-effort close
	enc.SetIndent(2)
	return enc.Encode(cfg)
}

// Validate checks all fields in the config and returns all errors at once.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.BlockSize != nil && *cfg.BlockSize < 1 {
		errs = append(errs, fmt.Sprintf("block_size: must be >= 1, got %d", *cfg.BlockSize))
	}
	if cfg.Workers < 0 {
		errs = append(errs, fmt.Sprintf("workers: must be non-negative, got %d", cfg.Workers))
	}
	if cfg.BatchSize < 0 {
		errs = append(errs, fmt.Sprintf("batch_size: must be non-negative, got %d", cfg.BatchSize))
	}
	if cfg.MinLines < 0 {
		errs = append(errs, fmt.Sprintf("min_lines: must be non-negative, got %d", cfg.MinLines))
	}
	for _, ext := range cfg.Extensions {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Sprintf("extensions: %q must start with a dot", ext))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// GetBlockSize returns the configured block size or the chunker default
func (c *Config) GetBlockSize() int {
	if c.BlockSize == nil {
		return chunker.DefaultBlockSize
	}
	return *c.BlockSize
}

// GetWorkers returns the configured worker count or runtime.NumCPU()
func (c *Config) GetWorkers() int {
	if c.Workers <= 0 {
		return runtime.NumCPU()
	}
	return c.Workers
}

// GetBatchSize returns the number of files committed per transaction
func (c *Config) GetBatchSize() int {
	if c.BatchSize <= 0 {
		return 20
	}
	return c.BatchSize
}

// GetIncludeTests reports whether test files are indexed (default true)
func (c *Config) GetIncludeTests() bool {
	if c.IncludeTests == nil {
		return true
	}
	return *c.IncludeTests
}

// GetExtensions returns the file extensions to index (default .go)
func (c *Config) GetExtensions() []string {
	if len(c.Extensions) == 0 {
		return []string{".go"}
	}
	return c.Extensions
}

// ResolveDBPath picks the database file: GOCPD_DB_PATH, then db_path, then
// the default. A leading ~ is expanded to the user's home directory.
func (c *Config) ResolveDBPath() (string, error) {
	path := os.Getenv(EnvDBPath)
	if path == "" {
		path = c.DBPath
	}
	if path == "" {
		path = DefaultDBPath
	}
	return expandHome(path)
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
