// Package config loads epubscribe settings from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const envPrefix = "EPUBSCRIBE_"

type Config struct {
	LogMode      string       `yaml:"log_mode"`
	LogLevel     string       `yaml:"log_level"`
	DatabasePath string       `yaml:"database_path"`
	OwnerID      string       `yaml:"owner_id"`
	Import       ImportConfig `yaml:"import"`
}

type ImportConfig struct {
	Concurrency   int   `yaml:"concurrency"`
	MaxImageWidth int   `yaml:"max_image_width"`
	JPEGQuality   int   `yaml:"jpeg_quality"`
	MaxEntryBytes int64 `yaml:"max_entry_bytes"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogMode:      "dev",
		LogLevel:     "info",
		DatabasePath: "epubscribe.db",
		OwnerID:      "local",
		Import: ImportConfig{
			Concurrency: 8,
			JPEGQuality: 85,
		},
	}
}

// Load reads path over the defaults, then applies EPUBSCRIBE_* environment
// overrides. An empty path, or a path that does not exist, skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("LOG_MODE", &c.LogMode)
	str("LOG_LEVEL", &c.LogLevel)
	str("DATABASE_PATH", &c.DatabasePath)
	str("OWNER_ID", &c.OwnerID)

	ints := []struct {
		name string
		dst  *int
	}{
		{"IMPORT_CONCURRENCY", &c.Import.Concurrency},
		{"IMPORT_MAX_IMAGE_WIDTH", &c.Import.MaxImageWidth},
		{"IMPORT_JPEG_QUALITY", &c.Import.JPEGQuality},
	}
	for _, e := range ints {
		v, ok := lookup(envPrefix + e.name)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", envPrefix, e.name, err)
		}
		*e.dst = n
	}
	if v, ok := lookup(envPrefix + "IMPORT_MAX_ENTRY_BYTES"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %sIMPORT_MAX_ENTRY_BYTES: %w", envPrefix, err)
		}
		c.Import.MaxEntryBytes = n
	}
	return nil
}

// Validate rejects settings no component can honor.
func (c Config) Validate() error {
	if c.Import.Concurrency < 0 {
		return fmt.Errorf("import.concurrency must be >= 0, got %d", c.Import.Concurrency)
	}
	if c.Import.MaxImageWidth < 0 {
		return fmt.Errorf("import.max_image_width must be >= 0, got %d", c.Import.MaxImageWidth)
	}
	if c.Import.JPEGQuality < 0 || c.Import.JPEGQuality > 100 {
		return fmt.Errorf("import.jpeg_quality must be within 0..100, got %d", c.Import.JPEGQuality)
	}
	if c.Import.MaxEntryBytes < 0 {
		return fmt.Errorf("import.max_entry_bytes must be >= 0, got %d", c.Import.MaxEntryBytes)
	}
	return nil
}
