// Package config handles reading and writing the mapper configuration.
package config

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the main configuration: connection profiles, the locale pair and
// the file storage backend.
type Config struct {
	Locale         string             `toml:"locale"`
	DefaultLocale  string             `toml:"default_locale"`
	DefaultProfile string             `toml:"default_profile,omitempty"`
	Profiles       map[string]Profile `toml:"profiles"`
	Storage        StorageConfig      `toml:"storage"`
}

// Profile configures one database connection.
type Profile struct {
	Driver string `toml:"driver"` // "sqlite3", "mysql" or "memory"
	DSN    string `toml:"dsn,omitempty"`
}

// StorageConfig configures the file storage backend.
// This uses a tagged union pattern - the Type field determines which other
// fields are relevant.
type StorageConfig struct {
	Type string `toml:"type"` // "memory", "filesystem" or "s3"

	// Filesystem-specific fields (only used when Type == "filesystem")
	Root string `toml:"root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket string `toml:"s3_bucket,omitempty"`
	S3Prefix string `toml:"s3_prefix,omitempty"`
	S3Region string `toml:"s3_region,omitempty"`
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}
