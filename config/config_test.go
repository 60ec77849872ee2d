package config

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func testConfig() *Config {
	return &Config{
		Locale:        "kk",
		DefaultLocale: "en",
		Profiles: map[string]Profile{
			"default": {Driver: "sqlite3", DSN: "arm.db"},
			"archive": {Driver: "mysql", DSN: "user:pass@/archive"},
		},
		Storage: StorageConfig{Type: "filesystem", Root: "/var/lib/arm/files"},
	}
}

func TestManager_ReadWrite(t *testing.T) {
	t.Run("round-trips a config", func(t *testing.T) {
		m := &Manager{}
		var buf bytes.Buffer
		if err := m.Write(&buf, testConfig()); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		got, err := m.Read(&buf)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if !reflect.DeepEqual(got, testConfig()) {
			t.Errorf("round trip = %+v, want %+v", got, testConfig())
		}
	})

	t.Run("rejects malformed toml", func(t *testing.T) {
		m := &Manager{}
		if _, err := m.Read(strings.NewReader("profiles = [broken")); err == nil {
			t.Error("Read() expected an error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads an existing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "arm.toml")
		content := `
locale = "kk"
default_locale = "en"

[profiles.default]
driver = "memory"

[storage]
type = "memory"
`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("writing config: %v", err)
		}
		cfg, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if cfg.Locale != "kk" || cfg.DefaultLocale != "en" {
			t.Errorf("locales = %q, %q", cfg.Locale, cfg.DefaultLocale)
		}
		if cfg.Profiles["default"].Driver != "memory" {
			t.Errorf("default driver = %q, want memory", cfg.Profiles["default"].Driver)
		}
		if cfg.Storage.Type != "memory" {
			t.Errorf("storage type = %q, want memory", cfg.Storage.Type)
		}
	})

	t.Run("fails on a missing file", func(t *testing.T) {
		if _, err := ReadFromFile(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("ReadFromFile() expected an error")
		}
	})
}
