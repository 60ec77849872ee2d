package dbc

import (
	"fmt"

	arm "github.com/lokhman/silex-arm"
	"github.com/lokhman/silex-arm/config"
)

// NewFromConfig opens a connection for one profile based on its driver type.
func NewFromConfig(cfg config.Profile) (*DB, error) {
	switch cfg.Driver {
	case "sqlite3", "mysql":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("dsn required for %s profile", cfg.Driver)
		}
		return Open(cfg.Driver, cfg.DSN)
	case "memory":
		return Open("sqlite3", ":memory:")
	default:
		return nil, fmt.Errorf("unknown database driver: %s", cfg.Driver)
	}
}

// NewConnsFromConfig opens every configured profile, keyed by profile name.
func NewConnsFromConfig(profiles map[string]config.Profile) (map[string]arm.Conn, error) {
	conns := make(map[string]arm.Conn, len(profiles))
	for name, p := range profiles {
		db, err := NewFromConfig(p)
		if err != nil {
			for _, c := range conns {
				_ = c.(*DB).Close()
			}
			return nil, fmt.Errorf("profile %s: %w", name, err)
		}
		conns[name] = db
	}
	return conns, nil
}
