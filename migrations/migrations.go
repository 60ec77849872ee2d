// Package migrations manages the schema objects the library itself owns,
// currently the shared translations table. Migration files are embedded and
// applied with golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/*.sql
var files embed.FS

func newMigrate(db *sql.DB, driver string) (*migrate.Migrate, error) {
	source, err := iofs.New(files, "files")
	if err != nil {
		return nil, fmt.Errorf("reading embedded migrations: %w", err)
	}
	var target database.Driver
	switch driver {
	case "sqlite3":
		target, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	case "mysql":
		target, err = mysql.WithInstance(db, &mysql.Config{})
	default:
		return nil, fmt.Errorf("unsupported driver for migrations: %s", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("creating migration driver: %w", err)
	}
	return migrate.NewWithInstance("iofs", source, driver, target)
}

// Up applies any pending migrations.
func Up(db *sql.DB, driver string) error {
	m, err := newMigrate(db, driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// CheckStatus returns the current migration version and whether the
// database is dirty. A fresh database reports version 0.
func CheckStatus(db *sql.DB, driver string) (uint, bool, error) {
	m, err := newMigrate(db, driver)
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading migration version: %w", err)
	}
	return version, dirty, nil
}
