package testutil

import (
	"testing"

	"github.com/lokhman/silex-arm/dbc"
	"github.com/lokhman/silex-arm/migrations"
)

// NewTestConn creates an in-memory SQLite connection with the translations
// table migrated and the fixture tables created. The connection is closed
// when the test completes.
func NewTestConn(t *testing.T) *dbc.DB {
	t.Helper()

	conn, err := dbc.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
	})

	if err := migrations.Up(conn.Unwrap(), conn.Driver()); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}
	for _, ddl := range fixtureDDL {
		if _, err := conn.Unwrap().Exec(ddl); err != nil {
			t.Fatalf("failed to create fixture table: %v", err)
		}
	}
	return conn
}

var fixtureDDL = []string{
	`CREATE TABLE authors (
		id    INTEGER PRIMARY KEY AUTOINCREMENT,
		name  VARCHAR(128) NOT NULL,
		email VARCHAR(128)
	)`,
	`CREATE TABLE posts (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		author_id  INTEGER,
		title      VARCHAR(255) NOT NULL,
		body       TEXT,
		attachment VARCHAR(255),
		published  INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE items (
		id       INTEGER PRIMARY KEY AUTOINCREMENT,
		name     VARCHAR(128) NOT NULL,
		category VARCHAR(64),
		position INTEGER,
		photos   TEXT
	)`,
}
