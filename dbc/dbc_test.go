package dbc

import (
	"context"
	"testing"

	"github.com/lokhman/silex-arm/config"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})

	ddl := `CREATE TABLE notes (
		id    INTEGER PRIMARY KEY AUTOINCREMENT,
		text  VARCHAR(255) NOT NULL,
		grade INTEGER
	)`
	if _, err := db.Exec(context.Background(), ddl, nil); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	return db
}

func countNotes(t *testing.T, db *DB) int64 {
	t.Helper()
	rows, err := db.Query(context.Background(), "SELECT COUNT(*) FROM notes", nil)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	defer rows.Close()
	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
	}
	return n
}

func TestDB_Writes(t *testing.T) {
	ctx := context.Background()

	t.Run("insert returns the new identifier", func(t *testing.T) {
		db := newTestDB(t)
		id, err := db.Insert(ctx, "notes", map[string]any{"text": "a"})
		if err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
		if id != 1 {
			t.Errorf("Insert() id = %d, want 1", id)
		}
	})

	t.Run("update matches where equalities", func(t *testing.T) {
		db := newTestDB(t)
		id, err := db.Insert(ctx, "notes", map[string]any{"text": "a", "grade": 1})
		if err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
		affected, err := db.Update(ctx, "notes", map[string]any{"grade": 2}, map[string]any{"id": id})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if affected != 1 {
			t.Errorf("Update() affected = %d, want 1", affected)
		}
	})

	t.Run("nil where values compare with IS NULL", func(t *testing.T) {
		db := newTestDB(t)
		if _, err := db.Insert(ctx, "notes", map[string]any{"text": "a", "grade": nil}); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
		if _, err := db.Insert(ctx, "notes", map[string]any{"text": "b", "grade": 1}); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
		affected, err := db.Delete(ctx, "notes", map[string]any{"grade": nil})
		if err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if affected != 1 {
			t.Errorf("Delete() affected = %d, want 1", affected)
		}
		if n := countNotes(t, db); n != 1 {
			t.Errorf("remaining rows = %d, want 1", n)
		}
	})
}

func TestDB_Transactions(t *testing.T) {
	ctx := context.Background()

	t.Run("rollback discards writes", func(t *testing.T) {
		db := newTestDB(t)
		if err := db.Begin(ctx); err != nil {
			t.Fatalf("Begin() error = %v", err)
		}
		if !db.InTransaction() {
			t.Fatal("InTransaction() = false after Begin")
		}
		if _, err := db.Insert(ctx, "notes", map[string]any{"text": "a"}); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
		if err := db.Rollback(); err != nil {
			t.Fatalf("Rollback() error = %v", err)
		}
		if db.InTransaction() {
			t.Error("InTransaction() = true after Rollback")
		}
		if n := countNotes(t, db); n != 0 {
			t.Errorf("rows = %d after rollback, want 0", n)
		}
	})

	t.Run("commit keeps writes", func(t *testing.T) {
		db := newTestDB(t)
		if err := db.Begin(ctx); err != nil {
			t.Fatalf("Begin() error = %v", err)
		}
		if _, err := db.Insert(ctx, "notes", map[string]any{"text": "a"}); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
		if err := db.Commit(); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		if n := countNotes(t, db); n != 1 {
			t.Errorf("rows = %d after commit, want 1", n)
		}
	})

	t.Run("a second begin fails", func(t *testing.T) {
		db := newTestDB(t)
		if err := db.Begin(ctx); err != nil {
			t.Fatalf("Begin() error = %v", err)
		}
		if err := db.Begin(ctx); err == nil {
			t.Error("second Begin() expected an error")
		}
		if err := db.Rollback(); err != nil {
			t.Fatalf("Rollback() error = %v", err)
		}
	})

	t.Run("commit without a transaction fails", func(t *testing.T) {
		db := newTestDB(t)
		if err := db.Commit(); err == nil {
			t.Error("Commit() expected an error")
		}
		if err := db.Rollback(); err == nil {
			t.Error("Rollback() expected an error")
		}
	})

	t.Run("finish callbacks report the transaction outcome", func(t *testing.T) {
		db := newTestDB(t)
		var got []bool
		record := func(committed bool) { got = append(got, committed) }

		db.OnFinish(record) // no transaction: runs immediately

		if err := db.Begin(ctx); err != nil {
			t.Fatalf("Begin() error = %v", err)
		}
		db.OnFinish(record)
		if err := db.Rollback(); err != nil {
			t.Fatalf("Rollback() error = %v", err)
		}

		if err := db.Begin(ctx); err != nil {
			t.Fatalf("Begin() error = %v", err)
		}
		db.OnFinish(record)
		if err := db.Commit(); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}

		want := []bool{true, false, true}
		if len(got) != len(want) {
			t.Fatalf("callbacks ran %d times, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("outcome[%d] = %v, want %v", i, got[i], want[i])
			}
		}
	})
}

func TestDialectFor(t *testing.T) {
	sqlite := DialectFor("sqlite3")
	if got := sqlite.QuoteIdent(`na"me`); got != `"na""me"` {
		t.Errorf("sqlite QuoteIdent = %s", got)
	}
	if got := sqlite.QuoteLiteral("it's"); got != "'it''s'" {
		t.Errorf("sqlite QuoteLiteral = %s", got)
	}

	mysql := DialectFor("mysql")
	if got := mysql.QuoteIdent("name"); got != "`name`" {
		t.Errorf("mysql QuoteIdent = %s", got)
	}
	if got := mysql.QuoteLiteral(`a\b`); got != `'a\\b'` {
		t.Errorf("mysql QuoteLiteral = %s", got)
	}
}

func TestNewFromConfig(t *testing.T) {
	t.Run("memory profiles open in-memory sqlite", func(t *testing.T) {
		db, err := NewFromConfig(config.Profile{Driver: "memory"})
		if err != nil {
			t.Fatalf("NewFromConfig() error = %v", err)
		}
		defer db.Close()
		if db.Driver() != "sqlite3" {
			t.Errorf("Driver() = %s, want sqlite3", db.Driver())
		}
	})

	t.Run("sql profiles require a dsn", func(t *testing.T) {
		if _, err := NewFromConfig(config.Profile{Driver: "sqlite3"}); err == nil {
			t.Error("NewFromConfig() expected an error for empty dsn")
		}
	})

	t.Run("unknown drivers are rejected", func(t *testing.T) {
		if _, err := NewFromConfig(config.Profile{Driver: "oracle", DSN: "x"}); err == nil {
			t.Error("NewFromConfig() expected an error")
		}
	})
}
