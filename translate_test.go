package arm_test

import (
	"context"
	"testing"

	arm "github.com/lokhman/silex-arm"
	"github.com/lokhman/silex-arm/internal/testutil"
)

func insertPost(t *testing.T, r *arm.Repository, values map[string]any) *arm.Entity {
	t.Helper()
	e := r.NewEntity()
	for col, v := range values {
		if err := e.Set(col, v); err != nil {
			t.Fatalf("Set(%s) error = %v", col, err)
		}
	}
	if _, err := r.Insert(context.Background(), e); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	return e
}

func baseRow(t *testing.T, r *arm.Repository, id any) (title, body any) {
	t.Helper()
	rows, err := r.Conn().Query(context.Background(), `SELECT title, body FROM posts WHERE id = ?`, []any{id})
	if err != nil {
		t.Fatalf("querying base row: %v", err)
	}
	defer rows.Close()
	if !rows.Next() {
		t.Fatal("base row not found")
	}
	if err := rows.Scan(&title, &body); err != nil {
		t.Fatalf("scanning base row: %v", err)
	}
	return title, body
}

func translationCount(t *testing.T, r *arm.Repository, key any) int64 {
	t.Helper()
	query := `SELECT COUNT(*) FROM _translations WHERE _table = 'posts' AND _key = ?`
	rows, err := r.Conn().Query(context.Background(), query, []any{key})
	if err != nil {
		t.Fatalf("counting translations: %v", err)
	}
	defer rows.Close()
	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			t.Fatalf("scanning count: %v", err)
		}
	}
	return n
}

func findTitle(t *testing.T, r *arm.Repository, id any) string {
	t.Helper()
	e, err := r.Find(context.Background(), id)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if e == nil {
		t.Fatal("Find() = nil")
	}
	title, err := e.GetString("title")
	if err != nil {
		t.Fatalf("GetString(title) error = %v", err)
	}
	return title
}

func TestRepository_Translations(t *testing.T) {
	ctx := context.Background()

	t.Run("default locale leaves the translations table alone", func(t *testing.T) {
		reg := testutil.NewTestRegistry(t)
		posts := repo(t, reg, "posts")

		e := insertPost(t, posts, map[string]any{"title": "hello"})
		id, _ := e.Primary()
		if n := translationCount(t, posts, id); n != 0 {
			t.Errorf("translation rows = %d, want 0", n)
		}
		if err := e.Set("title", "changed"); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if _, err := posts.Update(ctx, e); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		title, _ := baseRow(t, posts, id)
		if title != "changed" {
			t.Errorf("base title = %v, want changed", title)
		}
	})

	t.Run("foreign insert writes base values and translation rows", func(t *testing.T) {
		reg := testutil.NewTestRegistry(t, testutil.WithLocale("kk"))
		posts := repo(t, reg, "posts")

		e := insertPost(t, posts, map[string]any{"title": "hello", "body": "text"})
		id, _ := e.Primary()
		title, body := baseRow(t, posts, id)
		if title != "hello" || body != "text" {
			t.Errorf("base row = %v, %v, want hello, text", title, body)
		}
		if n := translationCount(t, posts, id); n != 2 {
			t.Errorf("translation rows = %d, want 2", n)
		}
	})

	t.Run("foreign update writes the translation, not the base row", func(t *testing.T) {
		reg := testutil.NewTestRegistry(t, testutil.WithLocale("kk"))
		posts := repo(t, reg, "posts")

		e := insertPost(t, posts, map[string]any{"title": "hello"})
		id, _ := e.Primary()

		if err := e.Set("title", "salem"); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if _, err := posts.Update(ctx, e); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		title, _ := baseRow(t, posts, id)
		if title != "hello" {
			t.Errorf("base title = %v, want untouched hello", title)
		}
		if got := findTitle(t, posts, id); got != "salem" {
			t.Errorf("translated title = %q, want salem", got)
		}
	})

	t.Run("foreign update inserts a missing translation row", func(t *testing.T) {
		reg := testutil.NewTestRegistry(t, testutil.WithLocale("kk"))
		posts := repo(t, reg, "posts")

		e := insertPost(t, posts, map[string]any{"title": "hello"})
		id, _ := e.Primary()

		patch := posts.NewEntity()
		if err := patch.Set("id", id); err != nil {
			t.Fatalf("Set(id) error = %v", err)
		}
		if err := patch.Set("body", "thereafter"); err != nil {
			t.Fatalf("Set(body) error = %v", err)
		}
		if _, err := posts.Update(ctx, patch); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		_, body := baseRow(t, posts, id)
		if body != nil {
			t.Errorf("base body = %v, want NULL", body)
		}
		found, err := posts.Find(ctx, id)
		if err != nil || found == nil {
			t.Fatalf("Find() = %v, %v", found, err)
		}
		got, _ := found.GetString("body")
		if got != "thereafter" {
			t.Errorf("translated body = %q, want thereafter", got)
		}
	})

	t.Run("nulling a translatable column deletes its translation row", func(t *testing.T) {
		reg := testutil.NewTestRegistry(t, testutil.WithLocale("kk"))
		posts := repo(t, reg, "posts")

		e := insertPost(t, posts, map[string]any{"title": "hello", "body": "text"})
		id, _ := e.Primary()

		patch := posts.NewEntity()
		if err := patch.Set("id", id); err != nil {
			t.Fatalf("Set(id) error = %v", err)
		}
		if err := patch.Set("body", nil); err != nil {
			t.Fatalf("Set(nil) error = %v", err)
		}
		if _, err := posts.Update(ctx, patch); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if n := translationCount(t, posts, id); n != 1 {
			t.Errorf("translation rows = %d, want 1 (title only)", n)
		}
		// The read falls back to the base value.
		found, err := posts.Find(ctx, id)
		if err != nil || found == nil {
			t.Fatalf("Find() = %v, %v", found, err)
		}
		body, _ := found.GetString("body")
		if body != "text" {
			t.Errorf("body = %q, want base fallback text", body)
		}
	})

	t.Run("delete removes translation rows of every locale", func(t *testing.T) {
		reg := testutil.NewTestRegistry(t, testutil.WithLocale("kk"))
		posts := repo(t, reg, "posts")

		e := insertPost(t, posts, map[string]any{"title": "hello"})
		id, _ := e.Primary()
		// A row left behind by some other locale's writer.
		if _, err := posts.Conn().Insert(ctx, arm.TranslationsTable, map[string]any{
			"_table": "posts", "_key": id, "_column": "title", "_locale": "fr", "_content": "bonjour",
		}); err != nil {
			t.Fatalf("inserting foreign translation: %v", err)
		}

		if _, err := posts.Delete(ctx, e); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if n := translationCount(t, posts, id); n != 0 {
			t.Errorf("translation rows = %d, want 0", n)
		}
	})
}
