package testutil

import (
	"testing"

	arm "github.com/lokhman/silex-arm"
	"github.com/lokhman/silex-arm/storage"
	"github.com/lokhman/silex-arm/typeconv"
)

// AuthorsSchema describes the authors fixture table.
func AuthorsSchema(t *testing.T) *arm.Metadata {
	t.Helper()
	return buildSchema(t, arm.NewSchema("authors").
		Column("id", arm.Int, arm.Primary).
		Column("name", arm.String, arm.Required).
		Column("email", arm.String))
}

// PostsSchema describes the posts fixture table, with translatable and
// file columns.
func PostsSchema(t *testing.T) *arm.Metadata {
	t.Helper()
	return buildSchema(t, arm.NewSchema("posts").
		Column("id", arm.Int, arm.Primary).
		Column("author_id", arm.Int).
		Column("title", arm.String, arm.Required, arm.Translatable).
		Column("body", arm.Text, arm.Translatable).
		Column("attachment", arm.String, arm.File).
		Column("published", arm.Bool))
}

// ItemsSchema describes the items fixture table, with a grouped position
// column and a multi-file column.
func ItemsSchema(t *testing.T) *arm.Metadata {
	t.Helper()
	return buildSchema(t, arm.NewSchema("items").
		Column("id", arm.Int, arm.Primary).
		Column("name", arm.String, arm.Required).
		Column("category", arm.String, arm.Group).
		Column("position", arm.Int, arm.Positional).
		Column("photos", arm.JSON, arm.File))
}

func buildSchema(t *testing.T, b *arm.SchemaBuilder) *arm.Metadata {
	t.Helper()
	meta, err := b.Build()
	if err != nil {
		t.Fatalf("failed to build schema: %v", err)
	}
	return meta
}

// RegistryOption adjusts the options used by NewTestRegistry.
type RegistryOption func(*arm.RegistryOptions)

// WithLocale sets the registry's active locale.
func WithLocale(locale string) RegistryOption {
	return func(o *arm.RegistryOptions) {
		o.Locale = locale
	}
}

// WithStorage sets the registry's file storage backend.
func WithStorage(s arm.Storage) RegistryOption {
	return func(o *arm.RegistryOptions) {
		o.Storage = s
	}
}

// NewTestRegistry creates a registry over a fresh test connection with all
// fixture tables registered on the default profile.
func NewTestRegistry(t *testing.T, opts ...RegistryOption) *arm.Registry {
	t.Helper()

	conn := NewTestConn(t)
	options := arm.RegistryOptions{
		Conns:     map[string]arm.Conn{arm.DefaultProfile: conn},
		Converter: typeconv.New(),
		Storage:   storage.NewMemory(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	registry, err := arm.NewRegistry(options)
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}
	for _, meta := range []*arm.Metadata{AuthorsSchema(t), PostsSchema(t), ItemsSchema(t)} {
		if _, err := registry.Register(meta, nil); err != nil {
			t.Fatalf("failed to register %s: %v", meta.Table(), err)
		}
	}
	return registry
}
