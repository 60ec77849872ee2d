package arm_test

import (
	"errors"
	"testing"

	arm "github.com/lokhman/silex-arm"
	"github.com/lokhman/silex-arm/internal/testutil"
	"github.com/lokhman/silex-arm/typeconv"
)

func TestRegistry(t *testing.T) {
	t.Run("requires a type converter", func(t *testing.T) {
		conn := testutil.NewTestConn(t)
		_, err := arm.NewRegistry(arm.RegistryOptions{
			Conns: map[string]arm.Conn{arm.DefaultProfile: conn},
		})
		var ce *arm.ConfigError
		if !errors.As(err, &ce) {
			t.Errorf("NewRegistry() error = %v, want *ConfigError", err)
		}
	})

	t.Run("requires a connection for the default profile", func(t *testing.T) {
		conn := testutil.NewTestConn(t)
		_, err := arm.NewRegistry(arm.RegistryOptions{
			Conns:     map[string]arm.Conn{"other": conn},
			Converter: typeconv.New(),
		})
		var ce *arm.ConfigError
		if !errors.As(err, &ce) {
			t.Errorf("NewRegistry() error = %v, want *ConfigError", err)
		}
	})

	t.Run("rejects duplicate registration", func(t *testing.T) {
		reg := testutil.NewTestRegistry(t)
		var ce *arm.ConfigError
		if _, err := reg.Register(testutil.AuthorsSchema(t), nil); !errors.As(err, &ce) {
			t.Errorf("Register() error = %v, want *ConfigError", err)
		}
	})

	t.Run("rejects lookup of an unregistered table", func(t *testing.T) {
		reg := testutil.NewTestRegistry(t)
		var ce *arm.ConfigError
		if _, err := reg.Repository("nope"); !errors.As(err, &ce) {
			t.Errorf("Repository() error = %v, want *ConfigError", err)
		}
	})

	t.Run("rejects registration on an unknown profile", func(t *testing.T) {
		reg := testutil.NewTestRegistry(t)
		meta, err := arm.NewSchema("extra").Column("id", arm.Int, arm.Primary).Build()
		if err != nil {
			t.Fatalf("building schema: %v", err)
		}
		var ce *arm.ConfigError
		if _, err := reg.Register(meta, &arm.RepositoryConfig{Profile: "ghost"}); !errors.As(err, &ce) {
			t.Errorf("Register() error = %v, want *ConfigError", err)
		}
	})

	t.Run("qualifies tables on secondary profiles", func(t *testing.T) {
		reg, err := arm.NewRegistry(arm.RegistryOptions{
			Conns: map[string]arm.Conn{
				arm.DefaultProfile: testutil.NewTestConn(t),
				"archive":          testutil.NewTestConn(t),
			},
			Converter: typeconv.New(),
		})
		if err != nil {
			t.Fatalf("NewRegistry() error = %v", err)
		}
		meta := testutil.PostsSchema(t)
		main, err := reg.Register(meta, nil)
		if err != nil {
			t.Fatalf("Register(default) error = %v", err)
		}
		archived, err := reg.Register(meta, &arm.RepositoryConfig{Profile: "archive"})
		if err != nil {
			t.Fatalf("Register(archive) error = %v", err)
		}

		if main.QualifiedName() != "posts" {
			t.Errorf("QualifiedName() = %q, want posts", main.QualifiedName())
		}
		if archived.QualifiedName() != "archive:posts" {
			t.Errorf("QualifiedName() = %q, want archive:posts", archived.QualifiedName())
		}
		got, err := reg.Repository("archive:posts")
		if err != nil || got != archived {
			t.Errorf("Repository(archive:posts) = %v, %v, want the archive repository", got, err)
		}
	})
}
