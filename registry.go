package arm

import "strings"

// DefaultProfile is the connection profile used when none is named.
const DefaultProfile = "default"

// RegistryOptions wires the shared collaborators into a Registry.
type RegistryOptions struct {
	// Conns maps profile names to connections. At least the default profile
	// must be present.
	Conns map[string]Conn

	// DefaultProfile names the profile used for unprefixed table references.
	// Defaults to DefaultProfile.
	DefaultProfile string

	// Converter is the schema type-conversion collaborator. Required.
	Converter TypeConverter

	// Storage backs file columns. Optional; required only by schemas that
	// declare file columns.
	Storage Storage

	// Locale is the active locale; DefaultLocale is the locale stored in the
	// base tables. Translation handling is active when they differ.
	Locale        string
	DefaultLocale string

	// Logger defaults to a NopLogger.
	Logger Logger
}

// Registry maps fully-qualified table names to repositories so the query
// rewriter can resolve cross-table references. Build one per active locale at
// startup, register every schema, then share it.
type Registry struct {
	conns          map[string]Conn
	defaultProfile string
	converter      TypeConverter
	storage        Storage
	locale         string
	defaultLocale  string
	logger         Logger
	repos          map[string]*Repository
}

// NewRegistry validates the wiring and creates an empty registry.
func NewRegistry(opts RegistryOptions) (*Registry, error) {
	if opts.DefaultProfile == "" {
		opts.DefaultProfile = DefaultProfile
	}
	if opts.Logger == nil {
		opts.Logger = NewNopLogger()
	}
	if opts.Converter == nil {
		return nil, configErrorf("registry: no type converter configured")
	}
	if _, ok := opts.Conns[opts.DefaultProfile]; !ok {
		return nil, configErrorf("registry: no connection for default profile %q", opts.DefaultProfile)
	}
	return &Registry{
		conns:          opts.Conns,
		defaultProfile: opts.DefaultProfile,
		converter:      opts.Converter,
		storage:        opts.Storage,
		locale:         opts.Locale,
		defaultLocale:  opts.DefaultLocale,
		logger:         opts.Logger,
		repos:          make(map[string]*Repository),
	}, nil
}

// RepositoryConfig carries per-repository settings for Register.
type RepositoryConfig struct {
	// Profile selects the connection profile. Defaults to the registry's
	// default profile.
	Profile string

	// Hooks are the mutation extension points. Defaults to NopHooks.
	Hooks Hooks
}

// Register creates a repository for the schema and indexes it under the
// fully-qualified table name. cfg may be nil.
func (g *Registry) Register(meta *Metadata, cfg *RepositoryConfig) (*Repository, error) {
	if cfg == nil {
		cfg = &RepositoryConfig{}
	}
	profile := cfg.Profile
	if profile == "" {
		profile = g.defaultProfile
	}
	conn, ok := g.conns[profile]
	if !ok {
		return nil, configErrorf("registry: no connection for profile %q", profile)
	}
	hooks := cfg.Hooks
	if hooks == nil {
		hooks = NopHooks{}
	}
	name := g.qualifiedName(profile, meta.Table())
	if _, dup := g.repos[name]; dup {
		return nil, configErrorf("registry: table %q already registered", name)
	}
	r := &Repository{
		registry:  g,
		conn:      conn,
		profile:   profile,
		table:     meta.Table(),
		meta:      meta,
		locale:    g.locale,
		foreign:   g.locale != g.defaultLocale,
		hooks:     hooks,
		logger:    g.logger,
		converter: g.converter,
		storage:   g.storage,
	}
	g.repos[name] = r
	return r, nil
}

// Repository resolves a fully-qualified table name ("table" on the default
// profile, "profile:table" otherwise) to its repository.
func (g *Registry) Repository(name string) (*Repository, error) {
	r, ok := g.repos[name]
	if !ok {
		return nil, configErrorf("no repository registered for table %q", name)
	}
	return r, nil
}

// repositoryFor resolves a bare table name within the given profile.
func (g *Registry) repositoryFor(profile, table string) (*Repository, error) {
	return g.Repository(g.qualifiedName(profile, table))
}

func (g *Registry) qualifiedName(profile, table string) string {
	if profile == "" || profile == g.defaultProfile {
		return table
	}
	return profile + ":" + table
}

// bareTable strips an optional profile prefix from a table reference.
func bareTable(ref string) string {
	if i := strings.IndexByte(ref, ':'); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

// refProfile returns the profile prefix of a table reference, or "".
func refProfile(ref string) string {
	if i := strings.IndexByte(ref, ':'); i >= 0 {
		return ref[:i]
	}
	return ""
}
