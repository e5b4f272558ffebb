package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// GeneratorConfig holds the TOML-driven generator configuration.
type GeneratorConfig struct {
	Source               SourceConfig     `toml:"source"`
	Path                 string           `toml:"path"`
	Date                 string           `toml:"date"`
	Squash               bool             `toml:"squash"`
	UseDBCollation       bool             `toml:"use_db_collation"`
	AlwaysEmitIndexNames bool             `toml:"always_emit_index_names"`
	AlwaysEmitFKNames    bool             `toml:"always_emit_fk_names"`
	DefaultIndexNames    bool             `toml:"default_index_names"`
	DefaultFKNames       bool             `toml:"default_fk_names"`
	Tables               []string         `toml:"tables"`
	Ignore               []string         `toml:"ignore"`
	SkipViews            bool             `toml:"skip_views"`
	SkipProc             bool             `toml:"skip_proc"`
	WithHasTable         bool             `toml:"with_has_table"`
	OnUnsupportedIndex   string           `toml:"on_unsupported_index"` // degrade|abort
	NoInteraction        bool             `toml:"no_interaction"`
	Filenames            FilenamePatterns `toml:"filenames"`
	Log                  LogConfig        `toml:"log"`

	// configDir is the directory containing the TOML file, used to resolve a relative path.
	configDir string
	start     time.Time
	batch     *int
}

// SourceConfig identifies the source database engine and connection string.
type SourceConfig struct {
	Type   string `toml:"type"` // mysql, pgsql or sqlite
	DSN    string `toml:"dsn"`
	Schema string `toml:"schema"` // PostgreSQL only
}

// LogConfig controls recording of generated files in the migrations table.
type LogConfig struct {
	Skip  bool   `toml:"skip"`
	Batch string `toml:"batch"`
}

const defaultMigrationsPath = "database/migrations"

var dateLayouts = []string{"2006-01-02 15:04:05", "2006-01-02", timestampLayout}

func defaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Path:               defaultMigrationsPath,
		OnUnsupportedIndex: string(IndexPolicyDegrade),
		Filenames:          defaultFilenamePatterns(),
	}
}

// loadConfig reads a TOML config file. An empty path yields the defaults.
func loadConfig(path string) (*GeneratorConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		cfg.configDir = wd
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if unknown := md.Undecoded(); len(unknown) > 0 {
		keys := make([]string, len(unknown))
		for i, k := range unknown {
			keys[i] = k.String()
		}
		return nil, invalidConfig("", "unknown config keys: %s", strings.Join(keys, ", "))
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg.configDir = filepath.Dir(absPath)
	return &cfg, nil
}

// applyOverrides layers flag and environment values onto the file config.
// Only keys that were actually set win over the file.
func (c *GeneratorConfig) applyOverrides(v *viper.Viper) {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	flag := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}
	list := func(key string, dst *[]string) {
		if v.IsSet(key) {
			*dst = splitList(v.GetString(key))
		}
	}

	str("source.type", &c.Source.Type)
	str("source.dsn", &c.Source.DSN)
	str("source.schema", &c.Source.Schema)
	str("path", &c.Path)
	str("date", &c.Date)
	flag("squash", &c.Squash)
	flag("use_db_collation", &c.UseDBCollation)
	flag("always_emit_index_names", &c.AlwaysEmitIndexNames)
	flag("always_emit_fk_names", &c.AlwaysEmitFKNames)
	flag("default_index_names", &c.DefaultIndexNames)
	flag("default_fk_names", &c.DefaultFKNames)
	list("tables", &c.Tables)
	list("ignore", &c.Ignore)
	flag("skip_views", &c.SkipViews)
	flag("skip_proc", &c.SkipProc)
	flag("with_has_table", &c.WithHasTable)
	str("on_unsupported_index", &c.OnUnsupportedIndex)
	flag("no_interaction", &c.NoInteraction)
	str("filenames.table", &c.Filenames.Table)
	str("filenames.view", &c.Filenames.View)
	str("filenames.proc", &c.Filenames.Proc)
	str("filenames.fk", &c.Filenames.FK)
	flag("log.skip", &c.Log.Skip)
	str("log.batch", &c.Log.Batch)
}

// splitList splits a comma-separated flag or environment value.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// validate checks the merged configuration and resolves derived values.
// Every failure is an *InvalidConfigurationError.
func (c *GeneratorConfig) validate(now time.Time) error {
	if c.Source.Type == "" {
		return invalidConfig("source.type", "is required (must be mysql, pgsql or sqlite)")
	}
	d, err := parseDialect(c.Source.Type)
	if err != nil {
		return invalidConfig("source.type", "%q is not one of: mysql, pgsql, sqlite", c.Source.Type)
	}
	if c.Source.DSN == "" {
		return invalidConfig("source.dsn", "is required")
	}
	if c.Source.Schema != "" && d != DialectPostgres {
		return invalidConfig("source.schema", "is a PostgreSQL-only option")
	}

	if c.Path == "" {
		c.Path = defaultMigrationsPath
	}

	c.start = now
	if c.Date != "" {
		t, ok := parseDate(c.Date)
		if !ok {
			return invalidConfig("date", "must look like 2006-01-02 15:04:05")
		}
		c.start = t
	}

	switch IndexFeaturePolicy(c.OnUnsupportedIndex) {
	case "":
		c.OnUnsupportedIndex = string(IndexPolicyDegrade)
	case IndexPolicyDegrade, IndexPolicyAbort:
	default:
		return invalidConfig("on_unsupported_index", "must be one of: degrade, abort")
	}

	if c.AlwaysEmitIndexNames && c.DefaultIndexNames {
		return invalidConfig("", "always_emit_index_names and default_index_names are mutually exclusive")
	}
	if c.AlwaysEmitFKNames && c.DefaultFKNames {
		return invalidConfig("", "always_emit_fk_names and default_fk_names are mutually exclusive")
	}

	for _, name := range c.Tables {
		if slices.Contains(c.Ignore, name) {
			return invalidConfig("", "table %q is listed in both tables and ignore", name)
		}
	}

	defaults := defaultFilenamePatterns()
	patterns := []struct {
		key string
		val *string
		def string
	}{
		{"filenames.table", &c.Filenames.Table, defaults.Table},
		{"filenames.view", &c.Filenames.View, defaults.View},
		{"filenames.proc", &c.Filenames.Proc, defaults.Proc},
		{"filenames.fk", &c.Filenames.FK, defaults.FK},
	}
	for _, p := range patterns {
		if *p.val == "" {
			*p.val = p.def
			continue
		}
		if !strings.Contains(*p.val, "{name}") {
			return invalidConfig(p.key, "must contain {name}")
		}
		if !strings.HasSuffix(*p.val, ".php") {
			return invalidConfig(p.key, "must end in .php")
		}
		if strings.ContainsAny(*p.val, `/\`) {
			return invalidConfig(p.key, "must be a file name, not a path")
		}
	}

	if c.Log.Batch != "" {
		if c.Log.Skip {
			return invalidConfig("", "log.skip and log.batch are mutually exclusive")
		}
		n, err := strconv.Atoi(strings.TrimSpace(c.Log.Batch))
		if err != nil || n < 0 {
			return invalidConfig("log.batch", "must be a valid integer")
		}
		c.batch = &n
	}
	return nil
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(s), time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// resolvePath resolves a path relative to the config file directory.
func (c *GeneratorConfig) resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.configDir, p)
}

func (c *GeneratorConfig) planOptions() PlanOptions {
	return PlanOptions{
		UseDatabaseCollation: c.UseDBCollation,
		IndexNaming:          NamingOptions{AlwaysEmit: c.AlwaysEmitIndexNames, ForceDefault: c.DefaultIndexNames},
		ForeignKeyNaming:     NamingOptions{AlwaysEmit: c.AlwaysEmitFKNames, ForceDefault: c.DefaultFKNames},
		IndexFeaturePolicy:   IndexFeaturePolicy(c.OnUnsupportedIndex),
	}
}

func (c *GeneratorConfig) readOptions() ReadOptions {
	return ReadOptions{
		OnlyTables:     c.Tables,
		IgnoreTables:   c.Ignore,
		SkipViews:      c.SkipViews,
		SkipProcedures: c.SkipProc,
	}
}

func (c *GeneratorConfig) writer() migrationWriter {
	return migrationWriter{
		Dir:          c.resolvePath(c.Path),
		Start:        c.start,
		Patterns:     c.Filenames,
		WithHasTable: c.WithHasTable,
	}
}
