package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "MIGGEN"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var configPath string
	root := &cobra.Command{
		Use:           "migrations-generator",
		Short:         "Generate Laravel migrations from an existing database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "path to generator TOML config file")
	pf.String("type", "", "source database type (mysql, pgsql, sqlite)")
	pf.String("dsn", "", "source connection string")
	pf.String("schema", "", "PostgreSQL schema to read (default public)")
	pf.String("path", "", "output directory for migration files (default database/migrations)")
	pf.String("date", "", "timestamp of the first migration file (default now)")
	pf.Bool("squash", false, "create each table together with its foreign keys")
	pf.Bool("use-db-collation", false, "keep table and column charset and collation")
	pf.Bool("always-emit-index-names", false, "write every index name, even Laravel's default")
	pf.Bool("always-emit-fk-names", false, "write every foreign key name, even Laravel's default")
	pf.Bool("default-index-names", false, "drop stored index names and let Laravel derive them")
	pf.Bool("default-fk-names", false, "drop stored foreign key names and let Laravel derive them")
	pf.String("tables", "", "comma-separated tables to generate (default all)")
	pf.String("ignore", "", "comma-separated tables to skip")
	pf.Bool("skip-views", false, "do not generate views")
	pf.Bool("skip-proc", false, "do not generate stored procedures")
	pf.Bool("with-has-table", false, "wrap creates in a Schema::hasTable check")
	pf.String("on-unsupported-index", "", "degrade or abort on indexes the target cannot express")
	pf.String("table-filename", "", "file name pattern for create migrations")
	pf.String("view-filename", "", "file name pattern for view migrations")
	pf.String("proc-filename", "", "file name pattern for procedure migrations")
	pf.String("fk-filename", "", "file name pattern for foreign key migrations")

	bindFlags(v, pf, map[string]string{
		"type":                    "source.type",
		"dsn":                     "source.dsn",
		"schema":                  "source.schema",
		"path":                    "path",
		"date":                    "date",
		"squash":                  "squash",
		"use-db-collation":        "use_db_collation",
		"always-emit-index-names": "always_emit_index_names",
		"always-emit-fk-names":    "always_emit_fk_names",
		"default-index-names":     "default_index_names",
		"default-fk-names":        "default_fk_names",
		"tables":                  "tables",
		"ignore":                  "ignore",
		"skip-views":              "skip_views",
		"skip-proc":               "skip_proc",
		"with-has-table":          "with_has_table",
		"on-unsupported-index":    "on_unsupported_index",
		"table-filename":          "filenames.table",
		"view-filename":           "filenames.view",
		"proc-filename":           "filenames.proc",
		"fk-filename":             "filenames.fk",
	})

	load := func() (*GeneratorConfig, error) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg.applyOverrides(v)
		if err := cfg.validate(time.Now()); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	root.AddCommand(newGenerateCmd(v, load), newPlanCmd(load), newVersionCmd())
	return root
}

// bindFlags binds each flag to its config key so flag > env > file.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) {
	for flag, key := range keys {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}
}

func newGenerateCmd(v *viper.Viper, load func() (*GeneratorConfig, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write migration files for the source schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runGenerate(cmd.Context(), cfg, confirmLogging)
		},
	}

	f := cmd.Flags()
	f.Bool("skip-log", false, "do not record the generated migrations")
	f.String("log-with-batch", "", "record the generated migrations with this batch number")
	f.Bool("no-interaction", false, "do not prompt; migrations are not recorded unless a batch is given")
	bindFlags(v, f, map[string]string{
		"skip-log":       "log.skip",
		"log-with-batch": "log.batch",
		"no-interaction": "no_interaction",
	})
	return cmd
}

func newPlanCmd(load func() (*GeneratorConfig, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Print the migration plan as YAML without writing files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runPlan(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionString())
		},
	}
}
