package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func shopConfig(t *testing.T, dbPath string) *GeneratorConfig {
	t.Helper()
	cfg := defaultConfig()
	cfg.Source = SourceConfig{Type: "sqlite", DSN: dbPath}
	cfg.Path = filepath.Join(t.TempDir(), "migrations")
	cfg.Date = "2024-02-03 04:05:06"
	cfg.NoInteraction = true
	require.NoError(t, cfg.validate(time.Now()))
	return &cfg
}

func TestBuildEmissionPlan(t *testing.T) {
	schema := &Schema{
		Dialect: DialectMySQL,
		Tables:  []Table{ordersTable(), customersTable()},
		Views:   []View{{Name: "v", Definition: "select 1"}},
	}

	ep, degraded, err := buildEmissionPlan(schema, PlanOptions{}, false)
	require.NoError(t, err)
	assert.Empty(t, degraded)
	assert.Equal(t, []string{"orders", "customers"}, ep.CreateOrder())
	assert.Equal(t, []string{
		"create_table:orders",
		"create_table:customers",
		"foreign_keys:orders",
		"view:v",
	}, artifactNames(ep.Artifacts()))

	ep, _, err = buildEmissionPlan(schema, PlanOptions{}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"customers", "orders"}, ep.CreateOrder())
	assert.Empty(t, ep.Deferred)
}

func TestBuildEmissionPlanAbort(t *testing.T) {
	tbl := customersTable()
	tbl.Indexes = append(tbl.Indexes, Index{Name: "expr", Kind: IndexPlain, HasExpression: true})
	schema := &Schema{Dialect: DialectMySQL, Tables: []Table{tbl}}

	_, _, err := buildEmissionPlan(schema, PlanOptions{IndexFeaturePolicy: IndexPolicyAbort}, false)
	var fe *UnsupportedIndexFeatureError
	assert.True(t, errors.As(err, &fe))
}

func TestCollectWarnings(t *testing.T) {
	schema := &Schema{
		Dialect: DialectMySQL,
		Tables: []Table{{
			Name:      "users",
			Collation: "utf8mb4_unicode_ci",
			Columns: []Column{
				{Name: "name", Collation: "utf8mb4_bin"},
				{Name: "slug", GenerationUnknown: true, GenerationStored: true},
			},
		}},
		Triggers: []string{"users_audit"},
	}
	degraded := []error{&UnsupportedTypeError{Table: "users", Column: "flags", NativeType: "bit(8)"}}

	warnings := collectWarnings(schema, PlanOptions{}, degraded)
	require.Len(t, warnings, 6)
	assert.Equal(t, "1 item(s) degraded (1 unsupported column type(s), 0 lossy column type(s), 0 unsupported index feature(s), 0 other)", warnings[0])
	assert.Contains(t, warnings[1], "users.flags")
	assert.Contains(t, warnings[2], "generated column users.slug (stored)")
	assert.Contains(t, warnings[3], "collation utf8mb4_bin")
	assert.Equal(t, "source contains 1 trigger(s) that are not generated", warnings[4])
	assert.Equal(t, "trigger: users_audit", warnings[5])

	warnings = collectWarnings(schema, PlanOptions{UseDatabaseCollation: true}, nil)
	assert.Len(t, warnings, 3)
}

func TestGenerateIsIdempotent(t *testing.T) {
	dbPath := newShopDB(t)

	for _, squash := range []bool{false, true} {
		run := func() map[string][]byte {
			cfg := shopConfig(t, dbPath)
			cfg.Squash = squash
			reader, gen, err := readGeneration(context.Background(), cfg)
			require.NoError(t, err)
			defer reader.Close()

			names, err := cfg.writer().Write(gen.Plan)
			require.NoError(t, err)
			files := make(map[string][]byte, len(names))
			for _, name := range names {
				data, err := os.ReadFile(filepath.Join(cfg.Path, name+".php"))
				require.NoError(t, err)
				files[name] = data
			}
			return files
		}

		first, second := run(), run()
		require.NotEmpty(t, first)
		assert.Equal(t, first, second, "squash=%v", squash)
	}
}

func TestRunGenerateSQLite(t *testing.T) {
	dbPath := newShopDB(t)
	cfg := shopConfig(t, dbPath)
	cfg.Log.Batch = "3"
	require.NoError(t, cfg.validate(time.Now()))

	require.NoError(t, runGenerate(context.Background(), cfg, nil))

	entries, err := os.ReadDir(cfg.Path)
	require.NoError(t, err)
	var files []string
	for _, e := range entries {
		files = append(files, e.Name())
	}
	assert.Equal(t, []string{
		"2024_02_03_040506_create_customers_table.php",
		"2024_02_03_040507_create_order_items_table.php",
		"2024_02_03_040508_create_orders_table.php",
		"2024_02_03_040509_add_foreign_keys_to_order_items_table.php",
		"2024_02_03_040510_add_foreign_keys_to_orders_table.php",
		"2024_02_03_040511_create_big_orders_view.php",
	}, files)

	customers, err := os.ReadFile(filepath.Join(cfg.Path, files[0]))
	require.NoError(t, err)
	assert.Contains(t, string(customers), "            $table->increments('id');\n")
	assert.Contains(t, string(customers), "            $table->string('email')->unique();\n")
	assert.Contains(t, string(customers), "            $table->string('status', 20)->default('active');\n")

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()
	var logged []string
	require.NoError(t, collectStringRows(context.Background(), db,
		"SELECT migration FROM migrations WHERE batch = ? ORDER BY id", []any{3}, &logged))
	assert.Equal(t, migrationNames(files), logged)

	// A second run without a batch and without a prompt logs nothing more,
	// and the migrations table is not generated.
	again := shopConfig(t, dbPath)
	require.NoError(t, runGenerate(context.Background(), again, nil))
	entries, err = os.ReadDir(again.Path)
	require.NoError(t, err)
	assert.Len(t, entries, len(files))

	var count []string
	require.NoError(t, collectStringRows(context.Background(), db, "SELECT COUNT(*) FROM migrations", nil, &count))
	assert.Equal(t, []string{"6"}, count)
}

func TestRunPlanSQLite(t *testing.T) {
	cfg := shopConfig(t, newShopDB(t))
	cfg.Squash = true
	cfg.SkipViews = true

	var out bytes.Buffer
	require.NoError(t, runPlan(context.Background(), cfg, &out))

	var report planReport
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, "SQLite", report.Source)
	assert.True(t, report.Merged)
	assert.Equal(t, []string{"order_items", "orders", "customers"}, report.DropOrder)
	require.Len(t, report.Artifacts, 3)
	orders := report.Artifacts[1]
	assert.Subset(t, orders.Methods, []string{"decimal", "foreign", "increments", "index", "on", "references", "text"})
	assert.IsIncreasing(t, orders.Methods)
	orders.Methods = nil
	assert.Equal(t, artifactReport{
		Kind:       "create_table",
		Name:       "orders",
		File:       "2024_02_03_040507_create_orders_table.php",
		Statements: 6,
		References: []string{"customers"},
	}, orders)
	require.Len(t, report.Degraded, 1)
	assert.Contains(t, report.Degraded[0], "orders.idx_total: partial indexes")

	_, err := os.Stat(cfg.Path)
	assert.True(t, os.IsNotExist(err), "plan writes no files")
}
