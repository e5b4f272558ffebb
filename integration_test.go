//go:build integration

package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func TestIntegration_MySQL(t *testing.T) {
	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		t.Skip("MYSQL_DSN env var required")
	}

	ctx := context.Background()

	// --- Seed MySQL ---
	mysqlDB, err := sql.Open("mysql", mysqlDSN+"?parseTime=true&loc=UTC&interpolateParams=true&multiStatements=true")
	if err != nil {
		t.Fatalf("open mysql: %v", err)
	}
	defer mysqlDB.Close()

	seedMySQL(t, mysqlDB)
	mysqlDB.Close()

	// --- Introspect ---
	reader, err := openMySQLReader(ctx, mysqlDSN)
	if err != nil {
		t.Fatalf("open mysql reader: %v", err)
	}
	defer reader.Close()

	schema, err := readSchema(ctx, reader, ReadOptions{})
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if len(schema.Tables) != 3 {
		t.Fatalf("expected 3 tables, got %d", len(schema.Tables))
	}
	if len(schema.Views) != 1 {
		t.Fatalf("expected 1 view, got %d", len(schema.Views))
	}

	// --- Generate ---
	dir := t.TempDir()
	cfg := defaultConfig()
	cfg.Source = SourceConfig{Type: "mysql", DSN: mysqlDSN}
	cfg.Path = dir
	cfg.Date = "2024-01-01 00:00:00"
	if err := cfg.validate(time.Now()); err != nil {
		t.Fatalf("validate config: %v", err)
	}

	gen, err := newGeneration(schema, &cfg)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	names, err := cfg.writer().Write(gen.Plan)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	// comments, posts, users; foreign keys of comments and posts; the view
	if len(names) != 6 {
		t.Fatalf("expected 6 migrations, got %d: %v", len(names), names)
	}

	users := readMigration(t, dir, names[2]+".php")
	for _, want := range []string{
		"Schema::create('users', function (Blueprint $table) {",
		"$table->bigIncrements('id');",
		"$table->string('email')->unique();",
		"$table->boolean('active')->default(true);",
		"$table->timestamps();",
	} {
		if !strings.Contains(users, want) {
			t.Errorf("users migration missing %q:\n%s", want, users)
		}
	}

	comments := readMigration(t, dir, names[3]+".php")
	if !strings.Contains(comments, "$table->foreign('post_id')->references('id')->on('posts')->onDelete('cascade');") {
		t.Errorf("comments foreign keys missing post_id cascade:\n%s", comments)
	}

	// --- Log ---
	exec, err := reader.Executor(ctx)
	if err != nil {
		t.Fatalf("executor: %v", err)
	}
	batch, err := logMigrations(ctx, exec, DialectMySQL, names, nil)
	if err != nil {
		t.Fatalf("log migrations: %v", err)
	}
	if batch < 1 {
		t.Errorf("expected a positive batch, got %d", batch)
	}
}

func TestIntegration_Postgres(t *testing.T) {
	pgDSN := os.Getenv("POSTGRES_DSN")
	if pgDSN == "" {
		t.Skip("POSTGRES_DSN env var required")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, pgDSN)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	const pgSchema = "migrations_generator_inttest"
	quoted := DialectPostgres.quoteIdentifier(pgSchema)

	_, _ = pool.Exec(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", quoted))
	if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", quoted)); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		pool.Exec(context.Background(), fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", quoted))
	})

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE %s.users (
			id bigserial PRIMARY KEY,
			email varchar(255) NOT NULL,
			status varchar(20) NOT NULL DEFAULT 'active',
			created_at timestamp(0) without time zone NULL,
			updated_at timestamp(0) without time zone NULL
		)`, quoted),
		fmt.Sprintf(`CREATE UNIQUE INDEX users_email_unique ON %s.users (email)`, quoted),
		fmt.Sprintf(`CREATE TABLE %s.posts (
			id serial PRIMARY KEY,
			user_id bigint NOT NULL REFERENCES %s.users (id) ON DELETE CASCADE,
			body text
		)`, quoted, quoted),
		fmt.Sprintf(`CREATE INDEX posts_lower_body ON %s.posts (lower(body))`, quoted),
	}
	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s); err != nil {
			t.Fatalf("seed postgres: %v\n%s", err, s)
		}
	}

	reader, err := openPostgresReader(ctx, pgDSN, pgSchema)
	if err != nil {
		t.Fatalf("open postgres reader: %v", err)
	}
	defer reader.Close()

	schema, err := readSchema(ctx, reader, ReadOptions{})
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if len(schema.Tables) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(schema.Tables))
	}

	ep, degraded, err := buildEmissionPlan(schema, PlanOptions{}, true)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if got := strings.Join(ep.CreateOrder(), ","); got != "users,posts" {
		t.Errorf("create order = %s, want users,posts", got)
	}
	if len(degraded) != 1 {
		t.Errorf("expected the expression index to be degraded, got %v", degraded)
	}

	users, err := migrationWriter{}.render(ep.Creates[0])
	if err != nil {
		t.Fatalf("render users: %v", err)
	}
	for _, want := range []string{
		"$table->bigIncrements('id');",
		"$table->string('email')->unique();",
		"$table->string('status', 20)->default('active');",
		"$table->timestamps();",
	} {
		if !strings.Contains(string(users), want) {
			t.Errorf("users migration missing %q:\n%s", want, users)
		}
	}
}

func seedMySQL(t *testing.T, db *sql.DB) {
	t.Helper()
	_, err := db.Exec(`
		SET FOREIGN_KEY_CHECKS = 0;
		DROP VIEW IF EXISTS active_users;
		DROP TABLE IF EXISTS comments;
		DROP TABLE IF EXISTS posts;
		DROP TABLE IF EXISTS users;
		DROP TABLE IF EXISTS migrations;
		SET FOREIGN_KEY_CHECKS = 1;

		CREATE TABLE users (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			email VARCHAR(255) NOT NULL,
			active TINYINT(1) NOT NULL DEFAULT 1,
			created_at TIMESTAMP NULL,
			updated_at TIMESTAMP NULL,
			UNIQUE KEY users_email_unique (email)
		) ENGINE=InnoDB;

		CREATE TABLE posts (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			user_id BIGINT UNSIGNED NOT NULL,
			title VARCHAR(200) NOT NULL,
			CONSTRAINT posts_user_id_foreign FOREIGN KEY (user_id) REFERENCES users (id)
		) ENGINE=InnoDB;

		CREATE TABLE comments (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			post_id BIGINT UNSIGNED NOT NULL,
			body TEXT,
			CONSTRAINT comments_post_id_foreign FOREIGN KEY (post_id) REFERENCES posts (id) ON DELETE CASCADE
		) ENGINE=InnoDB;

		CREATE VIEW active_users AS SELECT id, email FROM users WHERE active = 1;
	`)
	if err != nil {
		t.Fatalf("seed mysql: %v", err)
	}
}

func readMigration(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(data)
}
