package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	sq "github.com/Masterminds/squirrel"
	"github.com/charmbracelet/huh"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// migrationsExecutor is the subset of a connection the migrations log needs.
// *pgxpool.Pool satisfies it directly; database/sql handles go through
// sqlExecutor.
type migrationsExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type sqlExecutor struct {
	db *sql.DB
}

func (e sqlExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	if _, err := e.db.ExecContext(ctx, query, args...); err != nil {
		return pgconn.CommandTag{}, err
	}
	return pgconn.CommandTag{}, nil
}

func (e sqlExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return e.db.QueryRowContext(ctx, query, args...)
}

// migrationLog records generated migrations in Laravel's migrations table
// so `php artisan migrate` treats them as already run.
type migrationLog struct {
	exec    migrationsExecutor
	dialect Dialect
}

func (l migrationLog) placeholders() sq.PlaceholderFormat {
	if l.dialect == DialectPostgres {
		return sq.Dollar
	}
	return sq.Question
}

func (l migrationLog) createTableSQL() string {
	switch l.dialect {
	case DialectPostgres:
		return `CREATE TABLE IF NOT EXISTS migrations (
  id serial PRIMARY KEY,
  migration varchar(255) NOT NULL,
  batch integer NOT NULL
)`
	case DialectSQLite:
		return `CREATE TABLE IF NOT EXISTS "migrations" (
  "id" integer PRIMARY KEY AUTOINCREMENT NOT NULL,
  "migration" varchar NOT NULL,
  "batch" integer NOT NULL
)`
	default:
		return "CREATE TABLE IF NOT EXISTS `migrations` (\n" +
			"  `id` int unsigned NOT NULL AUTO_INCREMENT PRIMARY KEY,\n" +
			"  `migration` varchar(255) NOT NULL,\n" +
			"  `batch` int NOT NULL\n" +
			")"
	}
}

func (l migrationLog) ensureTable(ctx context.Context) error {
	if _, err := l.exec.Exec(ctx, l.createTableSQL()); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}
	return nil
}

// nextBatch returns one more than the highest recorded batch.
func (l migrationLog) nextBatch(ctx context.Context) (int, error) {
	query, args, err := sq.Select("COALESCE(MAX(batch), 0)").
		From(migrationsTable).
		PlaceholderFormat(l.placeholders()).
		ToSql()
	if err != nil {
		return 0, err
	}
	var last int
	if err := l.exec.QueryRow(ctx, query, args...).Scan(&last); err != nil {
		return 0, fmt.Errorf("read last batch: %w", err)
	}
	return last + 1, nil
}

// record inserts one row per migration name with the given batch.
func (l migrationLog) record(ctx context.Context, names []string, batch int) error {
	if len(names) == 0 {
		return nil
	}
	ins := sq.Insert(migrationsTable).Columns("migration", "batch")
	for _, n := range names {
		ins = ins.Values(n, batch)
	}
	query, args, err := ins.PlaceholderFormat(l.placeholders()).ToSql()
	if err != nil {
		return err
	}
	if _, err := l.exec.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert migrations: %w", err)
	}
	return nil
}

// logMigrations creates the migrations table if needed and records names.
// A nil batch means one past the highest recorded batch.
func logMigrations(ctx context.Context, exec migrationsExecutor, d Dialect, names []string, batch *int) (int, error) {
	l := migrationLog{exec: exec, dialect: d}
	if err := l.ensureTable(ctx); err != nil {
		return 0, err
	}
	var n int
	if batch != nil {
		n = *batch
	} else {
		next, err := l.nextBatch(ctx)
		if err != nil {
			return 0, err
		}
		n = next
	}
	if err := l.record(ctx, names, n); err != nil {
		return 0, err
	}
	log.Printf("logged %d migration(s) in batch %d", len(names), n)
	return n, nil
}

// confirmLogging asks whether the generated files should be recorded.
func confirmLogging(source string) (bool, error) {
	var ok bool
	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Log the generated migrations in the %s migrations table?", source)).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	).Run(); err != nil {
		return false, err
	}
	return ok, nil
}
