// Package db owns the connection pool and schema of the emargement store.
// All SQL stays explicit in the repository package; this package only adds
// placeholder rebinding, default timeouts, statement logging and a unified
// error vocabulary on top of database/sql.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect identifies the SQL flavour spoken by the underlying driver.
type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
)

// Config describes how to open the pool.
type Config struct {
	Dialect         Dialect
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// DefaultTimeout bounds statements whose context carries no deadline.
	DefaultTimeout time.Duration

	// SkipMigrations leaves the schema untouched on Open.
	SkipMigrations bool

	Logger *slog.Logger
}

// DB wraps *sql.DB with dialect-aware helpers.
type DB struct {
	sqldb   *sql.DB
	dialect Dialect
	timeout time.Duration
	log     *slog.Logger
}

// Open opens the pool described by cfg, verifies connectivity and applies
// pending migrations.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db: empty DSN")
	}
	switch cfg.Dialect {
	case SQLite, MySQL, Postgres:
	default:
		return nil, fmt.Errorf("db: unsupported dialect %q", cfg.Dialect)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sqldb, err := sql.Open(string(cfg.Dialect), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}
	if cfg.Dialect == SQLite {
		// a single writer avoids SQLITE_BUSY and keeps shared-cache memory databases consistent
		sqldb.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqldb.PingContext(pingCtx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}

	d := &DB{sqldb: sqldb, dialect: cfg.Dialect, timeout: cfg.DefaultTimeout, log: logger}
	if !cfg.SkipMigrations {
		if err := migrateUp(cfg, logger); err != nil {
			_ = sqldb.Close()
			return nil, err
		}
	}
	return d, nil
}

// Dialect reports the SQL flavour of the pool.
func (d *DB) Dialect() Dialect { return d.dialect }

// Raw exposes the underlying pool.
func (d *DB) Raw() *sql.DB { return d.sqldb }

// Close releases all pooled connections.
func (d *DB) Close() error { return d.sqldb.Close() }

// Ping checks that the store is reachable.
func (d *DB) Ping(ctx context.Context) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	return mapErr(d.sqldb.PingContext(ctx))
}

// Exec runs a statement that returns no rows.
func (d *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	query = d.rebind(query)
	start := time.Now()
	res, err := d.sqldb.ExecContext(ctx, query, args...)
	err = mapErr(err)
	d.trace(ctx, query, start, err)
	return res, err
}

// Select runs a statement that returns rows and calls scan once per row.
func (d *DB) Select(ctx context.Context, scan func(*sql.Rows) error, query string, args ...any) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	query = d.rebind(query)
	start := time.Now()
	rows, err := d.sqldb.QueryContext(ctx, query, args...)
	err = mapErr(err)
	d.trace(ctx, query, start, err)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return mapErr(rows.Err())
}

// QueryRow runs a statement expected to return at most one row and scans it
// into dest. sql.ErrNoRows is returned unchanged.
func (d *DB) QueryRow(ctx context.Context, dest []any, query string, args ...any) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	query = d.rebind(query)
	start := time.Now()
	err := d.sqldb.QueryRowContext(ctx, query, args...).Scan(dest...)
	if err != sql.ErrNoRows {
		err = mapErr(err)
	}
	d.trace(ctx, query, start, err)
	return err
}

// Insert runs an INSERT and returns the generated id.
func (d *DB) Insert(ctx context.Context, query string, args ...any) (int64, error) {
	if d.dialect == Postgres {
		var id int64
		if err := d.QueryRow(ctx, []any{&id}, query+" RETURNING id", args...); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := d.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (d *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.timeout)
}

func (d *DB) trace(ctx context.Context, query string, start time.Time, err error) {
	attrs := []any{
		slog.String("query", compact(query)),
		slog.Duration("duration", time.Since(start)),
	}
	if err != nil && err != sql.ErrNoRows {
		d.log.WarnContext(ctx, "db statement failed", append(attrs, slog.Any("error", err))...)
		return
	}
	d.log.DebugContext(ctx, "db statement", attrs...)
}

// rebind converts ? placeholders to $n for postgres, leaving quoted text alone.
func (d *DB) rebind(query string) string {
	if d.dialect != Postgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for _, r := range query {
		switch {
		case r == '\'':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func compact(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
