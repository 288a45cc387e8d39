package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"emargement/internal/config"
)

func openMemory(t *testing.T, name string) *DB {
	t.Helper()
	d, err := Open(context.Background(), Config{
		Dialect: SQLite,
		DSN:     SQLiteDSN("file:" + name + "?mode=memory&cache=shared"),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestOpen_AppliesMigrations(t *testing.T) {
	d := openMemory(t, "db_migrations")
	ctx := context.Background()
	for _, table := range []string{"users", "sessions", "attendance"} {
		var n int
		err := d.QueryRow(ctx, []any{&n}, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
		if err != nil {
			t.Fatalf("lookup %s: %v", table, err)
		}
		if n != 1 {
			t.Fatalf("table %s missing after migrations", table)
		}
	}
	if err := d.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestOpen_RejectsBadConfig(t *testing.T) {
	if _, err := Open(context.Background(), Config{Dialect: SQLite}); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
	if _, err := Open(context.Background(), Config{Dialect: "oracle", DSN: "x"}); err == nil {
		t.Fatalf("expected error for unknown dialect")
	}
}

func TestInsertAndConstraintMapping(t *testing.T) {
	d := openMemory(t, "db_constraints")
	ctx := context.Background()

	id, err := d.Insert(ctx, `INSERT INTO users (name, email, password_hash, role) VALUES (?, ?, ?, ?)`,
		"Tom", "tom@x.com", "h", "trainer")
	if err != nil || id <= 0 {
		t.Fatalf("insert user: id=%d err=%v", id, err)
	}

	_, err = d.Insert(ctx, `INSERT INTO users (name, email, password_hash, role) VALUES (?, ?, ?, ?)`,
		"Tom again", "tom@x.com", "h", "trainer")
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	_, err = d.Insert(ctx, `INSERT INTO sessions (title, session_date, trainer_id) VALUES (?, ?, ?)`,
		"Go basics", "2024-01-15", 999)
	if !errors.Is(err, ErrForeignKey) {
		t.Fatalf("expected ErrForeignKey, got %v", err)
	}
}

func TestQueryRow_NoRowsPassesThrough(t *testing.T) {
	d := openMemory(t, "db_norows")
	var name string
	err := d.QueryRow(context.Background(), []any{&name}, `SELECT name FROM users WHERE id = ?`, 42)
	if err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestSelect_IteratesRows(t *testing.T) {
	d := openMemory(t, "db_select")
	ctx := context.Background()
	for _, e := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		if _, err := d.Insert(ctx, `INSERT INTO users (name, email, password_hash, role) VALUES (?, ?, ?, ?)`,
			"n", e, "h", "student"); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	var got []string
	err := d.Select(ctx, func(r *sql.Rows) error {
		var e string
		if err := r.Scan(&e); err != nil {
			return err
		}
		got = append(got, e)
		return nil
	}, `SELECT email FROM users ORDER BY email`)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if strings.Join(got, ",") != "a@x.com,b@x.com,c@x.com" {
		t.Fatalf("unexpected rows: %v", got)
	}
}

func TestRebind(t *testing.T) {
	pg := &DB{dialect: Postgres}
	got := pg.rebind(`SELECT * FROM t WHERE a = ? AND b = '?' AND c = ?`)
	want := `SELECT * FROM t WHERE a = $1 AND b = '?' AND c = $2`
	if got != want {
		t.Fatalf("rebind = %q, want %q", got, want)
	}
	lite := &DB{dialect: SQLite}
	if q := lite.rebind(`a = ?`); q != `a = ?` {
		t.Fatalf("sqlite query must be untouched, got %q", q)
	}
}

func TestDSNBuilders(t *testing.T) {
	if got := SQLiteDSN("app.db"); got != "file:app.db?_foreign_keys=on&_busy_timeout=5000" {
		t.Fatalf("sqlite dsn = %q", got)
	}
	if got := SQLiteDSN("file:x?mode=memory"); got != "file:x?mode=memory&_foreign_keys=on&_busy_timeout=5000" {
		t.Fatalf("sqlite uri dsn = %q", got)
	}

	c := config.DatabaseConfig{Driver: "mysql", Host: "db", User: "admin", Password: "pw", Name: "api"}
	my := MySQLDSN(c)
	if !strings.HasPrefix(my, "admin:pw@tcp(db:3306)/api?") {
		t.Fatalf("mysql dsn = %q", my)
	}
	if !strings.Contains(my, "clientFoundRows=true") || !strings.Contains(my, "parseTime=true") {
		t.Fatalf("mysql dsn missing options: %q", my)
	}

	pq := PostgresDSN(config.DatabaseConfig{Host: "pg", Port: 6543, User: "u", Password: "p", Name: "api"})
	if pq != "postgres://u:p@pg:6543/api?sslmode=disable" {
		t.Fatalf("postgres dsn = %q", pq)
	}

	if _, err := FromConfig(config.DatabaseConfig{Driver: "oracle"}); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
	cfg, err := FromConfig(config.DatabaseConfig{Driver: "sqlite3", Path: "t.db", MaxOpenConns: 4})
	if err != nil || cfg.Dialect != SQLite || cfg.DefaultTimeout == 0 {
		t.Fatalf("FromConfig: %+v err=%v", cfg, err)
	}
}

func TestRollbackAndVersion(t *testing.T) {
	cfg := Config{
		Dialect: SQLite,
		DSN:     SQLiteDSN("file:db_rollback?mode=memory&cache=shared"),
	}
	d, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	v, dirty, err := SchemaVersion(cfg)
	if err != nil || dirty || v != 2 {
		t.Fatalf("version before rollback: v=%d dirty=%v err=%v", v, dirty, err)
	}

	if err := Rollback(cfg, 1); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	var n int
	if err := d.QueryRow(context.Background(), []any{&n},
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'attendance'`); err != nil {
		t.Fatalf("lookup attendance: %v", err)
	}
	if n != 0 {
		t.Fatalf("attendance table still present after rollback")
	}
	if v, _, err := SchemaVersion(cfg); err != nil || v != 1 {
		t.Fatalf("version after rollback: v=%d err=%v", v, err)
	}

	if err := MigrateUp(cfg); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	if v, _, _ := SchemaVersion(cfg); v != 2 {
		t.Fatalf("version after re-apply: %d", v)
	}
	if err := Rollback(cfg, 0); err == nil {
		t.Fatalf("expected error for zero steps")
	}
}
