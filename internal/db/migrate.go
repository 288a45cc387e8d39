package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Versioned scripts live under migrations/<dialect>/NNNN_name.{up,down}.sql.
//
//go:embed migrations/*/*.sql
var migrationsFS embed.FS

// migrateUp applies pending migrations on a dedicated handle. migrate closes
// the handle it is given, so the caller's pool is never shared with it.
func migrateUp(cfg Config, logger *slog.Logger) error {
	m, err := newMigrator(cfg, logger)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("db: migrate up: %w", err)
	}
	v, _, _ := m.Version()
	logger.Info("schema up to date", "dialect", string(cfg.Dialect), "version", v)
	return nil
}

// Rollback reverts the last steps applied migrations.
func Rollback(cfg Config, steps int) error {
	if steps < 1 {
		return fmt.Errorf("db: rollback steps must be positive, got %d", steps)
	}
	m, err := newMigrator(cfg, loggerOf(cfg))
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("db: migrate down: %w", err)
	}
	return nil
}

// SchemaVersion reports the applied migration version. A schema with no
// migrations yet reports version 0.
func SchemaVersion(cfg Config) (version uint, dirty bool, err error) {
	m, err := newMigrator(cfg, loggerOf(cfg))
	if err != nil {
		return 0, false, err
	}
	defer m.Close()
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// MigrateUp applies pending migrations without keeping a pool open.
func MigrateUp(cfg Config) error {
	return migrateUp(cfg, loggerOf(cfg))
}

func loggerOf(cfg Config) *slog.Logger {
	if cfg.Logger == nil {
		return slog.Default()
	}
	return cfg.Logger
}

func newMigrator(cfg Config, logger *slog.Logger) (*migrate.Migrate, error) {
	dsn := cfg.DSN
	if cfg.Dialect == MySQL {
		mc, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("db: parse mysql dsn: %w", err)
		}
		mc.MultiStatements = true
		dsn = mc.FormatDSN()
	}

	handle, err := sql.Open(string(cfg.Dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("db: open migration handle: %w", err)
	}

	var drv database.Driver
	switch cfg.Dialect {
	case SQLite:
		drv, err = migratesqlite.WithInstance(handle, &migratesqlite.Config{})
	case MySQL:
		drv, err = migratemysql.WithInstance(handle, &migratemysql.Config{})
	case Postgres:
		drv, err = migratepg.WithInstance(handle, &migratepg.Config{})
	default:
		err = fmt.Errorf("unsupported dialect %q", cfg.Dialect)
	}
	if err != nil {
		_ = handle.Close()
		return nil, fmt.Errorf("db: migration driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations/"+string(cfg.Dialect))
	if err != nil {
		_ = drv.Close()
		return nil, fmt.Errorf("db: migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, string(cfg.Dialect), drv)
	if err != nil {
		_ = drv.Close()
		return nil, fmt.Errorf("db: migrator: %w", err)
	}
	m.Log = migrateLogger{logger}
	return m, nil
}

// migrateLogger adapts slog to migrate.Logger.
type migrateLogger struct{ l *slog.Logger }

func (m migrateLogger) Printf(format string, v ...any) {
	m.l.Debug(fmt.Sprintf(format, v...))
}

func (m migrateLogger) Verbose() bool { return false }
