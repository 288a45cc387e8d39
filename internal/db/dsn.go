package db

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"emargement/internal/config"
)

// FromConfig builds an Open configuration from the environment settings.
func FromConfig(c config.DatabaseConfig) (Config, error) {
	cfg := Config{
		Dialect:         Dialect(c.Driver),
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxOpenConns / 2,
		ConnMaxLifetime: 30 * time.Minute,
		DefaultTimeout:  3 * time.Second,
	}
	switch cfg.Dialect {
	case SQLite:
		cfg.DSN = SQLiteDSN(c.Path)
	case MySQL:
		cfg.DSN = MySQLDSN(c)
	case Postgres:
		cfg.DSN = PostgresDSN(c)
	default:
		return Config{}, fmt.Errorf("db: unsupported driver %q", c.Driver)
	}
	return cfg, nil
}

// SQLiteDSN turns a file path (or an existing file: URI) into a DSN with
// foreign keys and a busy timeout enabled.
func SQLiteDSN(path string) string {
	if path == "" {
		path = "app.db"
	}
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_busy_timeout=5000"
}

// MySQLDSN formats a go-sql-driver DSN. ClientFoundRows makes UPDATE report
// matched rows, so an update that changes nothing is still distinguishable
// from a missing row.
func MySQLDSN(c config.DatabaseConfig) string {
	port := c.Port
	if port == 0 {
		port = 3306
	}
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(port))
	mc.DBName = c.Name
	mc.ParseTime = true
	mc.ClientFoundRows = true
	return mc.FormatDSN()
}

// PostgresDSN formats a lib/pq connection URL.
func PostgresDSN(c config.DatabaseConfig) string {
	port := c.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(port)),
		Path:     "/" + c.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}
