package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"emargement/internal/config"
	"emargement/internal/db"
)

func main() {
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadWithDefaults()
	if err != nil {
		fatalf("load config: %v", err)
	}
	dbCfg, err := db.FromConfig(cfg.Database)
	if err != nil {
		fatalf("database config: %v", err)
	}
	dbCfg.Logger = logger

	switch args[0] {
	case "up":
		if err := db.MigrateUp(dbCfg); err != nil {
			fatalf("up failed: %v", err)
		}
		logger.Info("migrations: up completed")

	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				fatalf("down: invalid steps argument %q", args[1])
			}
			steps = n
		}
		if err := db.Rollback(dbCfg, steps); err != nil {
			fatalf("down failed: %v", err)
		}
		logger.Info("migrations: down completed", "steps", steps)

	case "version":
		v, dirty, err := db.SchemaVersion(dbCfg)
		if err != nil {
			fatalf("version failed: %v", err)
		}
		fmt.Printf("version: %d  dirty: %v\n", v, dirty)

	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: migrate <command> [args]

Commands:
  up         Apply all pending migrations
  down [N]   Roll back N migrations (default: 1)
  version    Print the applied migration version

The database is selected with the same DB_* variables as the server.`)
}

func fatalf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}
