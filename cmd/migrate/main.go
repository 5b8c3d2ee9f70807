package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/config"
	"github.com/saturnino-fabrica-de-software/idphoto/internal/database"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Flags
	action := flag.String("action", "up", "Migration action: up, down, version, status, force")
	steps := flag.Int("steps", 0, "Target version (for force action)")
	dbName := flag.String("db", "", "Database name reported by the migrator (default: taken from DATABASE_URL)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	logger := config.NewLogger(cfg, "idphoto-migrate")

	name := *dbName
	if name == "" {
		name, err = databaseName(cfg.DatabaseURL)
		if err != nil {
			return err
		}
	}

	// golang-migrate needs database/sql
	db, err := database.NewSQLDB(database.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	logger.Info("connected to database", "database", name)

	migrator, err := database.NewMigrator(db, name, database.WithMigrationLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() { _ = migrator.Close() }()

	switch *action {
	case "up":
		if err := migrator.Up(); err != nil {
			return fmt.Errorf("migration up failed: %w", err)
		}

	case "down":
		if err := migrator.Down(); err != nil {
			return fmt.Errorf("migration down failed: %w", err)
		}
		logger.Info("last migration rolled back")

	case "version", "status":
		status, err := migrator.Status()
		if err != nil {
			return fmt.Errorf("failed to get version: %w", err)
		}
		logger.Info("profile schema status",
			"current", status.Current,
			"latest", status.Latest,
			"pending", status.Pending(),
			"dirty", status.Dirty,
		)

	case "force":
		if *steps == 0 {
			return fmt.Errorf("steps flag is required for force action")
		}
		if err := migrator.Force(*steps); err != nil {
			return fmt.Errorf("force migration failed: %w", err)
		}
		logger.Warn("migration version forced", "version", *steps)

	default:
		return fmt.Errorf("invalid action: %s (use: up, down, version, status, force)", *action)
	}

	return nil
}

// databaseName extracts the database from a postgres:// URL
func databaseName(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	name := strings.TrimPrefix(u.Path, "/")
	if name == "" {
		return "", fmt.Errorf("DATABASE_URL has no database name; pass -db")
	}
	return name, nil
}
