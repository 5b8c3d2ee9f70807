package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SchemaStatus compares the database schema with the migrations shipped in
// the binary.
type SchemaStatus struct {
	Current uint `json:"current"`
	Latest  uint `json:"latest"`
	Dirty   bool `json:"dirty"`
}

// Pending reports whether the profile tables lag behind the binary.
func (s SchemaStatus) Pending() bool {
	return s.Current < s.Latest
}

// Migrator applies the profile schema migrations
type Migrator struct {
	m      *migrate.Migrate
	logger *slog.Logger
}

type MigratorOption func(*Migrator)

// WithMigrationLogger routes golang-migrate's own output through logger.
func WithMigrationLogger(logger *slog.Logger) MigratorOption {
	return func(m *Migrator) {
		if logger != nil {
			m.logger = logger.With("component", "migrator")
		}
	}
}

// NewMigrator creates a migrator over the embedded migrations
func NewMigrator(db *sql.DB, dbName string, opts ...MigratorOption) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{
		DatabaseName: dbName,
	})
	if err != nil {
		return nil, fmt.Errorf("create postgres driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, dbName, driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}

	mg := &Migrator{
		m:      m,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(mg)
	}
	m.Log = migrateLogger{logger: mg.logger}

	return mg, nil
}

// Up runs all pending migrations and logs the version change
func (m *Migrator) Up() error {
	from, _, err := m.Version()
	if err != nil {
		return err
	}

	err = m.m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Info("profile schema up to date", "version", from)
		return nil
	}
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	to, _, err := m.Version()
	if err != nil {
		return err
	}
	m.logger.Info("profile schema migrated", "from", from, "to", to)
	return nil
}

// Down rolls back the last migration (DEV ONLY)
func (m *Migrator) Down() error {
	if err := m.m.Steps(-1); err != nil {
		return fmt.Errorf("rollback migration: %w", err)
	}
	return nil
}

// Version returns current migration version
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get version: %w", err)
	}
	return version, dirty, nil
}

// Status reports the applied version next to the newest embedded one
func (m *Migrator) Status() (SchemaStatus, error) {
	current, dirty, err := m.Version()
	if err != nil {
		return SchemaStatus{}, err
	}
	latest, err := LatestVersion()
	if err != nil {
		return SchemaStatus{}, err
	}
	return SchemaStatus{Current: current, Latest: latest, Dirty: dirty}, nil
}

// Force sets the migration version without running migrations (DANGEROUS)
func (m *Migrator) Force(version int) error {
	if err := m.m.Force(version); err != nil {
		return fmt.Errorf("force version: %w", err)
	}
	return nil
}

// Close closes the migrator
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	if srcErr != nil {
		return fmt.Errorf("close source: %w", srcErr)
	}
	if dbErr != nil {
		return fmt.Errorf("close database: %w", dbErr)
	}
	return nil
}

// LatestVersion walks the embedded migrations and returns the highest version
func LatestVersion() (uint, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("create migration source: %w", err)
	}
	defer func() { _ = src.Close() }()

	v, err := src.First()
	if err != nil {
		return 0, fmt.Errorf("first migration: %w", err)
	}
	for {
		next, err := src.Next(v)
		if errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		if err != nil {
			return 0, fmt.Errorf("next migration after %d: %w", v, err)
		}
		v = next
	}
}

// migrateLogger adapts slog to golang-migrate's Logger
type migrateLogger struct {
	logger *slog.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

func (l migrateLogger) Verbose() bool {
	return false
}
