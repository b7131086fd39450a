package postgres

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

func migrationSource() (source.Driver, error) {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	return src, nil
}

func newMigrator(dsn string) (*migrate.Migrate, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database dsn not configured")
	}
	src, err := migrationSource()
	if err != nil {
		return nil, err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect migrator: %w", err)
	}
	return m, nil
}

func closeMigrator(m *migrate.Migrate) {
	_, _ = m.Close()
}

// MigrateUp applies every pending migration and returns the resulting version.
func MigrateUp(dsn string) (uint, error) {
	m, err := newMigrator(dsn)
	if err != nil {
		return 0, err
	}
	defer closeMigrator(m)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrate up: %w", err)
	}
	return version(m)
}

// MigrateDown rolls back steps migrations.
func MigrateDown(dsn string, steps int) (uint, error) {
	if steps <= 0 {
		return 0, fmt.Errorf("steps must be positive")
	}
	m, err := newMigrator(dsn)
	if err != nil {
		return 0, err
	}
	defer closeMigrator(m)

	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrate down: %w", err)
	}
	return version(m)
}

func version(m *migrate.Migrate) (uint, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read migration version: %w", err)
	}
	if dirty {
		return v, fmt.Errorf("database is dirty at version %d", v)
	}
	return v, nil
}

// MigrationVersions lists the embedded migration versions in order.
func MigrationVersions() ([]uint, error) {
	src, err := migrationSource()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	v, err := src.First()
	if err != nil {
		return nil, fmt.Errorf("first migration: %w", err)
	}
	versions := []uint{v}
	for {
		next, err := src.Next(v)
		if errors.Is(err, fs.ErrNotExist) {
			return versions, nil
		}
		if err != nil {
			return nil, fmt.Errorf("next migration after %d: %w", v, err)
		}
		versions = append(versions, next)
		v = next
	}
}
