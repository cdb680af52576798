package db

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SchemaVersion is the migration version this build expects.
const SchemaVersion = 1

// MigrateUp applies all pending migrations to the database at path.
// It opens and closes its own connection because golang-migrate takes
// ownership of the connection it is given.
func MigrateUp(path string) error {
	return withMigrator(path, func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
		return nil
	})
}

// MigrateDown rolls back steps migrations. Pass -1 to roll back everything.
func MigrateDown(path string, steps int) error {
	return withMigrator(path, func(m *migrate.Migrate) error {
		var err error
		if steps == -1 {
			err = m.Down()
		} else {
			err = m.Steps(-steps)
		}
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to roll back migrations: %w", err)
		}
		return nil
	})
}

// MigrationVersion returns the applied version and dirty flag.
// A database with no migrations applied reports version 0.
func MigrationVersion(path string) (version uint, dirty bool, err error) {
	err = withMigrator(path, func(m *migrate.Migrate) error {
		v, d, verr := m.Version()
		if verr != nil {
			if errors.Is(verr, migrate.ErrNilVersion) {
				return nil
			}
			return fmt.Errorf("failed to get migration version: %w", verr)
		}
		version, dirty = v, d
		return nil
	})
	return version, dirty, err
}

func withMigrator(path string, fn func(*migrate.Migrate) error) error {
	conn, err := NewSQLiteConnection(DefaultConnectionConfig(path))
	if err != nil {
		return err
	}

	driver, err := sqlite.WithInstance(conn, &sqlite.Config{DatabaseName: "main"})
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// Closes the source and the connection.
	defer m.Close()

	return fn(m)
}
