package storage

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// runMigrations applies every pending schema migration to db, grounded on
// Koopa0-koopa/db/migrate.go's iofs-over-embed.FS pattern, adapted from Postgres/pgx to
// SQLite's golang-migrate driver.
func runMigrations(db *dbHandle, log *zap.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("storage: create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(db.sql, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("storage: create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("storage: create migrate instance: %w", err)
	}
	// m.Close would also close the sqlite3 driver and with it db.sql, which the Store keeps
	// using after migrations; only the migration source is released here.
	defer func() {
		if srcErr := source.Close(); srcErr != nil {
			log.Warn("failed to close migration source", zap.Error(srcErr))
		}
	}()

	version, dirty, verErr := m.Version()
	if verErr != nil && !errors.Is(verErr, migrate.ErrNilVersion) {
		return fmt.Errorf("storage: check migration version: %w", verErr)
	}
	if dirty {
		return fmt.Errorf("storage: database in dirty migration state (version=%d), manual cleanup required", version)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("storage: run migrations: %w", err)
	}

	finalVersion, finalDirty, _ := m.Version()
	log.Info("migrations completed", zap.Uint("version", finalVersion), zap.Bool("dirty", finalDirty))
	return nil
}
