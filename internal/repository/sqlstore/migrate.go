package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"invoiceocr/db/migrations"
	"invoiceocr/internal/config"
)

// NewMigrator returns a golang-migrate instance over the embedded migrations
// for cfg.Driver. It owns a dedicated connection that Close releases, so it
// never closes the application's pool.
func NewMigrator(cfg *config.DBConfig) (*migrate.Migrate, error) {
	driverName, err := DriverName(cfg.Driver)
	if err != nil {
		return nil, err
	}

	src, err := iofs.New(migrations.FS, cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("sqlstore.NewMigrator: source: %w", err)
	}

	db, err := sql.Open(driverName, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("sqlstore.NewMigrator: open: %w", err)
	}

	var target database.Driver
	switch cfg.Driver {
	case config.DriverSQLite:
		target, err = sqlite.WithInstance(db, &sqlite.Config{})
	default:
		target, err = postgres.WithInstance(db, &postgres.Config{})
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore.NewMigrator: database: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, cfg.Driver, target)
	if err != nil {
		_ = target.Close()
		return nil, fmt.Errorf("sqlstore.NewMigrator: %w", err)
	}
	return m, nil
}

// Migrate applies every pending up migration.
func Migrate(cfg *config.DBConfig) error {
	m, err := NewMigrator(cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("sqlstore.Migrate: %w", err)
	}
	return nil
}
