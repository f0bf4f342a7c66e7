package repository

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrations embed.FS

// Migrate applies every pending up migration for cfg.Driver. It opens its own connection so
// the migrator can close it when done.
func Migrate(cfg Config, logger *slog.Logger) error {
	m, err := newMigrator(cfg)
	if err != nil {
		return err
	}
	defer closeMigrator(m, logger)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	v, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("migration version: %w", err)
	}
	logger.Info("database migrated", "driver", cfg.Driver, "version", v, "dirty", dirty)
	return nil
}

// MigrateDown reverts every migration.
func MigrateDown(cfg Config, logger *slog.Logger) error {
	m, err := newMigrator(cfg)
	if err != nil {
		return err
	}
	defer closeMigrator(m, logger)

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	logger.Info("database migrations reverted", "driver", cfg.Driver)
	return nil
}

func newMigrator(cfg Config) (*migrate.Migrate, error) {
	var (
		driverName string
		sqlDriver  string
		dir        string
	)
	switch cfg.Driver {
	case DriverPostgres:
		driverName, sqlDriver, dir = "pgx5", "pgx", "migrations/postgres"
	case DriverSQLite, "":
		driverName, sqlDriver, dir = "sqlite", "sqlite", "migrations/sqlite"
	default:
		return nil, fmt.Errorf("unknown driver %q", cfg.Driver)
	}

	src, err := iofs.New(migrations, dir)
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}
	db, err := sql.Open(sqlDriver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open migration connection: %w", err)
	}

	var drv database.Driver
	if driverName == "pgx5" {
		drv, err = pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	} else {
		drv, err = sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driverName, drv)
	if err != nil {
		_ = drv.Close()
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

func closeMigrator(m *migrate.Migrate, logger *slog.Logger) {
	srcErr, dbErr := m.Close()
	if srcErr != nil || dbErr != nil {
		logger.Warn("failed to close migrator", "source_error", srcErr, "db_error", dbErr)
	}
}
