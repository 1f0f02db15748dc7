package app

import (
	"errors"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/stdlib"

	"taskboard/internal/config"
)

// MustRunMigrations applies pending SQL migrations against the already
// connected postgres pool. The schema history is additive only.
func MustRunMigrations() {
	cfg := config.Global().Postgres

	sqlDB := stdlib.OpenDBFromPool(globalPostgresPool)
	defer func() { _ = sqlDB.Close() }()

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{
		DatabaseName: cfg.Database,
	})
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to create migration driver")
		panic(err)
	}

	m, err := migrate.NewWithDatabaseInstance(cfg.MigrationsPath, cfg.Database, driver)
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to create migration instance")
		panic(err)
	}

	err = m.Up()
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			globalLogger.Info().Msg("database schema is up to date")
			return
		}

		globalLogger.Error().
			Err(err).
			Msg("failed to run migrations")
		panic(err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to get migration version")
		panic(err)
	}
	globalLogger.Info().
		Uint("version", version).
		Bool("dirty", dirty).
		Msg("applied migrations")
}
