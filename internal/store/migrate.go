package store

import (
	"embed"
	"errors"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*
var migrationFS embed.FS

// Migrate applies all pending schema migrations.
func Migrate(databaseURL string) error {
	migrationDir, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return err
	}

	// The migrate pgx/v5 driver registers under its own scheme.
	if strings.HasPrefix(databaseURL, "postgres://") {
		databaseURL = "pgx5://" + strings.TrimPrefix(databaseURL, "postgres://")
	}

	migration, err := migrate.NewWithSourceInstance("iofs", migrationDir, databaseURL)
	if err != nil {
		return err
	}

	if err := migration.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
