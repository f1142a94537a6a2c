package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// loadMigrations discovers <version>_<name>.[tx.]up.sql / .down.sql files at
// the root of fsys. Statements inside a file are separated by --bun:split.
func loadMigrations(fsys fs.FS) (*migrate.Migrations, error) {
	migs := migrate.NewMigrations()
	if err := migs.Discover(fsys); err != nil {
		return nil, fmt.Errorf("discover migrations: %w", err)
	}
	return migs, nil
}

func embeddedMigrations() (*migrate.Migrations, error) {
	sub, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return nil, err
	}
	return loadMigrations(sub)
}

// Migrate applies every embedded migration that has not run yet and returns
// the names of the ones it applied. A concurrent run fails fast on the
// migration lock instead of waiting.
func Migrate(ctx context.Context, db *bun.DB, log *slog.Logger) ([]string, error) {
	migs, err := embeddedMigrations()
	if err != nil {
		return nil, err
	}

	m := migrate.NewMigrator(db, migs,
		migrate.WithTableName("schema_migrations"),
		migrate.WithLocksTableName("schema_migration_locks"),
		migrate.WithMarkAppliedOnSuccess(true),
	)
	if err := m.Init(ctx); err != nil {
		return nil, fmt.Errorf("init migrations: %w", err)
	}
	if err := m.Lock(ctx); err != nil {
		return nil, fmt.Errorf("lock migrations: %w", err)
	}
	defer func() {
		if err := m.Unlock(ctx); err != nil {
			log.Warn("unlock migrations failed", slog.Any("err", err))
		}
	}()

	group, err := m.Migrate(ctx)
	if err != nil {
		return nil, err
	}
	if group.IsZero() {
		return nil, nil
	}

	applied := make([]string, 0, len(group.Migrations))
	for _, mig := range group.Migrations {
		applied = append(applied, mig.String())
		log.Info("migration applied", slog.String("version", mig.String()), slog.Int64("group", group.ID))
	}
	return applied, nil
}
