package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations
var migrations embed.FS

func dialect(driver string) (goose.Dialect, error) {
	switch driver {
	case DriverMySQL, "":
		return goose.DialectMySQL, nil
	case DriverPostgres:
		return goose.DialectPostgres, nil
	case DriverSQLite:
		return goose.DialectSQLite3, nil
	default:
		return "", fmt.Errorf("no migrations for driver %q", driver)
	}
}

// Migrate applies the embedded schema migrations for driver and returns
// the versions it applied.
func Migrate(ctx context.Context, db *sql.DB, driver string, logger *slog.Logger) ([]int64, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d, err := dialect(driver)
	if err != nil {
		return nil, err
	}
	name := driver
	if name == "" {
		name = DriverMySQL
	}
	fsys, err := fs.Sub(migrations, "migrations/"+name)
	if err != nil {
		return nil, fmt.Errorf("migrations for %s: %w", name, err)
	}

	provider, err := goose.NewProvider(d, db, fsys, goose.WithSlog(logger))
	if err != nil {
		return nil, fmt.Errorf("create migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	applied := make([]int64, 0, len(results))
	for _, r := range results {
		applied = append(applied, r.Source.Version)
		logger.Info("migration applied",
			slog.Int64("version", r.Source.Version),
			slog.Duration("duration", r.Duration))
	}
	return applied, nil
}
