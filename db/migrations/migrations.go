package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed sqlite/*.sql postgres/*.sql
var embedded embed.FS

func provider(db *sql.DB, driver string) (*goose.Provider, error) {
	var (
		dialect goose.Dialect
		dir     string
	)
	switch driver {
	case "sqlite":
		dialect, dir = goose.DialectSQLite3, "sqlite"
	case "postgres":
		dialect, dir = goose.DialectPostgres, "postgres"
	default:
		return nil, fmt.Errorf("no migrations for driver %q", driver)
	}
	fsys, err := fs.Sub(embedded, dir)
	if err != nil {
		return nil, err
	}
	return goose.NewProvider(dialect, db, fsys)
}

// Run applies every pending migration for the given driver.
func Run(ctx context.Context, db *sql.DB, driver string, log *zap.Logger) error {
	p, err := provider(db, driver)
	if err != nil {
		return err
	}
	results, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	for _, r := range results {
		log.Info("migration applied",
			zap.Int64("version", r.Source.Version),
			zap.String("file", r.Source.Path),
			zap.Duration("took", r.Duration))
	}
	return nil
}

// Down rolls back the most recent migration.
func Down(ctx context.Context, db *sql.DB, driver string, log *zap.Logger) error {
	p, err := provider(db, driver)
	if err != nil {
		return err
	}
	r, err := p.Down(ctx)
	if err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	log.Info("migration rolled back", zap.Int64("version", r.Source.Version), zap.String("file", r.Source.Path))
	return nil
}

// Status describes one migration and whether it is applied.
type Status struct {
	Version int64
	File    string
	Applied bool
}

func List(ctx context.Context, db *sql.DB, driver string) ([]Status, error) {
	p, err := provider(db, driver)
	if err != nil {
		return nil, err
	}
	statuses, err := p.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate status: %w", err)
	}
	out := make([]Status, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, Status{
			Version: s.Source.Version,
			File:    s.Source.Path,
			Applied: s.State == goose.StateApplied,
		})
	}
	return out, nil
}
