package catalog

import (
	"context"
	"fmt"
)

// Options select and seed a catalog backend.
type Options struct {
	Backend     string
	CSVPath     string
	DatabaseURL string
	SQLitePath  string
}

// Open loads the inventory CSV and returns the configured store seeded
// with it. The csv backend serves the file from memory.
func Open(ctx context.Context, opts Options) (Store, error) {
	products, err := LoadCSV(opts.CSVPath)
	if err != nil {
		return nil, err
	}
	switch opts.Backend {
	case "", "csv":
		return NewMemoryStore(products), nil
	case "postgres":
		return NewPostgresStore(ctx, opts.DatabaseURL, products)
	case "sqlite":
		return OpenSQLite(ctx, opts.SQLitePath, products)
	default:
		return nil, fmt.Errorf("unknown catalog backend %q", opts.Backend)
	}
}
