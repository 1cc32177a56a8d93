package catalog

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore searches the inventory in an embedded SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens path (":memory:" is allowed), creates the schema and,
// when seed is non-empty, replaces the table contents with it.
func OpenSQLite(ctx context.Context, path string, seed []Product) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps a :memory: database shared across queries.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS catalog_products (
			position INTEGER PRIMARY KEY,
			category TEXT NOT NULL DEFAULT '',
			subcategory TEXT NOT NULL DEFAULT '',
			gender TEXT NOT NULL DEFAULT '',
			product_name TEXT NOT NULL,
			brand TEXT NOT NULL DEFAULT '',
			price_text TEXT NOT NULL DEFAULT '',
			price_value REAL NOT NULL DEFAULT 0,
			short_description TEXT NOT NULL DEFAULT '',
			sku TEXT NOT NULL DEFAULT ''
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	if len(seed) > 0 {
		if err := s.replace(ctx, seed); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *SQLiteStore) replace(ctx context.Context, products []Product) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_products`); err != nil {
		return fmt.Errorf("clear catalog: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO catalog_products (position, `+productColumns+`, price_value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare seed: %w", err)
	}
	defer stmt.Close()

	for i, p := range products {
		if _, err := stmt.ExecContext(ctx, i, p.Category, p.Subcategory, p.Gender, p.Name, p.Brand, p.Price, p.ShortDescription, p.SKU, p.PriceValue()); err != nil {
			return fmt.Errorf("seed product %q: %w", p.SKU, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Search(ctx context.Context, f Filter) ([]Product, error) {
	query, args := searchQuery(sqliteDialect, f)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	out := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM catalog_products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count catalog: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
