package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore searches the inventory in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects, creates the schema and, when seed is non-empty,
// replaces the table contents with it.
func NewPostgresStore(ctx context.Context, databaseURL string, seed []Product) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if len(seed) > 0 {
		if err := s.replace(ctx, seed); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS catalog_products (
			position INTEGER PRIMARY KEY,
			category TEXT NOT NULL DEFAULT '',
			subcategory TEXT NOT NULL DEFAULT '',
			gender TEXT NOT NULL DEFAULT '',
			product_name TEXT NOT NULL,
			brand TEXT NOT NULL DEFAULT '',
			price_text TEXT NOT NULL DEFAULT '',
			price_value DOUBLE PRECISION NOT NULL DEFAULT 0,
			short_description TEXT NOT NULL DEFAULT '',
			sku TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_catalog_products_price ON catalog_products (price_value);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) replace(ctx context.Context, products []Product) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM catalog_products`); err != nil {
		return fmt.Errorf("clear catalog: %w", err)
	}
	rows := make([][]any, len(products))
	for i, p := range products {
		rows[i] = []any{i, p.Category, p.Subcategory, p.Gender, p.Name, p.Brand, p.Price, p.PriceValue(), p.ShortDescription, p.SKU}
	}
	columns := []string{"position", "category", "subcategory", "gender", "product_name", "brand", "price_text", "price_value", "short_description", "sku"}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"catalog_products"}, columns, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}

func (s *PostgresStore) Search(ctx context.Context, f Filter) ([]Product, error) {
	query, args := searchQuery(postgresDialect, f)
	rows, err := s.pool.Query(ctx, query, args...)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM catalog_products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count catalog: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
