package catalog

import "context"

// MemoryStore searches a fixed product list in file order.
type MemoryStore struct {
	products []Product
}

func NewMemoryStore(products []Product) *MemoryStore {
	return &MemoryStore{products: append([]Product(nil), products...)}
}

func (s *MemoryStore) Search(_ context.Context, f Filter) ([]Product, error) {
	out := make([]Product, 0)
	for _, p := range s.products {
		if Match(f, p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemoryStore) Count(context.Context) (int, error) { return len(s.products), nil }

func (s *MemoryStore) Close() error { return nil }
