package catalog

import (
	"fmt"
	"strings"
)

const productColumns = `category, subcategory, gender, product_name, brand, price_text, short_description, sku`

// dialect describes the SQL differences between the catalog backends.
type dialect struct {
	placeholder func(n int) string
	// position returns an expression that is > 0 when needle occurs in haystack.
	position func(haystack, needle string) string
}

var postgresDialect = dialect{
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	position:    func(h, n string) string { return fmt.Sprintf("strpos(%s, %s)", h, n) },
}

var sqliteDialect = dialect{
	placeholder: func(int) string { return "?" },
	position:    func(h, n string) string { return fmt.Sprintf("instr(%s, %s)", h, n) },
}

// searchQuery renders f as a SELECT over catalog_products that applies the
// same rules as Match.
func searchQuery(d dialect, f Filter) (string, []any) {
	name, sub, brand, desc := f.Terms()
	var (
		where []string
		args  []any
	)
	bind := func(v any) string {
		args = append(args, v)
		return d.placeholder(len(args))
	}
	for _, c := range []struct{ column, value string }{
		{"product_name", name},
		{"subcategory", sub},
		{"brand", brand},
		{"short_description", desc},
	} {
		if c.value == "" {
			continue
		}
		where = append(where, d.position("lower("+c.column+")", bind(c.value))+" > 0")
	}
	if lo, hi, ok := f.Bounds(); ok {
		where = append(where, "price_value >= "+bind(lo), "price_value <= "+bind(hi))
	}

	var b strings.Builder
	b.WriteString("SELECT " + productColumns + " FROM catalog_products")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY position ASC")
	return b.String(), args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (Product, error) {
	var p Product
	err := row.Scan(&p.Category, &p.Subcategory, &p.Gender, &p.Name, &p.Brand, &p.Price, &p.ShortDescription, &p.SKU)
	return p, err
}
