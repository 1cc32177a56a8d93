package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var ErrMissingColumn = errors.New("inventory csv missing column")

// ReadCSV parses an inventory file with a header row. Columns are matched
// by header name; short rows leave the missing fields blank.
func ReadCSV(r io.Reader) ([]Product, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read inventory header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	if _, ok := col["Product Name"]; !ok {
		return nil, fmt.Errorf("%w: Product Name", ErrMissingColumn)
	}

	var products []Product
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read inventory row %d: %w", len(products)+2, err)
		}
		field := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		products = append(products, Product{
			Category:         field("Category"),
			Subcategory:      field("Subcategory"),
			Gender:           field("Gender"),
			Name:             field("Product Name"),
			Brand:            field("Brand"),
			Price:            field("Price (AUD)"),
			ShortDescription: field("Short Description"),
			SKU:              field("SKU"),
		})
	}
	return products, nil
}

func LoadCSV(path string) ([]Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open inventory: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}
