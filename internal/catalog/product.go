// Package catalog holds the product inventory the shopping assistant
// recommends from, and the stores that search it.
package catalog

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Product is one inventory row. JSON names follow the inventory CSV columns
// because the assistant reads them verbatim.
type Product struct {
	Category         string `json:"Category"`
	Subcategory      string `json:"Subcategory"`
	Gender           string `json:"Gender"`
	Name             string `json:"Product Name"`
	Brand            string `json:"Brand"`
	Price            string `json:"Price (AUD)"`
	ShortDescription string `json:"Short Description"`
	SKU              string `json:"SKU"`
}

var nonNumeric = regexp.MustCompile(`[^0-9.\-]+`)

// PriceValue parses Price by dropping currency symbols and separators.
// Unparseable prices count as zero.
func (p Product) PriceValue() float64 {
	v, err := strconv.ParseFloat(nonNumeric.ReplaceAllString(p.Price, ""), 64)
	if err != nil {
		return 0
	}
	return v
}

// Store searches the inventory.
type Store interface {
	Search(ctx context.Context, f Filter) ([]Product, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

const anyValue = "any"

// PriceRange is an inclusive bound. Only numeric JSON values are kept; a
// string or missing bound leaves the range open.
type PriceRange struct {
	Min *float64
	Max *float64
}

func (r *PriceRange) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		// Anything but an object disables the range.
		*r = PriceRange{}
		return nil
	}
	r.Min = number(raw["min"])
	r.Max = number(raw["max"])
	return nil
}

func (r PriceRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Min *float64 `json:"min,omitempty"`
		Max *float64 `json:"max,omitempty"`
	}{r.Min, r.Max})
}

func number(v any) *float64 {
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	return &f
}

// Filter is the lookupInventory argument object. Empty or "any" fields do
// not constrain the search.
type Filter struct {
	ProductName      string      `json:"productName"`
	SubCategory      string      `json:"subCategory"`
	Brand            string      `json:"brand"`
	PriceRange       *PriceRange `json:"priceRange,omitempty"`
	ShortDescription string      `json:"shortDescription"`
}

// Terms returns the lowercased text constraints, blank where unconstrained.
func (f Filter) Terms() (name, subcategory, brand, description string) {
	return term(f.ProductName), term(f.SubCategory), term(f.Brand), term(f.ShortDescription)
}

// Bounds reports the price range when both ends are numbers.
func (f Filter) Bounds() (lo, hi float64, ok bool) {
	if f.PriceRange == nil || f.PriceRange.Min == nil || f.PriceRange.Max == nil {
		return 0, 0, false
	}
	return *f.PriceRange.Min, *f.PriceRange.Max, true
}

func term(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == anyValue {
		return ""
	}
	return v
}

// Match reports whether p satisfies every constraint of f.
func Match(f Filter, p Product) bool {
	name, sub, brand, desc := f.Terms()
	if !contains(p.Name, name) || !contains(p.Subcategory, sub) ||
		!contains(p.Brand, brand) || !contains(p.ShortDescription, desc) {
		return false
	}
	if lo, hi, ok := f.Bounds(); ok {
		price := p.PriceValue()
		if price < lo || price > hi {
			return false
		}
	}
	return true
}

func contains(field, want string) bool {
	return want == "" || strings.Contains(strings.ToLower(field), want)
}
