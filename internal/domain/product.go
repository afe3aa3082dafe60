package domain

import "github.com/shopspring/decimal"

// Product is a catalog record as served by the upstream storefront API.
// When Variants is non-empty stock always comes from the variants and
// StockQuantity is ignored.
type Product struct {
	ID            int64               `json:"id"`
	Title         string              `json:"title"`
	Slug          string              `json:"slug,omitempty"`
	Description   string              `json:"description,omitempty"`
	Category      string              `json:"category"`
	Image         string              `json:"image,omitempty"`
	Price         decimal.Decimal     `json:"price"`
	Colors        []string            `json:"colors,omitempty"`
	Sizes         []string            `json:"sizes,omitempty"`
	Attributes    map[string][]string `json:"attributes,omitempty"`
	Variants      []ProductVariant    `json:"variants,omitempty"`
	StockQuantity *int                `json:"stock_quantity,omitempty"`
}

// HasVariants reports whether stock is tracked per variant.
func (p Product) HasVariants() bool {
	return len(p.Variants) > 0
}

// Variant returns the variant with the given id.
func (p Product) Variant(id int64) (*ProductVariant, bool) {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

type ProductVariant struct {
	ID         int64              `json:"id"`
	SKU        string             `json:"sku,omitempty"`
	Price      decimal.Decimal    `json:"price"`
	Image      string             `json:"image,omitempty"`
	Attributes []VariantAttribute `json:"attributes"`
	Stock      int                `json:"stock"`
}

// VariantAttribute is one (axis name, value) pair locating a variant in
// the product's option space.
type VariantAttribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// IntPtr is a small helper for building products with a flat stock figure.
func IntPtr(v int) *int {
	return &v
}
