package domain

import (
	"encoding/json"
	"sort"
)

// Selection is the shopper's chosen option values. An empty string means
// the axis was not selected.
type Selection struct {
	Color      string            `json:"color,omitempty"`
	Size       string            `json:"size,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Normalized drops generic attributes with empty values so that "not
// selected" has a single representation.
func (s Selection) Normalized() Selection {
	out := Selection{Color: s.Color, Size: s.Size}
	for name, value := range s.Attributes {
		if value == "" {
			continue
		}
		if out.Attributes == nil {
			out.Attributes = make(map[string]string, len(s.Attributes))
		}
		out.Attributes[name] = value
	}
	return out
}

// AxisCount returns the number of axes the selection constrains.
func (s Selection) AxisCount() int {
	n := 0
	if s.Color != "" {
		n++
	}
	if s.Size != "" {
		n++
	}
	for _, v := range s.Attributes {
		if v != "" {
			n++
		}
	}
	return n
}

// CartItem is a denormalised copy of the product at the moment it was
// added, plus the shopper's selection. JSON names match carts stored by
// the storefront client.
type CartItem struct {
	Product
	Quantity           int               `json:"quantity"`
	SelectedColor      string            `json:"selectedColor,omitempty"`
	SelectedSize       string            `json:"selectedSize,omitempty"`
	SelectedAttributes map[string]string `json:"selectedAttributes,omitempty"`
	VariantID          *int64            `json:"variant_id,omitempty"`
}

// Selection reconstructs the selection the line was added with.
func (i CartItem) Selection() Selection {
	return Selection{
		Color:      i.SelectedColor,
		Size:       i.SelectedSize,
		Attributes: i.SelectedAttributes,
	}.Normalized()
}

// Key returns the line's identity key.
func (i CartItem) Key() LineKey {
	return NewLineKey(i.ID, i.Selection())
}

// LineKey identifies a cart line. Two additions with equal keys accumulate
// on the same line. It is comparable and can be used as a map key.
type LineKey struct {
	ProductID  int64
	Color      string
	Size       string
	Attributes string
}

func NewLineKey(productID int64, sel Selection) LineKey {
	sel = sel.Normalized()
	return LineKey{
		ProductID:  productID,
		Color:      sel.Color,
		Size:       sel.Size,
		Attributes: canonicalAttributes(sel.Attributes),
	}
}

// canonicalAttributes serialises attributes sorted by name; nil and empty
// maps both serialise to "".
func canonicalAttributes(attrs map[string]string) string {
	if len(attrs) == 0 {
		return ""
	}
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([][2]string, len(names))
	for i, name := range names {
		pairs[i] = [2]string{name, attrs[name]}
	}
	b, _ := json.Marshal(pairs)
	return string(b)
}
