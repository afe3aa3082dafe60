package variant

import "github.com/fjod/go_cart/storefront/internal/domain"

// HasAttribute reports whether v carries value on an axis of the given
// kind. Generic axes additionally require an exact name match.
func HasAttribute(v domain.ProductVariant, axis Axis, value string) bool {
	for _, a := range v.Attributes {
		if a.Value != value {
			continue
		}
		switch axis.Kind {
		case AxisGeneric:
			if a.Name == axis.Name {
				return true
			}
		default:
			if ClassifyAxis(a.Name) == axis.Kind {
				return true
			}
		}
	}
	return false
}

// Matches reports whether v satisfies every axis the selection constrains.
// Unselected axes impose nothing.
func Matches(v domain.ProductVariant, sel domain.Selection) bool {
	if sel.Color != "" && !HasAttribute(v, ColorAxis, sel.Color) {
		return false
	}
	if sel.Size != "" && !HasAttribute(v, SizeAxis, sel.Size) {
		return false
	}
	for name, value := range sel.Attributes {
		if value == "" {
			continue
		}
		if !HasAttribute(v, GenericAxis(name), value) {
			return false
		}
	}
	return true
}

// FindMatchingVariant returns the first variant, in input order, that
// matches the selection, preferring variants that declare at least as many
// attributes as the selection has axes. When none does, the first plain
// match wins: one variant attribute can satisfy two selected axes, as with
// a "Màu sắc" attribute picked both as a color and by name.
func FindMatchingVariant(p domain.Product, sel domain.Selection) (domain.ProductVariant, bool) {
	sel = sel.Normalized()
	want := sel.AxisCount()

	fallback := -1
	for i, v := range p.Variants {
		if !Matches(v, sel) {
			continue
		}
		if len(v.Attributes) >= want {
			return v, true
		}
		if fallback < 0 {
			fallback = i
		}
	}
	if fallback >= 0 {
		return p.Variants[fallback], true
	}
	return domain.ProductVariant{}, false
}

// StockForAxisValue is the stock available if the shopper picked value on
// axis while keeping the rest of the selection. The queried axis' own prior
// value is replaced, never combined.
func StockForAxisValue(p domain.Product, axis Axis, value string, rest domain.Selection) int {
	if !p.HasVariants() {
		return flatStock(p)
	}

	sel := withAxis(rest.Normalized(), axis, value)
	total := 0
	for _, v := range p.Variants {
		if Matches(v, sel) {
			total += v.Stock
		}
	}
	return total
}

func withAxis(sel domain.Selection, axis Axis, value string) domain.Selection {
	out := domain.Selection{Color: sel.Color, Size: sel.Size}
	if len(sel.Attributes) > 0 || axis.Kind == AxisGeneric {
		out.Attributes = make(map[string]string, len(sel.Attributes)+1)
		for k, v := range sel.Attributes {
			out.Attributes[k] = v
		}
	}

	switch axis.Kind {
	case AxisColor:
		out.Color = value
	case AxisSize:
		out.Size = value
	default:
		out.Attributes[axis.Name] = value
	}
	return out
}
