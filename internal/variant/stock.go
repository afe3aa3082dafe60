package variant

import (
	"sort"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// UntrackedStock is reported for products without variants and without a
// stock figure.
const UntrackedStock = 999

func flatStock(p domain.Product) int {
	if p.StockQuantity == nil {
		return UntrackedStock
	}
	return *p.StockQuantity
}

// AvailableStock returns how many units of the exact selection can be
// bought. It expects a complete selection; partial selections on a product
// with variants usually resolve to 0 or to a broader variant.
func AvailableStock(p domain.Product, sel domain.Selection) int {
	if !p.HasVariants() {
		return flatStock(p)
	}
	v, ok := FindMatchingVariant(p, sel)
	if !ok {
		return 0
	}
	return v.Stock
}

// ItemStock is the stock ceiling of a cart line, computed from the line's
// own product snapshot. A recorded variant id wins; a line on a product with
// variants but no usable id is re-resolved from its selection.
func ItemStock(item domain.CartItem) int {
	if !item.HasVariants() {
		return flatStock(item.Product)
	}
	if item.VariantID != nil {
		if v, ok := item.Variant(*item.VariantID); ok {
			return v.Stock
		}
	}
	return AvailableStock(item.Product, item.Selection())
}

// MissingAxes lists the declared axes the selection leaves empty, in
// color, size, then attribute-name order.
func MissingAxes(p domain.Product, sel domain.Selection) []string {
	var missing []string
	if len(p.Colors) > 0 && sel.Color == "" {
		missing = append(missing, "color")
	}
	if len(p.Sizes) > 0 && sel.Size == "" {
		missing = append(missing, "size")
	}

	names := make([]string, 0, len(p.Attributes))
	for name, values := range p.Attributes {
		if len(values) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		if sel.Attributes[name] == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
