package variant

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

var (
	ErrDuplicateVariant   = errors.New("variants share an identical attribute set")
	ErrDuplicateVariantID = errors.New("variant id is not unique within product")
	ErrNegativeStock      = errors.New("variant stock is negative")
)

// ValidateVariants checks the integrity rules matching depends on. Two
// variants with the same attribute set make selection ambiguous, so such
// products are rejected when loaded rather than resolved by input order.
func ValidateVariants(p domain.Product) error {
	seenIDs := make(map[int64]struct{}, len(p.Variants))
	seenSets := make(map[string]int64, len(p.Variants))

	for _, v := range p.Variants {
		if _, dup := seenIDs[v.ID]; dup {
			return fmt.Errorf("product %d variant %d: %w", p.ID, v.ID, ErrDuplicateVariantID)
		}
		seenIDs[v.ID] = struct{}{}

		if v.Stock < 0 {
			return fmt.Errorf("product %d variant %d: %w", p.ID, v.ID, ErrNegativeStock)
		}

		set := attributeSet(v)
		if other, dup := seenSets[set]; dup {
			return fmt.Errorf("product %d variants %d and %d: %w", p.ID, other, v.ID, ErrDuplicateVariant)
		}
		seenSets[set] = v.ID
	}
	return nil
}

func attributeSet(v domain.ProductVariant) string {
	pairs := make([]string, len(v.Attributes))
	for i, a := range v.Attributes {
		pairs[i] = a.Name + "\x00" + a.Value
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "\x01")
}
