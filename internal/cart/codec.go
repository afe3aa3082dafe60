package cart

import (
	"encoding/json"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/variant"
)

// Encode serialises lines as the JSON array stored under the cart key.
func Encode(items []domain.CartItem) ([]byte, error) {
	if items == nil {
		items = []domain.CartItem{}
	}
	blob, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cart: %w", err)
	}
	return blob, nil
}

// Decode parses a stored cart. Lines with a non-positive quantity are
// dropped and lines sharing an identity key are merged, so a hand-edited or
// legacy blob still yields a cart with unique keys. Quantities are then
// capped at each line's stock ceiling; a line whose ceiling is 0 is dropped.
func Decode(blob []byte) ([]domain.CartItem, error) {
	var raw []domain.CartItem
	if err := json.Unmarshal(blob, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}

	merged := make([]domain.CartItem, 0, len(raw))
	index := make(map[domain.LineKey]int, len(raw))
	for _, item := range raw {
		if item.Quantity < 1 {
			continue
		}
		key := item.Key()
		if i, ok := index[key]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[key] = len(merged)
		merged = append(merged, item)
	}

	items := merged[:0]
	for _, item := range merged {
		ceiling := variant.ItemStock(item)
		if ceiling < 1 {
			continue
		}
		if item.Quantity > ceiling {
			item.Quantity = ceiling
		}
		items = append(items, item)
	}
	return items, nil
}
