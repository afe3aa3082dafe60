package cart

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/notify"
	"github.com/fjod/go_cart/storefront/internal/persistence"
	"github.com/fjod/go_cart/storefront/internal/variant"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultKey is the backend key a single-shopper store persists under.
const DefaultKey = "cart_items"

var (
	ErrStockExceeded   = errors.New("requested quantity exceeds available stock")
	ErrLineNotFound    = errors.New("cart line not found")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// AddResult describes the outcome of an add. A rejected add leaves the
// cart untouched and carries the reason in Err.
type AddResult struct {
	Added        bool
	Item         domain.CartItem
	Available    int
	Notification domain.Notification
	Err          error
}

// Store owns one shopper's cart. Every operation runs under the store's
// lock, so a stock check and the mutation it gates are never interleaved
// with another operation on the same cart.
type Store struct {
	mu      sync.Mutex
	backend persistence.Backend
	emitter *notify.Emitter
	logger  *zap.Logger
	key     string

	items  []domain.CartItem
	open   bool
	search string
}

type Option func(*Store)

// WithKey sets the backend key. Defaults to DefaultKey.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(backend persistence.Backend, emitter *notify.Emitter, opts ...Option) *Store {
	if emitter == nil {
		emitter = notify.NewEmitter()
	}
	s := &Store{
		backend: backend,
		emitter: emitter,
		logger:  zap.NewNop(),
		key:     DefaultKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the backend key the store persists under.
func (s *Store) Key() string {
	return s.key
}

// Load replaces the in-memory cart with the persisted one. A missing or
// unreadable blob leaves the cart empty; only backend failures are
// returned.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	blob, err := s.backend.Load(ctx, s.key)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load cart %q: %w", s.key, err)
	}

	items, err := Decode(blob)
	if err != nil {
		s.logger.Warn("discarding unreadable saved cart",
			zap.String("key", s.key),
			zap.Error(err),
		)
		return nil
	}
	s.items = items
	return nil
}

// AddToCart adds one unit of the selection.
func (s *Store) AddToCart(ctx context.Context, product domain.Product, sel domain.Selection, variantIDHint *int64) AddResult {
	return s.AddQuantity(ctx, product, sel, variantIDHint, 1)
}

// AddQuantity adds qty units of the selection, or none of them if the
// resulting line would exceed its stock ceiling.
func (s *Store) AddQuantity(ctx context.Context, product domain.Product, sel domain.Selection, variantIDHint *int64, qty int) AddResult {
	if qty < 1 {
		return AddResult{Err: ErrInvalidQuantity}
	}
	sel = sel.Normalized()

	s.mu.Lock()
	defer s.mu.Unlock()

	v := resolveVariant(product, sel, variantIDHint)
	available := availableFor(product, v)

	key := domain.NewLineKey(product.ID, sel)
	idx := s.indexOf(key)
	current := 0
	if idx >= 0 {
		current = s.items[idx].Quantity
	}

	if current+qty > available {
		n := s.emitter.Warning(stockWarning(available))
		return AddResult{
			Available:    available,
			Notification: n,
			Err:          ErrStockExceeded,
		}
	}

	if idx >= 0 {
		s.items[idx].Quantity += qty
	} else {
		item := domain.CartItem{
			Product:            product,
			Quantity:           qty,
			SelectedColor:      sel.Color,
			SelectedSize:       sel.Size,
			SelectedAttributes: sel.Attributes,
		}
		if v != nil {
			id := v.ID
			item.VariantID = &id
		}
		s.items = append(s.items, item)
		idx = len(s.items) - 1
	}
	s.persistLocked(ctx)

	n := s.emitter.Success(addedMessage(product.Title, sel))
	s.open = true

	return AddResult{
		Added:        true,
		Item:         cloneItem(s.items[idx]),
		Available:    available,
		Notification: n,
	}
}

// RemoveFromCart deletes the line with the given identity key.
func (s *Store) RemoveFromCart(ctx context.Context, key domain.LineKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(key)
	if idx < 0 {
		return false
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.persistLocked(ctx)
	return true
}

// RemoveMatching deletes every line of the product with the given color and
// size, whatever its generic attributes. It returns the number of lines
// removed.
func (s *Store) RemoveMatching(ctx context.Context, productID int64, color, size string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.items[:0]
	removed := 0
	for _, item := range s.items {
		if item.ID == productID && item.SelectedColor == color && item.SelectedSize == size {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	s.items = kept
	if removed > 0 {
		s.persistLocked(ctx)
	}
	return removed
}

// ChangeResult describes the outcome of a quantity change. A stock
// rejection carries the warning it raised.
type ChangeResult struct {
	Item         domain.CartItem
	Notification domain.Notification
	Err          error
}

// UpdateQuantity applies delta to a line and reports whether it changed.
func (s *Store) UpdateQuantity(ctx context.Context, key domain.LineKey, delta int) bool {
	return s.ChangeQuantity(ctx, key, delta).Err == nil
}

// ChangeQuantity is UpdateQuantity with the rejection reason:
// ErrLineNotFound, ErrInvalidQuantity when the result would drop below 1,
// or ErrStockExceeded when an increase passes the line's stock.
func (s *Store) ChangeQuantity(ctx context.Context, key domain.LineKey, delta int) ChangeResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(key)
	if idx < 0 {
		return ChangeResult{Err: ErrLineNotFound}
	}

	next := s.items[idx].Quantity + delta
	if next < 1 {
		return ChangeResult{Item: cloneItem(s.items[idx]), Err: ErrInvalidQuantity}
	}
	if delta > 0 {
		stock := variant.ItemStock(s.items[idx])
		if next > stock {
			return ChangeResult{
				Item:         cloneItem(s.items[idx]),
				Notification: s.emitter.Warning(stockWarning(stock)),
				Err:          ErrStockExceeded,
			}
		}
	}

	s.items[idx].Quantity = next
	s.persistLocked(ctx)
	return ChangeResult{Item: cloneItem(s.items[idx])}
}

// ClearCart empties the cart and erases the persisted blob.
func (s *Store) ClearCart(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	if err := s.backend.Delete(ctx, s.key); err != nil {
		s.logger.Error("failed to erase saved cart",
			zap.String("key", s.key),
			zap.Error(err),
		)
	}
}

// RemoveOrdered takes the ordered lines out of the cart. Each line loses
// the quantity that was ordered and goes once nothing is left, so lines
// added or raised while the order was in flight stay. The blob is erased
// when the cart ends up empty.
func (s *Store) RemoveOrdered(ctx context.Context, ordered []domain.CartItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for _, o := range ordered {
		idx := s.indexOf(o.Key())
		if idx < 0 {
			continue
		}
		changed = true
		if s.items[idx].Quantity > o.Quantity {
			s.items[idx].Quantity -= o.Quantity
			continue
		}
		s.items = append(s.items[:idx], s.items[idx+1:]...)
	}
	if !changed {
		return
	}

	if len(s.items) > 0 {
		s.persistLocked(ctx)
		return
	}
	s.items = nil
	if err := s.backend.Delete(ctx, s.key); err != nil {
		s.logger.Error("failed to erase saved cart",
			zap.String("key", s.key),
			zap.Error(err),
		)
	}
}

// GetItemStock is the stock ceiling of a cart line.
func (s *Store) GetItemStock(item domain.CartItem) int {
	return variant.ItemStock(item)
}

// Items returns the lines in insertion order.
func (s *Store) Items() []domain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.CartItem, len(s.items))
	for i, item := range s.items {
		out[i] = cloneItem(item)
	}
	return out
}

// Line returns the line with the given key.
func (s *Store) Line(key domain.LineKey) (domain.CartItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(key)
	if idx < 0 {
		return domain.CartItem{}, false
	}
	return cloneItem(s.items[idx]), true
}

// Total is the sum of price times quantity over all lines.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, item := range s.items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// Count is the total number of units in the cart.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, item := range s.items {
		n += item.Quantity
	}
	return n
}

func (s *Store) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *Store) SetOpen(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = open
}

func (s *Store) SearchQuery() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.search
}

func (s *Store) SetSearchQuery(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.search = query
}

// Notification returns the active notification, if any.
func (s *Store) Notification() (domain.Notification, bool) {
	return s.emitter.Current()
}

// Close cancels the pending notification clear.
func (s *Store) Close() {
	s.emitter.Stop()
}

func (s *Store) indexOf(key domain.LineKey) int {
	for i := range s.items {
		if s.items[i].Key() == key {
			return i
		}
	}
	return -1
}

// persistLocked writes the whole cart. A failed write is logged and the
// in-memory cart stays authoritative.
func (s *Store) persistLocked(ctx context.Context) {
	blob, err := Encode(s.items)
	if err != nil {
		s.logger.Error("failed to encode cart", zap.String("key", s.key), zap.Error(err))
		return
	}
	if err := s.backend.Save(ctx, s.key, blob); err != nil {
		s.logger.Error("failed to persist cart",
			zap.String("key", s.key),
			zap.Int("lines", len(s.items)),
			zap.Error(err),
		)
	}
}

// resolveVariant honours the hint only when it names a variant of the
// product that satisfies the selection.
func resolveVariant(p domain.Product, sel domain.Selection, hint *int64) *domain.ProductVariant {
	if !p.HasVariants() {
		return nil
	}
	if hint != nil {
		if v, ok := p.Variant(*hint); ok && variant.Matches(*v, sel) {
			return v
		}
	}
	if v, ok := variant.FindMatchingVariant(p, sel); ok {
		return &v
	}
	return nil
}

func availableFor(p domain.Product, v *domain.ProductVariant) int {
	if !p.HasVariants() {
		return variant.AvailableStock(p, domain.Selection{})
	}
	if v == nil {
		return 0
	}
	return v.Stock
}

func stockWarning(available int) string {
	return fmt.Sprintf("Cannot add! Only %d item(s) left in stock.", available)
}

func addedMessage(title string, sel domain.Selection) string {
	parts := make([]string, 0, 2+len(sel.Attributes))
	if sel.Color != "" {
		parts = append(parts, sel.Color)
	}
	if sel.Size != "" {
		parts = append(parts, sel.Size)
	}
	names := make([]string, 0, len(sel.Attributes))
	for name := range sel.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		parts = append(parts, sel.Attributes[name])
	}

	if len(parts) == 0 {
		return fmt.Sprintf("Added \"%s\" to cart!", title)
	}
	return fmt.Sprintf("Added \"%s\" (%s) to cart!", title, strings.Join(parts, " - "))
}

func cloneItem(item domain.CartItem) domain.CartItem {
	if item.SelectedAttributes != nil {
		attrs := make(map[string]string, len(item.SelectedAttributes))
		for k, v := range item.SelectedAttributes {
			attrs[k] = v
		}
		item.SelectedAttributes = attrs
	}
	if item.VariantID != nil {
		id := *item.VariantID
		item.VariantID = &id
	}
	return item
}
