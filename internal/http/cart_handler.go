package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/internal/variant"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxLineQuantity = 99

type CartHandler struct {
	sessions *session.Manager
	catalog  catalog.Source
	timeout  time.Duration
	logger   *zap.Logger
}

func NewCartHandler(sessions *session.Manager, source catalog.Source, timeout time.Duration, logger *zap.Logger) *CartHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartHandler{
		sessions: sessions,
		catalog:  source,
		timeout:  timeout,
		logger:   logger,
	}
}

// LineRequestDTO identifies a cart line by product and selection.
type LineRequestDTO struct {
	ProductID  int64             `json:"product_id"`
	Color      string            `json:"color,omitempty"`
	Size       string            `json:"size,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func (l LineRequestDTO) selection() domain.Selection {
	return domain.Selection{Color: l.Color, Size: l.Size, Attributes: l.Attributes}.Normalized()
}

func (l LineRequestDTO) key() domain.LineKey {
	return domain.NewLineKey(l.ProductID, l.selection())
}

type AddItemRequestDTO struct {
	LineRequestDTO
	VariantID *int64 `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
}

type UpdateQuantityRequestDTO struct {
	LineRequestDTO
	Delta int `json:"delta"`
}

type SetOpenRequestDTO struct {
	Open bool `json:"open"`
}

type SetSearchRequestDTO struct {
	Query string `json:"query"`
}

type CartLineResponse struct {
	domain.CartItem
	Stock     int             `json:"stock"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type CartResponse struct {
	SessionID    string               `json:"session_id"`
	Items        []CartLineResponse   `json:"items"`
	Total        decimal.Decimal      `json:"total"`
	Count        int                  `json:"count"`
	Open         bool                 `json:"open"`
	SearchQuery  string               `json:"search_query,omitempty"`
	Notification *domain.Notification `json:"notification,omitempty"`
	Quote        checkout.Quote       `json:"quote"`
}

func newCartResponse(sessionID string, store *cart.Store) CartResponse {
	items := store.Items()
	lines := make([]CartLineResponse, len(items))
	for i, item := range items {
		lines[i] = CartLineResponse{
			CartItem:  item,
			Stock:     store.GetItemStock(item),
			LineTotal: item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))),
		}
	}

	resp := CartResponse{
		SessionID:   sessionID,
		Items:       lines,
		Total:       store.Total(),
		Count:       store.Count(),
		Open:        store.IsOpen(),
		SearchQuery: store.SearchQuery(),
		Quote:       checkout.QuoteFor(items),
	}
	if n, ok := store.Notification(); ok {
		resp.Notification = &n
	}
	return resp
}

// store returns the request's cart or writes the error response.
func (h *CartHandler) store(ctx context.Context, w http.ResponseWriter) (string, *cart.Store, bool) {
	sessionID := getSessionID(ctx)
	store, err := h.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrInvalidSession) {
			respondError(w, http.StatusBadRequest, "invalid_session", "missing or invalid session id")
			return "", nil, false
		}
		logger.WithTrace(ctx, h.logger).Error("failed to open cart", zap.String("session_id", sessionID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return "", nil, false
	}
	return sessionID, store, true
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID, store, ok := h.store(ctx, w)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(sessionID, store))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 || req.Quantity > maxLineQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	sessionID, store, ok := h.store(ctx, w)
	if !ok {
		return
	}

	product, err := h.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		handleCatalogError(w, logger.WithTrace(ctx, h.logger), err)
		return
	}

	sel := req.selection()
	if missing := variant.MissingAxes(*product, sel); len(missing) > 0 {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "select every option before adding to cart",
			Code:    "incomplete_selection",
			Details: "missing: " + strings.Join(missing, ", "),
		})
		return
	}

	res := store.AddQuantity(ctx, *product, sel, req.VariantID, req.Quantity)
	if res.Err != nil {
		h.respondCartError(w, res.Err, &res.Notification)
		return
	}

	respondJSON(w, http.StatusCreated, newCartResponse(sessionID, store))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateQuantityRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Delta == 0 {
		respondError(w, http.StatusBadRequest, "invalid_delta", "delta must not be zero")
		return
	}

	sessionID, store, ok := h.store(ctx, w)
	if !ok {
		return
	}

	if res := store.ChangeQuantity(ctx, req.key(), req.Delta); res.Err != nil {
		var n *domain.Notification
		if errors.Is(res.Err, cart.ErrStockExceeded) {
			n = &res.Notification
		}
		h.respondCartError(w, res.Err, n)
		return
	}

	respondJSON(w, http.StatusOK, newCartResponse(sessionID, store))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req LineRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}

	sessionID, store, ok := h.store(ctx, w)
	if !ok {
		return
	}

	if !store.RemoveFromCart(ctx, req.key()) {
		h.respondCartError(w, cart.ErrLineNotFound, nil)
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(sessionID, store))
}

// RemoveProduct drops every line of a product with the color and size in
// the query string, whatever their other attributes.
func (h *CartHandler) RemoveProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := productIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "id must be a positive integer")
		return
	}

	sessionID, store, ok := h.store(ctx, w)
	if !ok {
		return
	}

	q := r.URL.Query()
	if store.RemoveMatching(ctx, id, q.Get("color"), q.Get("size")) == 0 {
		h.respondCartError(w, cart.ErrLineNotFound, nil)
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(sessionID, store))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID, store, ok := h.store(ctx, w)
	if !ok {
		return
	}
	store.ClearCart(ctx)
	respondJSON(w, http.StatusOK, newCartResponse(sessionID, store))
}

func (h *CartHandler) SetOpen(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SetOpenRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	sessionID, store, ok := h.store(ctx, w)
	if !ok {
		return
	}
	store.SetOpen(req.Open)
	respondJSON(w, http.StatusOK, newCartResponse(sessionID, store))
}

func (h *CartHandler) SetSearch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SetSearchRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	sessionID, store, ok := h.store(ctx, w)
	if !ok {
		return
	}
	store.SetSearchQuery(req.Query)
	respondJSON(w, http.StatusOK, newCartResponse(sessionID, store))
}

func (h *CartHandler) respondCartError(w http.ResponseWriter, err error, n *domain.Notification) {
	switch {
	case errors.Is(err, cart.ErrStockExceeded):
		resp := ErrorResponse{Error: err.Error(), Code: "stock_exceeded"}
		if n != nil && n.ID != "" {
			resp.Notification = n
			resp.Error = n.Message
		}
		respondJSON(w, http.StatusConflict, resp)
	case errors.Is(err, cart.ErrLineNotFound):
		respondError(w, http.StatusNotFound, "line_not_found", err.Error())
	case errors.Is(err, cart.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	default:
		h.logger.Error("cart operation failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

