package http

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/variant"
	"go.uber.org/zap"
)

type ProductHandler struct {
	catalog catalog.Source
	timeout time.Duration
	logger  *zap.Logger
}

func NewProductHandler(source catalog.Source, timeout time.Duration, logger *zap.Logger) *ProductHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductHandler{
		catalog: source,
		timeout: timeout,
		logger:  logger,
	}
}

type ProductsResponse struct {
	Products []*domain.Product `json:"products"`
}

// AxisValueStock is the stock badge shown next to one option value.
type AxisValueStock struct {
	Value string `json:"value"`
	Stock int    `json:"stock"`
}

type StockResponse struct {
	ProductID  int64                       `json:"product_id"`
	Selection  domain.Selection            `json:"selection"`
	Complete   bool                        `json:"complete"`
	Missing    []string                    `json:"missing,omitempty"`
	Stock      int                         `json:"stock"`
	VariantID  *int64                      `json:"variant_id,omitempty"`
	Colors     []AxisValueStock            `json:"colors,omitempty"`
	Sizes      []AxisValueStock            `json:"sizes,omitempty"`
	Attributes map[string][]AxisValueStock `json:"attributes,omitempty"`
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.catalog.ListProducts(ctx)
	if err != nil {
		handleCatalogError(w, logger.WithTrace(ctx, h.logger), err)
		return
	}
	if products == nil {
		products = []*domain.Product{}
	}
	respondJSON(w, http.StatusOK, &ProductsResponse{Products: products})
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := productIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "id must be a positive integer")
		return
	}

	product, err := h.catalog.GetProduct(ctx, id)
	if err != nil {
		handleCatalogError(w, logger.WithTrace(ctx, h.logger), err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// Stock reports the stock of the selection in the query string together
// with the badge for every declared option value.
func (h *ProductHandler) Stock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := productIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "id must be a positive integer")
		return
	}

	product, err := h.catalog.GetProduct(ctx, id)
	if err != nil {
		handleCatalogError(w, logger.WithTrace(ctx, h.logger), err)
		return
	}

	sel := selectionFromQuery(r.URL.Query())
	respondJSON(w, http.StatusOK, stockResponse(*product, sel))
}

func stockResponse(p domain.Product, sel domain.Selection) StockResponse {
	resp := StockResponse{
		ProductID: p.ID,
		Selection: sel,
		Missing:   variant.MissingAxes(p, sel),
		Stock:     variant.AvailableStock(p, sel),
		Colors:    badges(p, variant.ColorAxis, p.Colors, sel),
		Sizes:     badges(p, variant.SizeAxis, p.Sizes, sel),
	}
	resp.Complete = len(resp.Missing) == 0

	if p.HasVariants() {
		if v, ok := variant.FindMatchingVariant(p, sel); ok {
			id := v.ID
			resp.VariantID = &id
		}
	}

	names := make([]string, 0, len(p.Attributes))
	for name := range p.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		values := badges(p, variant.GenericAxis(name), p.Attributes[name], sel)
		if len(values) == 0 {
			continue
		}
		if resp.Attributes == nil {
			resp.Attributes = make(map[string][]AxisValueStock, len(names))
		}
		resp.Attributes[name] = values
	}
	return resp
}

func badges(p domain.Product, axis variant.Axis, values []string, sel domain.Selection) []AxisValueStock {
	if len(values) == 0 {
		return nil
	}
	out := make([]AxisValueStock, len(values))
	for i, value := range values {
		out[i] = AxisValueStock{
			Value: value,
			Stock: variant.StockForAxisValue(p, axis, value, sel),
		}
	}
	return out
}
