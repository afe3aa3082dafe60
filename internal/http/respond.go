package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxBodySize caps JSON request bodies.
const maxBodySize = 1 << 20

type ErrorResponse struct {
	Error        string               `json:"error"`
	Code         string               `json:"code,omitempty"`
	Details      string               `json:"details,omitempty"`
	Notification *domain.Notification `json:"notification,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Error("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

// handleCatalogError maps catalog failures to status codes.
func handleCatalogError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "product_not_found", "product not found")
	case errors.Is(err, catalog.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "catalog is unavailable")
	case errors.Is(err, catalog.ErrInvalidProduct):
		log.Error("catalog returned an invalid product", zap.Error(err))
		respondError(w, http.StatusBadGateway, "invalid_product", "product data is inconsistent")
	default:
		log.Error("catalog lookup failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func productIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// attrPrefix marks generic attributes in query strings: ?attr.Branch=Navy.
const attrPrefix = "attr."

func selectionFromQuery(q url.Values) domain.Selection {
	sel := domain.Selection{
		Color: q.Get("color"),
		Size:  q.Get("size"),
	}
	for key := range q {
		name, ok := strings.CutPrefix(key, attrPrefix)
		if !ok || name == "" {
			continue
		}
		if sel.Attributes == nil {
			sel.Attributes = make(map[string]string)
		}
		sel.Attributes[name] = q.Get(key)
	}
	return sel.Normalized()
}
