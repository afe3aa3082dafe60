package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/session"
	"go.uber.org/zap"
)

type CheckoutHandler struct {
	sessions *session.Manager
	service  *checkout.Service
	timeout  time.Duration
	logger   *zap.Logger
}

func NewCheckoutHandler(sessions *session.Manager, service *checkout.Service, timeout time.Duration, logger *zap.Logger) *CheckoutHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutHandler{
		sessions: sessions,
		service:  service,
		timeout:  timeout,
		logger:   logger,
	}
}

// ValidationErrorResponse lists the form fields that failed validation.
type ValidationErrorResponse struct {
	ErrorResponse
	Fields map[string]string `json:"fields"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var form checkout.Form
	if !decodeJSON(w, r, &form) {
		return
	}

	sessionID := getSessionID(ctx)
	store, err := h.sessions.Get(ctx, sessionID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_session", "missing or invalid session id")
		return
	}
	form.SessionID = sessionID

	result, err := h.service.PlaceOrder(ctx, store, form)
	if err != nil {
		h.handleCheckoutError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

func (h *CheckoutHandler) handleCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	var verr *checkout.ValidationError
	var rejected *checkout.RejectedError

	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusBadRequest, ValidationErrorResponse{
			ErrorResponse: ErrorResponse{Error: "please check the highlighted fields", Code: "invalid_form"},
			Fields:        verr.Fields,
		})
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", "cart is empty")
	case errors.As(err, &rejected):
		respondError(w, rejected.Status, "order_rejected", rejected.Message)
	case errors.Is(err, checkout.ErrOrderServiceUnavailable):
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "order service is unavailable, please try again later")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "order service did not respond in time")
	default:
		logger.WithTrace(ctx, h.logger).Error("checkout failed", zap.Error(err))
		respondError(w, http.StatusBadGateway, "order_failed", "could not place the order")
	}
}
