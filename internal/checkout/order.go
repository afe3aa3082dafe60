package checkout

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrEmptyCart   = errors.New("cart is empty, nothing to checkout")
	ErrInvalidForm = errors.New("invalid checkout form")
)

type PaymentMethod string

const (
	PaymentCOD          PaymentMethod = "cod"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
)

// GuestEmailDomain completes the email of shoppers who leave it blank.
const GuestEmailDomain = "guest.local"

var (
	FreeShippingThreshold = decimal.NewFromInt(1000000)
	ShippingFee           = decimal.NewFromInt(30000)
)

var phonePattern = regexp.MustCompile(`^\d{10,11}$`)

// Form is what the shopper fills in at checkout.
type Form struct {
	Name          string        `json:"name"`
	Phone         string        `json:"phone"`
	Email         string        `json:"email,omitempty"`
	Address       string        `json:"address"`
	City          string        `json:"city"`
	District      string        `json:"district,omitempty"`
	Note          string        `json:"note,omitempty"`
	PaymentMethod PaymentMethod `json:"payment_method,omitempty"`

	// SessionID is set by the server, never by the shopper. The order
	// pipeline echoes it back in its completion event.
	SessionID string `json:"-"`
}

// ValidationError lists the offending form fields.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ": " + e.Fields[name]
	}
	return fmt.Sprintf("%s: %s", ErrInvalidForm, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidForm
}

func (f Form) Validate() error {
	fields := make(map[string]string)
	if strings.TrimSpace(f.Name) == "" {
		fields["name"] = "name is required"
	}
	switch {
	case strings.TrimSpace(f.Phone) == "":
		fields["phone"] = "phone is required"
	case !phonePattern.MatchString(f.Phone):
		fields["phone"] = "phone must be 10 or 11 digits"
	}
	if strings.TrimSpace(f.Address) == "" {
		fields["address"] = "address is required"
	}
	if strings.TrimSpace(f.City) == "" {
		fields["city"] = "city is required"
	}
	switch f.PaymentMethod {
	case "", PaymentCOD, PaymentBankTransfer:
	default:
		fields["payment_method"] = "payment method must be cod or bank_transfer"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

type ShippingAddress struct {
	Street   string `json:"street"`
	City     string `json:"city"`
	District string `json:"district,omitempty"`
}

type OrderItem struct {
	ProductID          int64             `json:"product_id"`
	VariantID          *int64            `json:"variant_id,omitempty"`
	Quantity           int               `json:"quantity"`
	Color              string            `json:"color,omitempty"`
	Size               string            `json:"size,omitempty"`
	SelectedAttributes map[string]string `json:"selected_attributes,omitempty"`
}

// OrderRequest is the body of the upstream order creation call.
type OrderRequest struct {
	CustomerName    string          `json:"customer_name"`
	CustomerEmail   string          `json:"customer_email"`
	CustomerPhone   string          `json:"customer_phone"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	Items           []OrderItem     `json:"items"`
	Note            string          `json:"note,omitempty"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	SessionID       string          `json:"session_id,omitempty"`
}

type OrderResult struct {
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Total       decimal.Decimal `json:"total"`
}

// BuildOrder maps the form and cart lines onto the upstream order shape.
func BuildOrder(f Form, items []domain.CartItem) OrderRequest {
	email := strings.TrimSpace(f.Email)
	if email == "" {
		email = f.Phone + "@" + GuestEmailDomain
	}
	method := f.PaymentMethod
	if method == "" {
		method = PaymentCOD
	}

	req := OrderRequest{
		CustomerName:  strings.TrimSpace(f.Name),
		CustomerEmail: email,
		CustomerPhone: f.Phone,
		ShippingAddress: ShippingAddress{
			Street:   strings.TrimSpace(f.Address),
			City:     strings.TrimSpace(f.City),
			District: strings.TrimSpace(f.District),
		},
		Items:         make([]OrderItem, 0, len(items)),
		Note:          f.Note,
		PaymentMethod: method,
		SessionID:     f.SessionID,
	}
	for _, item := range items {
		req.Items = append(req.Items, OrderItem{
			ProductID:          item.ID,
			VariantID:          item.VariantID,
			Quantity:           item.Quantity,
			Color:              item.SelectedColor,
			Size:               item.SelectedSize,
			SelectedAttributes: item.SelectedAttributes,
		})
	}
	return req
}

// Quote is the price breakdown shown before the order is placed.
type Quote struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// QuoteFor prices the cart lines; shipping is free above
// FreeShippingThreshold.
func QuoteFor(items []domain.CartItem) Quote {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	shipping := ShippingFee
	if subtotal.GreaterThan(FreeShippingThreshold) || len(items) == 0 {
		shipping = decimal.Zero
	}
	return Quote{Subtotal: subtotal, Shipping: shipping, Total: subtotal.Add(shipping)}
}
