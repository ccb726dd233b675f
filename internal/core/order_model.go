package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the payment state of a storefront order.
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusPaid    OrderStatus = "paid"
)

// PaymentMethod identifies how the buyer pays.
type PaymentMethod string

const (
	PaymentCOD   PaymentMethod = "cod"
	PaymentQRPH  PaymentMethod = "qrph"
	PaymentGCash PaymentMethod = "gcash"
	PaymentCard  PaymentMethod = "card"
)

// ParsePaymentMethod accepts the storefront's spellings; "credit" and
// "credit_card" are aliases of card.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cod", "cash_on_delivery":
		return PaymentCOD, nil
	case "qrph", "qr_ph":
		return PaymentQRPH, nil
	case "gcash":
		return PaymentGCash, nil
	case "card", "credit", "credit_card", "creditcard":
		return PaymentCard, nil
	case "":
		return "", ErrPaymentMethodMissing
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, s)
}

// RequiresLauncher reports whether the method is paid through a payment dialog.
func (m PaymentMethod) RequiresLauncher() bool {
	return m == PaymentQRPH || m == PaymentGCash || m == PaymentCard
}

// OrderItem is a cart line frozen into an order.
type OrderItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Color     string          `json:"color,omitempty"`
	Size      string          `json:"size,omitempty"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// Delivery names the chosen courier and its speed.
type Delivery struct {
	Method string `json:"method"`
	Speed  string `json:"speed"`
}

// ShippingDetails is where the order goes.
type ShippingDetails struct {
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

// PaymentDetails records the payment method and, once the provider has
// confirmed the payment, its reference.
type PaymentDetails struct {
	Method    PaymentMethod `json:"method"`
	Reference string        `json:"reference,omitempty"`
}

// OrderInput is the normalized order payload sent to the order mirror and
// the backend. It is immutable once created except for the pending → paid
// transition after a successful payment callback.
type OrderInput struct {
	ID         string          `json:"id"`
	StoreID    string          `json:"storeId"`
	Customer   CustomerInfo    `json:"customer"`
	OrderItems []OrderItem     `json:"orderItems"`
	Price      decimal.Decimal `json:"price"`
	Status     OrderStatus     `json:"status"`
	Delivery   Delivery        `json:"delivery"`
	Shipping   ShippingDetails `json:"shipping"`
	Payment    PaymentDetails  `json:"payment"`
	Summary    OrderSummary    `json:"summary"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Validate checks an assembled order at the system boundary.
func (o OrderInput) Validate() error {
	if o.ID == "" || o.StoreID == "" {
		return fmt.Errorf("%w: order id and store id are required", ErrValidation)
	}
	if len(o.OrderItems) == 0 {
		return ErrCartEmpty
	}
	if o.Status != OrderStatusPending && o.Status != OrderStatusPaid {
		return fmt.Errorf("%w: unknown order status %q", ErrValidation, o.Status)
	}
	if !o.Summary.Balanced() || !o.Price.Equal(o.Summary.Total) {
		return fmt.Errorf("%w: order total does not match its summary", ErrValidation)
	}
	if o.Shipping.Address == "" {
		return ErrAddressMissing
	}
	if o.Summary.Total.IsPositive() && o.Payment.Method == "" {
		return ErrPaymentMethodMissing
	}
	return nil
}
