package app

import (
	"storefront-agent/internal/core"

	"github.com/shopspring/decimal"
)

// QuoteShippingRequest is the input of QuoteShipping.
type QuoteShippingRequest struct {
	StoreID  string
	Province string
	City     string
	Subtotal decimal.Decimal
}

// StartCheckoutRequest opens a checkout. Customer is optional.
type StartCheckoutRequest struct {
	StoreID  string
	Items    []core.CartItem
	Customer *core.CustomerInfo
}

// UpdateItemRequest changes one cart line. Nil fields are left unchanged.
type UpdateItemRequest struct {
	CheckoutID string
	ItemID     string
	Quantity   *int
	Color      *string
	Size       *string
}

// ApplyDiscountRequest sets a checkout discount.
type ApplyDiscountRequest struct {
	CheckoutID string
	Amount     decimal.Decimal
}
