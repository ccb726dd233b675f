package app

import "storefront-agent/internal/core"

// ShippingQuoteResult is returned by QuoteShipping.
type ShippingQuoteResult struct {
	Options  []core.ShippingOption `json:"options"`
	Default  *core.ShippingOption  `json:"default,omitempty"`
	Currency string                `json:"currency"`
}

// CheckoutResult wraps the checkout snapshot.
type CheckoutResult struct {
	Checkout core.CheckoutView `json:"checkout"`
}

// ConfirmResult is returned by ConfirmCheckout and CompletePayment.
type ConfirmResult struct {
	Outcome  core.CheckoutOutcome `json:"outcome"`
	Checkout core.CheckoutView    `json:"checkout"`
}

// ParseResult is returned by the document parse operations.
type ParseResult struct {
	Transactions []core.Transaction   `json:"transactions"`
	FailedFiles  []string             `json:"failedFiles,omitempty"`
	Stats        core.BookkeeperStats `json:"stats"`
}

// TransferResult is returned by TransferTransactions.
type TransferResult struct {
	Report core.TransferReport `json:"report"`
}

// OrderResult is returned by GetOrder.
type OrderResult struct {
	Order core.OrderInput `json:"order"`
}

// BalancesResult is returned by GetBookBalances.
type BalancesResult struct {
	StoreID  string                `json:"storeId"`
	Balances []core.AccountBalance `json:"balances"`
}
