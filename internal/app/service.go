package app

import (
	"context"

	"storefront-agent/internal/core"
)

// ApplicationService is the single interface the web and CLI adapters call.
// Implementations contain no presentation logic.
type ApplicationService interface {
	// QuoteShipping lists the shipping options for an address and subtotal.
	QuoteShipping(ctx context.Context, req QuoteShippingRequest) (*ShippingQuoteResult, error)

	// StartCheckout opens a checkout for a cart.
	StartCheckout(ctx context.Context, req StartCheckoutRequest) (*CheckoutResult, error)

	// GetCheckout returns the current state of a checkout.
	GetCheckout(ctx context.Context, checkoutID string) (*CheckoutResult, error)

	// UpdateCustomer replaces the buyer details and re-quotes shipping.
	UpdateCustomer(ctx context.Context, checkoutID string, info core.CustomerInfo) (*CheckoutResult, error)

	// UpdateItem changes the quantity and/or variant of a cart line.
	UpdateItem(ctx context.Context, req UpdateItemRequest) (*CheckoutResult, error)

	// RemoveItem deletes a cart line.
	RemoveItem(ctx context.Context, checkoutID, itemID string) (*CheckoutResult, error)

	// SelectShipping picks a shipping option by id.
	SelectShipping(ctx context.Context, checkoutID, optionID string) (*CheckoutResult, error)

	// SetPaymentMethod records the payment method.
	SetPaymentMethod(ctx context.Context, checkoutID, method string) (*CheckoutResult, error)

	// SetTerms records the terms agreement.
	SetTerms(ctx context.Context, checkoutID string, agreed bool) (*CheckoutResult, error)

	// ApplyDiscount sets the discount amount.
	ApplyDiscount(ctx context.Context, req ApplyDiscountRequest) (*CheckoutResult, error)

	// ReviewCheckout runs the submit guards and moves to pending confirmation.
	ReviewCheckout(ctx context.Context, checkoutID string) (*CheckoutResult, error)

	// ConfirmCheckout submits the order. On a backend or payment failure the
	// result is returned together with the error so the caller can show the alert.
	ConfirmCheckout(ctx context.Context, checkoutID string) (*ConfirmResult, error)

	// CompletePayment applies the payment dialog's result.
	CompletePayment(ctx context.Context, checkoutID string, result core.PaymentResult) (*ConfirmResult, error)

	// GetOrder returns a submitted order of a store.
	GetOrder(ctx context.Context, storeID, orderID string) (*OrderResult, error)

	// ParseDocuments turns already-processed OCR documents into transactions.
	ParseDocuments(ctx context.Context, storeID string, docs map[string]core.OCRDocument) (*ParseResult, error)

	// UploadDocuments sends files to OCR one at a time and parses them.
	UploadDocuments(ctx context.Context, storeID string, files []core.UploadFile, progress func(core.UploadProgress)) (*ParseResult, error)

	// TransferTransactions posts transactions to their books sequentially.
	TransferTransactions(ctx context.Context, storeID string, txs []core.Transaction, progress func(core.TransferProgress)) (*TransferResult, error)

	// GetBookkeeperStats returns accumulated bookkeeper usage.
	GetBookkeeperStats(ctx context.Context, storeID string) (*core.BookkeeperStats, error)

	// GetBookBalances returns the account balances of every book of a store.
	GetBookBalances(ctx context.Context, storeID string) (*BalancesResult, error)

	// GetProductForecast returns a product's sales forecast.
	GetProductForecast(ctx context.Context, storeID, productID string, horizonDays int) (*core.ProductForecast, error)
}
