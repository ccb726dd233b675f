package core

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var (
	// ErrValidation is the root of every input validation failure. Callers map it to a 4xx response.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when a checkout, cart item or shipping option does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned when a checkout operation is not allowed in its current state.
	ErrInvalidTransition = errors.New("invalid checkout transition")
	// ErrOrderSubmission wraps backend failures while creating an order.
	ErrOrderSubmission = errors.New("order submission failed")
	// ErrPaymentFailed wraps payment launcher failures.
	ErrPaymentFailed = errors.New("payment failed")
	// ErrPaymentUnverified is returned when the provider has not confirmed a payment the client reported as successful.
	ErrPaymentUnverified = errors.New("payment not verified")
	// ErrPaymentUnavailable is returned when no launcher is configured for a payment method.
	ErrPaymentUnavailable = errors.New("payment method unavailable")
	// ErrDuplicateEntry is returned by ledger posters when an idempotency key was already posted.
	ErrDuplicateEntry = errors.New("duplicate book entry")
	// ErrTransferAborted wraps the error that stopped a transfer loop.
	ErrTransferAborted = errors.New("transfer aborted")
	// ErrUnavailable signals a dependency that is not configured for this deployment.
	ErrUnavailable = errors.New("unavailable")
)

var (
	ErrItemNotFound           = fmt.Errorf("cart item %w", ErrNotFound)
	ErrShippingOptionNotFound = fmt.Errorf("shipping option %w", ErrNotFound)

	ErrInvalidQuantity       = fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	ErrInvalidVariant        = fmt.Errorf("%w: variant is not offered for this item", ErrValidation)
	ErrCartEmpty             = fmt.Errorf("%w: cart is empty", ErrValidation)
	ErrTermsNotAgreed        = fmt.Errorf("%w: terms and conditions must be agreed", ErrValidation)
	ErrShippingNotSelected   = fmt.Errorf("%w: shipping option is required", ErrValidation)
	ErrShippingOptionBlocked = fmt.Errorf("%w: shipping option is below its minimum order amount", ErrValidation)
	ErrShippingUnavailable   = fmt.Errorf("%w: shipping option is not available for this address", ErrValidation)
	ErrAddressMissing        = fmt.Errorf("%w: shipping address is required", ErrValidation)
	ErrPaymentMethodMissing  = fmt.Errorf("%w: payment method is required", ErrValidation)
	ErrUnknownPaymentMethod  = fmt.Errorf("%w: unknown payment method", ErrValidation)
)

func notFoundOr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
