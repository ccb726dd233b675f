package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CheckoutState is the position of a checkout in its lifecycle:
//
//	collecting_info → options_selected → pending_confirmation → submitting → success
//	                                                                       ↘ error
//
// A COD backend failure returns to collecting_info; a payment launcher or
// payment callback failure returns to pending_confirmation.
type CheckoutState string

const (
	StateCollectingInfo      CheckoutState = "collecting_info"
	StateOptionsSelected     CheckoutState = "options_selected"
	StatePendingConfirmation CheckoutState = "pending_confirmation"
	StateSubmitting          CheckoutState = "submitting"
	StateSuccess             CheckoutState = "success"
	StateError               CheckoutState = "error"
)

// Checkout is the server-side state container of one buyer checkout. It is
// not safe for concurrent use; the registry serializes access per checkout.
type Checkout struct {
	ID              string
	StoreID         string
	State           CheckoutState
	Customer        CustomerInfo
	Cart            *Cart
	Options         []ShippingOption
	Selected        *ShippingOption
	PaymentMethod   PaymentMethod
	TermsAgreed     bool
	Discount        decimal.Decimal
	TaxRate         decimal.Decimal
	Currency        string
	Summary         OrderSummary
	Loading         bool
	Order           *OrderInput
	Payment         *PaymentSession
	PaymentAttempts int
	LastError       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CheckoutView is the JSON snapshot returned to clients.
type CheckoutView struct {
	ID            string           `json:"id"`
	StoreID       string           `json:"storeId"`
	State         CheckoutState    `json:"state"`
	Customer      CustomerInfo     `json:"customer"`
	Items         []CartItem       `json:"items"`
	Options       []ShippingOption `json:"shippingOptions"`
	Selected      *ShippingOption  `json:"selectedShipping,omitempty"`
	PaymentMethod PaymentMethod    `json:"paymentMethod,omitempty"`
	TermsAgreed   bool             `json:"termsAgreed"`
	Currency      string           `json:"currency"`
	Summary       OrderSummary     `json:"summary"`
	Loading       bool             `json:"loading"`
	Order         *OrderInput      `json:"order,omitempty"`
	Payment       *PaymentSession  `json:"payment,omitempty"`
	Error         string           `json:"error,omitempty"`
	EmptyCart     bool             `json:"emptyCart"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// NewCheckout starts a checkout in collecting_info.
func NewCheckout(id, storeID string, items []CartItem, cfg StoreShippingConfig, now time.Time) (*Checkout, error) {
	if id == "" || storeID == "" {
		return nil, fmt.Errorf("%w: checkout id and store id are required", ErrValidation)
	}
	cart, err := NewCart(items)
	if err != nil {
		return nil, err
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "PHP"
	}
	c := &Checkout{
		ID:        id,
		StoreID:   storeID,
		State:     StateCollectingInfo,
		Cart:      cart,
		TaxRate:   cfg.TaxRate,
		Currency:  currency,
		Discount:  decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	c.recompute()
	return c, nil
}

// View snapshots the checkout for rendering.
func (c *Checkout) View() CheckoutView {
	v := CheckoutView{
		ID:            c.ID,
		StoreID:       c.StoreID,
		State:         c.State,
		Customer:      c.Customer,
		Items:         c.Cart.Items(),
		Options:       append([]ShippingOption(nil), c.Options...),
		PaymentMethod: c.PaymentMethod,
		TermsAgreed:   c.TermsAgreed,
		Currency:      c.Currency,
		Summary:       c.Summary,
		Loading:       c.Loading,
		Error:         c.LastError,
		EmptyCart:     c.Cart.IsEmpty(),
		UpdatedAt:     c.UpdatedAt,
	}
	if c.Selected != nil {
		sel := *c.Selected
		v.Selected = &sel
	}
	if c.Order != nil {
		order := *c.Order
		v.Order = &order
	}
	if c.Payment != nil {
		p := *c.Payment
		v.Payment = &p
	}
	return v
}

// ShippingRequest builds the calculator input from the current address and subtotal.
func (c *Checkout) ShippingRequest() ShippingRequest {
	return ShippingRequest{
		StoreID:  c.StoreID,
		Province: c.Customer.State,
		City:     c.Customer.City,
		Subtotal: c.Cart.Subtotal(),
	}
}

// UpdateCustomer replaces the buyer details. Shipping options become stale
// when the province or city changes and must be re-quoted.
func (c *Checkout) UpdateCustomer(info CustomerInfo, now time.Time) error {
	if err := c.ensureEditable(); err != nil {
		return err
	}
	info.Normalize()
	addressChanged := info.State != c.Customer.State || info.City != c.Customer.City
	c.Customer = info
	if addressChanged {
		c.Options = nil
		c.Selected = nil
	}
	c.settle(now)
	return nil
}

// ApplyShippingOptions stores freshly calculated options. A current selection
// is kept (with refreshed fee and flags) when it is still offered; otherwise
// the default option is auto-selected.
func (c *Checkout) ApplyShippingOptions(options []ShippingOption, now time.Time) error {
	if err := c.ensureEditable(); err != nil {
		return err
	}
	c.Options = append([]ShippingOption(nil), options...)
	var next *ShippingOption
	if c.Selected != nil {
		if opt, ok := FindOption(c.Options, c.Selected.ID); ok {
			next = &opt
		}
	}
	if next == nil {
		if opt, ok := SelectDefaultOption(c.Options); ok {
			next = &opt
		}
	}
	c.Selected = next
	c.settle(now)
	return nil
}

// SelectShipping picks one of the current options.
func (c *Checkout) SelectShipping(optionID string, now time.Time) error {
	if err := c.ensureEditable(); err != nil {
		return err
	}
	opt, ok := FindOption(c.Options, optionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrShippingOptionNotFound, optionID)
	}
	c.Selected = &opt
	c.settle(now)
	return nil
}

// UpdateQuantity changes a line quantity and recomputes the summary.
func (c *Checkout) UpdateQuantity(itemID string, quantity int, now time.Time) error {
	if err := c.ensureEditable(); err != nil {
		return err
	}
	if err := c.Cart.UpdateQuantity(itemID, quantity); err != nil {
		return err
	}
	c.settle(now)
	return nil
}

// UpdateVariant changes a line's color and/or size.
func (c *Checkout) UpdateVariant(itemID, color, size string, now time.Time) error {
	if err := c.ensureEditable(); err != nil {
		return err
	}
	if err := c.Cart.UpdateVariant(itemID, color, size); err != nil {
		return err
	}
	c.settle(now)
	return nil
}

// RemoveItem deletes a line. Removing the last line empties the cart and
// clears the shipping selection.
func (c *Checkout) RemoveItem(itemID string, now time.Time) error {
	if err := c.ensureEditable(); err != nil {
		return err
	}
	if err := c.Cart.Remove(itemID); err != nil {
		return err
	}
	if c.Cart.IsEmpty() {
		c.Options = nil
		c.Selected = nil
	}
	c.settle(now)
	return nil
}

// SetPaymentMethod records the buyer's payment choice.
func (c *Checkout) SetPaymentMethod(method PaymentMethod, now time.Time) error {
	if err := c.ensureEditable(); err != nil {
		return err
	}
	c.PaymentMethod = method
	c.settle(now)
	return nil
}

// AgreeToTerms records the terms checkbox.
func (c *Checkout) AgreeToTerms(agreed bool, now time.Time) error {
	if err := c.ensureEditable(); err != nil {
		return err
	}
	c.TermsAgreed = agreed
	c.settle(now)
	return nil
}

// SetDiscount applies a voucher amount validated elsewhere.
func (c *Checkout) SetDiscount(amount decimal.Decimal, now time.Time) error {
	if err := c.ensureEditable(); err != nil {
		return err
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: discount cannot be negative", ErrValidation)
	}
	c.Discount = amount
	c.settle(now)
	return nil
}

// RequestConfirmation runs the submit guards and moves to pending_confirmation.
func (c *Checkout) RequestConfirmation(now time.Time) error {
	if err := c.ensureEditable(); err != nil {
		return err
	}
	if err := c.Guard(); err != nil {
		c.LastError = err.Error()
		c.UpdatedAt = now
		return err
	}
	c.State = StatePendingConfirmation
	c.LastError = ""
	c.UpdatedAt = now
	return nil
}

// Guard checks every precondition of submission.
func (c *Checkout) Guard() error {
	if c.Cart.IsEmpty() {
		return ErrCartEmpty
	}
	if !c.TermsAgreed {
		return ErrTermsNotAgreed
	}
	if c.Selected == nil {
		return ErrShippingNotSelected
	}
	if c.Selected.Disabled {
		return ErrShippingOptionBlocked
	}
	if !c.Selected.Available {
		return ErrShippingUnavailable
	}
	if !c.Customer.HasAddress() {
		return ErrAddressMissing
	}
	if c.Summary.Total.IsPositive() && c.PaymentMethod == "" {
		return ErrPaymentMethodMissing
	}
	return c.Customer.Validate()
}

// beginSubmit moves pending_confirmation → submitting after re-checking the guards.
func (c *Checkout) beginSubmit(now time.Time) error {
	if c.State != StatePendingConfirmation {
		return fmt.Errorf("%w: cannot submit from %s", ErrInvalidTransition, c.State)
	}
	if err := c.Guard(); err != nil {
		c.State = StateCollectingInfo
		c.LastError = err.Error()
		return err
	}
	c.State = StateSubmitting
	c.Loading = true
	c.LastError = ""
	c.UpdatedAt = now
	return nil
}

// abortSubmit returns to collecting_info after a backend failure.
func (c *Checkout) abortSubmit(message string, now time.Time) {
	c.State = StateCollectingInfo
	c.Loading = false
	c.Order = nil
	c.LastError = message
	c.UpdatedAt = now
}

// holdPending keeps the order pending after a payment failure so the buyer can retry.
func (c *Checkout) holdPending(message string, now time.Time) {
	c.State = StatePendingConfirmation
	c.Loading = false
	c.Payment = nil
	c.LastError = message
	c.UpdatedAt = now
}

// awaitPayment parks the checkout in submitting while the payment dialog is open.
func (c *Checkout) awaitPayment(session PaymentSession, now time.Time) {
	c.Payment = &session
	c.Loading = false
	c.UpdatedAt = now
}

// awaitVerification leaves the payment session open while the provider has
// not confirmed the payment, so the result can be reported again.
func (c *Checkout) awaitVerification(message string, now time.Time) {
	c.Loading = false
	c.LastError = message
	c.UpdatedAt = now
}

func (c *Checkout) complete(now time.Time) {
	c.State = StateSuccess
	c.Loading = false
	c.LastError = ""
	c.UpdatedAt = now
}

func (c *Checkout) ensureEditable() error {
	switch c.State {
	case StateSubmitting, StateSuccess, StateError:
		return fmt.Errorf("%w: checkout is %s", ErrInvalidTransition, c.State)
	}
	return nil
}

// settle recomputes the summary and derives the editing state. Any edit
// after review requires a new review.
func (c *Checkout) settle(now time.Time) {
	c.recompute()
	if c.Selected != nil && !c.Cart.IsEmpty() {
		c.State = StateOptionsSelected
	} else {
		c.State = StateCollectingInfo
	}
	c.UpdatedAt = now
}

func (c *Checkout) recompute() {
	shipping := decimal.Zero
	if c.Selected != nil {
		shipping = c.Selected.Fee
	}
	c.Summary = ComputeSummary(c.Cart.Subtotal(), shipping, c.TaxRate, c.Discount)
}
