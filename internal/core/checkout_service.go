package core

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultConfirmationPath = "/order-confirmation"

// OrderMirror is the best-effort local copy of submitted orders.
type OrderMirror interface {
	AddOrder(ctx context.Context, order OrderInput) error
}

// OrderGateway creates COD orders on the backend.
type OrderGateway interface {
	CreatePublicOrder(ctx context.Context, order OrderInput) error
}

// PaymentLauncher opens a payment dialog for one payment method. The client
// reports the dialog's result through CheckoutService.CompletePayment, and
// Verify asks the provider whether the session was actually paid.
type PaymentLauncher interface {
	Open(ctx context.Context, data PaymentData) (PaymentSession, error)
	Verify(ctx context.Context, session PaymentSession) (PaymentCheck, error)
}

// PaymentCheckStatus is the provider's state of a payment session.
type PaymentCheckStatus string

const (
	PaymentCheckPaid    PaymentCheckStatus = "paid"
	PaymentCheckPending PaymentCheckStatus = "pending"
	PaymentCheckFailed  PaymentCheckStatus = "failed"
)

// PaymentCheck is the provider's answer for one payment session.
type PaymentCheck struct {
	Status    PaymentCheckStatus
	// Reference is the provider's id of the captured payment.
	Reference string
}

// PaymentData is what a launcher needs to start collecting a payment.
type PaymentData struct {
	OrderID     string
	StoreID     string
	Method      PaymentMethod
	Amount      decimal.Decimal
	Currency    string
	Description string
	Customer    CustomerInfo
	// Attempt numbers the launcher opens for this order, starting at 1.
	Attempt     int
}

// PaymentSession describes an opened payment dialog for the client.
type PaymentSession struct {
	Method      PaymentMethod `json:"method"`
	SessionID   string        `json:"sessionId"`
	RedirectURL string        `json:"redirectUrl,omitempty"`
	QRPayload   string        `json:"qrPayload,omitempty"`
	Reference   string        `json:"reference,omitempty"`
	ExpiresAt   time.Time     `json:"expiresAt"`
}

// PaymentResult is reported by the client when the dialog closes.
type PaymentResult struct {
	Success   bool   `json:"success"`
	Reference string `json:"reference,omitempty"`
	Message   string `json:"message,omitempty"`
}

// CheckoutOutcome is the result of a submit or payment callback.
type CheckoutOutcome struct {
	State       CheckoutState   `json:"state"`
	Order       *OrderInput     `json:"order,omitempty"`
	RedirectURL string          `json:"redirectUrl,omitempty"`
	Payment     *PaymentSession `json:"payment,omitempty"`
	Alert       string          `json:"alert,omitempty"`
}

// CheckoutServiceDeps wires the collaborators of the checkout submit flow.
type CheckoutServiceDeps struct {
	Mirror           OrderMirror
	Gateway          OrderGateway
	Launchers        map[PaymentMethod]PaymentLauncher
	Logger           *zap.Logger
	Clock            func() time.Time
	NewOrderID       func() string
	ConfirmationPath string
}

// CheckoutService submits checkouts and applies payment callbacks.
type CheckoutService struct {
	mirror           OrderMirror
	gateway          OrderGateway
	launchers        map[PaymentMethod]PaymentLauncher
	logger           *zap.Logger
	now              func() time.Time
	newOrderID       func() string
	confirmationPath string
}

func NewCheckoutService(deps CheckoutServiceDeps) (*CheckoutService, error) {
	if deps.Gateway == nil {
		return nil, errors.New("checkout service: order gateway is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	newID := deps.NewOrderID
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	path := deps.ConfirmationPath
	if path == "" {
		path = defaultConfirmationPath
	}
	launchers := make(map[PaymentMethod]PaymentLauncher, len(deps.Launchers))
	for m, l := range deps.Launchers {
		if l != nil {
			launchers[m] = l
		}
	}
	return &CheckoutService{
		mirror:           deps.Mirror,
		gateway:          deps.Gateway,
		launchers:        launchers,
		logger:           logger,
		now:              func() time.Time { return clock().UTC() },
		newOrderID:       newID,
		confirmationPath: path,
	}, nil
}

// Confirm submits a checkout that is pending confirmation.
//
// A zero total short-circuits to a paid order without opening a payment
// launcher. COD orders are created on the backend; a backend failure returns
// the checkout to collecting_info and the outcome carries the alert alongside
// an error wrapping ErrOrderSubmission. Launcher methods mirror the pending
// order and open the dialog; a launcher failure keeps the order pending.
func (s *CheckoutService) Confirm(ctx context.Context, c *Checkout) (CheckoutOutcome, error) {
	now := s.now()
	if err := c.beginSubmit(now); err != nil {
		return outcomeOf(c), err
	}

	if c.Summary.IsFree() {
		order, err := s.prepare(c, OrderStatusPaid, now)
		if err != nil {
			return outcomeOf(c), err
		}
		s.logger.Info("zero-total order marked paid",
			zap.String("order_id", order.ID),
			zap.String("store_id", order.StoreID),
			zap.String("discount", order.Summary.Discount.StringFixed(2)),
		)
		s.mirrorOrder(ctx, order)
		c.Order = &order
		c.complete(now)
		return s.redirect(c), nil
	}

	switch {
	case c.PaymentMethod == PaymentCOD:
		return s.submitCOD(ctx, c, now)
	case c.PaymentMethod.RequiresLauncher():
		return s.launchPayment(ctx, c, now)
	default:
		c.abortSubmit(ErrUnknownPaymentMethod.Error(), now)
		return outcomeOf(c), fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, c.PaymentMethod)
	}
}

func (s *CheckoutService) submitCOD(ctx context.Context, c *Checkout, now time.Time) (CheckoutOutcome, error) {
	order, err := s.prepare(c, OrderStatusPending, now)
	if err != nil {
		return outcomeOf(c), err
	}
	if err := s.gateway.CreatePublicOrder(ctx, order); err != nil {
		s.logger.Error("cod order submission failed",
			zap.String("checkout_id", c.ID),
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
		c.abortSubmit("We could not place your order. Please try again.", now)
		out := outcomeOf(c)
		out.Alert = c.LastError
		return out, fmt.Errorf("%w: %w", ErrOrderSubmission, err)
	}
	s.mirrorOrder(ctx, order)
	c.Order = &order
	c.complete(now)
	return s.redirect(c), nil
}

func (s *CheckoutService) launchPayment(ctx context.Context, c *Checkout, now time.Time) (CheckoutOutcome, error) {
	launcher, ok := s.launchers[c.PaymentMethod]
	if !ok {
		c.holdPending(fmt.Sprintf("%s payments are not available right now", c.PaymentMethod), now)
		out := outcomeOf(c)
		out.Alert = c.LastError
		return out, fmt.Errorf("%w: %s", ErrPaymentUnavailable, c.PaymentMethod)
	}

	order, err := s.prepare(c, OrderStatusPending, now)
	if err != nil {
		return outcomeOf(c), err
	}
	if c.Order == nil || c.Order.ID != order.ID {
		c.PaymentAttempts = 0
	}
	c.PaymentAttempts++
	s.mirrorOrder(ctx, order)
	c.Order = &order

	session, err := launcher.Open(ctx, PaymentData{
		OrderID:     order.ID,
		StoreID:     order.StoreID,
		Method:      c.PaymentMethod,
		Amount:      order.Price,
		Currency:    c.Currency,
		Description: fmt.Sprintf("Order %s", order.ID),
		Customer:    order.Customer,
		Attempt:     c.PaymentAttempts,
	})
	if err != nil {
		s.logger.Warn("payment launcher failed",
			zap.String("checkout_id", c.ID),
			zap.String("order_id", order.ID),
			zap.String("method", string(c.PaymentMethod)),
			zap.Error(err),
		)
		c.holdPending("Payment could not be started. Please try again.", now)
		out := outcomeOf(c)
		out.Alert = c.LastError
		return out, fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}
	if session.Method == "" {
		session.Method = c.PaymentMethod
	}
	c.awaitPayment(session, now)
	return outcomeOf(c), nil
}

// CompletePayment applies the payment dialog's result. A reported success
// is checked with the provider before the order is marked paid: an
// unconfirmed payment keeps the session open and returns an error wrapping
// ErrPaymentUnverified, and a payment the provider reports as failed is
// handled like a failed dialog. Failure keeps the order pending with an
// inline error so the buyer can retry.
func (s *CheckoutService) CompletePayment(ctx context.Context, c *Checkout, result PaymentResult) (CheckoutOutcome, error) {
	if c.State != StateSubmitting || c.Order == nil || c.Payment == nil {
		return outcomeOf(c), fmt.Errorf("%w: no payment in progress", ErrInvalidTransition)
	}
	now := s.now()
	if !result.Success {
		msg := result.Message
		if msg == "" {
			msg = "Payment was not completed."
		}
		return s.paymentNotCompleted(c, msg, now), nil
	}

	check, err := s.verify(ctx, c)
	if err != nil {
		s.logger.Warn("payment verification failed",
			zap.String("checkout_id", c.ID),
			zap.String("order_id", c.Order.ID),
			zap.String("session_id", c.Payment.SessionID),
			zap.Error(err),
		)
		c.awaitVerification("We could not confirm your payment yet. Please try again shortly.", now)
		out := outcomeOf(c)
		out.Alert = c.LastError
		return out, fmt.Errorf("%w: %w", ErrPaymentUnverified, err)
	}

	switch check.Status {
	case PaymentCheckPaid:
	case PaymentCheckFailed:
		s.logger.Warn("reported payment rejected by provider",
			zap.String("checkout_id", c.ID),
			zap.String("order_id", c.Order.ID),
			zap.String("session_id", c.Payment.SessionID),
		)
		return s.paymentNotCompleted(c, "Payment was not completed.", now), nil
	default:
		c.awaitVerification("Your payment is still being confirmed.", now)
		out := outcomeOf(c)
		out.Alert = c.LastError
		return out, fmt.Errorf("%w: provider reports the payment as %s", ErrPaymentUnverified, check.Status)
	}

	paid := *c.Order
	paid.Status = OrderStatusPaid
	paid.Payment.Reference = check.Reference
	s.mirrorOrder(ctx, paid)
	c.Order = &paid
	c.complete(now)
	return s.redirect(c), nil
}

func (s *CheckoutService) verify(ctx context.Context, c *Checkout) (PaymentCheck, error) {
	launcher, ok := s.launchers[c.Payment.Method]
	if !ok {
		return PaymentCheck{}, fmt.Errorf("%w: %s", ErrPaymentUnavailable, c.Payment.Method)
	}
	return launcher.Verify(ctx, *c.Payment)
}

func (s *CheckoutService) paymentNotCompleted(c *Checkout, msg string, now time.Time) CheckoutOutcome {
	s.logger.Info("payment not completed",
		zap.String("checkout_id", c.ID),
		zap.String("order_id", c.Order.ID),
		zap.String("message", msg),
	)
	c.holdPending(msg, now)
	out := outcomeOf(c)
	out.Alert = msg
	return out
}

// assemble freezes the checkout into an order. A retry after a payment
// failure reuses the pending order id.
func (s *CheckoutService) assemble(c *Checkout, status OrderStatus, now time.Time) OrderInput {
	id := ""
	createdAt := now
	if c.Order != nil && c.Order.Status == OrderStatusPending {
		id = c.Order.ID
		createdAt = c.Order.CreatedAt
	}
	if id == "" {
		id = s.newOrderID()
	}
	return BuildOrder(c, id, status, createdAt)
}

// prepare assembles the order and validates it before it leaves the
// service. An invalid order aborts the submission.
func (s *CheckoutService) prepare(c *Checkout, status OrderStatus, now time.Time) (OrderInput, error) {
	order := s.assemble(c, status, now)
	if err := order.Validate(); err != nil {
		s.logger.Error("assembled order is invalid",
			zap.String("checkout_id", c.ID),
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
		c.abortSubmit(err.Error(), now)
		return OrderInput{}, err
	}
	return order, nil
}

// BuildOrder normalizes the checkout into an OrderInput.
func BuildOrder(c *Checkout, id string, status OrderStatus, createdAt time.Time) OrderInput {
	items := c.Cart.Items()
	lines := make([]OrderItem, 0, len(items))
	for _, it := range items {
		lines = append(lines, OrderItem{
			ProductID: it.ID,
			Name:      it.Name,
			Image:     it.Image,
			Price:     it.Price,
			Quantity:  it.Quantity,
			Color:     it.SelectedColor,
			Size:      it.SelectedSize,
			LineTotal: it.LineTotal(),
		})
	}
	var delivery Delivery
	if c.Selected != nil {
		delivery = Delivery{Method: c.Selected.CourierName, Speed: c.Selected.Description}
	}
	return OrderInput{
		ID:         id,
		StoreID:    c.StoreID,
		Customer:   c.Customer,
		OrderItems: lines,
		Price:      c.Summary.Total,
		Status:     status,
		Delivery:   delivery,
		Shipping:   ShippingDetails{Address: c.Customer.FormattedAddress(), Phone: c.Customer.Phone},
		Payment:    PaymentDetails{Method: c.PaymentMethod},
		Summary:    c.Summary,
		CreatedAt:  createdAt,
	}
}

func (s *CheckoutService) mirrorOrder(ctx context.Context, order OrderInput) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.AddOrder(ctx, order); err != nil {
		s.logger.Warn("order mirror save failed",
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
	}
}

func (s *CheckoutService) redirect(c *Checkout) CheckoutOutcome {
	out := outcomeOf(c)
	q := url.Values{}
	q.Set("orderId", c.Order.ID)
	q.Set("status", string(c.Order.Status))
	out.RedirectURL = s.confirmationPath + "?" + q.Encode()
	return out
}

func outcomeOf(c *Checkout) CheckoutOutcome {
	out := CheckoutOutcome{State: c.State}
	if c.Order != nil {
		order := *c.Order
		out.Order = &order
	}
	if c.Payment != nil {
		p := *c.Payment
		out.Payment = &p
	}
	return out
}
