package payments

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"storefront-agent/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"go.uber.org/zap"
)

const defaultSessionTTL = 30 * time.Minute

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeConfig configures the card launcher.
type StripeConfig struct {
	APIKey string
	// ReturnBaseURL is the storefront origin the buyer is sent back to.
	ReturnBaseURL string
	Backends      *stripe.Backends
	Logger        *zap.Logger
	Clock         func() time.Time
	Sessions      stripeSessionAPI
}

// StripeLauncher opens Stripe Checkout sessions for card payments.
type StripeLauncher struct {
	sessions   stripeSessionAPI
	returnBase string
	logger     *zap.Logger
	clock      func() time.Time
}

func NewStripeLauncher(cfg StripeConfig) (*StripeLauncher, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Sessions == nil {
		return nil, errors.New("stripe: api key is required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.ReturnBaseURL), "/")
	if base == "" {
		return nil, errors.New("stripe: return base url is required")
	}
	sessions := cfg.Sessions
	if sessions == nil {
		sc := client.New(apiKey, cfg.Backends)
		sessions = sc.CheckoutSessions
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &StripeLauncher{sessions: sessions, returnBase: base, logger: logger, clock: clock}, nil
}

// Open creates a hosted checkout session for the order total.
func (l *StripeLauncher) Open(ctx context.Context, data core.PaymentData) (core.PaymentSession, error) {
	amount, err := MinorUnits(data.Amount)
	if err != nil {
		return core.PaymentSession{}, err
	}
	currency := strings.ToLower(defaultString(data.Currency, "PHP"))

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(l.returnURL(data, "success")),
		CancelURL:         stripe.String(l.returnURL(data, "cancelled")),
		ClientReferenceID: stripe.String(data.OrderID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(defaultString(data.Description, "Order "+data.OrderID)),
				},
			},
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{
				"orderId":      data.OrderID,
				"storeId":      data.StoreID,
				"customerName": data.Customer.FullName(),
			},
		},
	}
	if email := strings.TrimSpace(data.Customer.Email); email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey(data))

	session, err := l.sessions.New(params)
	if err != nil {
		return core.PaymentSession{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}

	expiresAt := l.clock().UTC().Add(defaultSessionTTL)
	if session.ExpiresAt != 0 {
		expiresAt = time.Unix(session.ExpiresAt, 0).UTC()
	}
	l.logger.Info("stripe checkout session created",
		zap.String("session_id", session.ID),
		zap.String("order_id", data.OrderID),
	)
	return core.PaymentSession{
		Method:      core.PaymentCard,
		SessionID:   session.ID,
		RedirectURL: session.URL,
		Reference:   data.OrderID,
		ExpiresAt:   expiresAt,
	}, nil
}

// Verify loads the checkout session and reports it paid only when Stripe
// does. The session must belong to the order it was opened for.
func (l *StripeLauncher) Verify(ctx context.Context, session core.PaymentSession) (core.PaymentCheck, error) {
	if session.SessionID == "" {
		return core.PaymentCheck{}, fmt.Errorf("%w: payment session id is required", core.ErrValidation)
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")
	cs, err := l.sessions.Get(session.SessionID, params)
	if err != nil {
		return core.PaymentCheck{}, fmt.Errorf("stripe: get checkout session %s: %w", session.SessionID, err)
	}
	if session.Reference != "" && cs.ClientReferenceID != session.Reference {
		return core.PaymentCheck{}, fmt.Errorf("stripe: checkout session %s belongs to order %q, not %q",
			session.SessionID, cs.ClientReferenceID, session.Reference)
	}

	check := core.PaymentCheck{Status: core.PaymentCheckPending}
	switch {
	case cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		check.Status = core.PaymentCheckPaid
	case cs.Status == stripe.CheckoutSessionStatusExpired:
		check.Status = core.PaymentCheckFailed
	}
	if cs.PaymentIntent != nil {
		check.Reference = cs.PaymentIntent.ID
	}
	l.logger.Info("stripe checkout session verified",
		zap.String("session_id", cs.ID),
		zap.String("order_id", cs.ClientReferenceID),
		zap.String("payment_status", string(cs.PaymentStatus)),
	)
	return check, nil
}

// idempotencyKey is unique per launcher open, so a retry after an edited
// cart does not replay the first attempt's parameters.
func idempotencyKey(data core.PaymentData) string {
	attempt := data.Attempt
	if attempt < 1 {
		attempt = 1
	}
	return fmt.Sprintf("checkout-%s-%d", data.OrderID, attempt)
}

func (l *StripeLauncher) returnURL(data core.PaymentData, result string) string {
	q := url.Values{}
	q.Set("orderId", data.OrderID)
	q.Set("payment", result)
	return l.returnBase + "/checkout/payment-return?" + q.Encode()
}

// MinorUnits converts a peso amount to centavos. Fractions of a centavo are rejected.
func MinorUnits(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, fmt.Errorf("%w: payment amount must be positive", core.ErrValidation)
	}
	cents := amount.Shift(2)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, fmt.Errorf("%w: payment amount %s has more than 2 decimals", core.ErrValidation, amount)
	}
	return cents.IntPart(), nil
}

func defaultString(v, fallback string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return fallback
}
