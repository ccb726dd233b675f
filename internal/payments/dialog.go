package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront-agent/internal/core"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// StatusChecker reports the provider state of a QR/e-wallet payment by the
// reference the dialog was opened with.
type StatusChecker interface {
	PaymentStatus(ctx context.Context, method core.PaymentMethod, reference string) (core.PaymentCheck, error)
}

// DialogConfig configures a QR/e-wallet launcher.
type DialogConfig struct {
	Method       core.PaymentMethod
	MerchantName string
	MerchantID   string
	Checker      StatusChecker
	TTL          time.Duration
	Logger       *zap.Logger
	Clock        func() time.Time
}

// DialogLauncher prepares the payload the storefront's QRPH or GCash dialog
// renders. The provider's own protocol runs in the client; the outcome comes
// back through the payment-result callback and is confirmed with Checker.
type DialogLauncher struct {
	method   core.PaymentMethod
	merchant string
	id       string
	checker  StatusChecker
	ttl      time.Duration
	logger   *zap.Logger
	clock    func() time.Time
}

func NewDialogLauncher(cfg DialogConfig) (*DialogLauncher, error) {
	if cfg.Method != core.PaymentQRPH && cfg.Method != core.PaymentGCash {
		return nil, fmt.Errorf("payments: dialog launcher does not support %q", cfg.Method)
	}
	if strings.TrimSpace(cfg.MerchantID) == "" {
		return nil, errors.New("payments: merchant id is required")
	}
	if cfg.Checker == nil {
		return nil, errors.New("payments: status checker is required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &DialogLauncher{
		method:   cfg.Method,
		merchant: defaultString(cfg.MerchantName, "Store"),
		id:       strings.TrimSpace(cfg.MerchantID),
		checker:  cfg.Checker,
		ttl:      ttl,
		logger:   logger,
		clock:    clock,
	}, nil
}

func (l *DialogLauncher) Open(_ context.Context, data core.PaymentData) (core.PaymentSession, error) {
	cents, err := MinorUnits(data.Amount)
	if err != nil {
		return core.PaymentSession{}, err
	}
	now := l.clock().UTC()
	ref := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()

	payload := strings.Join([]string{
		strings.ToUpper(string(l.method)),
		l.id,
		l.merchant,
		data.OrderID,
		fmt.Sprintf("%d", cents),
		strings.ToUpper(defaultString(data.Currency, "PHP")),
		ref,
	}, "|")

	l.logger.Info("payment dialog prepared",
		zap.String("method", string(l.method)),
		zap.String("order_id", data.OrderID),
		zap.String("reference", ref),
	)
	return core.PaymentSession{
		Method:    l.method,
		SessionID: ref,
		QRPayload: payload,
		Reference: ref,
		ExpiresAt: now.Add(l.ttl),
	}, nil
}

// Verify asks the checker for the state of the reference issued by Open.
func (l *DialogLauncher) Verify(ctx context.Context, session core.PaymentSession) (core.PaymentCheck, error) {
	if session.Reference == "" {
		return core.PaymentCheck{}, fmt.Errorf("%w: payment reference is required", core.ErrValidation)
	}
	check, err := l.checker.PaymentStatus(ctx, l.method, session.Reference)
	if err != nil {
		return core.PaymentCheck{}, fmt.Errorf("%s: check payment %s: %w", l.method, session.Reference, err)
	}
	l.logger.Info("payment dialog verified",
		zap.String("method", string(l.method)),
		zap.String("reference", session.Reference),
		zap.String("status", string(check.Status)),
	)
	return check, nil
}
