package app

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

const (
	defaultCheckoutTTL = 2 * time.Hour
	checkoutPurgeEvery = 5 * time.Minute
)

// Deps wires the application service.
type Deps struct {
	Shipping      *core.ShippingConfigSource
	Checkouts     *core.CheckoutService
	Bookkeeping   *core.BookkeepingService
	Forecasts     *core.ForecastService
	Orders        core.OrderReader
	Logger        *zap.Logger
	Clock         func() time.Time
	NewCheckoutID func() string
	CheckoutTTL   time.Duration
}

type appService struct {
	shipping    *core.ShippingConfigSource
	checkouts   *core.CheckoutService
	bookkeeping *core.BookkeepingService
	forecasts   *core.ForecastService
	orders      core.OrderReader
	registry    *checkoutRegistry
	logger      *zap.Logger
	now         func() time.Time
	newID       func() string
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(deps Deps) (ApplicationService, error) {
	if deps.Checkouts == nil {
		return nil, errors.New("app: checkout service is required")
	}
	if deps.Bookkeeping == nil {
		return nil, errors.New("app: bookkeeping service is required")
	}
	shipping := deps.Shipping
	if shipping == nil {
		shipping = core.NewShippingConfigSource()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.NewCheckoutID
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	ttl := deps.CheckoutTTL
	if ttl <= 0 {
		ttl = defaultCheckoutTTL
	}
	return &appService{
		shipping:    shipping,
		checkouts:   deps.Checkouts,
		bookkeeping: deps.Bookkeeping,
		forecasts:   deps.Forecasts,
		orders:      deps.Orders,
		registry:    newCheckoutRegistry(ttl, clock),
		logger:      logger,
		now:         func() time.Time { return clock().UTC() },
		newID:       newID,
	}, nil
}

// StartMaintenance evicts idle checkouts and stale forecasts until ctx is done.
func StartMaintenance(ctx context.Context, svc ApplicationService) {
	s, ok := svc.(*appService)
	if !ok {
		return
	}
	s.registry.startPurge(ctx, checkoutPurgeEvery, func(n int) {
		s.logger.Debug("idle checkouts purged", zap.Int("count", n))
	})
	if s.forecasts != nil {
		go func() {
			ticker := time.NewTicker(checkoutPurgeEvery)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					s.forecasts.PurgeExpired()
				}
			}
		}()
	}
}

func (s *appService) QuoteShipping(_ context.Context, req QuoteShippingRequest) (*ShippingQuoteResult, error) {
	if strings.TrimSpace(req.StoreID) == "" {
		return nil, fmt.Errorf("%w: store id is required", core.ErrValidation)
	}
	if req.Subtotal.IsNegative() {
		return nil, fmt.Errorf("%w: subtotal cannot be negative", core.ErrValidation)
	}
	cfg := s.shipping.ForStore(req.StoreID)
	options := core.CalculateShippingOptions(core.ShippingRequest{
		StoreID:  req.StoreID,
		Province: req.Province,
		City:     req.City,
		Subtotal: req.Subtotal,
	}, cfg)
	res := &ShippingQuoteResult{Options: options, Currency: cfg.Currency}
	if opt, ok := core.SelectDefaultOption(options); ok {
		res.Default = &opt
	}
	if res.Options == nil {
		res.Options = []core.ShippingOption{}
	}
	return res, nil
}

func (s *appService) StartCheckout(_ context.Context, req StartCheckoutRequest) (*CheckoutResult, error) {
	storeID := strings.TrimSpace(req.StoreID)
	cfg := s.shipping.ForStore(storeID)
	now := s.now()
	c, err := core.NewCheckout(s.newID(), storeID, req.Items, cfg, now)
	if err != nil {
		return nil, err
	}
	if req.Customer != nil {
		if err := c.UpdateCustomer(*req.Customer, now); err != nil {
			return nil, err
		}
		if err := s.refreshShipping(c); err != nil {
			return nil, err
		}
	}
	s.registry.put(c)
	s.logger.Info("checkout started",
		zap.String("checkout_id", c.ID),
		zap.String("store_id", storeID),
		zap.Int("items", c.Cart.Len()),
	)
	return &CheckoutResult{Checkout: c.View()}, nil
}

func (s *appService) GetCheckout(_ context.Context, checkoutID string) (*CheckoutResult, error) {
	return s.mutate(checkoutID, func(*core.Checkout) error { return nil })
}

func (s *appService) UpdateCustomer(_ context.Context, checkoutID string, info core.CustomerInfo) (*CheckoutResult, error) {
	return s.mutate(checkoutID, func(c *core.Checkout) error {
		if err := c.UpdateCustomer(info, s.now()); err != nil {
			return err
		}
		return s.refreshShipping(c)
	})
}

func (s *appService) UpdateItem(_ context.Context, req UpdateItemRequest) (*CheckoutResult, error) {
	if req.Quantity == nil && req.Color == nil && req.Size == nil {
		return nil, fmt.Errorf("%w: nothing to update", core.ErrValidation)
	}
	return s.mutate(req.CheckoutID, func(c *core.Checkout) error {
		now := s.now()
		if req.Quantity != nil {
			if err := c.UpdateQuantity(req.ItemID, *req.Quantity, now); err != nil {
				return err
			}
		}
		if req.Color != nil || req.Size != nil {
			color, size := "", ""
			if req.Color != nil {
				color = *req.Color
			}
			if req.Size != nil {
				size = *req.Size
			}
			if err := c.UpdateVariant(req.ItemID, color, size, now); err != nil {
				return err
			}
		}
		return s.refreshShipping(c)
	})
}

func (s *appService) RemoveItem(_ context.Context, checkoutID, itemID string) (*CheckoutResult, error) {
	return s.mutate(checkoutID, func(c *core.Checkout) error {
		if err := c.RemoveItem(itemID, s.now()); err != nil {
			return err
		}
		return s.refreshShipping(c)
	})
}

func (s *appService) SelectShipping(_ context.Context, checkoutID, optionID string) (*CheckoutResult, error) {
	return s.mutate(checkoutID, func(c *core.Checkout) error {
		return c.SelectShipping(optionID, s.now())
	})
}

func (s *appService) SetPaymentMethod(_ context.Context, checkoutID, method string) (*CheckoutResult, error) {
	m, err := core.ParsePaymentMethod(method)
	if err != nil {
		return nil, err
	}
	return s.mutate(checkoutID, func(c *core.Checkout) error {
		return c.SetPaymentMethod(m, s.now())
	})
}

func (s *appService) SetTerms(_ context.Context, checkoutID string, agreed bool) (*CheckoutResult, error) {
	return s.mutate(checkoutID, func(c *core.Checkout) error {
		return c.AgreeToTerms(agreed, s.now())
	})
}

func (s *appService) ApplyDiscount(_ context.Context, req ApplyDiscountRequest) (*CheckoutResult, error) {
	return s.mutate(req.CheckoutID, func(c *core.Checkout) error {
		return c.SetDiscount(req.Amount, s.now())
	})
}

func (s *appService) ReviewCheckout(_ context.Context, checkoutID string) (*CheckoutResult, error) {
	return s.mutate(checkoutID, func(c *core.Checkout) error {
		return c.RequestConfirmation(s.now())
	})
}

func (s *appService) ConfirmCheckout(ctx context.Context, checkoutID string) (*ConfirmResult, error) {
	var res *ConfirmResult
	err := s.registry.with(checkoutID, func(c *core.Checkout) error {
		outcome, err := s.checkouts.Confirm(ctx, c)
		res = &ConfirmResult{Outcome: outcome, Checkout: c.View()}
		return err
	})
	return res, err
}

func (s *appService) CompletePayment(ctx context.Context, checkoutID string, result core.PaymentResult) (*ConfirmResult, error) {
	var res *ConfirmResult
	err := s.registry.with(checkoutID, func(c *core.Checkout) error {
		outcome, err := s.checkouts.CompletePayment(ctx, c, result)
		res = &ConfirmResult{Outcome: outcome, Checkout: c.View()}
		return err
	})
	return res, err
}

func (s *appService) ParseDocuments(ctx context.Context, storeID string, docs map[string]core.OCRDocument) (*ParseResult, error) {
	r, err := s.bookkeeping.Parse(ctx, storeID, docs)
	if err != nil {
		return nil, err
	}
	return toParseResult(r), nil
}

func (s *appService) UploadDocuments(ctx context.Context, storeID string, files []core.UploadFile, progress func(core.UploadProgress)) (*ParseResult, error) {
	r, err := s.bookkeeping.ProcessUploads(ctx, storeID, files, progress)
	if err != nil {
		return nil, err
	}
	return toParseResult(r), nil
}

func (s *appService) TransferTransactions(ctx context.Context, storeID string, txs []core.Transaction, progress func(core.TransferProgress)) (*TransferResult, error) {
	report, err := s.bookkeeping.Transfer(ctx, storeID, txs, progress)
	return &TransferResult{Report: report}, err
}

func (s *appService) GetBookkeeperStats(ctx context.Context, storeID string) (*core.BookkeeperStats, error) {
	st, err := s.bookkeeping.Stats(ctx, storeID)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *appService) GetProductForecast(ctx context.Context, storeID, productID string, horizonDays int) (*core.ProductForecast, error) {
	if s.forecasts == nil {
		return nil, fmt.Errorf("%w: analytics backend is not configured", core.ErrUnavailable)
	}
	f, err := s.forecasts.Forecast(ctx, storeID, productID, horizonDays)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// GetOrder loads a mirrored order for the confirmation page. An order of
// another store is reported as not found.
func (s *appService) GetOrder(ctx context.Context, storeID, orderID string) (*OrderResult, error) {
	if s.orders == nil {
		return nil, fmt.Errorf("%w: order lookup is not configured", core.ErrUnavailable)
	}
	if strings.TrimSpace(storeID) == "" || strings.TrimSpace(orderID) == "" {
		return nil, fmt.Errorf("%w: store id and order id are required", core.ErrValidation)
	}
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(order.StoreID, storeID) {
		return nil, fmt.Errorf("order %s: %w", orderID, core.ErrNotFound)
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) GetBookBalances(ctx context.Context, storeID string) (*BalancesResult, error) {
	balances, err := s.bookkeeping.Balances(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if balances == nil {
		balances = []core.AccountBalance{}
	}
	return &BalancesResult{StoreID: storeID, Balances: balances}, nil
}

func (s *appService) mutate(checkoutID string, fn func(c *core.Checkout) error) (*CheckoutResult, error) {
	var view core.CheckoutView
	err := s.registry.with(checkoutID, func(c *core.Checkout) error {
		if err := fn(c); err != nil {
			return err
		}
		view = c.View()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &CheckoutResult{Checkout: view}, nil
}

// refreshShipping recomputes the options after an address or subtotal change.
func (s *appService) refreshShipping(c *core.Checkout) error {
	if c.Cart.IsEmpty() || strings.TrimSpace(c.Customer.State) == "" {
		return nil
	}
	options := core.CalculateShippingOptions(c.ShippingRequest(), s.shipping.ForStore(c.StoreID))
	return c.ApplyShippingOptions(options, s.now())
}

func toParseResult(r core.ParseResult) *ParseResult {
	txs := r.Transactions
	if txs == nil {
		txs = []core.Transaction{}
	}
	return &ParseResult{Transactions: txs, FailedFiles: r.FailedFiles, Stats: r.Stats}
}
