// Package bootstrap builds the application service from configuration. The
// server and the CLI share it.
package bootstrap

import (
	"context"
	"fmt"

	"storefront-agent/internal/ai"
	"storefront-agent/internal/app"
	"storefront-agent/internal/backend"
	"storefront-agent/internal/config"
	"storefront-agent/internal/core"
	"storefront-agent/internal/db"
	"storefront-agent/internal/payments"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Runtime is a wired application plus the resources it holds.
type Runtime struct {
	Service app.ApplicationService
	Pool    *pgxpool.Pool
	Redis   *redis.Client
}

// Close releases database and Redis connections.
func (rt *Runtime) Close() {
	if rt.Redis != nil {
		_ = rt.Redis.Close()
	}
	if rt.Pool != nil {
		rt.Pool.Close()
	}
}

// Build connects optional stores and wires every service. PostgreSQL and
// Redis are used when configured; otherwise orders, book entries and stats
// fall back to the backend API and in-memory stores.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Runtime, error) {
	rt := &Runtime{}
	ok := false
	defer func() {
		if !ok {
			rt.Close()
		}
	}()

	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		rt.Pool = pool
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		rt.Redis = rdb
	}

	api := backend.NewClient(cfg.BackendURL, cfg.BackendToken, cfg.BackendTimeout)

	shipping := core.NewShippingConfigSource()
	if cfg.ShippingConfigPath != "" {
		src, err := core.LoadShippingConfig(cfg.ShippingConfigPath)
		if err != nil {
			return nil, err
		}
		shipping = src
	}

	var (
		mirror   orderStore        = core.NewMemoryOrderMirror()
		poster   core.LedgerPoster = api
		balances core.BalanceReader
	)
	if rt.Pool != nil {
		ledger := core.NewLedger(rt.Pool)
		mirror = core.NewPostgresOrderMirror(rt.Pool)
		poster = ledger
		balances = ledger
	}

	launchers, err := buildLaunchers(cfg, api, logger)
	if err != nil {
		return nil, err
	}
	checkouts, err := core.NewCheckoutService(core.CheckoutServiceDeps{
		Mirror:    mirror,
		Gateway:   api,
		Launchers: launchers,
		Logger:    logger.Named("checkout"),
	})
	if err != nil {
		return nil, err
	}

	var stats core.StatsStore = core.NewMemoryStatsStore(core.DefaultSavingsModel())
	if rt.Redis != nil {
		stats = core.NewRedisStatsStore(rt.Redis, core.DefaultSavingsModel())
	}

	deps := core.BookkeepingServiceDeps{
		Stats:    stats,
		Balances: balances,
		Worker:   core.NewTransferWorker(poster, logger.Named("transfer")),
		Logger:   logger.Named("bookkeeping"),
	}
	if cfg.BackendURL != "" {
		deps.Processor = api
		deps.Usage = api
	}
	if cfg.OpenAIAPIKey != "" {
		deps.Suggester = ai.NewCategorizer(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	} else {
		logger.Warn("OPENAI_API_KEY is not set; low-confidence transactions keep their fallback category")
	}
	bookkeeping, err := core.NewBookkeepingService(deps)
	if err != nil {
		return nil, err
	}

	var forecasts *core.ForecastService
	if cfg.BackendURL != "" {
		forecasts = core.NewForecastService(api, cfg.ForecastTTL, logger.Named("analytics"))
	}

	svc, err := app.NewAppService(app.Deps{
		Shipping:    shipping,
		Checkouts:   checkouts,
		Bookkeeping: bookkeeping,
		Forecasts:   forecasts,
		Orders:      mirror,
		Logger:      logger.Named("app"),
		CheckoutTTL: cfg.CheckoutTTL,
	})
	if err != nil {
		return nil, err
	}
	rt.Service = svc
	ok = true
	return rt, nil
}

// orderStore is an order mirror that can also be read back.
type orderStore interface {
	core.OrderMirror
	core.OrderReader
}

func buildLaunchers(cfg config.Config, api *backend.Client, logger *zap.Logger) (map[core.PaymentMethod]core.PaymentLauncher, error) {
	launchers := make(map[core.PaymentMethod]core.PaymentLauncher)
	if cfg.StripeAPIKey != "" {
		card, err := payments.NewStripeLauncher(payments.StripeConfig{
			APIKey:        cfg.StripeAPIKey,
			ReturnBaseURL: cfg.StorefrontURL,
			Logger:        logger.Named("stripe"),
		})
		if err != nil {
			return nil, err
		}
		launchers[core.PaymentCard] = card
	}
	dialogs := []struct {
		method core.PaymentMethod
		id     string
	}{
		{core.PaymentQRPH, cfg.QRPHMerchantID},
		{core.PaymentGCash, cfg.GCashMerchantID},
	}
	for _, d := range dialogs {
		if d.id == "" {
			continue
		}
		l, err := payments.NewDialogLauncher(payments.DialogConfig{
			Method:       d.method,
			MerchantName: cfg.MerchantName,
			MerchantID:   d.id,
			Checker:      api,
			Logger:       logger.Named(string(d.method)),
		})
		if err != nil {
			return nil, err
		}
		launchers[d.method] = l
	}
	return launchers, nil
}
