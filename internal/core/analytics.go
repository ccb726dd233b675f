package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultForecastTTL     = 5 * time.Minute
	defaultForecastHorizon = 30
	maxForecastHorizon     = 365
)

// ForecastPoint is one period of a product forecast.
type ForecastPoint struct {
	Period   string          `json:"period"`
	Quantity decimal.Decimal `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// ProductForecast is the backend's sales forecast for a product.
type ProductForecast struct {
	ProductID   string          `json:"productId"`
	StoreID     string          `json:"storeId"`
	Points      []ForecastPoint `json:"points"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

// ForecastSource fetches forecasts, typically from the backend.
type ForecastSource interface {
	ProductForecast(ctx context.Context, storeID, productID string, horizonDays int) (ProductForecast, error)
}

// ForecastService serves product forecasts through a TTL cache.
type ForecastService struct {
	source ForecastSource
	cache  *TTLCache[ProductForecast]
	logger *zap.Logger
}

func NewForecastService(source ForecastSource, ttl time.Duration, logger *zap.Logger) *ForecastService {
	if ttl <= 0 {
		ttl = defaultForecastTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ForecastService{
		source: source,
		cache:  NewTTLCache[ProductForecast](ttl, nil),
		logger: logger,
	}
}

// Forecast returns a cached forecast or fetches a fresh one. A zero horizon
// means the default of 30 days.
func (s *ForecastService) Forecast(ctx context.Context, storeID, productID string, horizonDays int) (ProductForecast, error) {
	storeID = strings.TrimSpace(storeID)
	productID = strings.TrimSpace(productID)
	if storeID == "" || productID == "" {
		return ProductForecast{}, fmt.Errorf("%w: store id and product id are required", ErrValidation)
	}
	if horizonDays == 0 {
		horizonDays = defaultForecastHorizon
	}
	if horizonDays < 0 || horizonDays > maxForecastHorizon {
		return ProductForecast{}, fmt.Errorf("%w: horizon must be between 1 and %d days", ErrValidation, maxForecastHorizon)
	}

	key := fmt.Sprintf("%s|%s|%d", storeID, productID, horizonDays)
	if f, ok := s.cache.Get(key); ok {
		return f, nil
	}
	f, err := s.source.ProductForecast(ctx, storeID, productID, horizonDays)
	if err != nil {
		s.logger.Warn("forecast fetch failed",
			zap.String("store_id", storeID),
			zap.String("product_id", productID),
			zap.Error(err),
		)
		return ProductForecast{}, err
	}
	s.cache.Put(key, f)
	return f, nil
}

// PurgeExpired drops stale forecasts.
func (s *ForecastService) PurgeExpired() int {
	return s.cache.Purge()
}
