package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration, read from the environment after
// loading an optional .env file.
type Config struct {
	Port           string
	LogLevel       string
	AllowedOrigins string
	JWTSecret      string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	BackendURL     string
	BackendToken   string
	BackendTimeout time.Duration

	OpenAIAPIKey string
	OpenAIModel  string

	StripeAPIKey    string
	StorefrontURL   string
	MerchantName    string
	QRPHMerchantID  string
	GCashMerchantID string

	ShippingConfigPath string
	CheckoutTTL        time.Duration
	ForecastTTL        time.Duration
	ConfirmRatePerMin  int
	ConfirmBurst       int
}

// Load reads .env files (missing files are ignored) and the environment.
// Only malformed values are reported; call Validate before serving.
func Load(files ...string) (Config, error) {
	_ = godotenv.Load(files...)

	var errs []error
	cfg := Config{
		Port:               getenv("SERVER_PORT", "8080"),
		LogLevel:           getenv("LOG_LEVEL", "info"),
		AllowedOrigins:     os.Getenv("ALLOWED_ORIGINS"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            intEnv("REDIS_DB", 0, &errs),
		BackendURL:         os.Getenv("BACKEND_URL"),
		BackendToken:       os.Getenv("BACKEND_TOKEN"),
		BackendTimeout:     durationEnv("BACKEND_TIMEOUT", 15*time.Second, &errs),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:        os.Getenv("OPENAI_MODEL"),
		StripeAPIKey:       os.Getenv("STRIPE_API_KEY"),
		StorefrontURL:      os.Getenv("STOREFRONT_URL"),
		MerchantName:       getenv("MERCHANT_NAME", "Storefront"),
		QRPHMerchantID:     os.Getenv("QRPH_MERCHANT_ID"),
		GCashMerchantID:    os.Getenv("GCASH_MERCHANT_ID"),
		ShippingConfigPath: os.Getenv("SHIPPING_CONFIG"),
		CheckoutTTL:        durationEnv("CHECKOUT_TTL", 2*time.Hour, &errs),
		ForecastTTL:        durationEnv("FORECAST_TTL", 5*time.Minute, &errs),
		ConfirmRatePerMin:  intEnv("CONFIRM_RATE_PER_MIN", 10, &errs),
		ConfirmBurst:       intEnv("CONFIRM_BURST", 3, &errs),
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values the server cannot run without.
func (c Config) Validate() error {
	if len(c.JWTSecret) < 32 {
		return errors.New("config: JWT_SECRET must be at least 32 characters")
	}
	if c.ConfirmRatePerMin <= 0 || c.ConfirmBurst <= 0 {
		return errors.New("config: confirm rate limit must be positive")
	}
	if c.StripeAPIKey != "" && c.StorefrontURL == "" {
		return errors.New("config: STOREFRONT_URL is required when STRIPE_API_KEY is set")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("config: %s: %w", key, err))
		return fallback
	}
	return n
}

func durationEnv(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("config: %s: %w", key, err))
		return fallback
	}
	return d
}
