package core

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// DefaultStoreKey is the shipping config used by stores without their own entry.
const DefaultStoreKey = "default"

// ShippingConfigSource resolves the shipping setup of a store.
type ShippingConfigSource struct {
	stores map[string]StoreShippingConfig
}

type shippingConfigFile struct {
	Stores map[string]StoreShippingConfig `yaml:"stores"`
}

// LoadShippingConfig reads a YAML file of the form
//
//	stores:
//	  default:
//	    currency: PHP
//	    taxRate: 0
//	    couriers:
//	      - id: jnt-ncr
//	        courier: J&T Express
//	        region: metro_manila
//	        fee: 85
//
// A missing default entry is filled with the built-in config.
func LoadShippingConfig(path string) (*ShippingConfigSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read shipping config %s: %w", path, err)
	}
	return ParseShippingConfig(data)
}

// ParseShippingConfig decodes YAML shipping config bytes.
func ParseShippingConfig(data []byte) (*ShippingConfigSource, error) {
	var file shippingConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse shipping config: %w", err)
	}
	src := &ShippingConfigSource{stores: make(map[string]StoreShippingConfig, len(file.Stores)+1)}
	for storeID, cfg := range file.Stores {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("store %s: %w", storeID, err)
		}
		if cfg.Currency == "" {
			cfg.Currency = "PHP"
		}
		src.stores[strings.ToLower(strings.TrimSpace(storeID))] = cfg
	}
	if _, ok := src.stores[DefaultStoreKey]; !ok {
		src.stores[DefaultStoreKey] = DefaultStoreShippingConfig()
	}
	return src, nil
}

// NewShippingConfigSource wraps the built-in config only.
func NewShippingConfigSource() *ShippingConfigSource {
	return &ShippingConfigSource{stores: map[string]StoreShippingConfig{
		DefaultStoreKey: DefaultStoreShippingConfig(),
	}}
}

// ForStore returns the store's config or the default one.
func (s *ShippingConfigSource) ForStore(storeID string) StoreShippingConfig {
	if cfg, ok := s.stores[strings.ToLower(strings.TrimSpace(storeID))]; ok {
		return cfg
	}
	return s.stores[DefaultStoreKey]
}

// Validate rejects negative money values and unknown regions.
func (c StoreShippingConfig) Validate() error {
	if c.TaxRate.IsNegative() || c.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: tax rate must be between 0 and 1", ErrValidation)
	}
	for _, rate := range c.Couriers {
		if strings.TrimSpace(rate.Courier) == "" {
			return fmt.Errorf("%w: courier name is required", ErrValidation)
		}
		if !rate.Region.Valid() {
			return fmt.Errorf("%w: courier %s has unknown region %q", ErrValidation, rate.Courier, rate.Region)
		}
		if rate.Fee.IsNegative() || rate.MinAmount.IsNegative() || rate.FreeShippingMin.IsNegative() {
			return fmt.Errorf("%w: courier %s has a negative amount", ErrValidation, rate.Courier)
		}
	}
	return nil
}

// DefaultStoreShippingConfig is used when no YAML file is configured.
func DefaultStoreShippingConfig() StoreShippingConfig {
	return StoreShippingConfig{
		Currency: "PHP",
		TaxRate:  decimal.Zero,
		Couriers: []CourierRate{
			{
				ID: "lalamove-ncr", Courier: "Lalamove", Region: RegionMetroManila,
				Fee: decimal.NewFromInt(150), Description: "Same-day delivery",
				MinAmount: decimal.NewFromInt(500),
			},
			{
				ID: "jnt-ncr", Courier: "J&T Express", Region: RegionMetroManila,
				Fee: decimal.NewFromInt(85), Description: "1-3 business days",
				FreeShippingMin: decimal.NewFromInt(1500),
			},
			{
				ID: "jnt-luzon", Courier: "J&T Express", Region: RegionLuzon,
				Fee: decimal.NewFromInt(120), Description: "3-5 business days",
				FreeShippingMin: decimal.NewFromInt(2500),
			},
			{
				ID: "jnt-visayas", Courier: "J&T Express", Region: RegionVisayas,
				Fee: decimal.NewFromInt(160), Description: "4-7 business days",
			},
			{
				ID: "jnt-mindanao", Courier: "J&T Express", Region: RegionMindanao,
				Fee: decimal.NewFromInt(180), Description: "5-8 business days",
			},
			{
				ID: "lbc-nationwide", Courier: "LBC Express", Region: RegionNationwide,
				Fee: decimal.NewFromInt(220), Description: "3-8 business days",
			},
		},
	}
}
