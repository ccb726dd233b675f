package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CourierRate is one courier/region rate row of a store's shipping config.
type CourierRate struct {
	ID              string          `yaml:"id" json:"id"`
	Courier         string          `yaml:"courier" json:"courier"`
	Region          Region          `yaml:"region" json:"region"`
	Fee             decimal.Decimal `yaml:"fee" json:"fee"`
	Description     string          `yaml:"description" json:"description"`
	MinAmount       decimal.Decimal `yaml:"minAmount" json:"minAmount"`
	FreeShippingMin decimal.Decimal `yaml:"freeShippingMin" json:"freeShippingMin"`
	Cities          []string        `yaml:"cities" json:"cities,omitempty"`
	Inactive        bool            `yaml:"inactive" json:"inactive"`
}

// StoreShippingConfig is the shipping and tax setup of one store.
type StoreShippingConfig struct {
	Currency string          `yaml:"currency" json:"currency"`
	TaxRate  decimal.Decimal `yaml:"taxRate" json:"taxRate"`
	Couriers []CourierRate   `yaml:"couriers" json:"couriers"`
}

// ShippingRequest is the input of CalculateShippingOptions.
type ShippingRequest struct {
	StoreID  string          `json:"storeId"`
	Province string          `json:"province"`
	City     string          `json:"city"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// ShippingOption is a computed, never persisted, delivery choice.
type ShippingOption struct {
	ID           string          `json:"id"`
	CourierName  string          `json:"courierName"`
	Fee          decimal.Decimal `json:"fee"`
	Description  string          `json:"description"`
	Region       Region          `json:"region"`
	Available    bool            `json:"available"`
	Disabled     bool            `json:"disabled"`
	MinAmount    decimal.Decimal `json:"minAmount"`
	FreeShipping bool            `json:"freeShipping"`
	Note         string          `json:"note,omitempty"`
}

// CalculateShippingOptions lists the couriers that deliver to the address, in
// config order. It is pure: the caller keeps the result.
//
// An option is disabled iff the subtotal is below its minimum amount, and
// unavailable when the courier is switched off or does not serve the city.
func CalculateShippingOptions(req ShippingRequest, cfg StoreShippingConfig) []ShippingOption {
	if strings.TrimSpace(req.Province) == "" {
		return nil
	}
	region, known := RegionFor(req.Province, req.City)
	city := normalizePlace(req.City)

	options := make([]ShippingOption, 0, len(cfg.Couriers))
	for _, rate := range cfg.Couriers {
		if rate.Region != RegionNationwide && (!known || rate.Region != region) {
			continue
		}

		opt := ShippingOption{
			ID:          optionID(req.StoreID, rate),
			CourierName: rate.Courier,
			Fee:         rate.Fee,
			Description: rate.Description,
			Region:      rate.Region,
			Available:   !rate.Inactive && servesCity(rate.Cities, city),
			Disabled:    req.Subtotal.LessThan(rate.MinAmount),
			MinAmount:   rate.MinAmount,
		}
		if rate.FreeShippingMin.IsPositive() && req.Subtotal.GreaterThanOrEqual(rate.FreeShippingMin) {
			opt.Fee = decimal.Zero
			opt.FreeShipping = true
		}

		switch {
		case !opt.Available && rate.Inactive:
			opt.Note = "Temporarily unavailable"
		case !opt.Available:
			opt.Note = fmt.Sprintf("Not available in %s", strings.TrimSpace(req.City))
		case opt.Disabled:
			opt.Note = fmt.Sprintf("Minimum order of %s", rate.MinAmount.StringFixed(2))
		case opt.FreeShipping:
			opt.Note = "Free shipping"
		}
		options = append(options, opt)
	}
	return options
}

// SelectDefaultOption returns the first option whose Available flag is set,
// falling back to the first option. It does not compare fees.
func SelectDefaultOption(options []ShippingOption) (ShippingOption, bool) {
	if len(options) == 0 {
		return ShippingOption{}, false
	}
	for _, opt := range options {
		if opt.Available {
			return opt, true
		}
	}
	return options[0], true
}

// FindOption looks an option up by id.
func FindOption(options []ShippingOption, id string) (ShippingOption, bool) {
	for _, opt := range options {
		if opt.ID == id {
			return opt, true
		}
	}
	return ShippingOption{}, false
}

func servesCity(cities []string, city string) bool {
	if len(cities) == 0 {
		return true
	}
	for _, c := range cities {
		if normalizePlace(c) == city {
			return true
		}
	}
	return false
}

func optionID(storeID string, rate CourierRate) string {
	if rate.ID != "" {
		return rate.ID
	}
	slug := strings.Join(strings.Fields(strings.ToLower(rate.Courier)), "-")
	if storeID == "" {
		return fmt.Sprintf("%s-%s", slug, rate.Region)
	}
	return fmt.Sprintf("%s-%s-%s", storeID, slug, rate.Region)
}
