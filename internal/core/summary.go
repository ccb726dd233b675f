package core

import "github.com/shopspring/decimal"

// OrderSummary is the price breakdown shown at checkout and stored on the order.
type OrderSummary struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Discount decimal.Decimal `json:"discount"`
	Taxes    decimal.Decimal `json:"taxes"`
	Total    decimal.Decimal `json:"total"`
}

// ComputeSummary derives taxes and total from the cart subtotal, the selected
// shipping fee, the store tax rate and a discount.
//
//	total = subtotal + shipping + taxes - discount
//
// The discount is clamped to [0, subtotal+shipping+taxes] so the total never
// goes negative.
func ComputeSummary(subtotal, shipping, taxRate, discount decimal.Decimal) OrderSummary {
	taxes := decimal.Zero
	if taxRate.IsPositive() {
		taxes = subtotal.Mul(taxRate).Round(2)
	}
	gross := subtotal.Add(shipping).Add(taxes)
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(gross) {
		discount = gross
	}
	return OrderSummary{
		Subtotal: subtotal,
		Shipping: shipping,
		Discount: discount,
		Taxes:    taxes,
		Total:    gross.Sub(discount),
	}
}

// Balanced reports whether the total still satisfies the summary identity.
func (s OrderSummary) Balanced() bool {
	return s.Total.Equal(s.Subtotal.Add(s.Shipping).Add(s.Taxes).Sub(s.Discount))
}

// IsFree reports a zero total.
func (s OrderSummary) IsFree() bool {
	return s.Total.IsZero()
}
