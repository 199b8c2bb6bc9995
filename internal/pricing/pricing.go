// Package pricing converts between tax-exclusive and tax-inclusive amounts
// using the Chilean IVA rate. Amounts are whole pesos and every conversion
// rounds half-up on its own, so a round trip can drift by one peso.
package pricing

import "github.com/shopspring/decimal"

// TaxRate is the IVA rate.
const TaxRate = 0.19

var (
	rate       = decimal.NewFromFloat(TaxRate)
	rateFactor = decimal.NewFromInt(1).Add(rate)
)

// PriceWithTax returns round(base * 1.19).
func PriceWithTax(base int64) int64 {
	return decimal.NewFromInt(base).Mul(rateFactor).Round(0).IntPart()
}

// TaxAmount returns round(base * 0.19).
func TaxAmount(base int64) int64 {
	return decimal.NewFromInt(base).Mul(rate).Round(0).IntPart()
}

// BasePrice returns round(inclusive / 1.19).
func BasePrice(inclusive int64) int64 {
	return decimal.NewFromInt(inclusive).Div(rateFactor).Round(0).IntPart()
}

// UnitDisplayPrice is the tax-exclusive price shown for a cart or catalog
// line: the product base price plus the variant delta.
func UnitDisplayPrice(basePrice, variantModifier int64) int64 {
	return basePrice + variantModifier
}

// UnitOrderPrice is the tax-exclusive unit price charged at checkout: the
// variant override wins, then the product offer price, then the base price.
func UnitOrderPrice(basePrice int64, offerPrice, variantOverride *int64) int64 {
	if variantOverride != nil {
		return *variantOverride
	}
	if offerPrice != nil {
		return *offerPrice
	}
	return basePrice
}

// Totals is the frozen money breakdown of an order.
type Totals struct {
	Subtotal int64
	Tax      int64
	Shipping int64
	Total    int64
}

// OrderTotals computes tax once over the whole subtotal. Shipping is not
// charged yet.
func OrderTotals(subtotal int64) Totals {
	t := Totals{Subtotal: subtotal, Tax: TaxAmount(subtotal), Shipping: 0}
	t.Total = t.Subtotal + t.Tax + t.Shipping
	return t
}
