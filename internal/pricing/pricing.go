// Package pricing is the single authority for discounted unit prices and
// order totals. The same functions run at checkout initiation and at
// settlement so the estimate and the binding charge round identically.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/BhumikP/ecomm-firebase-sub000/pkg/config"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/enums"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/types"
)

var (
	zero    = decimal.Zero
	hundred = decimal.NewFromInt(100)
)

// Line is the priced input to ComputeTotals.
type Line struct {
	UnitPriceMinor      int64
	FinalUnitPriceMinor int64
	Quantity            int
}

// ShippingPolicy is a flat fee, waived when FreeOverMinor is set and reached.
type ShippingPolicy struct {
	FlatFeeMinor  int64
	FreeOverMinor int64
}

// Totals are all expressed in minor units.
type Totals struct {
	SubtotalMinor   int64 `json:"subtotal_minor"`
	DiscountMinor   int64 `json:"discount_minor"`
	TaxMinor        int64 `json:"tax_minor"`
	ShippingMinor   int64 `json:"shipping_minor"`
	GrandTotalMinor int64 `json:"grand_total_minor"`
}

// Policy bundles the store-wide settings.
type Policy struct {
	Currency               enums.Currency
	TaxPercent             decimal.Decimal
	DiscountCeilingPercent decimal.Decimal
	Shipping               ShippingPolicy
}

// PolicyFromConfig builds a Policy from the store settings.
func PolicyFromConfig(cfg config.StoreConfig) Policy {
	currency, err := enums.ParseCurrency(cfg.Currency)
	if err != nil {
		currency = enums.CurrencyINR
	}
	return Policy{
		Currency:               currency,
		TaxPercent:             decimal.NewFromFloat(cfg.TaxPercent),
		DiscountCeilingPercent: decimal.NewFromFloat(cfg.DiscountCeilingPercent),
		Shipping: ShippingPolicy{
			FlatFeeMinor:  cfg.ShippingFlatFeeMinor,
			FreeOverMinor: cfg.FreeShippingOverMinor,
		},
	}
}

// MaxDiscount is the largest per-unit discount the ceiling allows, rounded down.
func MaxDiscount(unitPriceMinor int64, ceilingPercent decimal.Decimal) int64 {
	if unitPriceMinor <= 0 {
		return 0
	}
	ceiling := clampPercent(ceilingPercent)
	return decimal.NewFromInt(unitPriceMinor).Mul(ceiling).Div(hundred).Floor().IntPart()
}

// ApplyDiscount clamps the proposed per-unit discount to [0, unit*ceiling/100]
// and returns the final unit price. The proposal is advisory input only.
func ApplyDiscount(unitPriceMinor, proposedDiscountMinor int64, ceilingPercent decimal.Decimal) int64 {
	if unitPriceMinor <= 0 {
		return 0
	}
	discount := proposedDiscountMinor
	if discount < 0 {
		discount = 0
	}
	if limit := MaxDiscount(unitPriceMinor, ceilingPercent); discount > limit {
		discount = limit
	}
	return unitPriceMinor - discount
}

// ComputeTotals is pure and deterministic.
func ComputeTotals(lines []Line, taxPercent decimal.Decimal, shipping ShippingPolicy) Totals {
	var totals Totals
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		qty := int64(line.Quantity)
		totals.SubtotalMinor += line.FinalUnitPriceMinor * qty
		if line.UnitPriceMinor > line.FinalUnitPriceMinor {
			totals.DiscountMinor += (line.UnitPriceMinor - line.FinalUnitPriceMinor) * qty
		}
	}

	if taxPercent.GreaterThan(zero) {
		totals.TaxMinor = decimal.NewFromInt(totals.SubtotalMinor).Mul(taxPercent).Div(hundred).Round(0).IntPart()
	}

	switch {
	case totals.SubtotalMinor == 0:
		totals.ShippingMinor = 0
	case shipping.FreeOverMinor > 0 && totals.SubtotalMinor >= shipping.FreeOverMinor:
		totals.ShippingMinor = 0
	default:
		totals.ShippingMinor = shipping.FlatFeeMinor
	}

	totals.GrandTotalMinor = totals.SubtotalMinor + totals.TaxMinor + totals.ShippingMinor
	return totals
}

// Price re-validates each line's discount against the policy and returns the
// settled lines with their totals. The input slice is not modified.
func (p Policy) Price(items types.LineItems) (types.LineItems, Totals) {
	priced := make(types.LineItems, len(items))
	lines := make([]Line, len(items))
	for i, item := range items {
		final := ApplyDiscount(item.UnitPriceMinor, item.DiscountPerUnitMinor, p.DiscountCeilingPercent)
		item.DiscountPerUnitMinor = item.UnitPriceMinor - final
		item.FinalUnitPriceMinor = final
		priced[i] = item
		lines[i] = Line{
			UnitPriceMinor:      item.UnitPriceMinor,
			FinalUnitPriceMinor: final,
			Quantity:            item.Quantity,
		}
	}
	return priced, ComputeTotals(lines, p.TaxPercent, p.Shipping)
}

func clampPercent(value decimal.Decimal) decimal.Decimal {
	if value.LessThan(zero) {
		return zero
	}
	if value.GreaterThan(hundred) {
		return hundred
	}
	return value
}
