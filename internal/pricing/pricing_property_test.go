package pricing

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

func TestApplyDiscountStaysWithinCeiling(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("final price within [price*(1-ceiling/100), price]", prop.ForAll(
		func(price, proposed int64, ceiling int) bool {
			c := decimal.NewFromInt(int64(ceiling))
			final := ApplyDiscount(price, proposed, c)
			if final > price || final < 0 {
				return false
			}
			floor := decimal.NewFromInt(price).Mul(decimal.NewFromInt(1).Sub(c.Div(hundred)))
			return decimal.NewFromInt(final).GreaterThanOrEqual(floor)
		},
		gen.Int64Range(0, 100_000_000),
		gen.Int64Range(-1_000_000_000, 1_000_000_000),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}

func TestComputeTotalsIsDeterministicAndAdditive(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("grand total equals subtotal + tax + shipping", prop.ForAll(
		func(unit int64, qty int, tax int) bool {
			lines := []Line{{UnitPriceMinor: unit, FinalUnitPriceMinor: unit, Quantity: qty}}
			taxPct := decimal.NewFromInt(int64(tax))
			shipping := ShippingPolicy{FlatFeeMinor: 4900}
			first := ComputeTotals(lines, taxPct, shipping)
			second := ComputeTotals(lines, taxPct, shipping)
			if first != second {
				return false
			}
			if first.SubtotalMinor != unit*int64(qty) {
				return false
			}
			return first.GrandTotalMinor == first.SubtotalMinor+first.TaxMinor+first.ShippingMinor
		},
		gen.Int64Range(0, 10_000_000),
		gen.IntRange(1, 50),
		gen.IntRange(0, 28),
	))

	properties.TestingRun(t)
}
