package types

import "github.com/google/uuid"

// LineItem is one purchased product as captured on a transaction or order.
// On a transaction DiscountPerUnitMinor was clamped at initiation and is
// clamped again at settlement; on an order it is the discount that was honored.
type LineItem struct {
	ProductID            uuid.UUID `json:"product_id"`
	Name                 string    `json:"name"`
	VariantName          *string   `json:"variant_name,omitempty"`
	Quantity             int       `json:"quantity"`
	UnitPriceMinor       int64     `json:"unit_price_minor"`
	DiscountPerUnitMinor int64     `json:"discount_per_unit_minor"`
	FinalUnitPriceMinor  int64     `json:"final_unit_price_minor"`
}

// LineTotalMinor is the settled amount for the line.
func (l LineItem) LineTotalMinor() int64 {
	return l.FinalUnitPriceMinor * int64(l.Quantity)
}

// LineItems is stored as a JSON column.
type LineItems []LineItem

// TotalQuantity sums the quantities across lines.
func (items LineItems) TotalQuantity() int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}
