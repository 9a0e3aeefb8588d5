package domain

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var (
	freeShippingThreshold = decimal.NewFromInt(50)
	flatShippingFee       = decimal.RequireFromString("5.00")
	minorUnitsPerMajor    = decimal.NewFromInt(100)
)

// LineSubtotal is price × quantity at two fractional digits.
func LineSubtotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// ShippingFeeFor is free from 50.00 upwards, otherwise a flat 5.00.
func ShippingFeeFor(total decimal.Decimal) decimal.Decimal {
	if total.GreaterThanOrEqual(freeShippingThreshold) {
		return decimal.Zero
	}
	return flatShippingFee
}

// ApplyTotals derives total, shipping and final amounts from the order's lines.
func (o *Order) ApplyTotals() {
	total := decimal.Zero
	for i := range o.Items {
		o.Items[i].Subtotal = LineSubtotal(o.Items[i].PriceAtPurchase, o.Items[i].Quantity)
		total = total.Add(o.Items[i].Subtotal)
	}
	o.TotalAmount = total
	o.DiscountAmount = decimal.Zero
	o.ShippingFee = ShippingFeeFor(total)
	o.FinalAmount = total.Sub(o.DiscountAmount).Add(o.ShippingFee)
}

// ToMinorUnits converts an amount to integer paise, rejecting values that do not fit in 31 bits.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	minor := amount.Mul(minorUnitsPerMajor).Round(0)
	if minor.IsNegative() {
		return 0, Invalid("negative_amount", fmt.Sprintf("Amount %s is negative", amount.StringFixed(2)))
	}
	if minor.GreaterThan(decimal.NewFromInt(math.MaxInt32)) {
		return 0, Invalid("amount_too_large", fmt.Sprintf("Amount %s exceeds the gateway limit", amount.StringFixed(2)))
	}
	return minor.IntPart(), nil
}
