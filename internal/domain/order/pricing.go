package order

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Subtotal sums quantity x unit price over items.
func Subtotal(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Total())
	}
	return sum
}

// AmountOff returns what d takes off the given subtotal. Unselected
// discounts take nothing. The result is not capped by the subtotal.
func AmountOff(d Discount, subtotal decimal.Decimal) decimal.Decimal {
	if !d.Selected {
		return decimal.Zero
	}
	if d.Kind == KindPercent {
		return subtotal.Mul(d.Rate).Div(hundred)
	}
	return d.Rate
}

// ComputeReceipt derives the receipt from items, discounts (using their
// AmountOff as given) and voucher. Total is floored at zero.
func ComputeReceipt(items []LineItem, discounts []Discount, voucher decimal.Decimal) Receipt {
	subtotal := Subtotal(items)
	off := voucher
	for _, d := range discounts {
		off = off.Add(d.AmountOff)
	}
	total := subtotal.Sub(off)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return Receipt{
		Subtotal:      subtotal,
		DiscountTotal: off,
		Total:         total,
	}
}

// Price recomputes every discount's AmountOff against the current subtotal
// and returns the repriced copy together with the receipt. Inputs are not
// modified.
func Price(items []LineItem, discounts []Discount, voucher decimal.Decimal) ([]Discount, Receipt) {
	subtotal := Subtotal(items)
	priced := make([]Discount, len(discounts))
	for i, d := range discounts {
		d.AmountOff = AmountOff(d, subtotal)
		priced[i] = d
	}
	return priced, ComputeReceipt(items, priced, voucher)
}
