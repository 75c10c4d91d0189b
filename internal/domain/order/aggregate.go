package order

import (
	"slices"

	"github.com/shopspring/decimal"
)

// Draft is validated input for a new order.
type Draft struct {
	CreatedAt     int64
	Items         []LineItem
	Discounts     []Discount
	Voucher       decimal.Decimal
	CustomerEmail string
}

// New builds an unpaid order from d and prices it.
func New(id string, d Draft) *Order {
	o := &Order{
		ID:            id,
		CreatedAt:     d.CreatedAt,
		Items:         slices.Clone(d.Items),
		Discounts:     slices.Clone(d.Discounts),
		Voucher:       d.Voucher,
		CustomerEmail: d.CustomerEmail,
		Payment:       Payment{Method: "", Paid: false},
		Status:        StatusUnpaid,
	}
	o.reprice()
	return o
}

// PaymentPatch is a partial payment update. Nil fields are left unchanged.
type PaymentPatch struct {
	Method *string
	Paid   *bool
}

// Changes is a partial order update. Nil fields are absent from the update.
type Changes struct {
	Items     []LineItem
	Discounts []Discount
	Voucher   *decimal.Decimal
	Payment   *PaymentPatch
}

// Apply performs the present parts of c in a fixed order: items, discounts,
// voucher, payment. It reports whether the order went from unpaid to paid.
func (o *Order) Apply(c Changes) (becamePaid bool) {
	if c.Items != nil {
		o.UpdateItems(c.Items)
	}
	if c.Discounts != nil {
		o.UpdateDiscounts(c.Discounts)
	}
	if c.Voucher != nil {
		o.UpdateVoucher(*c.Voucher)
	}
	if c.Payment != nil {
		becamePaid = o.UpdatePayment(*c.Payment)
	}
	return becamePaid
}

// UpdateItems replaces the item list with items. Items whose SKU is already
// on the order keep their name and unit price and take only the new
// quantity; unknown SKUs are inserted as given.
func (o *Order) UpdateItems(items []LineItem) {
	next := make([]LineItem, 0, len(items))
	for _, in := range items {
		i := slices.IndexFunc(o.Items, func(it LineItem) bool { return it.SKU == in.SKU })
		if i < 0 {
			next = append(next, in)
			continue
		}
		kept := o.Items[i]
		kept.Quantity = in.Quantity
		next = append(next, kept)
	}
	o.Items = next
	o.reprice()
}

// UpdateDiscounts replaces the discount list with discounts. Discounts whose
// name is already on the order keep their kind and rate and take only the
// new selection; unknown names are inserted as given.
func (o *Order) UpdateDiscounts(discounts []Discount) {
	next := make([]Discount, 0, len(discounts))
	for _, in := range discounts {
		i := slices.IndexFunc(o.Discounts, func(d Discount) bool { return d.Name == in.Name })
		if i < 0 {
			next = append(next, in)
			continue
		}
		kept := o.Discounts[i]
		kept.Selected = in.Selected
		next = append(next, kept)
	}
	o.Discounts = next
	o.reprice()
}

// UpdateVoucher sets the voucher amount.
func (o *Order) UpdateVoucher(amount decimal.Decimal) {
	o.Voucher = amount
	o.reprice()
}

// UpdatePayment merges p into the payment and reports an unpaid to paid
// transition.
func (o *Order) UpdatePayment(p PaymentPatch) (becamePaid bool) {
	wasPaid := o.Payment.Paid
	if p.Method != nil {
		o.Payment.Method = *p.Method
	}
	if p.Paid != nil {
		o.Payment.Paid = *p.Paid
	}
	o.Status = statusOf(o.Payment.Paid)
	return !wasPaid && o.Payment.Paid
}

func (o *Order) reprice() {
	o.Discounts, o.Receipt = Price(o.Items, o.Discounts, o.Voucher)
	o.Status = statusOf(o.Payment.Paid)
}

func statusOf(paid bool) PaymentStatus {
	if paid {
		return StatusPaid
	}
	return StatusUnpaid
}
