package order

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/plantpass/internal/validation"
)

// ItemInput is an unvalidated line item.
type ItemInput struct {
	SKU       string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// DiscountInput is an unvalidated discount.
type DiscountInput struct {
	Name     string
	Kind     string
	Rate     decimal.Decimal
	Selected bool
}

// CreateInput is the unvalidated payload of a new order.
type CreateInput struct {
	// CreatedAt in epoch seconds; zero means now.
	CreatedAt int64
	Items     []ItemInput
	Discounts []DiscountInput
	Voucher   decimal.Decimal
	Email     string
}

// UpdateInput is an unvalidated partial update. Nil fields are absent.
type UpdateInput struct {
	Items     []ItemInput
	Discounts []DiscountInput
	Voucher   *decimal.Decimal
	Payment   *PaymentPatch
}

// MaxClockSkew is how far ahead of the server clock a client timestamp may be.
const MaxClockSkew = 24 * time.Hour

// Draft validates in and converts it into a Draft. A zero CreatedAt becomes
// now; negative values and values more than MaxClockSkew ahead of now are
// rejected.
func (in CreateInput) Draft(now time.Time) (Draft, error) {
	var c validation.Collector
	createdAt := in.CreatedAt
	switch {
	case createdAt == 0:
		createdAt = now.Unix()
	case createdAt < 0 || createdAt > now.Add(MaxClockSkew).Unix():
		c.Add("timestamp", "Timestamp must be a Unix time in seconds, not in the future")
	}
	d := Draft{
		CreatedAt: createdAt,
		Items:     validateItems(&c, in.Items),
		Discounts: validateDiscounts(&c, in.Discounts),
		Voucher:   validateVoucher(&c, in.Voucher),
	}
	if email := validation.Sanitize(in.Email); email != "" {
		if !validation.Email(email) {
			c.Add("email", "Invalid email format")
		}
		d.CustomerEmail = email
	}
	if err := c.Err(); err != nil {
		return Draft{}, err
	}
	return d, nil
}

// Changes validates the present fields of in and converts them.
func (in UpdateInput) Changes() (Changes, error) {
	var (
		c  validation.Collector
		ch Changes
	)
	if in.Items != nil {
		ch.Items = validateItems(&c, in.Items)
	}
	if in.Discounts != nil {
		ch.Discounts = validateDiscounts(&c, in.Discounts)
	}
	if in.Voucher != nil {
		v := validateVoucher(&c, *in.Voucher)
		ch.Voucher = &v
	}
	if in.Payment != nil {
		p := *in.Payment
		if p.Method != nil {
			m := validation.Sanitize(*p.Method)
			if m == "" {
				c.Add("payment.method", "Payment method must be a non-empty string")
			}
			p.Method = &m
		}
		ch.Payment = &p
	}
	if err := c.Err(); err != nil {
		return Changes{}, err
	}
	return ch, nil
}

func validateItems(c *validation.Collector, items []ItemInput) []LineItem {
	if len(items) == 0 {
		c.Add("items", "At least one item is required")
		return nil
	}
	out := make([]LineItem, 0, len(items))
	purchased := false
	for i, in := range items {
		n := i + 1
		sku := strings.TrimSpace(in.SKU)
		if !validation.SKU(sku) {
			c.Add(field("items", i, "SKU"), "Item %d: Invalid SKU", n)
		}
		name := validation.Sanitize(in.Name)
		if name == "" {
			c.Add(field("items", i, "item"), "Item %d: Invalid item name", n)
		}
		if !in.UnitPrice.Round(2).IsPositive() {
			c.Add(field("items", i, "price_ea"), "Item %d: Price must be greater than 0", n)
		}
		qty := max(in.Quantity, 0)
		if qty > 0 {
			purchased = true
		}
		out = append(out, LineItem{SKU: sku, Name: name, Quantity: qty, UnitPrice: in.UnitPrice})
	}
	if !purchased {
		c.Add("items", "At least one item must have a quantity greater than 0")
	}
	return out
}

func validateDiscounts(c *validation.Collector, discounts []DiscountInput) []Discount {
	out := make([]Discount, 0, len(discounts))
	for i, in := range discounts {
		n := i + 1
		name := validation.Sanitize(in.Name)
		if name == "" {
			c.Add(field("discounts", i, "name"), "Discount %d: Invalid name", n)
		}
		kind, ok := ParseDiscountKind(in.Kind)
		if !ok {
			c.Add(field("discounts", i, "type"), `Discount %d: Type must be "percent" or "dollar"`, n)
		}
		out = append(out, Discount{
			Name:     name,
			Kind:     kind,
			Rate:     ClampRate(kind, in.Rate),
			Selected: in.Selected,
		})
	}
	return out
}

// ClampRate bounds a discount rate: negative rates become zero and percent
// rates are capped at 100.
func ClampRate(kind DiscountKind, rate decimal.Decimal) decimal.Decimal {
	if rate.IsNegative() {
		return decimal.Zero
	}
	if kind == KindPercent && rate.GreaterThan(hundred) {
		return hundred
	}
	return rate
}

func validateVoucher(c *validation.Collector, v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		c.Add("voucher", "Voucher amount must be non-negative")
		return decimal.Zero
	}
	return v
}

func field(list string, i int, name string) string {
	return list + "[" + strconv.Itoa(i) + "]." + name
}
