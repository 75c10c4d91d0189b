package order

import (
	"slices"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func itemsFrom(qtys []int, cents []int64) []LineItem {
	n := min(len(qtys), len(cents))
	items := make([]LineItem, n)
	for i := range n {
		items[i] = LineItem{
			SKU:       "SKU" + string(rune('A'+i%26)),
			Name:      "Plant",
			Quantity:  qtys[i],
			UnitPrice: decimal.New(cents[i], -2),
		}
	}
	return items
}

func TestPrice_Scenario(t *testing.T) {
	items := []LineItem{
		{SKU: "A", Name: "Fern", Quantity: 2, UnitPrice: d("10.00")},
		{SKU: "B", Name: "Aloe", Quantity: 1, UnitPrice: d("5.50")},
	}
	discounts := []Discount{{Name: "10pct", Kind: KindPercent, Rate: d("10"), Selected: true}}

	priced, r := Price(items, discounts, d("5.00"))

	assert.True(t, d("25.50").Equal(r.Subtotal), r.Subtotal.String())
	assert.True(t, d("2.55").Equal(priced[0].AmountOff), priced[0].AmountOff.String())
	assert.True(t, d("7.55").Equal(r.DiscountTotal), r.DiscountTotal.String())
	assert.True(t, d("17.95").Equal(r.Total), r.Total.String())
	assert.True(t, discounts[0].AmountOff.IsZero(), "input must not be modified")
}

func TestAmountOff(t *testing.T) {
	subtotal := d("40")
	tests := []struct {
		name     string
		discount Discount
		want     decimal.Decimal
	}{
		{name: "Unselected", discount: Discount{Kind: KindPercent, Rate: d("50")}, want: decimal.Zero},
		{name: "Percent", discount: Discount{Kind: KindPercent, Rate: d("25"), Selected: true}, want: d("10")},
		{name: "Fixed", discount: Discount{Kind: KindFixed, Rate: d("3.25"), Selected: true}, want: d("3.25")},
		{name: "FixedAboveSubtotal", discount: Discount{Kind: KindFixed, Rate: d("100"), Selected: true}, want: d("100")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AmountOff(tt.discount, subtotal)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestComputeReceipt_TotalFlooredAtZero(t *testing.T) {
	items := []LineItem{{SKU: "A", Quantity: 1, UnitPrice: d("5")}}
	discounts := []Discount{{Name: "big", Kind: KindFixed, Rate: d("20"), Selected: true, AmountOff: d("20")}}

	r := ComputeReceipt(items, discounts, d("3"))
	assert.True(t, d("23").Equal(r.DiscountTotal))
	assert.True(t, r.Total.IsZero())
}

func TestPricingProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	quantities := gen.SliceOf(gen.IntRange(0, 50))
	prices := gen.SliceOf(gen.Int64Range(1, 100_000))

	properties.Property("subtotal is the order-independent sum of line totals", prop.ForAll(
		func(qtys []int, cents []int64) bool {
			items := itemsFrom(qtys, cents)
			want := decimal.Zero
			for _, it := range items {
				want = want.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
			}
			reversed := slices.Clone(items)
			slices.Reverse(reversed)
			return Subtotal(items).Equal(want) && Subtotal(reversed).Equal(want)
		},
		quantities, prices,
	))

	properties.Property("no selected discounts and no voucher leaves total equal to subtotal", prop.ForAll(
		func(qtys []int, cents []int64, rates []int64) bool {
			items := itemsFrom(qtys, cents)
			var discounts []Discount
			for i, r := range rates {
				kind := KindPercent
				if i%2 == 1 {
					kind = KindFixed
				}
				discounts = append(discounts, Discount{Name: "d", Kind: kind, Rate: decimal.NewFromInt(r)})
			}
			_, rc := Price(items, discounts, decimal.Zero)
			return rc.Total.Equal(rc.Subtotal)
		},
		quantities, prices, gen.SliceOf(gen.Int64Range(0, 100)),
	))

	properties.Property("total is never negative", prop.ForAll(
		func(qtys []int, cents []int64, fixed int64, voucher int64) bool {
			items := itemsFrom(qtys, cents)
			discounts := []Discount{
				{Name: "all", Kind: KindPercent, Rate: decimal.NewFromInt(100), Selected: true},
				{Name: "flat", Kind: KindFixed, Rate: decimal.New(fixed, -2), Selected: true},
			}
			_, rc := Price(items, discounts, decimal.New(voucher, -2))
			return !rc.Total.IsNegative()
		},
		quantities, prices, gen.Int64Range(0, 1_000_000), gen.Int64Range(0, 1_000_000),
	))

	properties.TestingRun(t)
}
