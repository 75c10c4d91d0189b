package order

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/plantpass/internal/validation"
)

var inputNow = time.Unix(1_744_473_600, 0)

func validCreateInput() CreateInput {
	return CreateInput{
		Items: []ItemInput{
			{SKU: "A", Name: "Fern", Quantity: 2, UnitPrice: d("10.00")},
			{SKU: "B", Name: "Aloe", Quantity: 0, UnitPrice: d("5.50")},
		},
		Discounts: []DiscountInput{{Name: "10pct", Kind: "percent", Rate: d("10"), Selected: true}},
		Voucher:   d("5"),
		Email:     "buyer@example.com",
	}
}

func problems(t *testing.T, err error) []string {
	t.Helper()
	var verr *validation.Error
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	return verr.Messages()
}

func TestCreateInput_Draft(t *testing.T) {
	in := validCreateInput()
	in.Items[0].Name = "<i>Fern</i>"
	in.Discounts = append(in.Discounts, DiscountInput{Name: "flat", Kind: "dollar", Rate: d("-3")})

	draft, err := in.Draft(inputNow)
	require.NoError(t, err)

	assert.Equal(t, "Fern", draft.Items[0].Name)
	assert.Equal(t, KindFixed, draft.Discounts[1].Kind)
	assert.True(t, draft.Discounts[1].Rate.IsZero())
	assert.Equal(t, "buyer@example.com", draft.CustomerEmail)
}

func TestCreateInput_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateInput)
		want   string
	}{
		{name: "NoItems", mutate: func(in *CreateInput) { in.Items = nil }, want: "At least one item is required"},
		{name: "BadSKU", mutate: func(in *CreateInput) { in.Items[0].SKU = "a b" }, want: "Item 1: Invalid SKU"},
		{name: "NoName", mutate: func(in *CreateInput) { in.Items[1].Name = "<b></b>" }, want: "Item 2: Invalid item name"},
		{name: "ZeroPrice", mutate: func(in *CreateInput) { in.Items[0].UnitPrice = decimal.Zero }, want: "Item 1: Price must be greater than 0"},
		{name: "NothingPurchased", mutate: func(in *CreateInput) { in.Items[0].Quantity = -1 }, want: "At least one item must have a quantity greater than 0"},
		{name: "DiscountKind", mutate: func(in *CreateInput) { in.Discounts[0].Kind = "bogo" }, want: `Discount 1: Type must be "percent" or "dollar"`},
		{name: "DiscountName", mutate: func(in *CreateInput) { in.Discounts[0].Name = "" }, want: "Discount 1: Invalid name"},
		{name: "NegativeVoucher", mutate: func(in *CreateInput) { in.Voucher = d("-1") }, want: "Voucher amount must be non-negative"},
		{name: "Email", mutate: func(in *CreateInput) { in.Email = "nope" }, want: "Invalid email format"},
		{name: "NegativeTimestamp", mutate: func(in *CreateInput) { in.CreatedAt = -1 }, want: timestampProblem},
		{name: "FutureTimestamp", mutate: func(in *CreateInput) { in.CreatedAt = inputNow.Add(MaxClockSkew).Unix() + 1 }, want: timestampProblem},
		{name: "MaxTimestamp", mutate: func(in *CreateInput) { in.CreatedAt = math.MaxInt64 }, want: timestampProblem},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validCreateInput()
			tt.mutate(&in)
			_, err := in.Draft(inputNow)
			assert.Contains(t, problems(t, err), tt.want)
		})
	}
}

const timestampProblem = "Timestamp must be a Unix time in seconds, not in the future"

func TestCreateInput_Timestamp(t *testing.T) {
	tests := []struct {
		name string
		in   int64
		want int64
	}{
		{name: "ZeroIsNow", in: 0, want: inputNow.Unix()},
		{name: "Past", in: 1_600_000_000, want: 1_600_000_000},
		{name: "WithinSkew", in: inputNow.Add(MaxClockSkew).Unix(), want: inputNow.Add(MaxClockSkew).Unix()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validCreateInput()
			in.CreatedAt = tt.in
			draft, err := in.Draft(inputNow)
			require.NoError(t, err)
			assert.Equal(t, tt.want, draft.CreatedAt)
		})
	}
}

func TestCreateInput_CollectsAllProblems(t *testing.T) {
	in := CreateInput{
		Items:   []ItemInput{{SKU: "", Name: "", UnitPrice: decimal.Zero}},
		Voucher: d("-2"),
		Email:   "bad",
	}
	_, err := in.Draft(inputNow)
	assert.Len(t, problems(t, err), 6)
}

func TestCreateInput_ClampsPercentAndTruncates(t *testing.T) {
	in := validCreateInput()
	in.Discounts[0].Rate = d("150")
	in.Items[0].Name = strings.Repeat("x", 400)

	draft, err := in.Draft(inputNow)
	require.NoError(t, err)
	assert.True(t, d("100").Equal(draft.Discounts[0].Rate))
	assert.Len(t, draft.Items[0].Name, validation.MaxStringLength)
}

func TestUpdateInput_Changes(t *testing.T) {
	t.Run("OnlyPresentFieldsChecked", func(t *testing.T) {
		ch, err := UpdateInput{Voucher: ptr(d("1"))}.Changes()
		require.NoError(t, err)
		assert.Nil(t, ch.Items)
		assert.Nil(t, ch.Discounts)
		require.NotNil(t, ch.Voucher)
	})
	t.Run("EmptyDiscountsClears", func(t *testing.T) {
		ch, err := UpdateInput{Discounts: []DiscountInput{}}.Changes()
		require.NoError(t, err)
		assert.NotNil(t, ch.Discounts)
		assert.Empty(t, ch.Discounts)
	})
	t.Run("BlankPaymentMethod", func(t *testing.T) {
		_, err := UpdateInput{Payment: &PaymentPatch{Method: ptr("  ")}}.Changes()
		assert.Contains(t, problems(t, err), "Payment method must be a non-empty string")
	})
	t.Run("PaidOnly", func(t *testing.T) {
		ch, err := UpdateInput{Payment: &PaymentPatch{Paid: ptr(true)}}.Changes()
		require.NoError(t, err)
		assert.Nil(t, ch.Payment.Method)
		assert.True(t, *ch.Payment.Paid)
	})
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID("ABC-XYZ"))
	for _, bad := range []string{"abc-xyz", "ABCXYZ", "AB-CDE", "ABC-XYZ ", ""} {
		assert.False(t, ValidID(bad), bad)
	}
	for range 50 {
		assert.True(t, ValidID(RandomID()))
	}
}
