package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/plantpass/internal/domain/order"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func readArchive(t *testing.T, content []byte) map[string][][]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	require.NoError(t, err)

	out := make(map[string][][]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		rows, err := csv.NewReader(rc).ReadAll()
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		out[f.Name] = rows
	}
	return out
}

func TestFilename_UTC(t *testing.T) {
	instant := time.Date(2025, 4, 12, 15, 4, 5, 0, time.UTC)
	tests := []struct {
		name string
		t    time.Time
	}{
		{"UTC", instant},
		{"FixedOffset", instant.In(time.FixedZone("UTC-6", -6*60*60))},
		{"AheadOfUTC", instant.In(time.FixedZone("UTC+10", 10*60*60))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, "export_20250412_150405.zip", Filename(tt.t))
		})
	}
}

func TestBuild(t *testing.T) {
	o := order.New("ABC-DEF", order.Draft{
		CreatedAt: 1_744_473_600,
		Items: []order.LineItem{
			{SKU: "FERN", Name: "Fern, large", Quantity: 2, UnitPrice: d("10.5")},
			{SKU: "ALOE", Name: "Aloe", Quantity: 0, UnitPrice: d("4")},
		},
		Discounts: []order.Discount{
			{Name: "Member", Kind: order.KindPercent, Rate: d("10"), Selected: true},
			{Name: "Unused", Kind: order.KindFixed, Rate: d("5")},
		},
		Voucher: d("1"),
	})
	o.UpdatePayment(order.PaymentPatch{Method: ptr("Cash"), Paid: ptr(true)})

	now := time.Date(2025, 4, 12, 15, 4, 5, 0, time.UTC)
	a, err := Build([]order.Order{*o}, now)
	require.NoError(t, err)
	assert.Equal(t, "export_20250412_150405.zip", a.Filename)
	assert.Equal(t, ContentType, a.ContentType)

	files := readArchive(t, a.Content)
	require.Len(t, files, 3)

	assert.Equal(t, [][]string{
		transactionsHeader,
		{"ABC-DEF", "1744473600", "21.00", "3.10", "1", "17.90", "Cash", "true"},
	}, files[TransactionsFile])
	assert.Equal(t, [][]string{
		itemsHeader,
		{"ABC-DEF", "1744473600", "Fern, large", "FERN", "2", "10.50", "21.00"},
	}, files[ItemsFile])
	assert.Equal(t, [][]string{
		discountsHeader,
		{"ABC-DEF", "1744473600", "Member", "percent", "10", "2.10"},
	}, files[DiscountsFile])
}

func TestBuild_Empty(t *testing.T) {
	a, err := Build(nil, time.Now())
	require.NoError(t, err)

	files := readArchive(t, a.Content)
	assert.Equal(t, [][]string{transactionsHeader}, files[TransactionsFile])
	assert.Equal(t, [][]string{itemsHeader}, files[ItemsFile])
	assert.Equal(t, [][]string{discountsHeader}, files[DiscountsFile])
}

func ptr[T any](v T) *T { return &v }
