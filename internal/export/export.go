// Package export renders stored orders as a zip of CSV files.
package export

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/klauspost/compress/zip"
	"github.com/shopspring/decimal"

	"github.com/xenking/plantpass/internal/domain/order"
)

// ContentType of an Archive.
const ContentType = "application/zip"

// File names inside the archive.
const (
	TransactionsFile = "transactions.csv"
	ItemsFile        = "transaction_items.csv"
	DiscountsFile    = "transaction_discounts.csv"
)

var (
	transactionsHeader = []string{"purchase_id", "timestamp", "subtotal", "discount_total", "club_voucher", "grand_total", "payment_method", "paid"}
	itemsHeader        = []string{"purchase_id", "timestamp", "item_name", "sku", "quantity", "price_ea", "line_total"}
	discountsHeader    = []string{"purchase_id", "timestamp", "discount_name", "discount_type", "discount_value", "amount_off"}
)

// Archive is a rendered export.
type Archive struct {
	Filename    string
	Content     []byte
	ContentType string
}

// Filename returns the archive name for an export taken at t, in UTC.
func Filename(t time.Time) string {
	return "export_" + t.UTC().Format("20060102_150405") + ".zip"
}

// Build renders orders into an in-memory Archive.
func Build(orders []order.Order, now time.Time) (*Archive, error) {
	var buf bytes.Buffer
	if err := Write(&buf, orders); err != nil {
		return nil, err
	}
	return &Archive{
		Filename:    Filename(now),
		Content:     buf.Bytes(),
		ContentType: ContentType,
	}, nil
}

// Write streams the zip to w. Item rows with zero quantity and discount
// rows with nothing taken off are omitted.
func Write(w io.Writer, orders []order.Order) error {
	var txs, items, discounts [][]string
	for i := range orders {
		o := &orders[i]
		ts := strconv.FormatInt(o.CreatedAt, 10)
		txs = append(txs, []string{
			o.ID,
			ts,
			money(o.Receipt.Subtotal),
			money(o.Receipt.DiscountTotal),
			o.Voucher.String(),
			money(o.Receipt.Total),
			o.Payment.Method,
			strconv.FormatBool(o.Payment.Paid),
		})
		for _, it := range o.Items {
			if it.Quantity <= 0 {
				continue
			}
			items = append(items, []string{
				o.ID,
				ts,
				it.Name,
				it.SKU,
				strconv.Itoa(it.Quantity),
				money(it.UnitPrice),
				money(it.Total()),
			})
		}
		for _, d := range o.Discounts {
			if !d.AmountOff.IsPositive() {
				continue
			}
			discounts = append(discounts, []string{
				o.ID,
				ts,
				d.Name,
				string(d.Kind),
				d.Rate.String(),
				money(d.AmountOff),
			})
		}
	}

	zw := zip.NewWriter(w)
	files := []struct {
		name   string
		header []string
		rows   [][]string
	}{
		{TransactionsFile, transactionsHeader, txs},
		{ItemsFile, itemsHeader, items},
		{DiscountsFile, discountsHeader, discounts},
	}
	for _, f := range files {
		fw, err := zw.Create(f.name)
		if err != nil {
			return errors.Wrapf(err, "create %s", f.name)
		}
		cw := csv.NewWriter(fw)
		if err := cw.Write(f.header); err != nil {
			return errors.Wrapf(err, "write %s header", f.name)
		}
		if err := cw.WriteAll(f.rows); err != nil {
			return errors.Wrapf(err, "write %s", f.name)
		}
	}
	return errors.Wrap(zw.Close(), "close zip")
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
