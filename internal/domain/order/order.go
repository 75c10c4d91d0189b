package order

import (
	"cmp"
	"context"
	"slices"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors returned by Repository implementations and the Service.
var (
	ErrNotFound              = errors.New("order not found")
	ErrDuplicateID           = errors.New("order id already exists")
	ErrIDAllocationExhausted = errors.New("failed to allocate a unique order id")
	ErrInvalidID             = errors.New("invalid order id format, expected ABC-DEF")
)

// DiscountKind selects how a discount rate is applied.
type DiscountKind string

const (
	// KindPercent takes Rate percent of the subtotal.
	KindPercent DiscountKind = "percent"
	// KindFixed takes Rate as a flat amount.
	KindFixed DiscountKind = "fixed"
)

// ParseDiscountKind accepts "percent", "fixed" and the legacy alias "dollar".
func ParseDiscountKind(s string) (DiscountKind, bool) {
	switch s {
	case "percent":
		return KindPercent, true
	case "fixed", "dollar":
		return KindFixed, true
	default:
		return "", false
	}
}

// UnmarshalText implements encoding.TextUnmarshaler so stored and wire
// documents using "dollar" decode to KindFixed.
func (k *DiscountKind) UnmarshalText(b []byte) error {
	v, ok := ParseDiscountKind(string(b))
	if !ok {
		return errors.Errorf("unknown discount kind %q", b)
	}
	*k = v
	return nil
}

// PaymentStatus is the indexed projection of Payment.Paid.
type PaymentStatus string

const (
	StatusPaid   PaymentStatus = "paid"
	StatusUnpaid PaymentStatus = "unpaid"
)

// LineItem is one product line. Only Quantity changes after creation.
type LineItem struct {
	SKU       string          `json:"SKU"`
	Name      string          `json:"item"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"price_ea"`
}

// Total returns Quantity x UnitPrice.
func (l LineItem) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Discount is a discount attached to an order. AmountOff is derived.
type Discount struct {
	Name      string          `json:"name"`
	Kind      DiscountKind    `json:"type"`
	Rate      decimal.Decimal `json:"value"`
	Selected  bool            `json:"selected"`
	AmountOff decimal.Decimal `json:"amount_off"`
}

// Payment holds how and whether the order was paid.
type Payment struct {
	Method string `json:"method"`
	Paid   bool   `json:"paid"`
}

// Receipt is the pricing summary derived from items, discounts and voucher.
type Receipt struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	DiscountTotal decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
}

// Order is a single checkout.
type Order struct {
	ID            string          `json:"purchase_id"`
	CreatedAt     int64           `json:"timestamp"`
	Items         []LineItem      `json:"items"`
	Discounts     []Discount      `json:"discounts"`
	Voucher       decimal.Decimal `json:"club_voucher"`
	CustomerEmail string          `json:"customer_email"`
	Payment       Payment         `json:"payment"`
	Status        PaymentStatus   `json:"payment_status"`
	Receipt       Receipt         `json:"receipt"`
}

// EventTimestamp stamps broadcast messages with the order creation time.
func (o *Order) EventTimestamp() int64 { return o.CreatedAt }

// TotalQuantity sums quantities over all items.
func (o *Order) TotalQuantity() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// Summary is the compact per-order row used by analytics.
type Summary struct {
	ID            string          `json:"purchase_id"`
	CreatedAt     int64           `json:"timestamp"`
	TotalQuantity int             `json:"total_quantity"`
	Total         decimal.Decimal `json:"grand_total"`
	Paid          bool            `json:"paid"`
}

// Summary returns the analytics row for o.
func (o *Order) Summary() Summary {
	return Summary{
		ID:            o.ID,
		CreatedAt:     o.CreatedAt,
		TotalQuantity: o.TotalQuantity(),
		Total:         o.Receipt.Total,
		Paid:          o.Payment.Paid,
	}
}

// RecentUnpaid filters orders to unpaid ones, newest first, keeping at
// most limit. Stores without a status index use it over a full scan.
func RecentUnpaid(orders []Order, limit int) []Order {
	out := make([]Order, 0, min(limit, len(orders)))
	for _, o := range orders {
		if !o.Payment.Paid {
			out = append(out, o)
		}
	}
	slices.SortFunc(out, func(a, b Order) int {
		return cmp.Or(cmp.Compare(b.CreatedAt, a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create stores o only if no order with o.ID exists, otherwise it
	// returns ErrDuplicateID.
	Create(ctx context.Context, o *Order) error
	// Get returns ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (*Order, error)
	// Put upserts o unconditionally.
	Put(ctx context.Context, o *Order) error
	Delete(ctx context.Context, id string) error
	// ListRecentUnpaid returns up to limit unpaid orders, newest first.
	ListRecentUnpaid(ctx context.Context, limit int) ([]Order, error)
	// ScanAll returns every stored order.
	ScanAll(ctx context.Context) ([]Order, error)
	// DeleteMany removes the given ids and reports how many were removed.
	DeleteMany(ctx context.Context, ids []string) (int, error)
}
