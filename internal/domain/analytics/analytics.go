// Package analytics computes sales figures over stored orders and runs the
// bulk export and clear operations.
package analytics

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/plantpass/internal/domain/order"
	"github.com/xenking/plantpass/internal/notify"
)

// BucketWidth is the size of a sales time bucket.
const BucketWidth = 30 * time.Minute

// MaxBuckets bounds gap filling in SalesOverTime, about 208 days of
// half-hour buckets.
const MaxBuckets = 10_000

// BucketLabelLayout formats bucket start times, e.g. "04-12-2025 10:30 AM".
const BucketLabelLayout = "01-02-2006 03:04 PM"

// SaleZone is the fixed UTC-6 offset buckets are aligned in.
var SaleZone = time.FixedZone("UTC-6", -6*60*60)

// Bucket is the paid sales total of one time window.
type Bucket struct {
	Start time.Time
	Label string
	Total decimal.Decimal
}

// Report is the result of Compute.
type Report struct {
	TotalSales           decimal.Decimal
	TotalOrders          int
	TotalUnitsSold       int
	AverageItemsPerOrder decimal.Decimal
	AverageOrderValue    decimal.Decimal
	// SalesOverTime is ordered by Start and has no gaps between the first
	// and last paid order, unless they are more than MaxBuckets apart.
	SalesOverTime []Bucket
	// Orders summarises every scanned order, paid or not.
	Orders []order.Summary
}

// Store is the read side of the order repository analytics needs.
type Store interface {
	ScanAll(ctx context.Context) ([]order.Order, error)
	DeleteMany(ctx context.Context, ids []string) (int, error)
}

// Notifier broadcasts the cleared event.
type Notifier interface {
	Broadcast(ctx context.Context, event notify.Event, payload any) notify.Result
}

// Service computes analytics and performs bulk operations.
type Service struct {
	store    Store
	notifier Notifier
}

// NewService creates an analytics Service.
func NewService(store Store, notifier Notifier) *Service {
	return &Service{store: store, notifier: notifier}
}

// Compute scans every order and aggregates the paid ones.
func (s *Service) Compute(ctx context.Context) (*Report, error) {
	orders, err := s.store.ScanAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "scan orders")
	}
	r := Aggregate(orders)
	zctx.From(ctx).Debug("Analytics computed",
		zap.Int("orders", len(orders)),
		zap.Int("paid", r.TotalOrders),
	)
	return r, nil
}

// Aggregate builds a Report from orders. Money is accumulated unrounded and
// rounded to cents only in the result.
func Aggregate(orders []order.Order) *Report {
	r := &Report{
		Orders: make([]order.Summary, 0, len(orders)),
	}
	totalSales := decimal.Zero
	byBucket := make(map[int64]decimal.Decimal)
	var first, last int64
	for i := range orders {
		o := &orders[i]
		r.Orders = append(r.Orders, o.Summary())
		if !o.Payment.Paid {
			continue
		}
		r.TotalOrders++
		r.TotalUnitsSold += o.TotalQuantity()
		totalSales = totalSales.Add(o.Receipt.Total)

		if o.CreatedAt == 0 {
			continue
		}
		start := bucketStart(o.CreatedAt)
		byBucket[start] = byBucket[start].Add(o.Receipt.Total)
		if first == 0 || o.CreatedAt < first {
			first = o.CreatedAt
		}
		if o.CreatedAt > last {
			last = o.CreatedAt
		}
	}

	r.TotalSales = totalSales.Round(2)
	r.AverageItemsPerOrder = decimal.Zero
	r.AverageOrderValue = decimal.Zero
	if r.TotalOrders > 0 {
		n := decimal.NewFromInt(int64(r.TotalOrders))
		r.AverageItemsPerOrder = decimal.NewFromInt(int64(r.TotalUnitsSold)).Div(n).Round(2)
		r.AverageOrderValue = totalSales.Div(n).Round(2)
	}

	if len(byBucket) > 0 {
		r.SalesOverTime = timeline(byBucket, bucketStart(first), bucketStart(last))
	}
	return r
}

// timeline lists the buckets from lo to hi inclusive, filling gaps with
// zero totals. Spans wider than MaxBuckets are not filled: only the
// populated buckets are returned, in order.
func timeline(byBucket map[int64]decimal.Decimal, lo, hi int64) []Bucket {
	width := int64(BucketWidth / time.Second)
	if span := hi - lo; span < 0 || span/width >= MaxBuckets {
		starts := slices.Sorted(maps.Keys(byBucket))
		out := make([]Bucket, len(starts))
		for i, start := range starts {
			out[i] = newBucket(start, byBucket[start])
		}
		return out
	}
	out := make([]Bucket, 0, (hi-lo)/width+1)
	for start := lo; ; start += width {
		out = append(out, newBucket(start, byBucket[start]))
		if start >= hi {
			break
		}
	}
	return out
}

func newBucket(start int64, total decimal.Decimal) Bucket {
	t := time.Unix(start, 0).In(SaleZone)
	return Bucket{
		Start: t,
		Label: t.Format(BucketLabelLayout),
		Total: total.Round(2),
	}
}

// bucketStart aligns an epoch timestamp down to its half-hour in SaleZone.
// The zone offset is a whole number of hours, so aligning in UTC is
// equivalent.
func bucketStart(ts int64) int64 {
	width := int64(BucketWidth / time.Second)
	start := ts - ts%width
	if ts < 0 && ts%width != 0 {
		start -= width
	}
	return start
}

// Export returns every stored order.
func (s *Service) Export(ctx context.Context) ([]order.Order, error) {
	orders, err := s.store.ScanAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "scan orders")
	}
	zctx.From(ctx).Info("Orders exported", zap.Int("count", len(orders)))
	return orders, nil
}

// ClearAll deletes every stored order and returns how many were removed.
func (s *Service) ClearAll(ctx context.Context) (int, error) {
	orders, err := s.store.ScanAll(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "scan orders")
	}
	lg := zctx.From(ctx)
	if len(orders) == 0 {
		lg.Info("No orders to clear")
		return 0, nil
	}
	ids := make([]string, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	n, err := s.store.DeleteMany(ctx, ids)
	if err != nil {
		return 0, errors.Wrap(err, "delete orders")
	}
	lg.Info("Orders cleared", zap.Int("count", n))
	s.notifier.Broadcast(ctx, notify.EventCleared, map[string]int{"cleared_count": n})
	return n, nil
}
