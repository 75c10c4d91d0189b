package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/plantpass/internal/mail"
	"github.com/xenking/plantpass/internal/notify"
)

const (
	// MaxIDAttempts bounds id regeneration on create collisions.
	MaxIDAttempts = 5
	// DefaultRecentLimit is used when ListRecentUnpaid gets a non-positive limit.
	DefaultRecentLimit = 5
	maxRecentLimit     = 100
)

// Notifier broadcasts order lifecycle events. Implementations absorb their
// own failures and only report them in the Result.
type Notifier interface {
	Broadcast(ctx context.Context, event notify.Event, payload any) notify.Result
}

// Mailer dispatches outbound emails.
type Mailer interface {
	Dispatch(ctx context.Context, kind mail.Kind, payload any) error
}

// ReceiptOutcome reports the receipt email side effect of an update.
type ReceiptOutcome struct {
	Requested bool
	Err       error
}

// UpdateResult holds the updated order and the outcome of its side effects.
// Callers may ignore everything but Order.
type UpdateResult struct {
	Order     *Order
	Receipt   ReceiptOutcome
	Broadcast notify.Result
}

// Service encapsulates the order lifecycle.
type Service struct {
	orders   Repository
	notifier Notifier
	mailer   Mailer
	newID    IDGenerator
	now      func() time.Time

	created  metric.Int64Counter
	retries  metric.Int64Counter
	receipts metric.Int64Counter
}

// Option configures a Service.
type Option func(*Service)

// WithIDGenerator overrides the random id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Service) { s.newID = g }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMeterProvider records service counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.initMetrics(mp.Meter("plantpass/order")) }
}

// NewService creates an order Service.
func NewService(orders Repository, notifier Notifier, mailer Mailer, opts ...Option) *Service {
	s := &Service{
		orders:   orders,
		notifier: notifier,
		mailer:   mailer,
		newID:    RandomID,
		now:      time.Now,
	}
	s.initMetrics(noop.NewMeterProvider().Meter("plantpass/order"))
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) initMetrics(m metric.Meter) {
	s.created, _ = m.Int64Counter("plantpass.orders.created")
	s.retries, _ = m.Int64Counter("plantpass.orders.id_retries",
		metric.WithDescription("Order id collisions on create"))
	s.receipts, _ = m.Int64Counter("plantpass.orders.receipts_requested")
}

// Create validates in, allocates an id and stores the new order. Id
// collisions are retried up to MaxIDAttempts times.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Order, error) {
	draft, err := in.Draft(s.now())
	if err != nil {
		return nil, err
	}

	lg := zctx.From(ctx)
	for attempt := 1; attempt <= MaxIDAttempts; attempt++ {
		o := New(s.newID(), draft)
		err := s.orders.Create(ctx, o)
		if errors.Is(err, ErrDuplicateID) {
			lg.Debug("Order id collision", zap.String("order_id", o.ID), zap.Int("attempt", attempt))
			s.retries.Add(ctx, 1)
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "create order")
		}

		s.created.Add(ctx, 1)
		lg.Info("Order created", zap.String("order_id", o.ID), zap.String("total", o.Receipt.Total.StringFixed(2)))
		s.notifier.Broadcast(ctx, notify.EventCreated, o)
		return o, nil
	}
	return nil, ErrIDAllocationExhausted
}

// Get returns the order with id.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	return o, nil
}

// Update applies in to the order with id and stores it. When the order
// becomes paid and has a customer email a receipt is dispatched; a dispatch
// failure is reported in the result, not returned.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*UpdateResult, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}
	changes, err := in.Changes()
	if err != nil {
		return nil, err
	}
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}

	becamePaid := o.Apply(changes)
	if err := s.orders.Put(ctx, o); err != nil {
		return nil, errors.Wrapf(err, "put order %q", id)
	}

	lg := zctx.From(ctx).With(zap.String("order_id", id))
	res := &UpdateResult{Order: o}
	if becamePaid && o.CustomerEmail != "" {
		res.Receipt = s.sendReceipt(ctx, o)
		if res.Receipt.Err != nil {
			lg.Error("Receipt email failed", zap.Error(res.Receipt.Err))
		}
	}
	res.Broadcast = s.notifier.Broadcast(ctx, notify.EventUpdated, o)
	lg.Info("Order updated", zap.Bool("paid", o.Payment.Paid))
	return res, nil
}

func (s *Service) sendReceipt(ctx context.Context, o *Order) ReceiptOutcome {
	s.receipts.Add(ctx, 1)
	return ReceiptOutcome{
		Requested: true,
		Err:       s.mailer.Dispatch(ctx, mail.KindReceipt, receiptOf(o)),
	}
}

func receiptOf(o *Order) mail.Receipt {
	r := mail.Receipt{
		Email:     o.CustomerEmail,
		OrderID:   o.ID,
		CreatedAt: time.Unix(o.CreatedAt, 0).UTC(),
		Subtotal:  o.Receipt.Subtotal,
		Discount:  o.Receipt.DiscountTotal,
		Total:     o.Receipt.Total,
	}
	for _, it := range o.Items {
		r.Items = append(r.Items, mail.ReceiptLine{Name: it.Name, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	for _, d := range o.Discounts {
		r.Discounts = append(r.Discounts, mail.ReceiptDiscount{Name: d.Name, AmountOff: d.AmountOff})
	}
	return r
}

// Delete removes the order with id. Deleting an unknown id is not an error.
func (s *Service) Delete(ctx context.Context, id string) error {
	if !ValidID(id) {
		return ErrInvalidID
	}
	if err := s.orders.Delete(ctx, id); err != nil {
		return errors.Wrapf(err, "delete order %q", id)
	}
	zctx.From(ctx).Info("Order deleted", zap.String("order_id", id))
	s.notifier.Broadcast(ctx, notify.EventDeleted, map[string]string{"purchase_id": id})
	return nil
}

// ListRecentUnpaid returns up to limit unpaid orders, newest first.
func (s *Service) ListRecentUnpaid(ctx context.Context, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	limit = min(limit, maxRecentLimit)
	orders, err := s.orders.ListRecentUnpaid(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list recent unpaid")
	}
	return orders, nil
}
