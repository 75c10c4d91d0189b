package notify

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 16

// Broadcaster delivers lifecycle events to every registered connection.
type Broadcaster struct {
	registry    Registry
	transport   Transport
	concurrency int

	deliveries metric.Int64Counter
}

// BroadcasterOption configures a Broadcaster.
type BroadcasterOption func(*Broadcaster)

// WithConcurrency bounds the number of in-flight deliveries.
func WithConcurrency(n int) BroadcasterOption {
	return func(b *Broadcaster) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithMeter records delivery outcomes on the given meter.
func WithMeter(m metric.Meter) BroadcasterOption {
	return func(b *Broadcaster) {
		c, err := m.Int64Counter("plantpass.notify.deliveries",
			metric.WithDescription("Broadcast delivery attempts by outcome"),
		)
		if err == nil {
			b.deliveries = c
		}
	}
}

// NewBroadcaster creates a Broadcaster over the given registry and transport.
func NewBroadcaster(registry Registry, transport Transport, opts ...BroadcasterOption) *Broadcaster {
	b := &Broadcaster{
		registry:    registry,
		transport:   transport,
		concurrency: defaultConcurrency,
	}
	b.deliveries, _ = noop.NewMeterProvider().Meter("notify").Int64Counter("deliveries")
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Broadcast sends event with payload to all live connections. Connections
// reported as gone are removed from the registry; unreachable connections of
// other instances are skipped; any other failure is logged and the
// connection is kept.
func (b *Broadcaster) Broadcast(ctx context.Context, event Event, payload any) Result {
	lg := zctx.From(ctx).With(zap.String("event", string(event)))

	conns, err := b.registry.List(ctx)
	if err != nil {
		lg.Error("List connections", zap.Error(err))
		return Result{}
	}
	if len(conns) == 0 {
		lg.Debug("No live connections")
		return Result{}
	}

	data, err := encode(event, payload)
	if err != nil {
		lg.Error("Encode broadcast message", zap.Error(err))
		return Result{Connections: len(conns), Failed: len(conns)}
	}

	var delivered, pruned, skipped, failed atomic.Int64

	// Every goroutine returns nil: one failed connection must not cancel
	// delivery to the others.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for _, id := range conns {
		g.Go(func() error {
			err := b.transport.Post(gctx, id, data)
			switch {
			case err == nil:
				delivered.Add(1)
				b.record(ctx, "delivered")
			case errors.Is(err, ErrGone):
				if rmErr := b.registry.Remove(ctx, id); rmErr != nil {
					lg.Error("Remove stale connection", zap.String("conn_id", id), zap.Error(rmErr))
				}
				pruned.Add(1)
				b.record(ctx, "pruned")
			case errors.Is(err, ErrNotLocal):
				skipped.Add(1)
				b.record(ctx, "skipped")
			default:
				lg.Warn("Deliver to connection", zap.String("conn_id", id), zap.Error(err))
				failed.Add(1)
				b.record(ctx, "failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	res := Result{
		Connections: len(conns),
		Delivered:   int(delivered.Load()),
		Pruned:      int(pruned.Load()),
		Skipped:     int(skipped.Load()),
		Failed:      int(failed.Load()),
	}
	lg.Info("Broadcast finished",
		zap.Int("delivered", res.Delivered),
		zap.Int("pruned", res.Pruned),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)
	return res
}

func (b *Broadcaster) record(ctx context.Context, outcome string) {
	b.deliveries.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func encode(event Event, payload any) ([]byte, error) {
	msg := Message{
		Type:  MessageType,
		Event: event,
		Data:  payload,
	}
	if ts, ok := payload.(Timestamped); ok {
		v := ts.EventTimestamp()
		msg.Timestamp = &v
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, "marshal message")
	}
	return data, nil
}
