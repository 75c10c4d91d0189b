package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// Pinger is a dependency that answers a round trip, such as a pgx pool or
// the Redis connection registry.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck fails when p cannot be reached.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}

// GoroutineCountCheck fails above threshold goroutines. Every websocket
// viewer holds two, so the threshold bounds live connections as well.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// CapacityCheck fails when current() exceeds limit.
func CapacityCheck(what string, limit int, current func() int) CheckFunc {
	return func(context.Context) error {
		if n := current(); n > limit {
			return errors.Errorf("%s %d exceeds limit %d", what, n, limit)
		}
		return nil
	}
}
