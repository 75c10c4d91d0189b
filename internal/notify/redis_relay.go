package notify

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var _ Relay = (*RedisRelay)(nil)

const defaultRelayPrefix = "plantpass:relay"

// LocalDeliverer writes to connections held by the current instance.
type LocalDeliverer interface {
	DeliverLocal(ctx context.Context, connID string, data []byte) error
}

// RedisRelay carries messages between api-server replicas over Redis
// Pub/Sub. Every instance subscribes to its own channel and delivers what
// arrives there to its local connections.
type RedisRelay struct {
	client redis.UniversalClient
	prefix string
}

type relayMessage struct {
	ConnID string `json:"conn_id"`
	Data   []byte `json:"data"`
}

// NewRedisRelay creates a RedisRelay publishing on channels named
// "<prefix>:<instance>".
func NewRedisRelay(client redis.UniversalClient, prefix string) *RedisRelay {
	if prefix == "" {
		prefix = defaultRelayPrefix
	}
	return &RedisRelay{client: client, prefix: prefix}
}

func (r *RedisRelay) channel(instance string) string {
	return r.prefix + ":" + instance
}

// Forward publishes data for connID to the channel of the instance holding
// it. No subscriber means that instance is gone, and so is the connection.
func (r *RedisRelay) Forward(ctx context.Context, connID string, data []byte) error {
	owner, ok := OwnerOf(connID)
	if !ok {
		return ErrGone
	}
	payload, err := json.Marshal(relayMessage{ConnID: connID, Data: data})
	if err != nil {
		return errors.Wrap(err, "marshal relay message")
	}
	receivers, err := r.client.Publish(ctx, r.channel(owner), payload).Result()
	if err != nil {
		return errors.Wrapf(err, "publish to instance %q", owner)
	}
	if receivers == 0 {
		return ErrGone
	}
	return nil
}

// Serve subscribes to the channel of instance and hands every message to
// local. It returns once the subscription is confirmed. Delivery stops when
// ctx is done or stop is called; stop waits for the loop to exit.
func (r *RedisRelay) Serve(ctx context.Context, instance string, local LocalDeliverer) (stop func(), err error) {
	sub := r.client.Subscribe(ctx, r.channel(instance))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, errors.Wrapf(err, "subscribe to %q", r.channel(instance))
	}

	lg := zctx.From(ctx).With(zap.String("instance", instance))
	unhook := context.AfterFunc(ctx, func() { _ = sub.Close() })
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range sub.Channel() {
			var m relayMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				lg.Warn("Decode relay message", zap.Error(err))
				continue
			}
			err := local.DeliverLocal(ctx, m.ConnID, m.Data)
			switch {
			case err == nil:
			case errors.Is(err, ErrGone):
				lg.Debug("Relayed connection closed", zap.String("conn_id", m.ConnID))
			default:
				lg.Warn("Deliver relayed message", zap.String("conn_id", m.ConnID), zap.Error(err))
			}
		}
	}()

	return func() {
		if unhook() {
			_ = sub.Close()
		}
		<-done
	}, nil
}
