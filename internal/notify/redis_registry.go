package notify

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

var _ Registry = (*RedisRegistry)(nil)

const defaultRegistryKey = "plantpass:connections"

// RedisRegistry shares connection ids between api-server replicas. Ids are
// kept in a sorted set scored by their expiry time, so registrations that
// were never removed (crashed replica) age out after the TTL.
type RedisRegistry struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisRegistry creates a RedisRegistry. A zero ttl defaults to two hours.
func NewRedisRegistry(client redis.UniversalClient, key string, ttl time.Duration) *RedisRegistry {
	if key == "" {
		key = defaultRegistryKey
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RedisRegistry{
		client: client,
		key:    key,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Add registers connID or extends its expiry.
func (r *RedisRegistry) Add(ctx context.Context, connID string) error {
	expires := r.now().Add(r.ttl).Unix()
	if err := r.client.ZAdd(ctx, r.key, redis.Z{Score: float64(expires), Member: connID}).Err(); err != nil {
		return errors.Wrapf(err, "register connection %q", connID)
	}
	return nil
}

func (r *RedisRegistry) Remove(ctx context.Context, connID string) error {
	if err := r.client.ZRem(ctx, r.key, connID).Err(); err != nil {
		return errors.Wrapf(err, "remove connection %q", connID)
	}
	return nil
}

// List drops expired registrations and returns the remaining ids.
func (r *RedisRegistry) List(ctx context.Context) ([]string, error) {
	cutoff := strconv.FormatInt(r.now().Unix(), 10)

	pipe := r.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, r.key, "-inf", "("+cutoff)
	members := pipe.ZRange(ctx, r.key, 0, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrap(err, "list connections")
	}
	return members.Val(), nil
}

// Ping checks the redis connection for readiness probes.
func (r *RedisRegistry) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
