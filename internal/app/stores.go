package app

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/plantpass/internal/domain/auth"
	"github.com/xenking/plantpass/internal/domain/catalog"
	"github.com/xenking/plantpass/internal/domain/order"
	"github.com/xenking/plantpass/internal/domain/settings"
	"github.com/xenking/plantpass/internal/mail"
	"github.com/xenking/plantpass/internal/notify"
	"github.com/xenking/plantpass/internal/storage/memory"
	"github.com/xenking/plantpass/internal/storage/postgres"
	"github.com/xenking/plantpass/internal/storage/s3store"
	"github.com/xenking/plantpass/pkg/health"
)

type settingsStore interface {
	settings.Store
	auth.PassphraseStore
}

// stores are the persistence backends selected by Config.
type stores struct {
	orders         order.Repository
	products       catalog.Store[catalog.Product]
	discounts      catalog.Store[catalog.Discount]
	paymentMethods catalog.Store[catalog.PaymentMethod]
	settings       settingsStore
	credentials    auth.CredentialStore
	tempPasswords  auth.TempPasswordStore

	// readiness checks of remote backends, keyed by name.
	pingers map[string]health.Pinger
	closers []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStores(ctx context.Context, lg *zap.Logger, cfg *Config) (*stores, error) {
	s := &stores{pingers: make(map[string]health.Pinger)}

	switch cfg.Storage {
	case BackendPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		s.closers = append(s.closers, pool.Close)
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			s.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		creds := postgres.NewCredentialStore(pool)
		s.orders = postgres.NewOrderRepository(pool)
		s.products = postgres.NewProductStore(pool)
		s.discounts = postgres.NewDiscountStore(pool)
		s.paymentMethods = postgres.NewPaymentMethodStore(pool)
		s.settings = postgres.NewSettingsStore(pool)
		s.credentials, s.tempPasswords = creds, creds
		s.pingers["postgres"] = pool
	default:
		lg.Warn("Using in-memory storage, data is lost on restart")
		creds := &memory.CredentialStore{}
		s.orders = memory.NewOrderStore()
		s.products = &memory.CatalogStore[catalog.Product]{}
		s.discounts = &memory.CatalogStore[catalog.Discount]{}
		s.paymentMethods = &memory.CatalogStore[catalog.PaymentMethod]{}
		s.settings = memory.NewSettingsStore()
		s.credentials, s.tempPasswords = creds, creds
	}

	if cfg.Admin.Credentials == BackendS3 {
		creds, err := s3store.NewCredentialStore(ctx, s3store.Config{
			Bucket:   cfg.Admin.S3.Bucket,
			Key:      cfg.Admin.S3.Key,
			Region:   cfg.Admin.S3.Region,
			Endpoint: cfg.Admin.S3.Endpoint,
		})
		if err != nil {
			s.Close()
			return nil, errors.Wrap(err, "create s3 credential store")
		}
		s.credentials = creds
	}
	return s, nil
}

// newRegistry returns the connection registry and, when replicas share it
// through Redis, the relay that carries events between them.
func newRegistry(cfg *Config, s *stores) (notify.Registry, *notify.RedisRelay) {
	if cfg.Notify.Registry != BackendRedis {
		return notify.NewMemoryRegistry(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Notify.Redis.Addr,
		Password: cfg.Notify.Redis.Password,
		DB:       cfg.Notify.Redis.DB,
	})
	s.closers = append(s.closers, func() { _ = client.Close() })
	registry := notify.NewRedisRegistry(client, cfg.Notify.Redis.Key, cfg.Notify.ConnectionTTL)
	s.pingers["redis"] = registry
	return registry, notify.NewRedisRelay(client, cfg.Notify.Redis.Key+":relay")
}

func newMailer(ctx context.Context, cfg *Config) (*mail.Dispatcher, error) {
	var sender mail.Sender = mail.LogSender{}
	if cfg.Email.Backend == BackendSES {
		ses, err := mail.NewSESSender(ctx, mail.SESConfig{
			Region:   cfg.Email.Region,
			Endpoint: cfg.Email.Endpoint,
			From:     cfg.Email.From,
		})
		if err != nil {
			return nil, errors.Wrap(err, "create ses sender")
		}
		sender = ses
	}
	return mail.NewDispatcher(sender, cfg.Email.ClubAddress), nil
}
