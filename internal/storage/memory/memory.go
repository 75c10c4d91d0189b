// Package memory implements the domain stores in process memory. It backs
// local runs without a database and the handler tests.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/xenking/plantpass/internal/domain/auth"
	"github.com/xenking/plantpass/internal/domain/catalog"
	"github.com/xenking/plantpass/internal/domain/order"
	"github.com/xenking/plantpass/internal/domain/settings"
)

var _ order.Repository = (*OrderStore)(nil)

// OrderStore is a map of orders keyed by id.
type OrderStore struct {
	mu     sync.RWMutex
	orders map[string]order.Order
}

// NewOrderStore creates an empty OrderStore.
func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[string]order.Order)}
}

func (s *OrderStore) Create(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return order.ErrDuplicateID
	}
	s.orders[o.ID] = clone(*o)
	return nil
}

func (s *OrderStore) Get(_ context.Context, id string) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	o = clone(o)
	return &o, nil
}

func (s *OrderStore) Put(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = clone(*o)
	return nil
}

func (s *OrderStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, id)
	return nil
}

func (s *OrderStore) ListRecentUnpaid(ctx context.Context, limit int) ([]order.Order, error) {
	all, err := s.ScanAll(ctx)
	if err != nil {
		return nil, err
	}
	return order.RecentUnpaid(all, limit), nil
}

// ScanAll returns every order sorted by id.
func (s *OrderStore) ScanAll(context.Context) ([]order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]order.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, clone(o))
	}
	slices.SortFunc(out, func(a, b order.Order) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *OrderStore) DeleteMany(_ context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, id := range ids {
		if _, ok := s.orders[id]; ok {
			delete(s.orders, id)
			n++
		}
	}
	return n, nil
}

// clone copies the slices of o so stored orders never alias callers.
func clone(o order.Order) order.Order {
	o.Items = slices.Clone(o.Items)
	o.Discounts = slices.Clone(o.Discounts)
	return o
}

// CatalogStore holds one catalog list.
type CatalogStore[T any] struct {
	mu      sync.RWMutex
	entries []T
}

var (
	_ catalog.Store[catalog.Product]       = (*CatalogStore[catalog.Product])(nil)
	_ catalog.Store[catalog.Discount]      = (*CatalogStore[catalog.Discount])(nil)
	_ catalog.Store[catalog.PaymentMethod] = (*CatalogStore[catalog.PaymentMethod])(nil)
)

func (s *CatalogStore[T]) List(context.Context) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entries), nil
}

func (s *CatalogStore[T]) ReplaceAll(_ context.Context, entries []T) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.entries)
	s.entries = slices.Clone(entries)
	return n, nil
}

var (
	_ settings.Store         = (*SettingsStore)(nil)
	_ auth.PassphraseStore   = (*SettingsStore)(nil)
	_ auth.CredentialStore   = (*CredentialStore)(nil)
	_ auth.TempPasswordStore = (*CredentialStore)(nil)
)

// SettingsStore holds toggles, locks and the staff passphrase.
type SettingsStore struct {
	mu         sync.RWMutex
	toggles    *settings.Toggles
	locks      map[settings.Resource]bool
	passphrase *string
}

// NewSettingsStore creates an empty SettingsStore.
func NewSettingsStore() *SettingsStore {
	return &SettingsStore{locks: make(map[settings.Resource]bool)}
}

func (s *SettingsStore) Toggles(context.Context) (settings.Toggles, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.toggles == nil {
		return settings.Toggles{}, settings.ErrNotFound
	}
	return *s.toggles, nil
}

func (s *SettingsStore) PutToggles(_ context.Context, t settings.Toggles) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toggles = &t
	return nil
}

func (s *SettingsStore) Lock(_ context.Context, r settings.Resource) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.locks[r]
	if !ok {
		return false, settings.ErrNotFound
	}
	return v, nil
}

func (s *SettingsStore) PutLock(_ context.Context, r settings.Resource, locked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks[r] = locked
	return nil
}

func (s *SettingsStore) Passphrase(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.passphrase == nil {
		return "", auth.ErrNotFound
	}
	return *s.passphrase, nil
}

func (s *SettingsStore) SetPassphrase(_ context.Context, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passphrase = &p
	return nil
}

// CredentialStore holds the admin and temporary password hashes.
type CredentialStore struct {
	mu         sync.RWMutex
	hash       []byte
	temp       []byte
	tempExpiry time.Time
}

func (s *CredentialStore) PasswordHash(context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.hash == nil {
		return nil, auth.ErrNotFound
	}
	return slices.Clone(s.hash), nil
}

func (s *CredentialStore) SetPasswordHash(_ context.Context, hash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hash = slices.Clone(hash)
	return nil
}

func (s *CredentialStore) PutTempPassword(_ context.Context, hash []byte, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temp, s.tempExpiry = slices.Clone(hash), expiresAt
	return nil
}

func (s *CredentialStore) TempPassword(context.Context) ([]byte, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.temp == nil {
		return nil, time.Time{}, auth.ErrNotFound
	}
	return slices.Clone(s.temp), s.tempExpiry, nil
}

func (s *CredentialStore) DeleteTempPassword(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temp = nil
	return nil
}
