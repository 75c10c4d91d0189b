// Package settings holds the register-wide feature toggles and the
// per-catalog edit locks.
package settings

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// ErrNotFound is returned by a Store when nothing has been saved yet.
var ErrNotFound = errors.New("setting not found")

// Toggles are the feature switches shown in the admin panel.
type Toggles struct {
	CollectEmailAddresses  bool `json:"collectEmailAddresses"`
	PasswordProtectAdmin   bool `json:"passwordProtectAdmin"`
	ProtectPlantPassAccess bool `json:"protectPlantPassAccess"`
}

// DefaultToggles is served until an admin saves toggles.
var DefaultToggles = Toggles{
	CollectEmailAddresses:  true,
	PasswordProtectAdmin:   true,
	ProtectPlantPassAccess: false,
}

// Resource names a lockable catalog.
type Resource string

const (
	ResourceProducts       Resource = "products"
	ResourceDiscounts      Resource = "discounts"
	ResourcePaymentMethods Resource = "payment_methods"
)

// Resources lists every lockable catalog.
var Resources = []Resource{ResourceProducts, ResourceDiscounts, ResourcePaymentMethods}

// InvalidResourceError is returned for an unknown resource type.
type InvalidResourceError struct {
	Value string
}

func (e *InvalidResourceError) Error() string {
	names := make([]string, len(Resources))
	for i, r := range Resources {
		names[i] = string(r)
	}
	return "Invalid resource type. Must be one of: " + strings.Join(names, ", ")
}

// ParseResource validates a resource type taken from a request path.
func ParseResource(s string) (Resource, error) {
	for _, r := range Resources {
		if string(r) == s {
			return r, nil
		}
	}
	return "", &InvalidResourceError{Value: s}
}

// Store persists settings.
type Store interface {
	Toggles(ctx context.Context) (Toggles, error)
	PutToggles(ctx context.Context, t Toggles) error
	Lock(ctx context.Context, r Resource) (bool, error)
	PutLock(ctx context.Context, r Resource, locked bool) error
}

// Service reads and writes settings.
type Service struct {
	store Store
}

// NewService creates a settings Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Toggles returns the saved toggles or DefaultToggles.
func (s *Service) Toggles(ctx context.Context) (Toggles, error) {
	t, err := s.store.Toggles(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		return DefaultToggles, nil
	case err != nil:
		return Toggles{}, errors.Wrap(err, "get toggles")
	}
	return t, nil
}

// SetToggles replaces all toggles.
func (s *Service) SetToggles(ctx context.Context, t Toggles) error {
	if err := s.store.PutToggles(ctx, t); err != nil {
		return errors.Wrap(err, "put toggles")
	}
	zctx.From(ctx).Info("Feature toggles updated",
		zap.Bool("collect_email_addresses", t.CollectEmailAddresses),
		zap.Bool("password_protect_admin", t.PasswordProtectAdmin),
		zap.Bool("protect_plantpass_access", t.ProtectPlantPassAccess),
	)
	return nil
}

// Locked reports whether a catalog is locked. Catalogs start unlocked.
func (s *Service) Locked(ctx context.Context, r Resource) (bool, error) {
	locked, err := s.store.Lock(ctx, r)
	switch {
	case errors.Is(err, ErrNotFound):
		return false, nil
	case err != nil:
		return false, errors.Wrapf(err, "get lock %s", r)
	}
	return locked, nil
}

// SetLocked locks or unlocks a catalog.
func (s *Service) SetLocked(ctx context.Context, r Resource, locked bool) error {
	if err := s.store.PutLock(ctx, r, locked); err != nil {
		return errors.Wrapf(err, "put lock %s", r)
	}
	zctx.From(ctx).Info("Lock state updated", zap.String("resource", string(r)), zap.Bool("locked", locked))
	return nil
}
