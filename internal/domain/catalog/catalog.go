// Package catalog manages the product, discount and payment method lists
// shown at the register. Each list is replaced wholesale.
package catalog

import (
	"cmp"
	"context"
	"slices"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/plantpass/internal/domain/order"
	"github.com/xenking/plantpass/internal/validation"
)

// Product is a sellable item.
type Product struct {
	SKU       string
	Name      string
	UnitPrice decimal.Decimal
	SortOrder int
}

// Discount is a discount offered at checkout.
type Discount struct {
	Name      string
	Kind      order.DiscountKind
	Rate      decimal.Decimal
	SortOrder int
}

// PaymentMethod is an accepted way to pay.
type PaymentMethod struct {
	Name      string
	SortOrder int
}

// Store persists one catalog list.
type Store[T any] interface {
	List(ctx context.Context) ([]T, error)
	// ReplaceAll deletes every entry and inserts entries atomically. It
	// returns the number of deleted entries.
	ReplaceAll(ctx context.Context, entries []T) (int, error)
}

// ReplaceResult reports a replace-all operation.
type ReplaceResult struct {
	Deleted int
	Created int
	Skipped int
}

// ProductInput is an unvalidated product. Nil UnitPrice means missing.
type ProductInput struct {
	SKU       string
	Name      string
	UnitPrice *decimal.Decimal
	SortOrder int
}

// DiscountInput is an unvalidated discount definition.
type DiscountInput struct {
	Name      string
	Kind      string
	Rate      *decimal.Decimal
	SortOrder int
}

// PaymentMethodInput is an unvalidated payment method.
type PaymentMethodInput struct {
	Name      string
	SortOrder int
}

// Service reads and replaces catalogs.
type Service struct {
	products  Store[Product]
	discounts Store[Discount]
	methods   Store[PaymentMethod]
}

// NewService creates a catalog Service.
func NewService(products Store[Product], discounts Store[Discount], methods Store[PaymentMethod]) *Service {
	return &Service{products: products, discounts: discounts, methods: methods}
}

// Products returns products ordered by sort order, then SKU.
func (s *Service) Products(ctx context.Context) ([]Product, error) {
	list, err := s.products.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	slices.SortStableFunc(list, func(a, b Product) int {
		return cmp.Or(cmp.Compare(a.SortOrder, b.SortOrder), cmp.Compare(a.SKU, b.SKU))
	})
	return list, nil
}

// Discounts returns discounts ordered by sort order, then name.
func (s *Service) Discounts(ctx context.Context) ([]Discount, error) {
	list, err := s.discounts.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list discounts")
	}
	slices.SortStableFunc(list, func(a, b Discount) int {
		return cmp.Or(cmp.Compare(a.SortOrder, b.SortOrder), cmp.Compare(a.Name, b.Name))
	})
	return list, nil
}

// PaymentMethods returns payment methods ordered by sort order, then name.
func (s *Service) PaymentMethods(ctx context.Context) ([]PaymentMethod, error) {
	list, err := s.methods.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list payment methods")
	}
	slices.SortStableFunc(list, func(a, b PaymentMethod) int {
		return cmp.Or(cmp.Compare(a.SortOrder, b.SortOrder), cmp.Compare(a.Name, b.Name))
	})
	return list, nil
}

// ReplaceProducts replaces the product list. Entries without a valid SKU,
// a name or a positive price are skipped.
func (s *Service) ReplaceProducts(ctx context.Context, in []ProductInput) (ReplaceResult, error) {
	valid := make([]Product, 0, len(in))
	for _, p := range in {
		name := validation.Sanitize(p.Name)
		if !validation.SKU(p.SKU) || name == "" || p.UnitPrice == nil || !p.UnitPrice.IsPositive() {
			zctx.From(ctx).Warn("Skipping invalid product", zap.String("sku", p.SKU))
			continue
		}
		valid = append(valid, Product{SKU: p.SKU, Name: name, UnitPrice: *p.UnitPrice, SortOrder: p.SortOrder})
	}
	valid = dedupe(valid, func(p Product) string { return p.SKU })
	return replace(ctx, "products", s.products, valid, len(in))
}

// ReplaceDiscounts replaces the discount list. Entries without a name, with
// an unknown kind or without a rate are skipped; rates are clamped.
func (s *Service) ReplaceDiscounts(ctx context.Context, in []DiscountInput) (ReplaceResult, error) {
	valid := make([]Discount, 0, len(in))
	for _, d := range in {
		name := validation.Sanitize(d.Name)
		kind, ok := order.ParseDiscountKind(d.Kind)
		if name == "" || !ok || d.Rate == nil {
			zctx.From(ctx).Warn("Skipping invalid discount", zap.String("name", d.Name))
			continue
		}
		valid = append(valid, Discount{Name: name, Kind: kind, Rate: order.ClampRate(kind, *d.Rate), SortOrder: d.SortOrder})
	}
	valid = dedupe(valid, func(d Discount) string { return d.Name })
	return replace(ctx, "discounts", s.discounts, valid, len(in))
}

// ReplacePaymentMethods replaces the payment method list. Entries without a
// name are skipped.
func (s *Service) ReplacePaymentMethods(ctx context.Context, in []PaymentMethodInput) (ReplaceResult, error) {
	valid := make([]PaymentMethod, 0, len(in))
	for _, m := range in {
		name := validation.Sanitize(m.Name)
		if name == "" {
			zctx.From(ctx).Warn("Skipping invalid payment method")
			continue
		}
		valid = append(valid, PaymentMethod{Name: name, SortOrder: m.SortOrder})
	}
	valid = dedupe(valid, func(m PaymentMethod) string { return m.Name })
	return replace(ctx, "payment methods", s.methods, valid, len(in))
}

func replace[T any](ctx context.Context, what string, store Store[T], valid []T, total int) (ReplaceResult, error) {
	deleted, err := store.ReplaceAll(ctx, valid)
	if err != nil {
		return ReplaceResult{}, errors.Wrapf(err, "replace %s", what)
	}
	res := ReplaceResult{Deleted: deleted, Created: len(valid), Skipped: total - len(valid)}
	zctx.From(ctx).Info("Catalog replaced",
		zap.String("catalog", what),
		zap.Int("deleted", res.Deleted),
		zap.Int("created", res.Created),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

// dedupe keeps one entry per key. A later entry overwrites an earlier one in
// the earlier one's position.
func dedupe[T any](list []T, key func(T) string) []T {
	seen := make(map[string]int, len(list))
	out := list[:0]
	for _, v := range list {
		k := key(v)
		if i, ok := seen[k]; ok {
			out[i] = v
			continue
		}
		seen[k] = len(out)
		out = append(out, v)
	}
	return out
}
