package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/plantpass/internal/domain/catalog"
	"github.com/xenking/plantpass/internal/domain/order"
)

const (
	listProductsSQL       = `SELECT sku, name, unit_price, sort_order FROM products ORDER BY sort_order, sku`
	listDiscountsSQL      = `SELECT name, kind, rate, sort_order FROM discounts ORDER BY sort_order, name`
	listPaymentMethodsSQL = `SELECT name, sort_order FROM payment_methods ORDER BY sort_order, name`
)

var (
	_ catalog.Store[catalog.Product]       = (*ProductStore)(nil)
	_ catalog.Store[catalog.Discount]      = (*DiscountStore)(nil)
	_ catalog.Store[catalog.PaymentMethod] = (*PaymentMethodStore)(nil)
)

// ProductStore persists the product catalog.
type ProductStore struct {
	pool *pgxpool.Pool
}

// NewProductStore returns a ProductStore that uses the given pool.
func NewProductStore(pool *pgxpool.Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

// List returns every product.
func (s *ProductStore) List(ctx context.Context) ([]catalog.Product, error) {
	rows, err := s.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Product, error) {
		var p catalog.Product
		err := row.Scan(&p.SKU, &p.Name, &p.UnitPrice, &p.SortOrder)
		return p, err
	})
}

// ReplaceAll swaps the whole product table in one transaction.
func (s *ProductStore) ReplaceAll(ctx context.Context, products []catalog.Product) (int, error) {
	rows := make([][]any, len(products))
	for i, p := range products {
		rows[i] = []any{p.SKU, p.Name, p.UnitPrice, p.SortOrder}
	}
	return replaceTable(ctx, s.pool, "products", []string{"sku", "name", "unit_price", "sort_order"}, rows)
}

// DiscountStore persists the discount catalog.
type DiscountStore struct {
	pool *pgxpool.Pool
}

// NewDiscountStore returns a DiscountStore that uses the given pool.
func NewDiscountStore(pool *pgxpool.Pool) *DiscountStore {
	return &DiscountStore{pool: pool}
}

// List returns every discount.
func (s *DiscountStore) List(ctx context.Context) ([]catalog.Discount, error) {
	rows, err := s.pool.Query(ctx, listDiscountsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list discounts")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Discount, error) {
		var (
			d    catalog.Discount
			kind string
		)
		if err := row.Scan(&d.Name, &kind, &d.Rate, &d.SortOrder); err != nil {
			return d, err
		}
		k, ok := order.ParseDiscountKind(kind)
		if !ok {
			return d, errors.Errorf("discount %q: unknown kind %q", d.Name, kind)
		}
		d.Kind = k
		return d, nil
	})
}

// ReplaceAll swaps the whole discount table in one transaction.
func (s *DiscountStore) ReplaceAll(ctx context.Context, discounts []catalog.Discount) (int, error) {
	rows := make([][]any, len(discounts))
	for i, d := range discounts {
		rows[i] = []any{d.Name, string(d.Kind), d.Rate, d.SortOrder}
	}
	return replaceTable(ctx, s.pool, "discounts", []string{"name", "kind", "rate", "sort_order"}, rows)
}

// PaymentMethodStore persists the payment method catalog.
type PaymentMethodStore struct {
	pool *pgxpool.Pool
}

// NewPaymentMethodStore returns a PaymentMethodStore that uses the given pool.
func NewPaymentMethodStore(pool *pgxpool.Pool) *PaymentMethodStore {
	return &PaymentMethodStore{pool: pool}
}

// List returns every payment method.
func (s *PaymentMethodStore) List(ctx context.Context) ([]catalog.PaymentMethod, error) {
	rows, err := s.pool.Query(ctx, listPaymentMethodsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list payment methods")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.PaymentMethod, error) {
		var m catalog.PaymentMethod
		err := row.Scan(&m.Name, &m.SortOrder)
		return m, err
	})
}

// ReplaceAll swaps the whole payment method table in one transaction.
func (s *PaymentMethodStore) ReplaceAll(ctx context.Context, methods []catalog.PaymentMethod) (int, error) {
	rows := make([][]any, len(methods))
	for i, m := range methods {
		rows[i] = []any{m.Name, m.SortOrder}
	}
	return replaceTable(ctx, s.pool, "payment_methods", []string{"name", "sort_order"}, rows)
}

// replaceTable deletes every row of table and copies rows in, returning
// the number of deleted rows. table and columns are trusted identifiers.
func replaceTable(ctx context.Context, pool *pgxpool.Pool, table string, columns []string, rows [][]any) (int, error) {
	var deleted int
	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, "DELETE FROM "+pgx.Identifier{table}.Sanitize())
		if err != nil {
			return errors.Wrap(err, "delete")
		}
		deleted = int(tag.RowsAffected())
		if len(rows) == 0 {
			return nil
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows)); err != nil {
			return errors.Wrap(err, "copy")
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrapf(err, "replace %s", table)
	}
	return deleted, nil
}
