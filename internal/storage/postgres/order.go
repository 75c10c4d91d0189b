package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xenking/plantpass/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (id, created_at, payment_status, document)
		VALUES ($1, $2, $3, $4)`

	upsertOrderSQL = `INSERT INTO orders (id, created_at, payment_status, document)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET created_at = EXCLUDED.created_at,
			payment_status = EXCLUDED.payment_status,
			document = EXCLUDED.document`

	getOrderSQL = `SELECT document FROM orders WHERE id = $1`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1`

	deleteOrdersSQL = `DELETE FROM orders WHERE id = ANY($1)`

	recentUnpaidSQL = `SELECT document FROM orders
		WHERE payment_status = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	scanOrdersSQL = `SELECT id, document FROM orders
		WHERE id > $1
		ORDER BY id
		LIMIT $2`
)

// DefaultScanPageSize is the number of rows fetched per ScanAll round trip.
const DefaultScanPageSize = 500

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository. Each order is stored as a
// JSONB document next to the columns the recent-unpaid index covers.
type OrderRepository struct {
	pool     *pgxpool.Pool
	pageSize int
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool, pageSize: DefaultScanPageSize}
}

// Create inserts o, failing with order.ErrDuplicateID if the id is taken.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	_, err := r.pool.Exec(ctx, insertOrderSQL, o.ID, o.CreatedAt, string(o.Status), o)
	if hasCode(err, codeUniqueViolation) {
		return order.ErrDuplicateID
	}
	if err != nil {
		return errors.Wrapf(err, "create order %q", o.ID)
	}
	return nil
}

// Get returns the order with the given id.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanDocument)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	return &o, nil
}

// Put stores o, replacing any previous version.
func (r *OrderRepository) Put(ctx context.Context, o *order.Order) error {
	if _, err := r.pool.Exec(ctx, upsertOrderSQL, o.ID, o.CreatedAt, string(o.Status), o); err != nil {
		return errors.Wrapf(err, "put order %q", o.ID)
	}
	return nil
}

// Delete removes the order. Unknown ids are not an error.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, deleteOrderSQL, id); err != nil {
		return errors.Wrapf(err, "delete order %q", id)
	}
	return nil
}

// ListRecentUnpaid reads the payment status index. When the indexed
// columns are missing it falls back to scanning every document.
func (r *OrderRepository) ListRecentUnpaid(ctx context.Context, limit int) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, recentUnpaidSQL, string(order.StatusUnpaid), limit)
	if err == nil {
		var list []order.Order
		list, err = pgx.CollectRows(rows, scanDocument)
		if err == nil {
			return list, nil
		}
	}
	if !hasCode(err, codeUndefinedColumn) {
		return nil, errors.Wrap(err, "list recent unpaid orders")
	}

	zctx.From(ctx).Warn("Payment status index unavailable, scanning orders", zap.Error(err))
	all, err := r.ScanAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list recent unpaid orders")
	}
	return order.RecentUnpaid(all, limit), nil
}

// ScanAll pages through every order by id.
func (r *OrderRepository) ScanAll(ctx context.Context) ([]order.Order, error) {
	var (
		all   []order.Order
		after string
	)
	for {
		rows, err := r.pool.Query(ctx, scanOrdersSQL, after, r.pageSize)
		if err != nil {
			return nil, errors.Wrap(err, "scan orders")
		}
		page, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (keyed, error) {
			var k keyed
			err := row.Scan(&k.id, &k.order)
			return k, err
		})
		if err != nil {
			return nil, errors.Wrap(err, "scan orders")
		}
		for _, k := range page {
			all = append(all, k.order)
		}
		if len(page) < r.pageSize {
			return all, nil
		}
		after = page[len(page)-1].id
	}
}

// DeleteMany removes every listed order in one statement.
func (r *OrderRepository) DeleteMany(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, deleteOrdersSQL, ids)
	if err != nil {
		return 0, errors.Wrap(err, "delete orders")
	}
	return int(tag.RowsAffected()), nil
}

type keyed struct {
	id    string
	order order.Order
}

func scanDocument(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(&o)
	return o, err
}
