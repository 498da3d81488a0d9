package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/pagination"
)

const orderColumns = `id, user_id, checkout_id, items, shipping_address, payment_method, total_price,
	is_paid, paid_at, payment_status, payment_details, is_delivered, delivered_at, status,
	created_at, updated_at`

const (
	insertOrderSQL = `
		INSERT INTO orders (id, user_id, checkout_id, items, shipping_address, payment_method, total_price,
			is_paid, paid_at, payment_status, payment_details, is_delivered, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	updateOrderStatusSQL = `
		UPDATE orders
		SET status = $3,
			is_delivered = is_delivered OR $3 = 'delivered',
			delivered_at = CASE WHEN $3 = 'delivered' THEN $4 ELSE delivered_at END,
			updated_at = $4
		WHERE id = $1 AND status = $2
		RETURNING ` + orderColumns
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// insertOrder writes o using q, which is the finalize transaction.
func insertOrder(ctx context.Context, q execer, o *domain.Order) error {
	itemsJSON, addrJSON, err := encodeItemsAndAddress(o.Items, o.ShippingAddress)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, insertOrderSQL,
		o.ID,
		o.UserID,
		o.CheckoutID,
		itemsJSON,
		addrJSON,
		o.PaymentMethod,
		o.TotalPrice,
		o.IsPaid,
		o.PaidAt,
		o.PaymentStatus,
		nullableJSON(o.PaymentDetails),
		o.IsDelivered,
		o.Status,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByID retrieves an order by its ID.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (o *domain.Order, err error) {
	ctx, end := database.TraceQuery(ctx, "GetOrder", getOrderSQL)
	defer func() { end(err) }()

	o, err = scanOrder(r.pool.QueryRow(ctx, getOrderSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("order", id)
	}
	return o, err
}

// List returns orders matching the given filter with the total count.
func (r *OrderRepository) List(ctx context.Context, filter domain.OrderFilter, page pagination.Params) (orders []domain.Order, total int, err error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIndex))
		args = append(args, filter.UserID)
		argIndex++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, filter.Status)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// count(*) OVER() returns the total alongside the page in one round trip.
	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM orders
		%s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d`,
		orderColumns, whereClause, argIndex, argIndex+1,
	)
	args = append(args, page.PerPage, page.Offset())

	ctx, end := database.TraceQuery(ctx, "ListOrders", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders = make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows, &total)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, total, nil
}

// UpdateStatus moves an order from status from to status to.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id, from, to string) (o *domain.Order, err error) {
	ctx, end := database.TraceQuery(ctx, "UpdateOrderStatus", updateOrderStatusSQL)
	defer func() { end(err) }()

	o, err = scanOrder(r.pool.QueryRow(ctx, updateOrderStatusSQL, id, from, to, utcNow()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return o, err
}

// scanOrder reads orderColumns followed by any extra destinations.
func scanOrder(row scanner, extra ...any) (*domain.Order, error) {
	var (
		o         domain.Order
		itemsJSON []byte
		addrJSON  []byte
		details   []byte
	)
	dest := []any{
		&o.ID,
		&o.UserID,
		&o.CheckoutID,
		&itemsJSON,
		&addrJSON,
		&o.PaymentMethod,
		&o.TotalPrice,
		&o.IsPaid,
		&o.PaidAt,
		&o.PaymentStatus,
		&details,
		&o.IsDelivered,
		&o.DeliveredAt,
		&o.Status,
		&o.CreatedAt,
		&o.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	var err error
	if o.Items, err = decodeItems(itemsJSON); err != nil {
		return nil, err
	}
	if o.ShippingAddress, err = decodeAddress(addrJSON); err != nil {
		return nil, err
	}
	if len(details) > 0 {
		o.PaymentDetails = details
	}
	return &o, nil
}
