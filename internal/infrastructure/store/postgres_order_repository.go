package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/example/digital-storefront/internal/domain/order"
)

const uniqueViolation = "23505"

const orderColumns = `id, transaction_id, customer_id, customer_email, method, items, subtotal, fee, total, status, created_at, paid_at`

// PostgresOrderRepository stores orders in the orders table.
type PostgresOrderRepository struct {
	db *sql.DB
}

var _ order.Repository = (*PostgresOrderRepository)(nil)

func NewPostgresOrderRepository(db *sql.DB) *PostgresOrderRepository {
	return &PostgresOrderRepository{db: db}
}

// CreateOrder inserts the order unless one already exists for its transaction id.
func (r *PostgresOrderRepository) CreateOrder(ctx context.Context, o order.Order) (order.Order, bool, error) {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return order.Order{}, false, fmt.Errorf("marshal order items: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO orders (`+orderColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (transaction_id) DO NOTHING`,
		o.ID,
		o.TransactionID,
		o.CustomerID,
		o.CustomerEmail,
		o.Method,
		itemsJSON,
		o.Subtotal,
		o.Fee,
		o.Total,
		string(o.Status),
		o.CreatedAt,
		o.PaidAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return order.Order{}, false, fmt.Errorf("insert order: duplicate id %s: %w", o.ID, err)
		}
		return order.Order{}, false, fmt.Errorf("insert order: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return order.Order{}, false, fmt.Errorf("insert order: %w", err)
	}
	if n == 1 {
		return o, true, nil
	}

	existing, err := r.GetByTransactionID(ctx, o.TransactionID)
	if err != nil {
		return order.Order{}, false, err
	}
	return *existing, false, nil
}

func (r *PostgresOrderRepository) GetByTransactionID(ctx context.Context, transactionID string) (*order.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE transaction_id = $1`,
		transactionID,
	)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", order.ErrOrderNotFound, transactionID)
	}
	if err != nil {
		return nil, fmt.Errorf("query order by transaction id: %w", err)
	}
	return o, nil
}

func (r *PostgresOrderRepository) List(ctx context.Context) ([]order.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	return scanOrders(rows)
}

func (r *PostgresOrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]order.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 ORDER BY created_at DESC`,
		customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query orders by customer: %w", err)
	}
	return scanOrders(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var o order.Order
	var itemsJSON []byte
	var status string
	if err := row.Scan(
		&o.ID,
		&o.TransactionID,
		&o.CustomerID,
		&o.CustomerEmail,
		&o.Method,
		&itemsJSON,
		&o.Subtotal,
		&o.Fee,
		&o.Total,
		&status,
		&o.CreatedAt,
		&o.PaidAt,
	); err != nil {
		return nil, err
	}
	o.Status = order.Status(status)
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	return &o, nil
}

func scanOrders(rows *sql.Rows) ([]order.Order, error) {
	defer rows.Close()

	orders := make([]order.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}
