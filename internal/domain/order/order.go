package order

import (
	"context"
	"errors"
	"time"

	"github.com/example/digital-storefront/internal/domain/payment"
)

type Status string

const (
	StatusPaid Status = "paid"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrNotPaid       = errors.New("only paid sessions can be committed")
	ErrEmptyOrder    = errors.New("order must have at least one item")
)

// Order is the durable record of a paid session. TransactionID is unique.
type Order struct {
	ID            string      `json:"id"`
	TransactionID string      `json:"transaction_id"`
	CustomerID    string      `json:"customer_id"`
	CustomerEmail string      `json:"customer_email,omitempty"`
	Method        string      `json:"method"`
	Items         []OrderItem `json:"items"`
	Subtotal      int64       `json:"subtotal"`
	Fee           int64       `json:"fee"`
	Total         int64       `json:"total"`
	Status        Status      `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
	PaidAt        time.Time   `json:"paid_at"`
}

// Repository persists orders. CreateOrder is idempotent on TransactionID: when an order
// for the transaction already exists it is returned with created == false.
type Repository interface {
	CreateOrder(ctx context.Context, o Order) (stored Order, created bool, err error)
	GetByTransactionID(ctx context.Context, transactionID string) (*Order, error)
	List(ctx context.Context) ([]Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Order, error)
}

// FromSession builds an order from the items captured by the session, never from the
// live cart.
func FromSession(s payment.Session, now time.Time) (Order, error) {
	if s.Status != payment.StatusPaid {
		return Order{}, ErrNotPaid
	}
	if len(s.Items) == 0 {
		return Order{}, ErrEmptyOrder
	}

	items := make([]OrderItem, len(s.Items))
	for i, line := range s.Items {
		items[i] = OrderItem{
			ProductRef: line.ProductRef,
			Title:      line.Title,
			Tier:       line.Tier,
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPrice,
		}
	}

	paidAt := s.PaidAt
	if paidAt.IsZero() {
		paidAt = now
	}
	return Order{
		ID:            s.LocalOrderID,
		TransactionID: s.TransactionID,
		CustomerID:    s.CustomerID,
		CustomerEmail: s.CustomerEmail,
		Method:        s.Method,
		Items:         items,
		Subtotal:      s.Quote.Subtotal,
		Fee:           s.Quote.Fee,
		Total:         s.Quote.Total,
		Status:        StatusPaid,
		CreatedAt:     now,
		PaidAt:        paidAt,
	}, nil
}

// Placed returns the event payload for the order.
func (o Order) Placed() OrderPlaced {
	return OrderPlaced{
		OrderID:       o.ID,
		TransactionID: o.TransactionID,
		CustomerID:    o.CustomerID,
		CustomerEmail: o.CustomerEmail,
		Method:        o.Method,
		Items:         o.Items,
		Subtotal:      o.Subtotal,
		Fee:           o.Fee,
		Total:         o.Total,
		PlacedAt:      o.CreatedAt,
	}
}
