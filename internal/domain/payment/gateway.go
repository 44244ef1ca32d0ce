package payment

import (
	"context"
	"time"

	"github.com/example/digital-storefront/internal/domain/cart"
)

// Customer identifies who pays. Name and Email are forwarded to the gateway.
type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type CreateRequest struct {
	OrderID   string
	Amount    int64
	Method    string
	Customer  Customer
	Items     []cart.LineItem
	Fee       int64
	ExpiresAt time.Time
}

type Transaction struct {
	TransactionID string
	PaymentURL    string
	ExpiresAt     time.Time
}

// StatusUpdate is a gateway-reported status for a transaction, obtained by polling or
// pushed through a callback. SettledAmount is only meaningful when Status is paid.
type StatusUpdate struct {
	TransactionID string `json:"transaction_id"`
	Status        Status `json:"status"`
	SettledAmount int64  `json:"settled_amount"`
	Reason        string `json:"reason,omitempty"`
}

// Gateway is the remote payment provider. Implementations wrap permanent request
// failures in ErrGatewayRejected; any other error is treated as transient and retried.
type Gateway interface {
	CreateTransaction(ctx context.Context, req CreateRequest) (Transaction, error)
	GetStatus(ctx context.Context, transactionID string) (StatusUpdate, error)
	Cancel(ctx context.Context, transactionID string) error
}

// Reconciler turns a paid session into an order.
type Reconciler interface {
	Commit(ctx context.Context, session Session) error
}
