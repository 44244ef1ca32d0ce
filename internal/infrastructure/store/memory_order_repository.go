package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/example/digital-storefront/internal/domain/order"
)

// MemoryOrderRepository keeps orders in process memory. Used for local runs and tests.
type MemoryOrderRepository struct {
	mu     sync.RWMutex
	byTx   map[string]order.Order
	orders []string // transaction ids in insertion order
}

var _ order.Repository = (*MemoryOrderRepository)(nil)

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{byTx: make(map[string]order.Order)}
}

func (r *MemoryOrderRepository) CreateOrder(ctx context.Context, o order.Order) (order.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byTx[o.TransactionID]; ok {
		return cloneOrder(existing), false, nil
	}
	stored := cloneOrder(o)
	r.byTx[o.TransactionID] = stored
	r.orders = append(r.orders, o.TransactionID)
	return cloneOrder(stored), true, nil
}

func (r *MemoryOrderRepository) GetByTransactionID(ctx context.Context, transactionID string) (*order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.byTx[transactionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", order.ErrOrderNotFound, transactionID)
	}
	out := cloneOrder(o)
	return &out, nil
}

// List returns orders newest first.
func (r *MemoryOrderRepository) List(ctx context.Context) ([]order.Order, error) {
	return r.filter(func(order.Order) bool { return true }), nil
}

func (r *MemoryOrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]order.Order, error) {
	return r.filter(func(o order.Order) bool { return o.CustomerID == customerID }), nil
}

func (r *MemoryOrderRepository) filter(keep func(order.Order) bool) []order.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]order.Order, 0, len(r.orders))
	for i := len(r.orders) - 1; i >= 0; i-- {
		o := r.byTx[r.orders[i]]
		if keep(o) {
			out = append(out, cloneOrder(o))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func cloneOrder(o order.Order) order.Order {
	o.Items = append([]order.OrderItem(nil), o.Items...)
	return o
}
