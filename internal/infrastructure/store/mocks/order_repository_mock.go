package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/digital-storefront/internal/domain/order"
)

// MockOrderRepository is a mock implementation of order.Repository for testing
type MockOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]order.Order

	// For tracking calls in tests
	CreateCalls []order.Order
	CreateErr   error
	GetErr      error
	ListErr     error
}

// NewMockOrderRepository creates a new MockOrderRepository
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders:      make(map[string]order.Order),
		CreateCalls: make([]order.Order, 0),
	}
}

// CreateOrder stores the order unless one exists for the transaction
func (m *MockOrderRepository) CreateOrder(ctx context.Context, o order.Order) (order.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls = append(m.CreateCalls, o)

	if m.CreateErr != nil {
		return order.Order{}, false, m.CreateErr
	}
	if existing, ok := m.orders[o.TransactionID]; ok {
		return existing, false, nil
	}
	m.orders[o.TransactionID] = o
	return o, true, nil
}

// GetByTransactionID retrieves an order by transaction id
func (m *MockOrderRepository) GetByTransactionID(ctx context.Context, transactionID string) (*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.GetErr != nil {
		return nil, m.GetErr
	}
	o, ok := m.orders[transactionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", order.ErrOrderNotFound, transactionID)
	}
	return &o, nil
}

// List returns all stored orders
func (m *MockOrderRepository) List(ctx context.Context) ([]order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]order.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o)
	}
	return out, nil
}

// ListByCustomer returns stored orders for one customer
func (m *MockOrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]order.Order, error) {
	all, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]order.Order, 0, len(all))
	for _, o := range all {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	return out, nil
}

// Count returns the number of stored orders
func (m *MockOrderRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.orders)
}

// Seed adds an order directly
func (m *MockOrderRepository) Seed(o order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.TransactionID] = o
}
