package cache

import (
	"context"
	"errors"
	"sync"

	"github.com/example/digital-storefront/internal/domain/cart"
)

var ErrCacheMiss = errors.New("cache miss")

// CartCache persists cart lines per customer between process restarts.
type CartCache interface {
	Get(ctx context.Context, customerID string) ([]cart.LineItem, error)
	Set(ctx context.Context, customerID string, items []cart.LineItem) error
	Delete(ctx context.Context, customerID string) error
}

// MemoryCache is used when no Redis address is configured.
type MemoryCache struct {
	mu    sync.RWMutex
	carts map[string][]cart.LineItem
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{carts: make(map[string][]cart.LineItem)}
}

func (m *MemoryCache) Get(ctx context.Context, customerID string) ([]cart.LineItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items, ok := m.carts[customerID]
	if !ok {
		return nil, ErrCacheMiss
	}
	return append([]cart.LineItem(nil), items...), nil
}

func (m *MemoryCache) Set(ctx context.Context, customerID string, items []cart.LineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[customerID] = append([]cart.LineItem(nil), items...)
	return nil
}

func (m *MemoryCache) Delete(ctx context.Context, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, customerID)
	return nil
}
