package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/example/digital-storefront/internal/domain/catalog"
)

var (
	ErrIndexOutOfRange = errors.New("cart index out of range")
	ErrInvalidProduct  = errors.New("product_ref is required")
)

// LineItem is one product tier in the cart. ID is unique within a cart.
type LineItem struct {
	ID         string `json:"id"`
	ProductRef string `json:"product_ref"`
	Title      string `json:"title"`
	Image      string `json:"image,omitempty"`
	Tier       string `json:"tier"`
	UnitPrice  int64  `json:"unit_price"`
	Quantity   int    `json:"quantity"`
	Selected   bool   `json:"selected"`
}

// LineTotal is UnitPrice * Quantity.
func (l LineItem) LineTotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// LineID derives the identity of a line from its product and tier.
func LineID(productRef, tier string) string {
	return productRef + "#" + tier
}

// Snapshot is derived from the live cart on every read and never stored.
type Snapshot struct {
	Items         []LineItem `json:"items"`
	SelectedItems []LineItem `json:"selected_items"`
	Subtotal      int64      `json:"subtotal"`
	SelectedCount int        `json:"selected_count"`
}

// NewSnapshot derives a snapshot from items. The slice is copied.
func NewSnapshot(items []LineItem) Snapshot {
	snap := Snapshot{
		Items:         make([]LineItem, len(items)),
		SelectedItems: make([]LineItem, 0, len(items)),
	}
	copy(snap.Items, items)
	for _, item := range items {
		if !item.Selected {
			continue
		}
		snap.SelectedItems = append(snap.SelectedItems, item)
		snap.Subtotal += item.LineTotal()
		snap.SelectedCount += item.Quantity
	}
	return snap
}

// Store is a single customer's cart. Mutations are serialized; listeners run after
// the lock is released, in registration order.
type Store struct {
	catalog catalog.Reader

	mu        sync.Mutex
	items     []LineItem
	listeners []subscription
	nextSubID int
}

type subscription struct {
	id int
	fn Listener
}

func NewStore(catalog catalog.Reader) *Store {
	return &Store{catalog: catalog}
}

// Add puts quantity units of a product tier in the cart. An existing line for the same
// product and tier has its quantity increased; otherwise a selected line is appended.
func (s *Store) Add(ctx context.Context, productRef, tier string, quantity int) (LineItem, error) {
	if productRef == "" {
		return LineItem{}, ErrInvalidProduct
	}
	if quantity < 1 {
		quantity = 1
	}

	product, err := s.catalog.Get(ctx, productRef)
	if err != nil {
		return LineItem{}, err
	}
	t, err := product.Tier(tier)
	if err != nil {
		return LineItem{}, err
	}

	id := LineID(product.ID, t.Name)

	s.mu.Lock()
	var line LineItem
	found := false
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Quantity += quantity
			line = s.items[i]
			found = true
			break
		}
	}
	if !found {
		line = LineItem{
			ID:         id,
			ProductRef: product.ID,
			Title:      product.Title,
			Image:      product.Image,
			Tier:       t.Name,
			UnitPrice:  t.Price,
			Quantity:   quantity,
			Selected:   true,
		}
		s.items = append(s.items, line)
	}
	s.commit(EventItemAdded)
	return line, nil
}

// Remove deletes the line at index.
func (s *Store) Remove(index int) error {
	s.mu.Lock()
	if err := s.checkIndex(index); err != nil {
		s.mu.Unlock()
		return err
	}
	s.items = append(s.items[:index], s.items[index+1:]...)
	s.commit(EventItemRemoved)
	return nil
}

// SetQuantity adds delta to the line quantity with a floor of 1. It never removes a line.
func (s *Store) SetQuantity(index, delta int) (LineItem, error) {
	s.mu.Lock()
	if err := s.checkIndex(index); err != nil {
		s.mu.Unlock()
		return LineItem{}, err
	}
	q := s.items[index].Quantity + delta
	if q < 1 {
		q = 1
	}
	s.items[index].Quantity = q
	line := s.items[index]
	s.commit(EventQuantityChanged)
	return line, nil
}

func (s *Store) ToggleSelected(index int) (LineItem, error) {
	s.mu.Lock()
	if err := s.checkIndex(index); err != nil {
		s.mu.Unlock()
		return LineItem{}, err
	}
	s.items[index].Selected = !s.items[index].Selected
	line := s.items[index]
	s.commit(EventSelectionChanged)
	return line, nil
}

func (s *Store) SelectAll(selected bool) {
	s.mu.Lock()
	for i := range s.items {
		s.items[i].Selected = selected
	}
	s.commit(EventSelectionChanged)
}

func (s *Store) Clear() {
	s.mu.Lock()
	s.items = nil
	s.commit(EventCartCleared)
}

// RemoveLines deletes the lines with the given ids and reports how many were removed.
// Unknown ids are ignored.
func (s *Store) RemoveLines(ids ...string) int {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	s.mu.Lock()
	kept := s.items[:0]
	removed := 0
	for _, item := range s.items {
		if _, ok := drop[item.ID]; ok {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	s.items = kept
	if removed == 0 {
		s.mu.Unlock()
		return 0
	}
	s.commit(EventLinesCommitted)
	return removed
}

// Restore replaces the cart content with previously persisted lines. Lines with
// duplicate ids are merged and quantities below 1 are raised to 1.
func (s *Store) Restore(items []LineItem) {
	restored := make([]LineItem, 0, len(items))
	pos := make(map[string]int, len(items))
	for _, item := range items {
		if item.ID == "" {
			item.ID = LineID(item.ProductRef, item.Tier)
		}
		if item.Quantity < 1 {
			item.Quantity = 1
		}
		if i, ok := pos[item.ID]; ok {
			restored[i].Quantity += item.Quantity
			continue
		}
		pos[item.ID] = len(restored)
		restored = append(restored, item)
	}

	s.mu.Lock()
	s.items = restored
	s.commit(EventCartRestored)
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return NewSnapshot(s.items)
}

// Items returns a copy of every line in insertion order.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]LineItem, len(s.items))
	copy(items, s.items)
	return items
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Subscribe registers a listener and returns a function that removes it.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.listeners {
				if sub.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) checkIndex(index int) error {
	if index < 0 || index >= len(s.items) {
		return fmt.Errorf("%w: %d (cart has %d lines)", ErrIndexOutOfRange, index, len(s.items))
	}
	return nil
}

// commit must be called with s.mu held. It releases the lock before notifying.
func (s *Store) commit(kind string) {
	change := Change{Kind: kind, Snapshot: NewSnapshot(s.items)}
	listeners := make([]Listener, len(s.listeners))
	for i, sub := range s.listeners {
		listeners[i] = sub.fn
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(change)
	}
}
