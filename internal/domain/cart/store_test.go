package cart

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"github.com/example/digital-storefront/internal/domain/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) *catalog.Service {
	t.Helper()
	c := catalog.NewService()
	ctx := context.Background()
	_, err := c.Upsert(ctx, catalog.Product{
		ID:    "A",
		Title: "Product A",
		Tiers: []catalog.Tier{{Name: "Basic", Price: 100000}, {Name: "Premium", Price: 250000}},
	})
	require.NoError(t, err)
	_, err = c.Upsert(ctx, catalog.Product{
		ID:    "B",
		Title: "Product B",
		Tiers: []catalog.Tier{{Name: "Basic", Price: 50000}},
	})
	require.NoError(t, err)
	return c
}

func newTestStore(t *testing.T) *Store {
	return NewStore(newTestCatalog(t))
}

func expectedSubtotal(items []LineItem) int64 {
	var total int64
	for _, item := range items {
		if item.Selected {
			total += item.UnitPrice * int64(item.Quantity)
		}
	}
	return total
}

// ============================================
// Add Tests
// ============================================

func TestStore_Add_NewLine(t *testing.T) {
	s := newTestStore(t)

	line, err := s.Add(context.Background(), "A", "Basic", 2)

	require.NoError(t, err)
	assert.Equal(t, "A#Basic", line.ID)
	assert.Equal(t, "Product A", line.Title)
	assert.Equal(t, int64(100000), line.UnitPrice)
	assert.Equal(t, 2, line.Quantity)
	assert.True(t, line.Selected)
}

func TestStore_Add_ExistingLineIncrements(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, "A", "Basic", 1)
	require.NoError(t, err)
	line, err := s.Add(ctx, "A", "basic", 3)
	require.NoError(t, err)

	assert.Equal(t, 4, line.Quantity)
	assert.Equal(t, 1, s.Len())
}

func TestStore_Add_DifferentTierIsSeparateLine(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, "A", "Basic", 1)
	require.NoError(t, err)
	_, err = s.Add(ctx, "A", "Premium", 1)
	require.NoError(t, err)

	assert.Equal(t, 2, s.Len())
}

func TestStore_Add_ClampsQuantity(t *testing.T) {
	s := newTestStore(t)

	line, err := s.Add(context.Background(), "B", "", -5)

	require.NoError(t, err)
	assert.Equal(t, 1, line.Quantity)
}

func TestStore_Add_UnknownProduct(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, "missing", "", 1)
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)

	_, err = s.Add(ctx, "A", "Gold", 1)
	assert.ErrorIs(t, err, catalog.ErrTierNotFound)

	_, err = s.Add(ctx, "", "", 1)
	assert.ErrorIs(t, err, ErrInvalidProduct)

	assert.Equal(t, 0, s.Len())
}

// ============================================
// Remove / Quantity / Selection Tests
// ============================================

func TestStore_Remove(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, _ = s.Add(ctx, "A", "Basic", 1)
	_, _ = s.Add(ctx, "B", "Basic", 1)

	require.NoError(t, s.Remove(0))

	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "B#Basic", snap.Items[0].ID)
}

func TestStore_Remove_OutOfRange(t *testing.T) {
	s := newTestStore(t)
	_, _ = s.Add(context.Background(), "A", "Basic", 1)

	for _, index := range []int{-1, 1, 5} {
		err := s.Remove(index)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
	}
	assert.Equal(t, 1, s.Len())
}

func TestStore_SetQuantity_FloorAtOne(t *testing.T) {
	s := newTestStore(t)
	_, _ = s.Add(context.Background(), "A", "Basic", 3)

	line, err := s.SetQuantity(0, -10)
	require.NoError(t, err)
	assert.Equal(t, 1, line.Quantity)

	line, err = s.SetQuantity(0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, line.Quantity)

	_, err = s.SetQuantity(1, 1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestStore_ToggleAndSelectAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, _ = s.Add(ctx, "A", "Basic", 1)
	_, _ = s.Add(ctx, "B", "Basic", 1)

	line, err := s.ToggleSelected(1)
	require.NoError(t, err)
	assert.False(t, line.Selected)
	assert.Len(t, s.Snapshot().SelectedItems, 1)

	s.SelectAll(false)
	assert.Empty(t, s.Snapshot().SelectedItems)

	s.SelectAll(true)
	assert.Len(t, s.Snapshot().SelectedItems, 2)

	_, err = s.ToggleSelected(2)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestStore_Clear(t *testing.T) {
	s := newTestStore(t)
	_, _ = s.Add(context.Background(), "A", "Basic", 1)

	s.Clear()

	snap := s.Snapshot()
	assert.Empty(t, snap.Items)
	assert.Zero(t, snap.Subtotal)
}

func TestStore_RemoveLines(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, _ = s.Add(ctx, "A", "Basic", 1)
	_, _ = s.Add(ctx, "B", "Basic", 1)
	_, _ = s.Add(ctx, "A", "Premium", 1)

	removed := s.RemoveLines("A#Basic", "A#Premium", "unknown")

	assert.Equal(t, 2, removed)
	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "B#Basic", snap.Items[0].ID)
	assert.Zero(t, s.RemoveLines("A#Basic"))
}

func TestStore_Restore(t *testing.T) {
	s := newTestStore(t)

	s.Restore([]LineItem{
		{ProductRef: "A", Tier: "Basic", UnitPrice: 100000, Quantity: 0, Selected: true},
		{ID: "A#Basic", ProductRef: "A", Tier: "Basic", UnitPrice: 100000, Quantity: 2, Selected: true},
		{ID: "B#Basic", ProductRef: "B", Tier: "Basic", UnitPrice: 50000, Quantity: 1},
	})

	snap := s.Snapshot()
	require.Len(t, snap.Items, 2)
	assert.Equal(t, 3, snap.Items[0].Quantity)
	assert.Equal(t, int64(300000), snap.Subtotal)
}

// ============================================
// Snapshot Tests
// ============================================

func TestStore_Snapshot_SelectedOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, _ = s.Add(ctx, "A", "Basic", 2)
	_, _ = s.Add(ctx, "B", "Basic", 1)
	_, _ = s.ToggleSelected(1)

	snap := s.Snapshot()

	assert.Equal(t, int64(200000), snap.Subtotal)
	assert.Equal(t, 2, snap.SelectedCount)
	require.Len(t, snap.SelectedItems, 1)
	assert.Equal(t, "A#Basic", snap.SelectedItems[0].ID)
}

func TestStore_Snapshot_IsDetached(t *testing.T) {
	s := newTestStore(t)
	_, _ = s.Add(context.Background(), "A", "Basic", 1)

	snap := s.Snapshot()
	snap.Items[0].Quantity = 99

	assert.Equal(t, 1, s.Snapshot().Items[0].Quantity)
}

func TestStore_Items_ReturnsCopyInOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, _ = s.Add(ctx, "B", "Basic", 1)
	_, _ = s.Add(ctx, "A", "Basic", 1)

	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "B#Basic", items[0].ID)
	assert.Equal(t, "A#Basic", items[1].ID)

	items[0].Quantity = 42
	assert.Equal(t, 1, s.Items()[0].Quantity)
}

func TestStore_SubtotalInvariant_RandomMutations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	refs := []struct{ product, tier string }{{"A", "Basic"}, {"A", "Premium"}, {"B", "Basic"}}

	for i := 0; i < 500; i++ {
		n := s.Len()
		switch rng.Intn(6) {
		case 0:
			r := refs[rng.Intn(len(refs))]
			_, err := s.Add(ctx, r.product, r.tier, rng.Intn(4)-1)
			require.NoError(t, err)
		case 1:
			_ = s.Remove(rng.Intn(n + 1))
		case 2:
			_, _ = s.SetQuantity(rng.Intn(n+1), rng.Intn(7)-3)
		case 3:
			_, _ = s.ToggleSelected(rng.Intn(n + 1))
		case 4:
			s.SelectAll(rng.Intn(2) == 0)
		case 5:
			if rng.Intn(10) == 0 {
				s.Clear()
			}
		}

		snap := s.Snapshot()
		assert.Equal(t, expectedSubtotal(snap.Items), snap.Subtotal)
		for _, item := range snap.Items {
			assert.GreaterOrEqual(t, item.Quantity, 1)
		}
	}
}

// ============================================
// Subscribe Tests
// ============================================

func TestStore_Subscribe(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var changes []Change
	unsubscribe := s.Subscribe(func(c Change) {
		changes = append(changes, c)
	})

	_, _ = s.Add(ctx, "A", "Basic", 2)
	_, _ = s.SetQuantity(0, 1)

	require.Len(t, changes, 2)
	assert.Equal(t, EventItemAdded, changes[0].Kind)
	assert.Equal(t, EventQuantityChanged, changes[1].Kind)
	assert.Equal(t, int64(300000), changes[1].Snapshot.Subtotal)

	unsubscribe()
	unsubscribe()
	s.Clear()
	assert.Len(t, changes, 2)
}

func TestStore_Subscribe_ListenerMayReadStore(t *testing.T) {
	s := newTestStore(t)

	var seen int64
	s.Subscribe(func(c Change) {
		seen = s.Snapshot().Subtotal
	})

	_, err := s.Add(context.Background(), "B", "Basic", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), seen)
}

func TestStore_FailedMutationDoesNotNotify(t *testing.T) {
	s := newTestStore(t)
	calls := 0
	s.Subscribe(func(Change) { calls++ })

	_ = s.Remove(0)
	_, _ = s.SetQuantity(3, 1)

	assert.Zero(t, calls)
}

func TestStore_ConcurrentAdds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Add(ctx, "A", "Basic", 1)
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 50, snap.Items[0].Quantity)
	assert.Equal(t, int64(5000000), snap.Subtotal)
}
