package workspace

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/digital-storefront/internal/domain/cart"
	"github.com/example/digital-storefront/internal/domain/catalog"
	"github.com/example/digital-storefront/internal/domain/order"
	"github.com/example/digital-storefront/internal/domain/payment"
	"github.com/example/digital-storefront/internal/domain/pricing"
	"github.com/example/digital-storefront/internal/infrastructure/cache"
)

const cacheTimeout = 3 * time.Second

type Deps struct {
	Catalog   catalog.Reader
	Methods   *pricing.Methods
	Gateway   payment.Gateway
	Orders    order.Repository
	Publisher order.Publisher
	Cache     cache.CartCache
	Logger    *zap.Logger
	Clock     func() time.Time

	PaymentTTL   time.Duration
	PollInterval time.Duration
	PollGrace    time.Duration
	Retry        payment.RetryPolicy
}

// Workspace is everything one customer works with: a cart, the payment sessions
// opened for it and the reconciler turning paid sessions into orders.
type Workspace struct {
	CustomerID string
	Cart       *cart.Store
	Payments   *payment.Manager

	reconciler  *order.Reconciler
	registry    *Registry
	unsubscribe []func()
}

// Registry owns the workspaces of all customers seen by this process.
type Registry struct {
	deps   Deps
	logger *zap.Logger

	// pollers outlive the request that started them
	baseCtx context.Context
	cancel  context.CancelFunc

	mu         sync.Mutex
	workspaces map[string]*Workspace
	byTx       map[string]string
	closed     bool
}

var ErrClosed = errors.New("workspace registry is shut down")

func NewRegistry(deps Deps) *Registry {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewMemoryCache()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		deps:       deps,
		logger:     deps.Logger.Named("workspace"),
		baseCtx:    ctx,
		cancel:     cancel,
		workspaces: make(map[string]*Workspace),
		byTx:       make(map[string]string),
	}
}

// Get returns the workspace of customer, creating it on first use. A new workspace
// restores its cart from the cache.
func (r *Registry) Get(ctx context.Context, customer payment.Customer) (*Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if ws, ok := r.workspaces[customer.ID]; ok {
		return ws, nil
	}

	ws := r.newWorkspaceLocked(ctx, customer)
	r.workspaces[customer.ID] = ws
	return ws, nil
}

// Lookup returns an existing workspace without creating one.
func (r *Registry) Lookup(customerID string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.workspaces[customerID]
	return ws, ok
}

// ByTransaction finds the workspace that opened a remote transaction.
func (r *Registry) ByTransaction(transactionID string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	customerID, ok := r.byTx[transactionID]
	if !ok {
		return nil, false
	}
	ws, ok := r.workspaces[customerID]
	return ws, ok
}

// ApplyStatus routes a pushed gateway status to the workspace owning the transaction.
func (r *Registry) ApplyStatus(ctx context.Context, update payment.StatusUpdate) (payment.Session, error) {
	ws, ok := r.ByTransaction(update.TransactionID)
	if !ok {
		return payment.Session{}, payment.ErrUnknownTransaction
	}
	return ws.Payments.ApplyStatus(ctx, update)
}

// Len reports how many workspaces are live.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}

// Shutdown stops every poller and waits for background order publishing to drain.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	workspaces := make([]*Workspace, 0, len(r.workspaces))
	for _, ws := range r.workspaces {
		workspaces = append(workspaces, ws)
	}
	r.mu.Unlock()

	r.cancel()
	for _, ws := range workspaces {
		ws.Payments.StopPolling()
		for _, unsub := range ws.unsubscribe {
			unsub()
		}
		ws.reconciler.Wait()
	}
	r.logger.Info("workspaces shut down", zap.Int("count", len(workspaces)))
}

func (r *Registry) newWorkspaceLocked(ctx context.Context, customer payment.Customer) *Workspace {
	logger := r.deps.Logger.With(zap.String("customer_id", customer.ID))
	store := cart.NewStore(r.deps.Catalog)

	cctx, cancel := context.WithTimeout(ctx, cacheTimeout)
	items, err := r.deps.Cache.Get(cctx, customer.ID)
	cancel()
	switch {
	case err == nil:
		store.Restore(items)
	case errors.Is(err, cache.ErrCacheMiss):
	default:
		logger.Warn("restore cart failed, starting empty", zap.Error(err))
	}

	reconciler := order.NewReconciler(order.Deps{
		Repo:      r.deps.Orders,
		Cart:      store,
		Publisher: r.deps.Publisher,
		Logger:    logger,
		Clock:     r.deps.Clock,
	})
	manager := payment.NewManager(payment.Deps{
		Gateway:      r.deps.Gateway,
		Methods:      r.deps.Methods,
		Reconciler:   reconciler,
		Customer:     customer,
		Logger:       logger,
		Clock:        r.deps.Clock,
		TTL:          r.deps.PaymentTTL,
		PollInterval: r.deps.PollInterval,
		PollGrace:    r.deps.PollGrace,
		Retry:        r.deps.Retry,
	})

	ws := &Workspace{
		CustomerID: customer.ID,
		Cart:       store,
		Payments:   manager,
		reconciler: reconciler,
		registry:   r,
	}
	ws.unsubscribe = append(ws.unsubscribe,
		store.Subscribe(r.saveCart(customer.ID, logger)),
		manager.Subscribe(r.indexTransaction(customer.ID)),
	)
	return ws
}

func (r *Registry) saveCart(customerID string, logger *zap.Logger) cart.Listener {
	return func(change cart.Change) {
		if change.Kind == cart.EventCartRestored {
			return
		}
		ctx, cancel := context.WithTimeout(r.baseCtx, cacheTimeout)
		defer cancel()
		if err := r.deps.Cache.Set(ctx, customerID, change.Snapshot.Items); err != nil {
			logger.Warn("save cart failed", zap.String("change", change.Kind), zap.Error(err))
		}
	}
}

func (r *Registry) indexTransaction(customerID string) payment.Listener {
	return func(s payment.Session) {
		if s.TransactionID == "" {
			return
		}
		r.mu.Lock()
		r.byTx[s.TransactionID] = customerID
		r.mu.Unlock()
	}
}

// Checkout opens a payment session for the selected cart lines and starts polling it.
func (ws *Workspace) Checkout(ctx context.Context, method string) (payment.Session, error) {
	session, err := ws.Payments.Checkout(ctx, ws.Cart.Snapshot(), method)
	if err != nil {
		return session, err
	}
	if _, err := ws.Payments.StartPolling(ws.registry.baseCtx); err != nil {
		// the session already left pending, e.g. a callback raced the create response
		ws.registry.logger.Debug("polling not started",
			zap.String("transaction_id", session.TransactionID),
			zap.Error(err),
		)
	}
	return session, nil
}

// Wait blocks until the workspace's background order publishing has finished.
func (ws *Workspace) Wait() {
	ws.reconciler.Wait()
}
