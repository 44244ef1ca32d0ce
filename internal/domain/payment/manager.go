package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/digital-storefront/internal/domain/cart"
	"github.com/example/digital-storefront/internal/domain/pricing"
)

// State is the checkout state of a Manager.
type State string

const (
	StateIdle            State = "idle"
	StateCreating        State = "creating"
	StateAwaitingPayment State = "awaiting_payment"
	StatePaid            State = "paid"
	StateExpired         State = "expired"
	StateCancelled       State = "cancelled"
	StateFailed          State = "failed"
)

const (
	defaultTTL          = 24 * time.Hour
	defaultPollInterval = 5 * time.Second
	defaultPollGrace    = time.Minute
	commitTimeout       = 10 * time.Second
)

// Listener receives a copy of the session after every transition.
type Listener func(Session)

type Deps struct {
	Gateway    Gateway
	Methods    *pricing.Methods
	Reconciler Reconciler
	Customer   Customer
	Logger     *zap.Logger
	Clock      func() time.Time
	NewOrderID func() string

	// TTL is used when the gateway does not report an expiry.
	TTL          time.Duration
	PollInterval time.Duration
	// PollGrace keeps polling a little past the expiry to catch late settlements.
	PollGrace time.Duration
	Retry     RetryPolicy
}

// Manager drives the payment sessions of one customer. At most one session is
// active (creating or awaiting payment) at a time.
type Manager struct {
	gateway    Gateway
	methods    *pricing.Methods
	reconciler Reconciler
	customer   Customer
	logger     *zap.Logger
	clock      func() time.Time
	newOrderID func() string
	ttl        time.Duration
	interval   time.Duration
	grace      time.Duration
	retry      RetryPolicy

	mu        sync.Mutex
	active    *Session
	byTx      map[string]*Session
	poller    *Poller
	listeners []listenerEntry
	nextSubID int
}

type listenerEntry struct {
	id int
	fn Listener
}

func NewManager(deps Deps) *Manager {
	m := &Manager{
		gateway:    deps.Gateway,
		methods:    deps.Methods,
		reconciler: deps.Reconciler,
		customer:   deps.Customer,
		logger:     deps.Logger,
		clock:      deps.Clock,
		newOrderID: deps.NewOrderID,
		ttl:        deps.TTL,
		interval:   deps.PollInterval,
		grace:      deps.PollGrace,
		retry:      deps.Retry.withDefaults(),
		byTx:       make(map[string]*Session),
	}
	if m.methods == nil {
		m.methods = pricing.DefaultMethods()
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	m.logger = m.logger.Named("payment").With(zap.String("customer_id", deps.Customer.ID))
	if m.clock == nil {
		m.clock = time.Now
	}
	if m.newOrderID == nil {
		m.newOrderID = func() string { return uuid.New().String() }
	}
	if m.ttl <= 0 {
		m.ttl = defaultTTL
	}
	if m.interval <= 0 {
		m.interval = defaultPollInterval
	}
	if m.grace < 0 {
		m.grace = 0
	} else if m.grace == 0 {
		m.grace = defaultPollGrace
	}
	return m
}

// Customer returns the identity sessions are created for.
func (m *Manager) Customer() Customer {
	return m.customer
}

// State derives the checkout state from the current session.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Manager) stateLocked() State {
	if m.active == nil {
		return StateIdle
	}
	switch m.active.Status {
	case StatusCreated:
		return StateCreating
	case StatusPending:
		return StateAwaitingPayment
	case StatusPaid:
		return StatePaid
	case StatusExpired:
		return StateExpired
	case StatusCancelled:
		return StateCancelled
	default:
		return StateFailed
	}
}

// Session returns the most recent session, if any.
func (m *Manager) Session() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return Session{}, false
	}
	return m.active.clone(), true
}

// SessionByTransaction returns any session this manager created for a transaction id.
func (m *Manager) SessionByTransaction(transactionID string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byTx[transactionID]
	if !ok {
		return Session{}, false
	}
	return s.clone(), true
}

// Checkout prices the selected items of snap and opens a remote transaction for them.
// Validation happens before any remote call. On gateway failure the manager returns to
// idle and the error wraps ErrGatewayUnavailable or ErrGatewayRejected.
func (m *Manager) Checkout(ctx context.Context, snap cart.Snapshot, methodCode string) (Session, error) {
	selected := selectedItems(snap)
	if len(selected) == 0 {
		return Session{}, ErrEmptySelection
	}
	quote, method, err := m.methods.Quote(selected, methodCode)
	if err != nil {
		return Session{}, err
	}

	now := m.clock()
	m.mu.Lock()
	if m.active != nil && !m.active.Status.IsTerminal() {
		m.mu.Unlock()
		return Session{}, ErrSessionInProgress
	}
	session := &Session{
		LocalOrderID:  m.newOrderID(),
		CustomerID:    m.customer.ID,
		CustomerEmail: m.customer.Email,
		Method:        method.Code,
		Items:         selected,
		Quote:         quote,
		Status:        StatusCreated,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.active = session
	created := session.clone()
	listeners := m.listenersLocked()
	m.mu.Unlock()

	notify(listeners, created)
	m.logger.Info("creating payment session",
		zap.String("order_id", session.LocalOrderID),
		zap.String("method", method.Code),
		zap.Int64("total", quote.Total),
	)

	req := CreateRequest{
		OrderID:   session.LocalOrderID,
		Amount:    quote.Total,
		Method:    method.Code,
		Customer:  m.customer,
		Items:     append([]cart.LineItem(nil), selected...),
		Fee:       quote.Fee,
		ExpiresAt: now.Add(m.ttl),
	}
	var tx Transaction
	err = m.retry.do(ctx, m.logger, "create_transaction", func(ctx context.Context) error {
		var callErr error
		tx, callErr = m.gateway.CreateTransaction(ctx, req)
		return callErr
	})

	m.mu.Lock()
	if err != nil {
		if m.active == session {
			m.active = nil
		}
		m.mu.Unlock()
		m.logger.Error("payment session creation failed",
			zap.String("order_id", session.LocalOrderID),
			zap.Error(err),
		)
		if errors.Is(err, ErrGatewayRejected) {
			return Session{}, fmt.Errorf("create transaction: %w", err)
		}
		return Session{}, fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
	}

	session.TransactionID = tx.TransactionID
	session.PaymentURL = tx.PaymentURL
	session.ExpiresAt = tx.ExpiresAt
	if session.ExpiresAt.IsZero() {
		session.ExpiresAt = req.ExpiresAt
	}
	_ = session.transition(StatusPending, m.clock())
	m.byTx[tx.TransactionID] = session
	out := session.clone()
	listeners = m.listenersLocked()
	m.mu.Unlock()

	m.logger.Info("payment session awaiting payment",
		zap.String("order_id", out.LocalOrderID),
		zap.String("transaction_id", out.TransactionID),
		zap.Time("expires_at", out.ExpiresAt),
	)
	notify(listeners, out)
	return out, nil
}

// ApplyStatus applies a polled or pushed gateway status. A paid status is accepted only
// when the settled amount equals the session total; otherwise the session fails with
// ErrTamper. A paid session is handed to the reconciler.
func (m *Manager) ApplyStatus(ctx context.Context, update StatusUpdate) (Session, error) {
	m.mu.Lock()
	session, ok := m.byTx[update.TransactionID]
	if !ok {
		m.mu.Unlock()
		return Session{}, fmt.Errorf("%w: %s", ErrUnknownTransaction, update.TransactionID)
	}
	if session.Status.IsTerminal() {
		out := session.clone()
		retry := session.awaitingCommit() && update.Status == StatusPaid && update.SettledAmount == session.Quote.Total
		m.mu.Unlock()
		if retry {
			return m.commit(ctx, out)
		}
		return out, fmt.Errorf("%w: %s", ErrSessionTerminal, out.Status)
	}

	now := m.clock()
	var tamperErr error
	switch update.Status {
	case StatusPaid:
		if update.SettledAmount != session.Quote.Total {
			tamperErr = fmt.Errorf("%w: expected %d, settled %d", ErrTamper, session.Quote.Total, update.SettledAmount)
			session.FailureReason = tamperErr.Error()
			_ = session.transition(StatusFailed, now)
		} else {
			_ = session.transition(StatusPaid, now)
			session.committed = m.reconciler == nil
		}
	case StatusFailed:
		session.FailureReason = update.Reason
		_ = session.transition(StatusFailed, now)
	case StatusExpired:
		_ = session.transition(StatusExpired, now)
	case StatusCancelled:
		_ = session.transition(StatusCancelled, now)
	default:
		if !now.Before(session.ExpiresAt) {
			_ = session.transition(StatusExpired, now)
		} else {
			out := session.clone()
			m.mu.Unlock()
			return out, nil
		}
	}

	out := session.clone()
	m.stopPollerIfTerminalLocked(session)
	listeners := m.listenersLocked()
	m.mu.Unlock()

	notify(listeners, out)

	if tamperErr != nil {
		m.logger.Error("payment amount mismatch",
			zap.String("transaction_id", out.TransactionID),
			zap.Int64("expected", out.Quote.Total),
			zap.Int64("settled", update.SettledAmount),
		)
		return out, tamperErr
	}

	m.logger.Info("payment status changed",
		zap.String("transaction_id", out.TransactionID),
		zap.String("status", string(out.Status)),
	)

	if out.awaitingCommit() {
		return m.commit(ctx, out)
	}
	return out, nil
}

// commit hands a paid session to the reconciler. The commit outlives the caller's
// context: a poller that sees the payment is stopped only once the order is stored.
// Until then later paid updates for the transaction retry the commit.
func (m *Manager) commit(ctx context.Context, s Session) (Session, error) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()
	if err := m.reconciler.Commit(cctx, s); err != nil {
		m.logger.Error("order reconciliation failed",
			zap.String("transaction_id", s.TransactionID),
			zap.Error(err),
		)
		return s, fmt.Errorf("reconcile order: %w", err)
	}

	m.mu.Lock()
	if session, ok := m.byTx[s.TransactionID]; ok {
		session.committed = true
		m.stopPollerIfTerminalLocked(session)
	}
	m.mu.Unlock()
	s.committed = true
	return s, nil
}

// Cancel cancels the session awaiting payment. If the gateway cannot be reached the
// session stays pending and the error wraps ErrGatewayUnavailable.
func (m *Manager) Cancel(ctx context.Context) (Session, error) {
	m.mu.Lock()
	session := m.active
	switch {
	case session == nil:
		m.mu.Unlock()
		return Session{}, ErrNoActiveSession
	case session.Status == StatusCreated:
		m.mu.Unlock()
		return Session{}, ErrSessionInProgress
	case session.Status.IsTerminal():
		out := session.clone()
		m.mu.Unlock()
		return out, fmt.Errorf("%w: %s", ErrSessionTerminal, out.Status)
	}
	if !m.clock().Before(session.ExpiresAt) {
		_ = session.transition(StatusExpired, m.clock())
		out := session.clone()
		m.stopPollerIfTerminalLocked(session)
		listeners := m.listenersLocked()
		m.mu.Unlock()
		notify(listeners, out)
		return out, nil
	}
	txID := session.TransactionID
	m.mu.Unlock()

	err := m.retry.do(ctx, m.logger, "cancel_transaction", func(ctx context.Context) error {
		return m.gateway.Cancel(ctx, txID)
	})
	if err != nil {
		m.logger.Warn("gateway cancel failed, session left pending",
			zap.String("transaction_id", txID),
			zap.Error(err),
		)
		if errors.Is(err, ErrGatewayRejected) {
			return m.snapshotOf(txID), fmt.Errorf("cancel transaction: %w", err)
		}
		return m.snapshotOf(txID), fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
	}

	m.mu.Lock()
	if err := session.transition(StatusCancelled, m.clock()); err != nil {
		out := session.clone()
		m.mu.Unlock()
		return out, err
	}
	out := session.clone()
	m.stopPollerIfTerminalLocked(session)
	listeners := m.listenersLocked()
	m.mu.Unlock()

	m.logger.Info("payment session cancelled", zap.String("transaction_id", txID))
	notify(listeners, out)
	return out, nil
}

// ExpireIfDue moves a pending session past its expiry to expired.
func (m *Manager) ExpireIfDue() bool {
	m.mu.Lock()
	session := m.active
	if session == nil || session.Status != StatusPending || m.clock().Before(session.ExpiresAt) {
		m.mu.Unlock()
		return false
	}
	_ = session.transition(StatusExpired, m.clock())
	out := session.clone()
	m.stopPollerIfTerminalLocked(session)
	listeners := m.listenersLocked()
	m.mu.Unlock()

	m.logger.Info("payment session expired", zap.String("transaction_id", out.TransactionID))
	notify(listeners, out)
	return true
}

// Poll queries the gateway once for the active session and applies the result. A paid
// session whose order is not stored yet is polled again to retry the commit.
func (m *Manager) Poll(ctx context.Context) (Session, error) {
	m.mu.Lock()
	session := m.active
	if session == nil || (session.Status != StatusPending && !session.awaitingCommit()) {
		m.mu.Unlock()
		return Session{}, ErrNoActiveSession
	}
	txID := session.TransactionID
	m.mu.Unlock()

	return m.pollTransaction(ctx, txID)
}

func (m *Manager) pollTransaction(ctx context.Context, txID string) (Session, error) {
	var update StatusUpdate
	err := m.retry.do(ctx, m.logger, "get_status", func(ctx context.Context) error {
		var callErr error
		update, callErr = m.gateway.GetStatus(ctx, txID)
		return callErr
	})
	if err != nil {
		if m.ExpireIfDue() {
			return m.snapshotOf(txID), nil
		}
		return m.snapshotOf(txID), fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
	}
	update.TransactionID = txID
	return m.ApplyStatus(ctx, update)
}

// Subscribe registers a listener and returns a function that removes it.
func (m *Manager) Subscribe(fn Listener) (unsubscribe func()) {
	m.mu.Lock()
	m.nextSubID++
	id := m.nextSubID
	m.listeners = append(m.listeners, listenerEntry{id: id, fn: fn})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, l := range m.listeners {
				if l.id == id {
					m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (m *Manager) snapshotOf(txID string) Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.byTx[txID]; ok {
		return s.clone()
	}
	return Session{}
}

func (m *Manager) listenersLocked() []Listener {
	out := make([]Listener, len(m.listeners))
	for i, l := range m.listeners {
		out[i] = l.fn
	}
	return out
}

func (m *Manager) stopPollerIfTerminalLocked(session *Session) {
	if session.Status.IsTerminal() && !session.awaitingCommit() && m.poller != nil && m.poller.transactionID == session.TransactionID {
		m.poller.Stop()
		m.poller = nil
	}
}

func notify(listeners []Listener, s Session) {
	for _, fn := range listeners {
		fn(s.clone())
	}
}

func selectedItems(snap cart.Snapshot) []cart.LineItem {
	source := snap.SelectedItems
	if source == nil {
		source = snap.Items
	}
	out := make([]cart.LineItem, 0, len(source))
	for _, item := range source {
		if item.Selected {
			out = append(out, item)
		}
	}
	return out
}
