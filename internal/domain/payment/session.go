package payment

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/digital-storefront/internal/domain/cart"
	"github.com/example/digital-storefront/internal/domain/pricing"
)

type Status string

const (
	StatusCreated   Status = "created"
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusPaid, StatusExpired, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

var (
	ErrEmptySelection     = errors.New("no items selected for checkout")
	ErrInvalidMethod      = pricing.ErrInvalidMethod
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrGatewayRejected    = errors.New("payment gateway rejected the request")
	ErrTamper             = errors.New("settled amount does not match session total")
	ErrSessionInProgress  = errors.New("a payment session is already in progress")
	ErrSessionTerminal    = errors.New("payment session already finished")
	ErrNoActiveSession    = errors.New("no active payment session")
	ErrUnknownTransaction = errors.New("unknown transaction")
	ErrInvalidTransition  = errors.New("invalid payment status transition")
)

var validTransitions = map[Status][]Status{
	StatusCreated:   {StatusPending},
	StatusPending:   {StatusPaid, StatusExpired, StatusCancelled, StatusFailed},
	StatusPaid:      {},
	StatusExpired:   {},
	StatusCancelled: {},
	StatusFailed:    {},
}

// Session is one checkout attempt. Items and Quote are captured at creation and never
// follow later cart edits.
type Session struct {
	LocalOrderID  string          `json:"local_order_id"`
	TransactionID string          `json:"transaction_id,omitempty"`
	PaymentURL    string          `json:"payment_url,omitempty"`
	CustomerID    string          `json:"customer_id"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	Method        string          `json:"method"`
	Items         []cart.LineItem `json:"items"`
	Quote         pricing.Quote   `json:"quote"`
	Status        Status          `json:"status"`
	FailureReason string          `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	ExpiresAt     time.Time       `json:"expires_at,omitempty"`
	PaidAt        time.Time       `json:"paid_at,omitempty"`

	// committed is set once the order for a paid session is stored.
	committed bool
}

func (s *Session) awaitingCommit() bool {
	return s.Status == StatusPaid && !s.committed
}

// Amount is what the customer has to pay.
func (s Session) Amount() int64 {
	return s.Quote.Total
}

// LineIDs lists the ids of the captured cart lines.
func (s Session) LineIDs() []string {
	ids := make([]string, len(s.Items))
	for i, item := range s.Items {
		ids[i] = item.ID
	}
	return ids
}

// CanTransitionTo checks if the session can move to the target status.
func (s *Session) CanTransitionTo(target Status) bool {
	for _, allowed := range validTransitions[s.Status] {
		if allowed == target {
			return true
		}
	}
	return false
}

func (s *Session) transition(target Status, now time.Time) error {
	if !s.CanTransitionTo(target) {
		if s.Status.IsTerminal() {
			return fmt.Errorf("%w: %s", ErrSessionTerminal, s.Status)
		}
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, s.Status, target)
	}
	s.Status = target
	s.UpdatedAt = now
	if target == StatusPaid {
		s.PaidAt = now
	}
	return nil
}

func (s *Session) clone() Session {
	c := *s
	c.Items = append([]cart.LineItem(nil), s.Items...)
	return c
}
