package query

import (
	"github.com/example/digital-storefront/internal/domain/cart"
	"github.com/example/digital-storefront/internal/domain/payment"
	"github.com/example/digital-storefront/internal/domain/pricing"
)

// CartView is the cart as shown at checkout. Quote is set when a method was given.
type CartView struct {
	cart.Snapshot
	Method string         `json:"method,omitempty"`
	Quote  *pricing.Quote `json:"quote,omitempty"`
}

type CheckoutView struct {
	State   payment.State    `json:"state"`
	Session *payment.Session `json:"session,omitempty"`
}
