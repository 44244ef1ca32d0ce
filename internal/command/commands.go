package command

import (
	"github.com/example/digital-storefront/internal/domain/catalog"
	"github.com/example/digital-storefront/internal/domain/payment"
	"github.com/example/digital-storefront/internal/support"
)

// Cart Commands
type AddToCart struct {
	Customer   payment.Customer `json:"-"`
	ProductRef string           `json:"product_ref"`
	Tier       string           `json:"tier"`
	Quantity   int              `json:"quantity"`
}

type RemoveFromCart struct {
	Customer payment.Customer `json:"-"`
	Index    int              `json:"index"`
}

type ChangeQuantity struct {
	Customer payment.Customer `json:"-"`
	Index    int              `json:"index"`
	Delta    int              `json:"delta"`
}

type ToggleSelection struct {
	Customer payment.Customer `json:"-"`
	Index    int              `json:"index"`
}

type SelectAll struct {
	Customer payment.Customer `json:"-"`
	Selected bool             `json:"selected"`
}

type ClearCart struct {
	Customer payment.Customer `json:"-"`
}

// Checkout Commands
type Checkout struct {
	Customer payment.Customer `json:"-"`
	Method   string           `json:"method"`
}

type CancelCheckout struct {
	Customer payment.Customer `json:"-"`
}

type RefreshCheckout struct {
	Customer payment.Customer `json:"-"`
}

type ApplyPaymentCallback struct {
	Update payment.StatusUpdate `json:"update"`
}

// Catalog Commands
type UpsertProduct struct {
	Product catalog.Product `json:"product"`
}

type DeleteProduct struct {
	ProductID string `json:"product_id"`
}

// Support Commands
type SubmitTicket struct {
	Customer payment.Customer `json:"-"`
	Ticket   support.Ticket   `json:"ticket"`
}
