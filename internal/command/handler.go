package command

import (
	"context"
	"errors"

	"github.com/example/digital-storefront/internal/domain/cart"
	"github.com/example/digital-storefront/internal/domain/catalog"
	"github.com/example/digital-storefront/internal/domain/payment"
	"github.com/example/digital-storefront/internal/support"
	"github.com/example/digital-storefront/internal/workspace"
)

var ErrNoCheckout = errors.New("customer has no checkout in progress")

type Handler struct {
	workspaces *workspace.Registry
	catalog    *catalog.Service
	tickets    *support.Service
}

func NewHandler(
	workspaces *workspace.Registry,
	catalog *catalog.Service,
	tickets *support.Service,
) *Handler {
	return &Handler{
		workspaces: workspaces,
		catalog:    catalog,
		tickets:    tickets,
	}
}

// AddToCart adds a product tier to the customer's cart
func (h *Handler) AddToCart(ctx context.Context, cmd AddToCart) (cart.LineItem, error) {
	ws, err := h.workspaces.Get(ctx, cmd.Customer)
	if err != nil {
		return cart.LineItem{}, err
	}
	return ws.Cart.Add(ctx, cmd.ProductRef, cmd.Tier, cmd.Quantity)
}

func (h *Handler) RemoveFromCart(ctx context.Context, cmd RemoveFromCart) error {
	ws, err := h.workspaces.Get(ctx, cmd.Customer)
	if err != nil {
		return err
	}
	return ws.Cart.Remove(cmd.Index)
}

// ChangeQuantity adds delta to a line's quantity, never going below one
func (h *Handler) ChangeQuantity(ctx context.Context, cmd ChangeQuantity) (cart.LineItem, error) {
	ws, err := h.workspaces.Get(ctx, cmd.Customer)
	if err != nil {
		return cart.LineItem{}, err
	}
	return ws.Cart.SetQuantity(cmd.Index, cmd.Delta)
}

func (h *Handler) ToggleSelection(ctx context.Context, cmd ToggleSelection) (cart.LineItem, error) {
	ws, err := h.workspaces.Get(ctx, cmd.Customer)
	if err != nil {
		return cart.LineItem{}, err
	}
	return ws.Cart.ToggleSelected(cmd.Index)
}

func (h *Handler) SelectAll(ctx context.Context, cmd SelectAll) error {
	ws, err := h.workspaces.Get(ctx, cmd.Customer)
	if err != nil {
		return err
	}
	ws.Cart.SelectAll(cmd.Selected)
	return nil
}

func (h *Handler) ClearCart(ctx context.Context, cmd ClearCart) error {
	ws, err := h.workspaces.Get(ctx, cmd.Customer)
	if err != nil {
		return err
	}
	ws.Cart.Clear()
	return nil
}

// Checkout opens a payment session for the selected lines and starts polling it
func (h *Handler) Checkout(ctx context.Context, cmd Checkout) (payment.Session, error) {
	ws, err := h.workspaces.Get(ctx, cmd.Customer)
	if err != nil {
		return payment.Session{}, err
	}
	return ws.Checkout(ctx, cmd.Method)
}

func (h *Handler) CancelCheckout(ctx context.Context, cmd CancelCheckout) (payment.Session, error) {
	ws, ok := h.workspaces.Lookup(cmd.Customer.ID)
	if !ok {
		return payment.Session{}, ErrNoCheckout
	}
	return ws.Payments.Cancel(ctx)
}

// RefreshCheckout asks the gateway for the current status instead of waiting for the poller
func (h *Handler) RefreshCheckout(ctx context.Context, cmd RefreshCheckout) (payment.Session, error) {
	ws, ok := h.workspaces.Lookup(cmd.Customer.ID)
	if !ok {
		return payment.Session{}, ErrNoCheckout
	}
	if ws.Payments.ExpireIfDue() {
		s, _ := ws.Payments.Session()
		return s, nil
	}
	return ws.Payments.Poll(ctx)
}

// ApplyPaymentCallback applies a verified gateway push
func (h *Handler) ApplyPaymentCallback(ctx context.Context, cmd ApplyPaymentCallback) (payment.Session, error) {
	return h.workspaces.ApplyStatus(ctx, cmd.Update)
}

func (h *Handler) UpsertProduct(ctx context.Context, cmd UpsertProduct) (*catalog.Product, error) {
	return h.catalog.Upsert(ctx, cmd.Product)
}

func (h *Handler) DeleteProduct(ctx context.Context, cmd DeleteProduct) error {
	return h.catalog.Delete(ctx, cmd.ProductID)
}

// SubmitTicket relays a support request; the customer id is taken from the caller
func (h *Handler) SubmitTicket(ctx context.Context, cmd SubmitTicket) (support.Ticket, error) {
	t := cmd.Ticket
	t.CustomerID = cmd.Customer.ID
	if t.Email == "" {
		t.Email = cmd.Customer.Email
	}
	return h.tickets.Submit(ctx, t)
}
