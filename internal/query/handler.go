package query

import (
	"context"

	"github.com/example/digital-storefront/internal/domain/catalog"
	"github.com/example/digital-storefront/internal/domain/order"
	"github.com/example/digital-storefront/internal/domain/payment"
	"github.com/example/digital-storefront/internal/domain/pricing"
	"github.com/example/digital-storefront/internal/workspace"
)

type Handler struct {
	workspaces *workspace.Registry
	catalog    catalog.Reader
	methods    *pricing.Methods
	orders     order.Repository
}

func NewHandler(
	workspaces *workspace.Registry,
	catalog catalog.Reader,
	methods *pricing.Methods,
	orders order.Repository,
) *Handler {
	return &Handler{
		workspaces: workspaces,
		catalog:    catalog,
		methods:    methods,
		orders:     orders,
	}
}

// Products
func (h *Handler) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	return h.catalog.Get(ctx, id)
}

func (h *Handler) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	return h.catalog.List(ctx)
}

// Payment methods
func (h *Handler) ListPaymentMethods() []pricing.Method {
	return h.methods.List()
}

// GetCart derives the cart snapshot. Customers without a workspace yet see an empty
// cart restored from the cache on first mutation.
func (h *Handler) GetCart(ctx context.Context, customer payment.Customer, method string) (CartView, error) {
	ws, err := h.workspaces.Get(ctx, customer)
	if err != nil {
		return CartView{}, err
	}
	view := CartView{Snapshot: ws.Cart.Snapshot()}
	if method == "" {
		return view, nil
	}
	quote, m, err := h.methods.Quote(view.SelectedItems, method)
	if err != nil {
		return CartView{}, err
	}
	view.Method = m.Code
	view.Quote = &quote
	return view, nil
}

// Checkout
func (h *Handler) GetCheckout(customerID string) CheckoutView {
	ws, ok := h.workspaces.Lookup(customerID)
	if !ok {
		return CheckoutView{State: payment.StateIdle}
	}
	view := CheckoutView{State: ws.Payments.State()}
	if s, ok := ws.Payments.Session(); ok {
		view.Session = &s
	}
	return view
}

// Orders
func (h *Handler) GetOrderByTransaction(ctx context.Context, transactionID string) (*order.Order, error) {
	return h.orders.GetByTransactionID(ctx, transactionID)
}

func (h *Handler) ListOrdersByCustomer(ctx context.Context, customerID string) ([]order.Order, error) {
	return h.orders.ListByCustomer(ctx, customerID)
}

// ListAllOrders returns all orders (for admin use)
func (h *Handler) ListAllOrders(ctx context.Context) ([]order.Order, error) {
	return h.orders.List(ctx)
}
