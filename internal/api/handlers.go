package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/digital-storefront/internal/api/middleware"
	"github.com/example/digital-storefront/internal/command"
	"github.com/example/digital-storefront/internal/domain/catalog"
	"github.com/example/digital-storefront/internal/domain/payment"
	"github.com/example/digital-storefront/internal/query"
)

const maxBodyBytes = 1 << 20

type Handlers struct {
	cmdHandler   *command.Handler
	queryHandler *query.Handler
	logger       *zap.Logger
}

func NewHandlers(cmdHandler *command.Handler, queryHandler *query.Handler, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		cmdHandler:   cmdHandler,
		queryHandler: queryHandler,
		logger:       logger.Named("api"),
	}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Product Handlers

func (h *Handlers) GetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.queryHandler.ListProducts(r.Context())
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.queryHandler.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (h *Handlers) GetPaymentMethods(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.queryHandler.ListPaymentMethods())
}

// Cart Handlers

// GetCart returns the cart snapshot; ?method=CODE adds the fee quote for that method.
func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	h.respondCart(w, r, http.StatusOK)
}

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductRef string `json:"product_ref"`
		Tier       string `json:"tier"`
		Quantity   int    `json:"quantity"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	cmd := command.AddToCart{
		Customer:   customerFrom(r),
		ProductRef: strings.TrimSpace(req.ProductRef),
		Tier:       strings.TrimSpace(req.Tier),
		Quantity:   req.Quantity,
	}
	if _, err := h.cmdHandler.AddToCart(r.Context(), cmd); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	h.respondCart(w, r, http.StatusCreated)
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	cmd := command.RemoveFromCart{Customer: customerFrom(r), Index: index}
	if err := h.cmdHandler.RemoveFromCart(r.Context(), cmd); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	h.respondCart(w, r, http.StatusOK)
}

func (h *Handlers) ChangeQuantity(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	var req struct {
		Delta int `json:"delta"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	cmd := command.ChangeQuantity{Customer: customerFrom(r), Index: index, Delta: req.Delta}
	if _, err := h.cmdHandler.ChangeQuantity(r.Context(), cmd); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	h.respondCart(w, r, http.StatusOK)
}

func (h *Handlers) ToggleSelection(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	cmd := command.ToggleSelection{Customer: customerFrom(r), Index: index}
	if _, err := h.cmdHandler.ToggleSelection(r.Context(), cmd); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	h.respondCart(w, r, http.StatusOK)
}

func (h *Handlers) SelectAll(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Selected bool `json:"selected"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	cmd := command.SelectAll{Customer: customerFrom(r), Selected: req.Selected}
	if err := h.cmdHandler.SelectAll(r.Context(), cmd); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	h.respondCart(w, r, http.StatusOK)
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.cmdHandler.ClearCart(r.Context(), command.ClearCart{Customer: customerFrom(r)}); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	h.respondCart(w, r, http.StatusOK)
}

func (h *Handlers) respondCart(w http.ResponseWriter, r *http.Request, status int) {
	view, err := h.queryHandler.GetCart(r.Context(), customerFrom(r), r.URL.Query().Get("method"))
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, status, view)
}

// Checkout Handlers

func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method string `json:"method"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := h.cmdHandler.Checkout(r.Context(), command.Checkout{Customer: customerFrom(r), Method: req.Method})
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

func (h *Handlers) GetCheckout(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.queryHandler.GetCheckout(middleware.GetUserID(r.Context())))
}

func (h *Handlers) CancelCheckout(w http.ResponseWriter, r *http.Request) {
	session, err := h.cmdHandler.CancelCheckout(r.Context(), command.CancelCheckout{Customer: customerFrom(r)})
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// RefreshCheckout polls the gateway once. A tampered settlement still returns the
// failed session so the client can show it.
func (h *Handlers) RefreshCheckout(w http.ResponseWriter, r *http.Request) {
	session, err := h.cmdHandler.RefreshCheckout(r.Context(), command.RefreshCheckout{Customer: customerFrom(r)})
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// Order Handlers

func (h *Handlers) GetMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.queryHandler.ListOrdersByCustomer(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// Support Handlers

func (h *Handlers) SubmitTicket(w http.ResponseWriter, r *http.Request) {
	var req command.SubmitTicket
	if !decodeJSON(w, r, &req.Ticket) {
		return
	}
	req.Customer = customerFrom(r)

	ticket, err := h.cmdHandler.SubmitTicket(r.Context(), req)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"id": ticket.ID})
}

// Admin Handlers

func (h *Handlers) GetAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.queryHandler.ListAllOrders(r.Context())
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *Handlers) UpsertProduct(w http.ResponseWriter, r *http.Request) {
	var p catalog.Product
	if !decodeJSON(w, r, &p) {
		return
	}
	p.ID = chi.URLParam(r, "id")

	product, err := h.cmdHandler.UpsertProduct(r.Context(), command.UpsertProduct{Product: p})
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	h.logger.Info("product upserted",
		zap.String("product_id", product.ID),
		zap.String("admin", middleware.GetUserID(r.Context())),
	)
	respondJSON(w, http.StatusOK, product)
}

func (h *Handlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	cmd := command.DeleteProduct{ProductID: chi.URLParam(r, "id")}
	if err := h.cmdHandler.DeleteProduct(r.Context(), cmd); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Helper functions

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		respondJSONError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func indexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		respondJSONError(w, "index must be an integer", http.StatusBadRequest)
		return 0, false
	}
	return index, true
}

// customerFrom builds the paying customer from the authenticated claims.
func customerFrom(r *http.Request) payment.Customer {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		return payment.Customer{}
	}
	return payment.Customer{ID: claims.UserID, Name: claims.Name, Email: claims.Email}
}
